package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kisanmarket/kisan-golang/internal/models"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrInvalidSubject = errors.New("invalid subject claim")
)

// Verifier signs and checks the bearer tokens issued to shoppers.
// The secret comes from JWT_SECRET.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// GenerateToken creates a signed token for a shopper.
func (v *Verifier) GenerateToken(userID, email string, ttl time.Duration) (string, error) {
	// 1. Claims: "sub" is the user id, "email" is where receipts go.
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"exp":   now.Add(ttl).Unix(),
		"iat":   now.Unix(),
	}

	// 2. Sign with HS256
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(v.secret)
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

// ValidateToken parses and validates a token string and returns its principal.
func (v *Verifier) ValidateToken(tokenString string) (*models.Principal, error) {
	// 1. Parse, rejecting anything not signed with HMAC.
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}

	// 2. Pull the subject and e-mail out of the claims.
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	userID, err := claims.GetSubject()
	if err != nil || userID == "" {
		return nil, ErrInvalidSubject
	}
	email, _ := claims["email"].(string)

	return &models.Principal{UserID: userID, Email: email}, nil
}

// Verify satisfies checkout.IdentityVerifier.
func (v *Verifier) Verify(_ context.Context, token string) (*models.Principal, error) {
	return v.ValidateToken(token)
}
