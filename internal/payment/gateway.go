package payment

import (
	"context"
	"errors"
)

// PaymentStatusPaid is the only provider status that settles an order.
const PaymentStatusPaid = "paid"

// Session placeholder the provider substitutes into the success URL.
const SessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"

var (
	ErrSessionNotFound    = errors.New("payment session not found")
	ErrMissingCredentials = errors.New("payment provider credentials are not configured")
)

// Customer is the provider's record for a paying e-mail address.
type Customer struct {
	ID    string
	Email string
}

// LineItem is one priced entry on a hosted checkout page.
type LineItem struct {
	Name        string
	Description string
	Images      []string
	Metadata    map[string]string
	Currency    string
	UnitAmount  int64 // minor currency units
	Quantity    int64
}

// SessionParams describes a hosted checkout session to create.
type SessionParams struct {
	CustomerID string
	LineItems  []LineItem
	SuccessURL string
	CancelURL  string
	// Metadata must round-trip through the provider unchanged.
	Metadata map[string]string
}

// Session is the provider's view of a checkout session.
type Session struct {
	ID            string
	URL           string
	PaymentStatus string
	AmountTotal   int64
	Currency      string
	CustomerEmail string
	Metadata      map[string]string
}

// Gateway is the narrow surface the checkout flow needs from a hosted
// payment provider.
type Gateway interface {
	// FindOrCreateCustomer returns the existing customer for email or creates one.
	FindOrCreateCustomer(ctx context.Context, email string) (*Customer, error)
	CreateSession(ctx context.Context, params SessionParams) (*Session, error)
	// GetSession returns ErrSessionNotFound when the provider has no such session.
	GetSession(ctx context.Context, sessionID string) (*Session, error)
}
