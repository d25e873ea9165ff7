package models

// Principal is a caller whose bearer token has been verified.
type Principal struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}
