package checkout

import (
	"errors"
	"fmt"

	"github.com/kisanmarket/kisan-golang/internal/payment"
)

// Validation failures. These are rejected before any side effect.
var (
	ErrEmptyCart      = errors.New("cart is empty")
	ErrMissingSession = errors.New("session id is required")
	ErrTotalMismatch  = errors.New("order total does not match cart")
	ErrInvalidItem    = errors.New("invalid cart item")
)

var (
	ErrSessionNotFound = errors.New("payment session not found")
	// ErrSessionMetadata means the provider returned a session without the
	// order reference written at checkout.
	ErrSessionMetadata = errors.New("payment session has no order reference")
	// ErrConflictingOutcome means the provider's verdict disagrees with an
	// already settled order. The stored status is kept.
	ErrConflictingOutcome = errors.New("conflicting settlement outcome")

	ErrOrderCreation      = errors.New("failed to create order")
	ErrOrderItemsCreation = errors.New("failed to create order items")
)

// Kind classifies an error for the HTTP boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConfiguration
	KindPersistence
	KindProvider
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConfiguration:
		return "configuration"
	case KindPersistence:
		return "persistence"
	case KindProvider:
		return "provider"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// ConfigError is an upstream misconfiguration, such as missing provider
// credentials. Retrying will not help.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return "configuration error: " + e.Err.Error() }
func (e *ConfigError) Unwrap() error { return e.Err }

// PersistenceError is a failed database write or read.
type PersistenceError struct {
	Op      string
	OrderID string
	Err     error
}

func (e *PersistenceError) Error() string {
	if e.OrderID != "" {
		return fmt.Sprintf("%s (order %s): %v", e.Op, e.OrderID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ProviderError is a failed call to the payment provider.
type ProviderError struct {
	Op        string
	OrderID   string
	SessionID string
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// KindOf maps any error returned by this package to its Kind.
func KindOf(err error) Kind {
	var (
		cfgErr  *ConfigError
		persErr *PersistenceError
		provErr *ProviderError
	)
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrEmptyCart), errors.Is(err, ErrMissingSession),
		errors.Is(err, ErrTotalMismatch), errors.Is(err, ErrInvalidItem):
		return KindValidation
	case errors.Is(err, ErrSessionNotFound):
		return KindNotFound
	case errors.As(err, &cfgErr), errors.Is(err, payment.ErrMissingCredentials):
		return KindConfiguration
	case errors.Is(err, ErrConflictingOutcome):
		return KindConflict
	case errors.As(err, &persErr):
		return KindPersistence
	case errors.As(err, &provErr):
		return KindProvider
	default:
		return KindInternal
	}
}

// PublicMessage is the text safe to return to a caller. Internal detail is
// only ever logged.
func PublicMessage(err error) string {
	switch KindOf(err) {
	case KindValidation:
		return err.Error()
	case KindNotFound:
		return "Payment session not found"
	case KindConfiguration:
		return "Payment service is not configured"
	case KindPersistence:
		if errors.Is(err, ErrOrderCreation) || errors.Is(err, ErrOrderItemsCreation) {
			return "Failed to create order"
		}
		return "Failed to save order"
	case KindProvider:
		return "Payment provider request failed"
	case KindConflict:
		return "Order was already settled with a different outcome"
	default:
		return "Internal server error"
	}
}
