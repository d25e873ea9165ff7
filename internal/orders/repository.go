package orders

import (
	"context"
	"errors"

	"github.com/kisanmarket/kisan-golang/internal/models"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrSessionAlreadyLinked = errors.New("order is already linked to a different payment session")
	ErrIllegalTransition    = errors.New("illegal order status transition")

	// CreatePendingOrder wraps its failures in one of these so callers can
	// tell which write failed. Both roll back the whole transaction.
	ErrInsertOrder = errors.New("insert order")
	ErrInsertItems = errors.New("insert order items")
)

// Transition is the outcome of a guarded status update.
type Transition struct {
	// Applied is true only for the single caller that moved the order out of pending.
	Applied bool
	// Current is the status stored after the call.
	Current models.OrderStatus
}

// Repository is the persistence boundary for orders and their line items.
type Repository interface {
	// CreatePendingOrder inserts the order and all of its items in one
	// transaction. It assigns order.ID, timestamps and item IDs.
	CreatePendingOrder(ctx context.Context, order *models.Order, items []models.OrderLineItem) error
	// LinkPaymentSession sets the session id once. Re-linking the same id is a no-op.
	LinkPaymentSession(ctx context.Context, orderID, sessionID string) error
	// TransitionStatus moves a pending order to a terminal status.
	TransitionStatus(ctx context.Context, orderID string, to models.OrderStatus) (Transition, error)
	GetOrderWithItems(ctx context.Context, orderID string) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error)
}
