package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kisanmarket/kisan-golang/internal/models"
)

// MemoryRepository is an in-process Repository with the same guarantees as
// the MySQL one. It backs tests and local runs without a database.
type MemoryRepository struct {
	mu     sync.Mutex
	orders map[string]*models.Order
	nextID int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{orders: make(map[string]*models.Order)}
}

func (r *MemoryRepository) CreatePendingOrder(_ context.Context, order *models.Order, items []models.OrderLineItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	order.ID = uuid.New().String()
	order.Status = models.OrderStatusPending
	order.CreatedAt = now
	order.UpdatedAt = now

	for i := range items {
		r.nextID++
		items[i].ID = r.nextID
		items[i].OrderID = order.ID
		items[i].CreatedAt = now
	}
	order.Items = items

	r.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *MemoryRepository) LinkPaymentSession(_ context.Context, orderID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	if o.PaymentSessionID != nil {
		if *o.PaymentSessionID == sessionID {
			return nil
		}
		return ErrSessionAlreadyLinked
	}
	o.PaymentSessionID = &sessionID
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepository) TransitionStatus(_ context.Context, orderID string, to models.OrderStatus) (Transition, error) {
	if !models.OrderStatusPending.CanTransitionTo(to) {
		return Transition{}, fmt.Errorf("%w: pending -> %s", ErrIllegalTransition, to)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok {
		return Transition{}, ErrOrderNotFound
	}
	if o.Status != models.OrderStatusPending {
		return Transition{Applied: false, Current: o.Status}, nil
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	return Transition{Applied: true, Current: to}, nil
}

func (r *MemoryRepository) GetOrderWithItems(_ context.Context, orderID string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (r *MemoryRepository) ListOrdersByUser(_ context.Context, userID string) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	orders := []models.Order{}
	for _, o := range r.orders {
		if o.UserID != nil && *o.UserID == userID {
			c := cloneOrder(o)
			c.Items = nil
			orders = append(orders, *c)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

// Count returns the number of stored orders.
func (r *MemoryRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

func cloneOrder(o *models.Order) *models.Order {
	c := *o
	c.Items = append([]models.OrderLineItem(nil), o.Items...)
	if o.UserID != nil {
		v := *o.UserID
		c.UserID = &v
	}
	if o.PaymentSessionID != nil {
		v := *o.PaymentSessionID
		c.PaymentSessionID = &v
	}
	if o.DeliveryAddress != nil {
		v := *o.DeliveryAddress
		c.DeliveryAddress = &v
	}
	return &c
}
