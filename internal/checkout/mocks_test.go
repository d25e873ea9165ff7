package checkout

import (
	"context"
	"errors"
	"sync"

	"github.com/kisanmarket/kisan-golang/internal/models"
	"github.com/kisanmarket/kisan-golang/internal/orders"
	"github.com/kisanmarket/kisan-golang/internal/payment"
)

// faultyRepo wraps the in-memory repository and injects failures.
type faultyRepo struct {
	*orders.MemoryRepository

	createErr     error
	linkErr       error
	transitionErr error
	getErr        error

	mu          sync.Mutex
	transitions int
}

func newFaultyRepo() *faultyRepo {
	return &faultyRepo{MemoryRepository: orders.NewMemoryRepository()}
}

func (r *faultyRepo) CreatePendingOrder(ctx context.Context, order *models.Order, items []models.OrderLineItem) error {
	if r.createErr != nil {
		return r.createErr
	}
	return r.MemoryRepository.CreatePendingOrder(ctx, order, items)
}

func (r *faultyRepo) LinkPaymentSession(ctx context.Context, orderID, sessionID string) error {
	if r.linkErr != nil {
		return r.linkErr
	}
	return r.MemoryRepository.LinkPaymentSession(ctx, orderID, sessionID)
}

func (r *faultyRepo) TransitionStatus(ctx context.Context, orderID string, to models.OrderStatus) (orders.Transition, error) {
	r.mu.Lock()
	r.transitions++
	r.mu.Unlock()
	if r.transitionErr != nil {
		return orders.Transition{}, r.transitionErr
	}
	return r.MemoryRepository.TransitionStatus(ctx, orderID, to)
}

func (r *faultyRepo) GetOrderWithItems(ctx context.Context, orderID string) (*models.Order, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.MemoryRepository.GetOrderWithItems(ctx, orderID)
}

func (r *faultyRepo) transitionCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transitions
}

// spyGateway wraps the in-memory gateway, records session params and can
// fail individual calls.
type spyGateway struct {
	*payment.MemoryGateway

	customerErr error
	createErr   error
	getErr      error

	mu         sync.Mutex
	lastParams payment.SessionParams
	getCalls   int
}

func newSpyGateway() *spyGateway {
	return &spyGateway{MemoryGateway: payment.NewMemoryGateway("https://pay.test")}
}

func (g *spyGateway) FindOrCreateCustomer(ctx context.Context, email string) (*payment.Customer, error) {
	if g.customerErr != nil {
		return nil, g.customerErr
	}
	return g.MemoryGateway.FindOrCreateCustomer(ctx, email)
}

func (g *spyGateway) CreateSession(ctx context.Context, params payment.SessionParams) (*payment.Session, error) {
	g.mu.Lock()
	g.lastParams = params
	g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	return g.MemoryGateway.CreateSession(ctx, params)
}

func (g *spyGateway) GetSession(ctx context.Context, sessionID string) (*payment.Session, error) {
	g.mu.Lock()
	g.getCalls++
	g.mu.Unlock()
	if g.getErr != nil {
		return nil, g.getErr
	}
	return g.MemoryGateway.GetSession(ctx, sessionID)
}

// stubVerifier accepts the tokens it knows.
type stubVerifier map[string]*models.Principal

func (v stubVerifier) Verify(_ context.Context, token string) (*models.Principal, error) {
	p, ok := v[token]
	if !ok {
		return nil, errors.New("token rejected")
	}
	return p, nil
}

// recordingListener keeps every settled order it is handed.
type recordingListener struct {
	mu     sync.Mutex
	orders []*models.Order
	err    error
}

func (l *recordingListener) OrderSettled(_ context.Context, order *models.Order) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.orders = append(l.orders, order)
	return l.err
}

func (l *recordingListener) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.orders)
}

// countingRecorder tallies outcomes by label.
type countingRecorder struct {
	mu         sync.Mutex
	completed  int
	failed     map[string]int
	reconciled map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{failed: map[string]int{}, reconciled: map[string]int{}}
}

func (r *countingRecorder) CheckoutCompleted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed++
}

func (r *countingRecorder) CheckoutFailed(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[kind]++
}

func (r *countingRecorder) Reconciled(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reconciled[outcome]++
}
