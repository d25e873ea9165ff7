package payment

import (
	"context"
	"sync"
)

// scriptedGateway returns queued results and counts calls.
type scriptedGateway struct {
	mu sync.Mutex

	getErrs    []error // consumed in order; nil entry means success
	session    *Session
	getCalls   int
	createErr  error
	createCall int

	customer      *Customer
	customerErr   error
	customerCalls int
}

func (g *scriptedGateway) FindOrCreateCustomer(_ context.Context, email string) (*Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.customerCalls++
	if g.customerErr != nil {
		return nil, g.customerErr
	}
	return &Customer{ID: g.customer.ID, Email: email}, nil
}

func (g *scriptedGateway) CreateSession(_ context.Context, _ SessionParams) (*Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createCall++
	if g.createErr != nil {
		return nil, g.createErr
	}
	return g.session, nil
}

func (g *scriptedGateway) GetSession(_ context.Context, _ string) (*Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.getCalls++
	if len(g.getErrs) > 0 {
		err := g.getErrs[0]
		g.getErrs = g.getErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return g.session, nil
}

// memoryCache is a CustomerCache backed by a map.
type memoryCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string]string)}
}

func (c *memoryCache) Get(_ context.Context, email string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.data[email]
	if !ok {
		return "", ErrCacheMiss
	}
	return id, nil
}

func (c *memoryCache) Set(_ context.Context, email, customerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[email] = customerID
	return nil
}
