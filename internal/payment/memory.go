package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryGateway is an in-process hosted checkout used for local runs and tests.
// Sessions start "unpaid"; SetPaymentStatus simulates the shopper paying.
type MemoryGateway struct {
	mu               sync.Mutex
	checkoutBaseURL  string
	customersByEmail map[string]*Customer
	sessions         map[string]*Session
	customersCreated int
}

func NewMemoryGateway(checkoutBaseURL string) *MemoryGateway {
	return &MemoryGateway{
		checkoutBaseURL:  strings.TrimRight(checkoutBaseURL, "/"),
		customersByEmail: make(map[string]*Customer),
		sessions:         make(map[string]*Session),
	}
}

func (g *MemoryGateway) FindOrCreateCustomer(_ context.Context, email string) (*Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.customersByEmail[email]; ok {
		return &Customer{ID: c.ID, Email: c.Email}, nil
	}
	c := &Customer{ID: "cus_" + uuid.NewString(), Email: email}
	g.customersByEmail[email] = c
	g.customersCreated++
	return &Customer{ID: c.ID, Email: c.Email}, nil
}

func (g *MemoryGateway) CreateSession(_ context.Context, params SessionParams) (*Session, error) {
	if len(params.LineItems) == 0 {
		return nil, fmt.Errorf("create session: no line items")
	}

	var (
		total    int64
		currency string
	)
	for _, li := range params.LineItems {
		total += li.UnitAmount * li.Quantity
		currency = li.Currency
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	email := ""
	for _, c := range g.customersByEmail {
		if c.ID == params.CustomerID {
			email = c.Email
		}
	}

	id := "cs_mem_" + uuid.NewString()
	s := &Session{
		ID:            id,
		URL:           fmt.Sprintf("%s/pay/%s", g.checkoutBaseURL, id),
		PaymentStatus: "unpaid",
		AmountTotal:   total,
		Currency:      currency,
		CustomerEmail: email,
		Metadata:      copyMetadata(params.Metadata),
	}
	g.sessions[id] = s
	return copySession(s), nil
}

func (g *MemoryGateway) GetSession(_ context.Context, sessionID string) (*Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return copySession(s), nil
}

// SetPaymentStatus changes what GetSession reports for a session.
func (g *MemoryGateway) SetPaymentStatus(sessionID, status string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	s.PaymentStatus = status
	return nil
}

// CustomersCreated returns how many distinct customers were created.
func (g *MemoryGateway) CustomersCreated() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.customersCreated
}

func copySession(s *Session) *Session {
	c := *s
	c.Metadata = copyMetadata(s.Metadata)
	return &c
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
