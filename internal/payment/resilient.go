package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kisanmarket/kisan-golang/internal/logging"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"
)

// ResilienceOptions configures ResilientGateway.
type ResilienceOptions struct {
	// Timeout bounds every provider call.
	Timeout time.Duration
	// RetryWait is the pause before the single retry of a read.
	RetryWait time.Duration
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// Cache is optional.
	Cache CustomerCache
}

// ResilientGateway decorates a Gateway with per-call timeouts, a circuit
// breaker, a single retry for session lookups and de-duplicated customer
// lookups. Session creation is never retried.
type ResilientGateway struct {
	next      Gateway
	timeout   time.Duration
	retryWait time.Duration
	breaker   *gobreaker.CircuitBreaker[any]
	customers singleflight.Group
	cache     CustomerCache
}

func NewResilientGateway(next Gateway, opts ResilienceOptions) *ResilientGateway {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 200 * time.Millisecond
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}
	threshold := opts.FailureThreshold

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "payment-provider",
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A missing session is an answer, not a provider fault.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrSessionNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Log(logging.Fields{Step: "circuit_breaker", Status: to.String(),
				Message: name + " changed from " + from.String()})
		},
	})

	return &ResilientGateway{
		next:      next,
		timeout:   opts.Timeout,
		retryWait: opts.RetryWait,
		breaker:   breaker,
		cache:     opts.Cache,
	}
}

func (g *ResilientGateway) FindOrCreateCustomer(ctx context.Context, email string) (*Customer, error) {
	if g.cache != nil {
		id, err := g.cache.Get(ctx, email)
		if err == nil {
			return &Customer{ID: id, Email: email}, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			logging.Error("customer_cache_get", err, logging.Fields{Email: email})
		}
	}

	// Concurrent checkouts for the same address share one provider call.
	// It must not die with whichever caller happened to start it.
	shared := context.WithoutCancel(ctx)
	v, err, _ := g.customers.Do(strings.ToLower(email), func() (any, error) {
		c, err := call(shared, g, func(ctx context.Context) (*Customer, error) {
			return g.next.FindOrCreateCustomer(ctx, email)
		})
		if err != nil {
			return nil, err
		}
		if g.cache != nil {
			if err := g.cache.Set(shared, email, c.ID); err != nil {
				logging.Error("customer_cache_set", err, logging.Fields{Email: email})
			}
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	c := v.(*Customer)
	return &Customer{ID: c.ID, Email: c.Email}, nil
}

func (g *ResilientGateway) CreateSession(ctx context.Context, params SessionParams) (*Session, error) {
	return call(ctx, g, func(ctx context.Context) (*Session, error) {
		return g.next.CreateSession(ctx, params)
	})
}

func (g *ResilientGateway) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	get := func(ctx context.Context) (*Session, error) {
		return g.next.GetSession(ctx, sessionID)
	}

	s, err := call(ctx, g, get)
	if err == nil || !retryable(err) || ctx.Err() != nil {
		return s, err
	}

	select {
	case <-ctx.Done():
		return nil, err
	case <-time.After(g.retryWait):
	}
	return call(ctx, g, get)
}

func call[T any](ctx context.Context, g *ResilientGateway, fn func(context.Context) (T, error)) (T, error) {
	v, err := g.breaker.Execute(func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return fn(callCtx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func retryable(err error) bool {
	return !errors.Is(err, ErrSessionNotFound) &&
		!errors.Is(err, gobreaker.ErrOpenState) &&
		!errors.Is(err, gobreaker.ErrTooManyRequests)
}
