package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kisanmarket/kisan-golang/internal/logging"
	"github.com/kisanmarket/kisan-golang/internal/models"
	"github.com/kisanmarket/kisan-golang/internal/orders"
	"github.com/kisanmarket/kisan-golang/internal/payment"
)

// SettlementListener is told about an order exactly once, by the call that
// moved it out of pending.
type SettlementListener interface {
	OrderSettled(ctx context.Context, order *models.Order) error
}

// SessionSummary is the provider's settlement detail relayed for display.
type SessionSummary struct {
	ID            string `json:"id"`
	AmountTotal   int64  `json:"amount_total"`
	Currency      string `json:"currency"`
	CustomerEmail string `json:"customer_email"`
}

// Verification is the result of reconciling one checkout session.
type Verification struct {
	Success bool `json:"success"`

	// PaymentStatus is the provider's own status string, e.g. "unpaid".
	PaymentStatus string         `json:"paymentStatus"`
	Order         *models.Order  `json:"order"`
	Session       SessionSummary `json:"session"`

	// Conflict is set when the order was already settled the other way.
	Conflict bool `json:"reconciliationConflict,omitempty"`
}

// Reconciler applies the provider's verdict for a session to its order.
type Reconciler struct {
	repo      orders.Repository
	gateway   payment.Gateway
	listeners []SettlementListener
	recorder  Recorder

	// listenerTimeout bounds each listener call.
	listenerTimeout time.Duration
}

const defaultListenerTimeout = 3 * time.Second

func NewReconciler(repo orders.Repository, gateway payment.Gateway, recorder Recorder, listeners ...SettlementListener) *Reconciler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Reconciler{
		repo:            repo,
		gateway:         gateway,
		listeners:       listeners,
		recorder:        recorder,
		listenerTimeout: defaultListenerTimeout,
	}
}

// Confirm is safe to call any number of times for the same session.
func (r *Reconciler) Confirm(ctx context.Context, sessionID string) (*Verification, error) {
	// --- 1. Validate ---
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrMissingSession
	}

	// --- 2. Ask the provider ---
	session, err := r.gateway.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, payment.ErrSessionNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrSessionNotFound, err)
		}
		if errors.Is(err, payment.ErrMissingCredentials) {
			return nil, &ConfigError{Err: err}
		}
		return nil, &ProviderError{Op: "get_session", SessionID: sessionID, Err: err}
	}

	// --- 3. Binary outcome ---
	outcome := models.OrderStatusFailed
	if session.PaymentStatus == payment.PaymentStatusPaid {
		outcome = models.OrderStatusPaid
	}

	// --- 4. Locate the order through the session metadata ---
	orderID := session.Metadata["order_id"]
	if orderID == "" {
		return nil, &ProviderError{Op: "read_session_metadata", SessionID: sessionID, Err: ErrSessionMetadata}
	}

	v := &Verification{
		Success:       outcome == models.OrderStatusPaid,
		PaymentStatus: session.PaymentStatus,
		Session: SessionSummary{
			ID:            session.ID,
			AmountTotal:   session.AmountTotal,
			Currency:      session.Currency,
			CustomerEmail: session.CustomerEmail,
		},
	}
	fields := logging.Fields{OrderID: orderID, SessionID: sessionID}

	// --- 5. Guarded transition ---
	tr, err := r.repo.TransitionStatus(ctx, orderID, outcome)
	switch {
	case err != nil:
		// The provider verdict still stands; an operator has to repair the row.
		logging.Error("reconciliation_gap", err, fields)
		r.recorder.Reconciled("gap")
	case tr.Applied:
		fields.Status = outcome.String()
		logging.Log(withStep(fields, "order_settled"))
		r.recorder.Reconciled(outcome.String())
	case tr.Current == outcome:
		r.recorder.Reconciled("duplicate")
	default:
		v.Conflict = true
		fields.Status = tr.Current.String()
		fields.Message = "provider reports " + outcome.String()
		logging.Error("reconciliation_conflict", ErrConflictingOutcome, fields)
		r.recorder.Reconciled("conflict")
	}

	// --- 6. Order with items for the confirmation view ---
	order, ferr := r.repo.GetOrderWithItems(ctx, orderID)
	if ferr != nil {
		logging.Error("fetch_order", ferr, logging.Fields{OrderID: orderID, SessionID: sessionID})
	}
	v.Order = order

	if err == nil && tr.Applied && order != nil {
		r.notify(ctx, order)
	}
	return v, nil
}

// notify runs each listener detached from the request, under its own deadline.
// The transition is already committed, so a client hanging up must not skip it.
func (r *Reconciler) notify(ctx context.Context, order *models.Order) {
	base := context.WithoutCancel(ctx)
	for _, l := range r.listeners {
		lctx, cancel := context.WithTimeout(base, r.listenerTimeout)
		err := l.OrderSettled(lctx, order)
		cancel()
		if err != nil {
			logging.Error("settlement_listener", err, logging.Fields{OrderID: order.ID, Status: order.Status.String()})
		}
	}
}

func withStep(f logging.Fields, step string) logging.Fields {
	f.Step = step
	return f
}
