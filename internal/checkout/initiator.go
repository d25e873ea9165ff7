package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/kisanmarket/kisan-golang/internal/logging"
	"github.com/kisanmarket/kisan-golang/internal/models"
	"github.com/kisanmarket/kisan-golang/internal/orders"
	"github.com/kisanmarket/kisan-golang/internal/payment"
	"github.com/shopspring/decimal"
)

// IdentityVerifier turns a bearer token into a principal.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*models.Principal, error)
}

// Recorder receives checkout and reconciliation outcomes for metrics.
type Recorder interface {
	CheckoutCompleted()
	CheckoutFailed(kind string)
	Reconciled(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) CheckoutCompleted()    {}
func (nopRecorder) CheckoutFailed(string) {}
func (nopRecorder) Reconciled(string)     {}

// Config holds the checkout settings that come from the environment.
type Config struct {
	Currency       string
	GuestEmail     string
	FrontendOrigin string
}

// Request is one "begin checkout" call.
type Request struct {
	Items           []models.CartLineItem
	TotalPrice      decimal.Decimal
	DeliveryCost    decimal.Decimal
	FinalTotal      decimal.Decimal
	DeliveryAddress *models.Address
	AuthToken       string
	// Origin is the storefront origin used for the redirect URLs.
	Origin    string
	RequestID string
}

// Result is what the storefront needs to redirect the shopper.
type Result struct {
	URL       string `json:"url"`
	OrderID   string `json:"orderId"`
	SessionID string `json:"sessionId"`
}

// Initiator creates a pending order and a hosted payment session for it.
type Initiator struct {
	repo     orders.Repository
	gateway  payment.Gateway
	verifier IdentityVerifier
	cfg      Config
	recorder Recorder
}

// NewInitiator wires the initiator. verifier and recorder may be nil.
func NewInitiator(repo orders.Repository, gateway payment.Gateway, verifier IdentityVerifier, cfg Config, recorder Recorder) *Initiator {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Initiator{repo: repo, gateway: gateway, verifier: verifier, cfg: cfg, recorder: recorder}
}

// Initiate runs the checkout saga. Once the order row is committed any
// later failure marks it failed, so no caller ever sees a partial success.
func (in *Initiator) Initiate(ctx context.Context, req Request) (*Result, error) {
	res, err := in.initiate(ctx, req)
	if err != nil {
		in.recorder.CheckoutFailed(KindOf(err).String())
		return nil, err
	}
	in.recorder.CheckoutCompleted()
	return res, nil
}

func (in *Initiator) initiate(ctx context.Context, req Request) (*Result, error) {
	// --- 1. Validate the cart ---
	if len(req.Items) == 0 {
		return nil, ErrEmptyCart
	}
	total, err := validateRequest(req)
	if err != nil {
		return nil, err
	}

	// --- 2. Resolve identity (guest on any token problem) ---
	email := in.cfg.GuestEmail
	var userID *string
	if p := in.resolvePrincipal(ctx, req); p != nil {
		if p.Email != "" {
			email = p.Email
		}
		id := p.UserID
		userID = &id
	}
	// Provider lookups and the customer cache key on one spelling per address.
	email = strings.ToLower(strings.TrimSpace(email))

	// --- 3. Find or create the provider customer ---
	customer, err := in.gateway.FindOrCreateCustomer(ctx, email)
	if err != nil {
		if errors.Is(err, payment.ErrMissingCredentials) {
			return nil, &ConfigError{Err: err}
		}
		return nil, &ProviderError{Op: "find_or_create_customer", Err: err}
	}

	// --- 4 & 5. Pending order and its items in one transaction ---
	order := &models.Order{
		UserID:          userID,
		CustomerEmail:   email,
		TotalAmount:     total,
		Currency:        in.cfg.Currency,
		DeliveryAddress: req.DeliveryAddress,
	}
	items := make([]models.OrderLineItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, models.NewOrderLineItem(item))
	}
	if err := in.repo.CreatePendingOrder(ctx, order, items); err != nil {
		if errors.Is(err, orders.ErrInsertItems) {
			return nil, &PersistenceError{Op: "insert_order_items", Err: fmt.Errorf("%w: %w", ErrOrderItemsCreation, err)}
		}
		return nil, &PersistenceError{Op: "insert_order", Err: fmt.Errorf("%w: %w", ErrOrderCreation, err)}
	}
	logging.Log(logging.Fields{Step: "order_created", Status: "pending", OrderID: order.ID,
		RequestID: req.RequestID, Email: email})

	// --- 6. Provider line items ---
	lineItems := in.buildLineItems(req.Items, req.DeliveryCost)

	// --- 7. Hosted session ---
	origin := strings.TrimRight(req.Origin, "/")
	if origin == "" {
		origin = strings.TrimRight(in.cfg.FrontendOrigin, "/")
	}
	session, err := in.gateway.CreateSession(ctx, payment.SessionParams{
		CustomerID: customer.ID,
		LineItems:  lineItems,
		SuccessURL: origin + "/payment-success?session_id=" + payment.SessionIDPlaceholder,
		CancelURL:  origin + "/cart?cancelled=true",
		Metadata: map[string]string{
			"order_id":   order.ID,
			"user_email": email,
		},
	})
	if err != nil {
		in.compensate(ctx, order.ID, req.RequestID, err)
		return nil, &ProviderError{Op: "create_session", OrderID: order.ID, Err: err}
	}

	// --- 8. Link the session to the order ---
	if err := in.repo.LinkPaymentSession(ctx, order.ID, session.ID); err != nil {
		in.compensate(ctx, order.ID, req.RequestID, err)
		return nil, &PersistenceError{Op: "link_payment_session", OrderID: order.ID, Err: err}
	}

	// --- 9. Done ---
	logging.Log(logging.Fields{Step: "checkout_session_created", Status: "pending", OrderID: order.ID,
		SessionID: session.ID, RequestID: req.RequestID})
	return &Result{URL: session.URL, OrderID: order.ID, SessionID: session.ID}, nil
}

func (in *Initiator) resolvePrincipal(ctx context.Context, req Request) *models.Principal {
	if req.AuthToken == "" || in.verifier == nil {
		return nil
	}
	p, err := in.verifier.Verify(ctx, req.AuthToken)
	if err != nil {
		logging.Log(logging.Fields{Step: "resolve_identity", Status: "guest_fallback",
			RequestID: req.RequestID, Error: err.Error()})
		return nil
	}
	return p
}

// compensate marks an orphaned pending order failed. It runs detached from
// the request context so a cancelled request still cleans up.
func (in *Initiator) compensate(ctx context.Context, orderID, requestID string, cause error) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	tr, err := in.repo.TransitionStatus(cctx, orderID, models.OrderStatusFailed)
	if err != nil {
		logging.Error("compensate_order", err, logging.Fields{OrderID: orderID, RequestID: requestID,
			Message: "order left pending after: " + cause.Error()})
		return
	}
	logging.Log(logging.Fields{Step: "compensate_order", Status: tr.Current.String(), OrderID: orderID,
		RequestID: requestID, Error: cause.Error()})
}

func (in *Initiator) buildLineItems(items []models.CartLineItem, deliveryCost decimal.Decimal) []payment.LineItem {
	lineItems := make([]payment.LineItem, 0, len(items)+1)
	for _, item := range items {
		li := payment.LineItem{
			Name:        fmt.Sprintf("%s (%s)", item.Name, item.Farmer.Name),
			Description: fmt.Sprintf("Fresh %s from %s", item.Name, item.Farmer.Location),
			Metadata: map[string]string{
				"farmer":      item.Farmer.Name,
				"farmer_slug": slug.Make(item.Farmer.Name),
				"location":    item.Farmer.Location,
				"unit":        item.Unit,
			},
			Currency:   in.cfg.Currency,
			UnitAmount: toMinorUnits(item.Price),
			Quantity:   int64(item.Quantity),
		}
		if item.Image != "" {
			li.Images = []string{item.Image}
		}
		lineItems = append(lineItems, li)
	}

	if deliveryCost.IsPositive() {
		lineItems = append(lineItems, payment.LineItem{
			Name:        "Delivery Charges",
			Description: "Home delivery service",
			Currency:    in.cfg.Currency,
			UnitAmount:  toMinorUnits(deliveryCost),
			Quantity:    1,
		})
	}
	return lineItems
}

// toMinorUnits is round(amount * 100), half away from zero.
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// validateRequest checks every line and returns the total to persist:
// the sum of subtotals plus delivery. A zero FinalTotal means "compute it".
func validateRequest(req Request) (decimal.Decimal, error) {
	subtotal := decimal.Zero
	for i, item := range req.Items {
		switch {
		case strings.TrimSpace(item.ID) == "":
			return decimal.Zero, fmt.Errorf("%w: item %d has no product id", ErrInvalidItem, i)
		case strings.TrimSpace(item.Name) == "":
			return decimal.Zero, fmt.Errorf("%w: item %d has no name", ErrInvalidItem, i)
		case item.Quantity <= 0:
			return decimal.Zero, fmt.Errorf("%w: item %d has quantity %d", ErrInvalidItem, i, item.Quantity)
		case item.Price.IsNegative():
			return decimal.Zero, fmt.Errorf("%w: item %d has a negative price", ErrInvalidItem, i)
		case !item.Price.Equal(item.Price.Round(2)):
			// Line subtotals are stored at 2 places and must sum to the order total.
			return decimal.Zero, fmt.Errorf("%w: item %d price %s has more than 2 decimal places", ErrInvalidItem, i, item.Price)
		}
		subtotal = subtotal.Add(item.Subtotal())
	}
	if req.DeliveryCost.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: delivery cost is negative", ErrTotalMismatch)
	}
	if !req.DeliveryCost.Equal(req.DeliveryCost.Round(2)) {
		return decimal.Zero, fmt.Errorf("%w: delivery cost %s has more than 2 decimal places", ErrTotalMismatch, req.DeliveryCost)
	}
	if !req.TotalPrice.IsZero() && !req.TotalPrice.Round(2).Equal(subtotal.Round(2)) {
		return decimal.Zero, fmt.Errorf("%w: totalPrice %s, items sum to %s", ErrTotalMismatch,
			req.TotalPrice.StringFixed(2), subtotal.StringFixed(2))
	}

	total := subtotal.Add(req.DeliveryCost).Round(2)
	if !req.FinalTotal.IsZero() && !req.FinalTotal.Round(2).Equal(total) {
		return decimal.Zero, fmt.Errorf("%w: finalTotal %s, expected %s", ErrTotalMismatch,
			req.FinalTotal.StringFixed(2), total.StringFixed(2))
	}
	return total, nil
}
