package checkout

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kisanmarket/kisan-golang/internal/models"
	"github.com/kisanmarket/kisan-golang/internal/orders"
	"github.com/kisanmarket/kisan-golang/internal/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const guestEmail = "guest@kisanmarketplace.in"

var testConfig = Config{Currency: "inr", GuestEmail: guestEmail, FrontendOrigin: "http://localhost:5173"}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleItems() []models.CartLineItem {
	return []models.CartLineItem{
		{ID: "p-tomato", Name: "Tomatoes", Price: dec("45"), Unit: "kg", Image: "https://img.test/tomato.jpg",
			Farmer: models.Farmer{Name: "Ramesh Patil", Location: "Nashik"}, Quantity: 2},
		{ID: "p-eggs", Name: "Eggs", Price: dec("180"), Unit: "dozen",
			Farmer: models.Farmer{Name: "Sita Devi", Location: "Pune"}, Quantity: 1},
	}
}

func sampleRequest() Request {
	return Request{
		Items:        sampleItems(),
		TotalPrice:   dec("270"),
		DeliveryCost: decimal.Zero,
		FinalTotal:   dec("270"),
		Origin:       "https://shop.test",
	}
}

func newTestInitiator(repo orders.Repository, gw payment.Gateway, rec Recorder) *Initiator {
	verifier := stubVerifier{"good-token": {UserID: "user-7", Email: "asha@example.com"}}
	return NewInitiator(repo, gw, verifier, testConfig, rec)
}

func TestInitiate_PersistsOrderAndItems(t *testing.T) {
	repo := newFaultyRepo()
	gw := newSpyGateway()
	in := newTestInitiator(repo, gw, nil)

	res, err := in.Initiate(context.Background(), sampleRequest())
	require.NoError(t, err)

	order, err := repo.GetOrderWithItems(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.Count())
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, "270.00", order.TotalAmount.StringFixed(2))
	assert.Equal(t, "inr", order.Currency)
	assert.Equal(t, guestEmail, order.CustomerEmail)
	assert.Nil(t, order.UserID)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "90.00", order.Items[0].Subtotal.StringFixed(2))
	assert.Equal(t, "180.00", order.Items[1].Subtotal.StringFixed(2))

	sum := decimal.Zero
	for _, item := range order.Items {
		sum = sum.Add(item.Subtotal)
	}
	assert.True(t, sum.Equal(order.TotalAmount))

	require.NotNil(t, order.PaymentSessionID)
	assert.Equal(t, res.SessionID, *order.PaymentSessionID)
	assert.Equal(t, "https://pay.test/pay/"+res.SessionID, res.URL)
}

func TestInitiate_BuildsProviderSession(t *testing.T) {
	gw := newSpyGateway()
	in := newTestInitiator(newFaultyRepo(), gw, nil)

	req := sampleRequest()
	req.DeliveryCost = dec("40")
	req.FinalTotal = dec("310")
	res, err := in.Initiate(context.Background(), req)
	require.NoError(t, err)

	p := gw.lastParams
	assert.Equal(t, "https://shop.test/payment-success?session_id={CHECKOUT_SESSION_ID}", p.SuccessURL)
	assert.Equal(t, "https://shop.test/cart?cancelled=true", p.CancelURL)
	assert.Equal(t, map[string]string{"order_id": res.OrderID, "user_email": guestEmail}, p.Metadata)

	require.Len(t, p.LineItems, 3)
	tomato := p.LineItems[0]
	assert.Equal(t, "Tomatoes (Ramesh Patil)", tomato.Name)
	assert.Equal(t, "Fresh Tomatoes from Nashik", tomato.Description)
	assert.Equal(t, int64(4500), tomato.UnitAmount)
	assert.Equal(t, int64(2), tomato.Quantity)
	assert.Equal(t, []string{"https://img.test/tomato.jpg"}, tomato.Images)
	assert.Equal(t, "ramesh-patil", tomato.Metadata["farmer_slug"])
	assert.Equal(t, "kg", tomato.Metadata["unit"])
	assert.Empty(t, p.LineItems[1].Images)

	delivery := p.LineItems[2]
	assert.Equal(t, "Delivery Charges", delivery.Name)
	assert.Equal(t, int64(4000), delivery.UnitAmount)
	assert.Equal(t, int64(1), delivery.Quantity)

	session, err := gw.GetSession(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(31000), session.AmountTotal)
}

func TestInitiate_UsesFrontendOriginWhenRequestHasNone(t *testing.T) {
	gw := newSpyGateway()
	in := newTestInitiator(newFaultyRepo(), gw, nil)

	req := sampleRequest()
	req.Origin = ""
	_, err := in.Initiate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5173/cart?cancelled=true", gw.lastParams.CancelURL)
}

func TestInitiate_EmptyCart(t *testing.T) {
	repo := newFaultyRepo()
	gw := newSpyGateway()
	rec := newCountingRecorder()
	in := newTestInitiator(repo, gw, rec)

	_, err := in.Initiate(context.Background(), Request{Origin: "https://shop.test"})

	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, 0, repo.Count())
	assert.Equal(t, 0, gw.CustomersCreated())
	assert.Equal(t, 1, rec.failed["validation"])
}

func TestInitiate_RejectsBadRequests(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Request)
		want   error
	}{
		{"final total disagrees", func(r *Request) { r.FinalTotal = dec("260") }, ErrTotalMismatch},
		{"subtotal disagrees", func(r *Request) { r.TotalPrice = dec("200") }, ErrTotalMismatch},
		{"negative delivery", func(r *Request) { r.DeliveryCost = dec("-5"); r.FinalTotal = dec("265") }, ErrTotalMismatch},
		{"zero quantity", func(r *Request) { r.Items[0].Quantity = 0 }, ErrInvalidItem},
		{"missing product id", func(r *Request) { r.Items[1].ID = "" }, ErrInvalidItem},
		{"negative price", func(r *Request) { r.Items[1].Price = dec("-1") }, ErrInvalidItem},
		{"sub-paisa price", func(r *Request) { r.Items[1].Price = dec("180.005"); r.TotalPrice = dec("0"); r.FinalTotal = dec("0") }, ErrInvalidItem},
		{"sub-paisa delivery", func(r *Request) { r.DeliveryCost = dec("0.005"); r.FinalTotal = dec("0") }, ErrTotalMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFaultyRepo()
			in := newTestInitiator(repo, newSpyGateway(), nil)
			req := sampleRequest()
			tt.mutate(&req)

			_, err := in.Initiate(context.Background(), req)

			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, KindValidation, KindOf(err))
			assert.Equal(t, 0, repo.Count())
		})
	}
}

func TestInitiate_ComputesFinalTotalWhenOmitted(t *testing.T) {
	repo := newFaultyRepo()
	in := newTestInitiator(repo, newSpyGateway(), nil)

	req := sampleRequest()
	req.TotalPrice = decimal.Zero
	req.FinalTotal = decimal.Zero
	req.DeliveryCost = dec("25.5")
	res, err := in.Initiate(context.Background(), req)
	require.NoError(t, err)

	order, err := repo.GetOrderWithItems(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "295.50", order.TotalAmount.StringFixed(2))
}

func TestInitiate_SameEmailReusesCustomer(t *testing.T) {
	gw := newSpyGateway()
	in := newTestInitiator(newFaultyRepo(), gw, nil)

	for i := 0; i < 2; i++ {
		_, err := in.Initiate(context.Background(), sampleRequest())
		require.NoError(t, err)
	}

	assert.Equal(t, 1, gw.CustomersCreated())
}

func TestInitiate_EmailCaseDoesNotSplitCustomers(t *testing.T) {
	repo := newFaultyRepo()
	gw := newSpyGateway()
	verifier := stubVerifier{
		"mixed": {UserID: "user-7", Email: " Asha@Example.com"},
		"lower": {UserID: "user-7", Email: "asha@example.com"},
	}
	in := NewInitiator(repo, gw, verifier, testConfig, nil)

	for _, token := range []string{"mixed", "lower"} {
		req := sampleRequest()
		req.AuthToken = token
		res, err := in.Initiate(context.Background(), req)
		require.NoError(t, err)

		order, err := repo.GetOrderWithItems(context.Background(), res.OrderID)
		require.NoError(t, err)
		assert.Equal(t, "asha@example.com", order.CustomerEmail)
	}
	assert.Equal(t, 1, gw.CustomersCreated())
}

func TestInitiate_AuthenticatedShopper(t *testing.T) {
	repo := newFaultyRepo()
	gw := newSpyGateway()
	in := newTestInitiator(repo, gw, nil)

	req := sampleRequest()
	req.AuthToken = "good-token"
	res, err := in.Initiate(context.Background(), req)
	require.NoError(t, err)

	order, err := repo.GetOrderWithItems(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", order.CustomerEmail)
	require.NotNil(t, order.UserID)
	assert.Equal(t, "user-7", *order.UserID)
	assert.Equal(t, "asha@example.com", gw.lastParams.Metadata["user_email"])
}

func TestInitiate_BadTokenFallsBackToGuest(t *testing.T) {
	repo := newFaultyRepo()
	in := newTestInitiator(repo, newSpyGateway(), nil)

	req := sampleRequest()
	req.AuthToken = "expired-token"
	res, err := in.Initiate(context.Background(), req)
	require.NoError(t, err)

	order, err := repo.GetOrderWithItems(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, guestEmail, order.CustomerEmail)
	assert.Nil(t, order.UserID)
}

func TestInitiate_OrderInsertFails(t *testing.T) {
	repo := newFaultyRepo()
	repo.createErr = fmt.Errorf("%w: %w", orders.ErrInsertOrder, errors.New("connection refused"))
	gw := newSpyGateway()
	in := newTestInitiator(repo, gw, nil)

	_, err := in.Initiate(context.Background(), sampleRequest())

	assert.ErrorIs(t, err, ErrOrderCreation)
	assert.Equal(t, KindPersistence, KindOf(err))
	assert.Equal(t, "Failed to create order", PublicMessage(err))
	assert.NotContains(t, PublicMessage(err), "connection refused")
	assert.Equal(t, 0, repo.Count())
	assert.Empty(t, gw.lastParams.LineItems, "no session may be created")
}

func TestInitiate_ItemInsertFails(t *testing.T) {
	repo := newFaultyRepo()
	repo.createErr = fmt.Errorf("%w: %w", orders.ErrInsertItems, errors.New("data too long"))
	in := newTestInitiator(repo, newSpyGateway(), nil)

	_, err := in.Initiate(context.Background(), sampleRequest())

	assert.ErrorIs(t, err, ErrOrderItemsCreation)
	assert.NotErrorIs(t, err, ErrOrderCreation)
	assert.Equal(t, KindPersistence, KindOf(err))
}

func TestInitiate_SessionFailureMarksOrderFailed(t *testing.T) {
	repo := newFaultyRepo()
	gw := newSpyGateway()
	gw.createErr = errors.New("provider timeout")
	rec := newCountingRecorder()
	in := newTestInitiator(repo, gw, rec)

	res, err := in.Initiate(context.Background(), sampleRequest())

	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, KindProvider, KindOf(err))
	assert.Equal(t, 1, rec.failed["provider"])

	orderID := gw.lastParams.Metadata["order_id"]
	order, err := repo.GetOrderWithItems(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusFailed, order.Status)
	assert.Nil(t, order.PaymentSessionID)
	assert.Len(t, order.Items, 2)
}

func TestInitiate_LinkFailureMarksOrderFailed(t *testing.T) {
	repo := newFaultyRepo()
	repo.linkErr = errors.New("deadlock")
	gw := newSpyGateway()
	in := newTestInitiator(repo, gw, nil)

	_, err := in.Initiate(context.Background(), sampleRequest())

	assert.Equal(t, KindPersistence, KindOf(err))
	order, gerr := repo.GetOrderWithItems(context.Background(), gw.lastParams.Metadata["order_id"])
	require.NoError(t, gerr)
	assert.Equal(t, models.OrderStatusFailed, order.Status)
}

func TestInitiate_MissingCredentialsIsConfiguration(t *testing.T) {
	repo := newFaultyRepo()
	gw := newSpyGateway()
	gw.customerErr = payment.ErrMissingCredentials
	in := newTestInitiator(repo, gw, nil)

	_, err := in.Initiate(context.Background(), sampleRequest())

	assert.Equal(t, KindConfiguration, KindOf(err))
	assert.Equal(t, 0, repo.Count())
}

func TestInitiate_RecordsSuccess(t *testing.T) {
	rec := newCountingRecorder()
	in := newTestInitiator(newFaultyRepo(), newSpyGateway(), rec)

	_, err := in.Initiate(context.Background(), sampleRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, rec.completed)
}

func TestToMinorUnits(t *testing.T) {
	tests := map[string]int64{
		"45":     4500,
		"12.345": 1235,
		"0.125":  13,
		"99.99":  9999,
		"0":      0,
	}
	for in, want := range tests {
		assert.Equal(t, want, toMinorUnits(dec(in)), in)
	}
}
