package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kisanmarket/kisan-golang/internal/checkout"
	"github.com/kisanmarket/kisan-golang/internal/logging"
	"github.com/kisanmarket/kisan-golang/internal/middleware"
	"github.com/kisanmarket/kisan-golang/internal/models"
	"github.com/shopspring/decimal"
)

//
// --- Checkout Handlers (Public, guest or signed-in) ---
//

// CheckoutInput is the JSON the storefront posts to begin checkout.
// Either Items or CartID must be set.
type CheckoutInput struct {
	Items           []models.CartLineItem `json:"items"`
	CartID          string                `json:"cartId"`
	TotalPrice      decimal.Decimal       `json:"totalPrice"`
	DeliveryCost    decimal.Decimal       `json:"deliveryCost"`
	FinalTotal      decimal.Decimal       `json:"finalTotal"`
	DeliveryAddress *models.Address       `json:"deliveryAddress"`
	AuthToken       string                `json:"authToken"`
}

// VerifyInput is the JSON posted after the redirect back from the payment page.
type VerifyInput struct {
	SessionID string `json:"sessionId"`
}

// CreateCheckout is the handler for POST /functions/v1/create-checkout
func (h *Handlers) CreateCheckout(c *gin.Context) {
	// 1. --- Parse input ---
	var input CheckoutInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(failureStatus(c, http.StatusBadRequest), gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	// 2. --- Items from a stored cart when none were sent ---
	if len(input.Items) == 0 && input.CartID != "" && h.Carts != nil {
		stored, err := h.Carts.Get(c.Request.Context(), input.CartID)
		if err != nil {
			logging.Error("load_cart", err, logging.Fields{RequestID: middleware.RequestIDFrom(c)})
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load cart"})
			return
		}
		input.Items = stored.Items
	}

	// 3. --- Bearer header wins over the body token ---
	token := input.AuthToken
	if bearer := bearerToken(c.GetHeader("Authorization")); bearer != "" {
		token = bearer
	}

	// 4. --- Run the checkout ---
	res, err := h.Initiator.Initiate(c.Request.Context(), checkout.Request{
		Items:           input.Items,
		TotalPrice:      input.TotalPrice,
		DeliveryCost:    input.DeliveryCost,
		FinalTotal:      input.FinalTotal,
		DeliveryAddress: input.DeliveryAddress,
		AuthToken:       token,
		Origin:          c.GetHeader("Origin"),
		RequestID:       middleware.RequestIDFrom(c),
	})
	if err != nil {
		respondError(c, "create_checkout", err, logging.Fields{})
		return
	}

	// 5. --- The cart has become an order ---
	if input.CartID != "" && h.Carts != nil {
		if err := h.Carts.Delete(c.Request.Context(), input.CartID); err != nil {
			logging.Error("clear_cart", err, logging.Fields{OrderID: res.OrderID, RequestID: middleware.RequestIDFrom(c)})
		}
	}

	c.JSON(http.StatusOK, res)
}

// VerifyPayment is the handler for POST /functions/v1/verify-payment
func (h *Handlers) VerifyPayment(c *gin.Context) {
	// 1. --- Parse input (an empty body is allowed, see below) ---
	var input VerifyInput
	if err := c.ShouldBindJSON(&input); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(failureStatus(c, http.StatusBadRequest), gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	// The success page can also pass the id straight through from its URL.
	if input.SessionID == "" {
		input.SessionID = c.Query("session_id")
	}

	// 2. --- Reconcile ---
	v, err := h.Reconciler.Confirm(c.Request.Context(), input.SessionID)
	if err != nil {
		respondError(c, "verify_payment", err, logging.Fields{SessionID: input.SessionID})
		return
	}

	c.JSON(http.StatusOK, v)
}

func bearerToken(header string) string {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
