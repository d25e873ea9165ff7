package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kisanmarket/kisan-golang/internal/cart"
	"github.com/kisanmarket/kisan-golang/internal/logging"
	"github.com/kisanmarket/kisan-golang/internal/middleware"
	"github.com/kisanmarket/kisan-golang/internal/models"
	"github.com/shopspring/decimal"
)

//
// --- Cart Handlers (Public, keyed by the storefront's cart id) ---
//

// AddToCartInput defines the JSON for adding an item to the cart.
type AddToCartInput struct {
	ID       string          `json:"id" binding:"required"`
	Name     string          `json:"name" binding:"required"`
	Price    decimal.Decimal `json:"price"`
	Unit     string          `json:"unit"`
	Image    string          `json:"image"`
	Farmer   models.Farmer   `json:"farmer"`
	Quantity int             `json:"quantity" binding:"gte=0"`
}

// UpdateCartItemInput defines the JSON for changing a quantity.
// A quantity of zero removes the line.
type UpdateCartItemInput struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func cartResponse(c cart.Cart) gin.H {
	return gin.H{
		"id":         c.ID,
		"items":      c.Items,
		"totalItems": c.TotalItems(),
		"totalPrice": c.TotalPrice(),
	}
}

// GetCart is the handler for GET /v1/cart/:cartId
func (h *Handlers) GetCart(c *gin.Context) {
	current, err := h.Carts.Get(c.Request.Context(), c.Param("cartId"))
	if err != nil {
		h.cartFailure(c, "get_cart", err)
		return
	}
	c.JSON(http.StatusOK, cartResponse(current))
}

// AddToCart is the handler for POST /v1/cart/:cartId/items
func (h *Handlers) AddToCart(c *gin.Context) {
	var input AddToCartInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	if input.Price.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Price cannot be negative"})
		return
	}

	item := models.CartLineItem{
		ID:       strings.TrimSpace(input.ID),
		Name:     input.Name,
		Price:    input.Price,
		Unit:     input.Unit,
		Image:    input.Image,
		Farmer:   input.Farmer,
		Quantity: input.Quantity,
	}
	updated, err := h.Carts.Update(c.Request.Context(), c.Param("cartId"), cart.Add(item))
	if err != nil {
		h.cartFailure(c, "add_to_cart", err)
		return
	}
	c.JSON(http.StatusOK, cartResponse(updated))
}

// UpdateCartItem is the handler for PUT /v1/cart/:cartId/items/:productId
func (h *Handlers) UpdateCartItem(c *gin.Context) {
	var input UpdateCartItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	action := cart.UpdateQuantity(c.Param("productId"), *input.Quantity)
	updated, err := h.Carts.Update(c.Request.Context(), c.Param("cartId"), action)
	if err != nil {
		h.cartFailure(c, "update_cart_item", err)
		return
	}
	c.JSON(http.StatusOK, cartResponse(updated))
}

// DeleteCartItem is the handler for DELETE /v1/cart/:cartId/items/:productId
func (h *Handlers) DeleteCartItem(c *gin.Context) {
	updated, err := h.Carts.Update(c.Request.Context(), c.Param("cartId"), cart.Remove(c.Param("productId")))
	if err != nil {
		h.cartFailure(c, "delete_cart_item", err)
		return
	}
	c.JSON(http.StatusOK, cartResponse(updated))
}

// ClearCart is the handler for DELETE /v1/cart/:cartId
func (h *Handlers) ClearCart(c *gin.Context) {
	if err := h.Carts.Delete(c.Request.Context(), c.Param("cartId")); err != nil {
		h.cartFailure(c, "clear_cart", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) cartFailure(c *gin.Context, step string, err error) {
	logging.Error(step, err, logging.Fields{RequestID: middleware.RequestIDFrom(c)})
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Cart is temporarily unavailable"})
}
