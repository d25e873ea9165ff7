package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kisanmarket/kisan-golang/internal/logging"
	"github.com/kisanmarket/kisan-golang/internal/middleware"
	"github.com/kisanmarket/kisan-golang/internal/orders"
)

//
// --- Order Handlers ---
//

// GetOrderDetails is the handler for GET /v1/orders/:id
// It backs the confirmation page, which only knows the order id.
func (h *Handlers) GetOrderDetails(c *gin.Context) {
	orderID := c.Param("id")

	order, err := h.Orders.GetOrderWithItems(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		logging.Error("get_order", err, logging.Fields{OrderID: orderID, RequestID: middleware.RequestIDFrom(c)})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve order"})
		return
	}

	c.JSON(http.StatusOK, order)
}

// GetMyOrders is the handler for GET /v1/orders/me
func (h *Handlers) GetMyOrders(c *gin.Context) {
	// 1. --- Get the signed-in shopper ---
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
		return
	}

	// 2. --- Fetch ---
	list, err := h.Orders.ListOrdersByUser(c.Request.Context(), principal.UserID)
	if err != nil {
		logging.Error("list_orders", err, logging.Fields{RequestID: middleware.RequestIDFrom(c)})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve orders"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": list})
}
