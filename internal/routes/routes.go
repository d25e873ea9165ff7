package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kisanmarket/kisan-golang/internal/handlers"
	"github.com/kisanmarket/kisan-golang/internal/metrics"
	"github.com/kisanmarket/kisan-golang/internal/middleware"
)

// Options carries what the router needs besides the handlers.
type Options struct {
	Verifier        middleware.TokenVerifier
	Metrics         *metrics.Metrics // optional
	CORSAllowOrigin string
}

// CORSMiddleware lets the separately hosted storefront call the API.
// The storefront sends the same headers it used for the hosted functions.
func CORSMiddleware(allowOrigin string) gin.HandlerFunc {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return func(c *gin.Context) {
		// 1. Origin
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowOrigin)

		// 2. Headers the storefront sends (Authorization for JWT tokens)
		c.Writer.Header().Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type, x-request-id")

		// 3. Methods we use in our API
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		// 4. Preflight gets "204 No Content"
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func SetupRouter(h *handlers.Handlers, opts Options) *gin.Engine {
	router := gin.Default()

	// --- APPLY THE CORS GUARD ---
	// This must be the very first thing the router uses
	router.Use(CORSMiddleware(opts.CORSAllowOrigin))
	router.Use(middleware.RequestID())
	if opts.Metrics != nil {
		router.Use(opts.Metrics.Middleware())
		router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	// --- Function-style paths the storefront already calls ---
	functions := router.Group("/functions/v1")
	functions.Use(handlers.FlatErrors())
	{
		functions.POST("/create-checkout", h.CreateCheckout)
		functions.POST("/verify-payment", h.VerifyPayment)
	}

	v1 := router.Group("/v1")
	{
		// --- Ping Route (Public) ---
		v1.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "pong!"})
		})

		// --- Checkout Routes (Public) ---
		v1.POST("/checkout", h.CreateCheckout)
		v1.POST("/checkout/verify", h.VerifyPayment)

		// --- Cart Routes (Public) ---
		carts := v1.Group("/cart/:cartId")
		{
			carts.GET("", h.GetCart)
			carts.DELETE("", h.ClearCart)
			carts.POST("/items", h.AddToCart)
			carts.PUT("/items/:productId", h.UpdateCartItem)
			carts.DELETE("/items/:productId", h.DeleteCartItem)
		}

		// --- Order Routes ---
		v1.GET("/orders/:id", h.GetOrderDetails)

		auth := v1.Group("/")
		auth.Use(middleware.AuthMiddleware(opts.Verifier))
		{
			auth.GET("/orders/me", h.GetMyOrders)
		}
	}

	return router
}
