package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kisanmarket/kisan-golang/internal/cart"
	"github.com/kisanmarket/kisan-golang/internal/checkout"
	"github.com/kisanmarket/kisan-golang/internal/logging"
	"github.com/kisanmarket/kisan-golang/internal/middleware"
	"github.com/kisanmarket/kisan-golang/internal/orders"
)

// Handlers struct holds all dependencies for our handlers.
type Handlers struct {
	Initiator  *checkout.Initiator
	Reconciler *checkout.Reconciler
	Orders     orders.Repository
	Carts      cart.Store
}

// statusFor maps an error kind to the HTTP status the storefront expects.
func statusFor(kind checkout.Kind) int {
	switch kind {
	case checkout.KindValidation:
		return http.StatusBadRequest
	case checkout.KindNotFound:
		return http.StatusNotFound
	case checkout.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

const flatErrorsKey = "flatErrors"

// FlatErrors makes every failure on the route answer 500, which is what
// the storefront's hosted-function client was written against.
func FlatErrors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(flatErrorsKey, true)
		c.Next()
	}
}

// failureStatus returns status, or 500 on routes using FlatErrors.
func failureStatus(c *gin.Context, status int) int {
	if c.GetBool(flatErrorsKey) {
		return http.StatusInternalServerError
	}
	return status
}

// respondError logs the full error and answers with the public message only.
func respondError(c *gin.Context, step string, err error, fields logging.Fields) {
	kind := checkout.KindOf(err)
	fields.RequestID = middleware.RequestIDFrom(c)
	fields.Message = kind.String()
	logging.Error(step, err, fields)

	c.JSON(failureStatus(c, statusFor(kind)), gin.H{"error": checkout.PublicMessage(err)})
}
