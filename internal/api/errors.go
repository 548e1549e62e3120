package api

import (
	"errors"   // Error inspection
	"net/http" // HTTP status codes

	"elimu_payments/internal/middleware" // Request logger
	"elimu_payments/internal/payment"    // Payment errors
	"elimu_payments/internal/store"      // Store errors

	"github.com/gin-gonic/gin" // Gin web framework
)

// writeError maps a service or store error to its HTTP response
func writeError(c *gin.Context, err error) {
	log := middleware.Log(c).WithError(err)

	var reqErr *payment.RequestError
	var initErr *payment.InitiationError
	switch {
	case errors.As(err, &reqErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": reqErr.Msg})
	case errors.Is(err, payment.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
	case errors.Is(err, store.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Amount must be positive with at most two decimal places"})
	case errors.Is(err, payment.ErrNotFound), errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundMessage(c)})
	case errors.Is(err, payment.ErrUpstreamAuth):
		log.Error("Payment provider authentication failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate M-Pesa token"})
	case errors.As(err, &initErr):
		log.Error("Payment initiation failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment initiation failed", "details": initErr.Detail})
	default:
		log.Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

// notFoundMessage names the missing thing from the route
func notFoundMessage(c *gin.Context) string {
	switch c.FullPath() {
	case "/admin/callbacks/:id/resolve":
		return "Callback, user or resource not found"
	case "/payment/wallet", "/payment/wallet/top-up":
		return "Wallet not found"
	default:
		return "Resource not found"
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// currentUser returns the authenticated user, writing 401 when there is none
func currentUser(c *gin.Context) (uint, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	}
	return userID, ok
}
