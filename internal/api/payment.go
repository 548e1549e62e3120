package api

import (
	"io"       // Reading the raw callback body
	"net/http" // HTTP status codes

	"elimu_payments/internal/middleware" // Request logger
	"elimu_payments/internal/payment"    // Payment orchestration
	"elimu_payments/internal/store"      // Entitlement listing
	"elimu_payments/internal/utils"      // Cache helpers

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
)

// maxCallbackBytes bounds the webhook body; real callbacks are well under 4KB
const maxCallbackBytes = 64 << 10

// InitiatePaymentRequest starts an M-Pesa purchase
type InitiatePaymentRequest struct {
	ResourceID uint   `json:"resource_id" binding:"required"` // Resource to unlock
	Phone      string `json:"phone" binding:"required"`       // Phone to prompt
}

// InitiatePaymentHandler sends an STK push for the requested resource
func InitiatePaymentHandler(svc *payment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		var req InitiatePaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "resource_id and phone are required")
			return
		}
		res, err := svc.Initiate(c.Request.Context(), userID, req.ResourceID, req.Phone)
		if err != nil {
			writeError(c, err)
			return
		}
		if res.Status == payment.StatusUnlocked {
			c.JSON(http.StatusOK, gin.H{"message": "Resource already unlocked", "status": res.Status})
			return
		}
		middleware.Log(c).WithFields(logrus.Fields{
			"resource_id": req.ResourceID,
			"attempt_id":  res.AttemptID,
		}).Info("STK push initiated")
		c.JSON(http.StatusOK, gin.H{"message": "STK Push initiated", "status": res.Status, "result": res})
	}
}

// PaymentConfirmationHandler receives the provider's STK callback. It is not
// authenticated; the provider cannot sign requests.
func PaymentConfirmationHandler(svc *payment.Service, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := middleware.Log(c)
		raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxCallbackBytes))
		if err != nil {
			log.WithError(err).Warn("Failed to read callback body")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Callback error", "details": err.Error()})
			return
		}
		log.WithField("bytes", len(raw)).Info("Payment callback received")

		res, err := svc.Confirm(c.Request.Context(), raw)
		if err != nil {
			if payment.IsCallbackError(err) {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Callback error", "details": err.Error()})
				return
			}
			log.WithError(err).Error("Failed to apply callback")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Callback error", "details": "internal error"})
			return
		}
		if res.UserID != 0 {
			invalidateUser(c.Request.Context(), rdb, res.UserID)
		}
		c.JSON(http.StatusOK, gin.H{"message": "Callback received"})
	}
}

// IsPaidForHandler reports whether the caller has unlocked a resource
func IsPaidForHandler(svc *payment.Service, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		resourceID, ok := idParam(c, "resource_id")
		if !ok {
			badRequest(c, "Invalid resource id")
			return
		}
		ctx := c.Request.Context()
		key := paidKey(userID, resourceID)
		var paid bool
		if found, err := utils.GetCache(ctx, rdb, key, &paid); err == nil && found && paid {
			c.JSON(http.StatusOK, gin.H{"paid": true, "cached": true})
			return
		}
		paid, err := svc.IsPaidFor(ctx, userID, resourceID)
		if err != nil {
			writeError(c, err)
			return
		}
		// Only positive answers are cached; a pending payment may flip false to true at any time
		if paid {
			_ = utils.SetCache(ctx, rdb, key, true, paidCacheTTL)
		}
		middleware.Log(c).WithFields(logrus.Fields{"resource_id": resourceID, "paid": paid}).Debug("Payment check")
		c.JSON(http.StatusOK, gin.H{"paid": paid, "cached": false})
	}
}

// UnlockedResourcesHandler lists the caller's entitlements
func UnlockedResourcesHandler(entitlements *store.EntitlementStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		list, err := entitlements.ListForUser(c.Request.Context(), userID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"unlocked": list, "total": len(list)})
	}
}
