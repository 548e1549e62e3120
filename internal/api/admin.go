package api

import (
	"net/http" // HTTP status codes
	"strconv"  // String conversion
	"strings"  // String manipulation

	"elimu_payments/internal/domain"     // Importing domain models
	"elimu_payments/internal/middleware" // Request logger
	"elimu_payments/internal/payment"    // Reconciliation
	"elimu_payments/internal/store"      // Transaction log and callbacks
	"elimu_payments/internal/utils"      // Utility functions

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
)

// ListTransactionsHandler returns all transactions, with optional filtering by user, status, method or date
func ListTransactionsHandler(transactions *store.TransactionStore, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		// Build cache key from all query params
		var keyParts []string
		for _, k := range []string{"user_id", "status", "method", "from", "to", "page", "page_size"} {
			keyParts = append(keyParts, k+"="+c.DefaultQuery(k, ""))
		}
		cacheKey := "admin:txs:" + strings.Join(keyParts, ":")

		var cached transactionPage
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			cached.Cached = true
			c.JSON(http.StatusOK, cached)
			return
		}

		page, pageSize := pagination(c)
		filter := store.TransactionFilter{
			Status:   domain.TransactionStatus(strings.ToUpper(c.Query("status"))),
			Method:   domain.PaymentMethod(strings.ToUpper(c.Query("method"))),
			Page:     page,
			PageSize: pageSize,
		}
		if filter.Status != "" && !filter.Status.Valid() {
			badRequest(c, "status must be PENDING, SUCCESS or FAILED")
			return
		}
		if filter.Method != "" && !filter.Method.Valid() {
			badRequest(c, "method must be MPESA, WALLET, CARD or BANK")
			return
		}
		if s := c.Query("user_id"); s != "" {
			v, err := strconv.ParseUint(s, 10, strconv.IntSize)
			if err != nil || v == 0 {
				badRequest(c, "Invalid user_id")
				return
			}
			uid := uint(v)
			filter.UserID = &uid
		}
		var err error
		if filter.From, err = parseTimeParam(c.Query("from"), false); err != nil {
			badRequest(c, "from must be a date (2006-01-02) or RFC 3339 time")
			return
		}
		if filter.To, err = parseTimeParam(c.Query("to"), true); err != nil {
			badRequest(c, "to must be a date (2006-01-02) or RFC 3339 time")
			return
		}

		txs, total, err := transactions.List(ctx, filter)
		if err != nil {
			writeError(c, err)
			return
		}
		resp := transactionPage{
			Transactions: txs,
			Page:         page,
			PageSize:     pageSize,
			Total:        total,
			TotalPages:   totalPages(total, pageSize),
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, cacheTTL)
		c.JSON(http.StatusOK, resp)
	}
}

// ListCallbacksHandler lists persisted provider callbacks for reconciliation.
// outcome filters by CONFIRMED, DECLINED, UNRESOLVED or MALFORMED; pending=true
// hides unresolved callbacks an operator has already handled.
func ListCallbacksHandler(callbacks *store.CallbackStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		outcome := domain.CallbackOutcome(strings.ToUpper(c.Query("outcome")))
		switch outcome {
		case "", domain.OutcomeConfirmed, domain.OutcomeDeclined, domain.OutcomeUnresolved, domain.OutcomeMalformed:
		default:
			badRequest(c, "outcome must be CONFIRMED, DECLINED, UNRESOLVED or MALFORMED")
			return
		}
		pending, ok := parseBool(c.Query("pending"))
		if !ok {
			badRequest(c, "pending must be true or false")
			return
		}
		page, pageSize := pagination(c)
		list, total, err := callbacks.List(c.Request.Context(), outcome, pending != nil && *pending, page, pageSize)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"callbacks":   list,
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": totalPages(total, pageSize),
		})
	}
}

// ResolveCallbackRequest attributes an unresolved payment
type ResolveCallbackRequest struct {
	UserID     uint `json:"user_id" binding:"required"`     // Payer
	ResourceID uint `json:"resource_id" binding:"required"` // Resource paid for
}

// ResolveCallbackHandler unlocks a resource for an UNRESOLVED callback
func ResolveCallbackHandler(svc *payment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		callbackID, ok := idParam(c, "id")
		if !ok {
			badRequest(c, "Invalid callback id")
			return
		}
		var req ResolveCallbackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "user_id and resource_id are required")
			return
		}
		res, err := svc.Resolve(c.Request.Context(), callbackID, req.UserID, req.ResourceID)
		if err != nil {
			writeError(c, err)
			return
		}
		adminID, _ := middleware.UserID(c)
		middleware.Log(c).WithFields(logrus.Fields{
			"admin_id":    adminID,
			"callback_id": callbackID,
			"user_id":     req.UserID,
			"resource_id": req.ResourceID,
			"new":         res.Unlocked,
		}).Info("Callback resolved")
		c.JSON(http.StatusOK, gin.H{"message": "Callback resolved", "result": res})
	}
}
