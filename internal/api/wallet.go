package api

import (
	"net/http" // HTTP status codes

	"elimu_payments/internal/domain"     // Importing domain models
	"elimu_payments/internal/middleware" // Request logger
	"elimu_payments/internal/store"      // Wallet ledger and transaction log
	"elimu_payments/internal/utils"      // Utility functions

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Precise monetary values
	"github.com/sirupsen/logrus"    // Logging library
)

// TopUpRequest credits the caller's wallet
type TopUpRequest struct {
	Amount *decimal.Decimal `json:"amount"` // Amount in KES, number or string
}

// GetWalletHandler returns the caller's wallet, creating it on first access
func GetWalletHandler(wallets *store.WalletStore, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		cacheKey := walletKey(userID)
		var wallet domain.Wallet
		// Serve from cache when possible
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &wallet); err == nil && found {
			c.JSON(http.StatusOK, gin.H{"balance": wallet.Balance, "wallet": wallet, "cached": true})
			return
		}
		w, err := wallets.GetOrCreate(ctx, userID)
		if err != nil {
			writeError(c, err)
			return
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, w, cacheTTL) // Cache the wallet for 60 seconds
		middleware.Log(c).Debug("Wallet fetched")
		c.JSON(http.StatusOK, gin.H{"balance": w.Balance, "wallet": w, "cached": false})
	}
}

// TopUpHandler credits the caller's wallet and records a WALLET transaction
func TopUpHandler(wallets *store.WalletStore, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		var req TopUpRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Amount == nil {
			badRequest(c, "Invalid amount")
			return
		}
		balance, err := wallets.TopUp(c.Request.Context(), userID, *req.Amount)
		if err != nil {
			writeError(c, err)
			return
		}
		middleware.Log(c).WithFields(logrus.Fields{
			"amount":  req.Amount.StringFixed(2),
			"balance": balance.StringFixed(2),
		}).Info("Wallet topped up")
		invalidateUser(c.Request.Context(), rdb, userID) // Wallet and history changed
		c.JSON(http.StatusOK, gin.H{
			"message": "Wallet topped up by Ksh " + req.Amount.StringFixed(2),
			"balance": balance,
		})
	}
}

// transactionPage is the cached shape of one history page
type transactionPage struct {
	Transactions []domain.Transaction `json:"transactions"` // List of transactions
	Page         int                  `json:"page"`         // Current page
	PageSize     int                  `json:"page_size"`    // Page size
	Total        int64                `json:"total"`        // Total transactions
	TotalPages   int                  `json:"total_pages"`  // Total pages
	Cached       bool                 `json:"cached"`       // Served from cache
}

// GetTransactionHistoryHandler returns the caller's transactions, newest first
func GetTransactionHistoryHandler(transactions *store.TransactionStore, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		page, pageSize := pagination(c)
		ctx := c.Request.Context()
		cacheKey := txHistoryKey(userID, page, pageSize)

		var cached transactionPage
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			cached.Cached = true
			c.JSON(http.StatusOK, cached)
			return
		}
		txs, total, err := transactions.ListForUser(ctx, userID, page, pageSize)
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
