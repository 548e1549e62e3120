package api

import (
	"context" // Context for Redis operations
	"fmt"     // Key formatting
	"time"    // Time durations

	"elimu_payments/internal/utils" // Cache helpers

	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
)

const (
	cacheTTL     = 60 * time.Second // Wallet and history cache lifetime
	paidCacheTTL = 10 * time.Minute // Entitlements are never revoked, so a positive answer can live longer
)

func walletKey(userID uint) string {
	return fmt.Sprintf("wallet:user:%d", userID)
}

func txHistoryKey(userID uint, page, pageSize int) string {
	return fmt.Sprintf("txhistory:user:%d:page:%d:size:%d", userID, page, pageSize)
}

func paidKey(userID, resourceID uint) string {
	return fmt.Sprintf("paid:user:%d:resource:%d", userID, resourceID)
}

// invalidateUser drops the cached wallet and every cached history page of a user
func invalidateUser(ctx context.Context, rdb *redis.Client, userID uint) {
	if err := utils.DeleteCache(ctx, rdb, walletKey(userID)); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("Failed to invalidate wallet cache")
	}
	if err := utils.DeleteCachePattern(ctx, rdb, fmt.Sprintf("txhistory:user:%d:*", userID)); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("Failed to invalidate transaction history cache")
	}
}
