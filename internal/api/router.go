package api

import (
	"elimu_payments/internal/middleware" // JWT, admin and logging middleware
	"elimu_payments/internal/payment"    // Payment orchestration
	"elimu_payments/internal/store"      // Stores

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"gorm.io/gorm"                 // GORM ORM library
)

// Deps are the collaborators the routes need
type Deps struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Payments  *payment.Service
	JWTSecret string
}

// NewRouter registers every route on a new engine
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.AccessLog(), gin.Recovery())

	wallets := store.NewWalletStore(d.DB)
	transactions := store.NewTransactionStore(d.DB)
	entitlements := store.NewEntitlementStore(d.DB)
	resources := store.NewResourceStore(d.DB)
	callbacks := store.NewCallbackStore(d.DB)
	users := store.NewUserStore(d.DB)

	r.GET("/health", HealthHandler(d.DB, d.Redis))

	// Catalog (public)
	r.GET("/resources", ListResourcesHandler(resources))
	r.GET("/resources/:id", GetResourceHandler(resources))

	// Provider webhook (unauthenticated)
	r.POST("/payment/confirmation", PaymentConfirmationHandler(d.Payments, d.Redis))

	// Payment routes (protected by JWT)
	paymentGroup := r.Group("/payment")
	paymentGroup.Use(middleware.JWTAuthMiddleware(d.JWTSecret))
	paymentGroup.POST("/initiate", InitiatePaymentHandler(d.Payments))
	paymentGroup.GET("/:resource_id/is-paid-for", IsPaidForHandler(d.Payments, d.Redis))
	paymentGroup.GET("/wallet", GetWalletHandler(wallets, d.Redis))
	paymentGroup.POST("/wallet/top-up", TopUpHandler(wallets, d.Redis))
	paymentGroup.GET("/transactions", GetTransactionHistoryHandler(transactions, d.Redis))
	paymentGroup.GET("/unlocked", UnlockedResourcesHandler(entitlements))

	// Admin routes (protected, admin only)
	adminGroup := r.Group("/admin")
	adminGroup.Use(middleware.JWTAuthMiddleware(d.JWTSecret), middleware.AdminOnlyMiddleware(users))
	adminGroup.GET("/transactions", ListTransactionsHandler(transactions, d.Redis))
	adminGroup.GET("/callbacks", ListCallbacksHandler(callbacks))
	adminGroup.POST("/callbacks/:id/resolve", ResolveCallbackHandler(d.Payments))

	return r
}
