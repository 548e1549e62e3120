// Command token registers a user row and prints a signed access token for it.
// Identities are issued elsewhere; this is for local development and support.
package main

import (
	"context" // Store context
	"flag"    // Command line flags
	"fmt"     // Output
	"time"    // Token lifetime

	"elimu_payments/internal/config" // Configuration
	"elimu_payments/internal/db"     // Database connection
	"elimu_payments/internal/domain" // Importing domain models
	"elimu_payments/internal/store"  // User upsert
	"elimu_payments/internal/utils"  // JWT helpers

	"github.com/sirupsen/logrus" // Logging library
)

func main() {
	id := flag.Uint("id", 0, "user id")
	email := flag.String("email", "", "user email")
	name := flag.String("name", "", "display name")
	role := flag.String("role", domain.RoleUser, "user or admin")
	ttl := flag.Duration("ttl", utils.DefaultTokenTTL, "token lifetime")
	flag.Parse()

	if *id == 0 || *email == "" {
		logrus.Fatal("-id and -email are required")
	}
	if *role != domain.RoleUser && *role != domain.RoleAdmin {
		logrus.Fatalf("-role must be %s or %s", domain.RoleUser, domain.RoleAdmin)
	}

	cfg := config.LoadConfig()
	if cfg.JWTSecret == "" {
		logrus.Fatal("JWT_SECRET is not set")
	}
	gdb, err := db.Connect(cfg.DSN(), false)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}

	user := &domain.User{ID: *id, Email: *email, FullName: *name, Role: *role}
	if err := store.NewUserStore(gdb).Upsert(context.Background(), user); err != nil {
		logrus.Fatalf("failed to save user: %v", err)
	}
	token, err := utils.GenerateJWT(user.ID, cfg.JWTSecret, *ttl)
	if err != nil {
		logrus.Fatalf("failed to sign token: %v", err)
	}
	logrus.WithFields(logrus.Fields{
		"user_id": user.ID,
		"role":    user.Role,
		"expires": time.Now().Add(*ttl).Format(time.RFC3339),
	}).Info("Token issued")
	fmt.Println(token)
}
