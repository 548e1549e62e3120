package config

import (
	"errors"  // Validation errors
	"fmt"     // Error formatting
	"os"      // For environment variables
	"sort"    // Stable error messages
	"strconv" // For string to int conversion
	"strings" // Missing key list
	"time"    // Gateway timeouts

	"elimu_payments/internal/mpesa" // Gateway configuration

	"github.com/joho/godotenv" // For loading .env files
)

// Config holds the application configuration
type Config struct {
	AppPort    string // Application port
	DBUser     string // Database user
	DBPassword string // Database password
	DBHost     string // Database host
	DBPort     string // Database port
	DBName     string // Database name
	JWTSecret  string // JWT secret key
	RedisAddr  string // Redis server address
	RedisPass  string // Redis password
	RedisDB    int    // Redis database number
	NatsURL    string // NATS server, events are not published when empty
	IsProd     bool   // Is production environment

	MpesaEnv            string        // sandbox or production
	MpesaBaseURL        string        // Overrides the environment's base URL
	MpesaConsumerKey    string        // Daraja app consumer key
	MpesaConsumerSecret string        // Daraja app consumer secret
	MpesaShortCode      string        // Paybill / till shortcode
	MpesaPasskey        string        // Lipa Na M-Pesa Online passkey
	MpesaCallbackURL    string        // Public URL of POST /payment/confirmation
	MpesaTokenTimeout   time.Duration // Token request timeout
	MpesaPushTimeout    time.Duration // STK push timeout
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	return &Config{
		AppPort:    getEnv("APP_PORT", "8080"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBName:     os.Getenv("DB_NAME"),
		JWTSecret:  os.Getenv("JWT_SECRET"),
		RedisAddr:  getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPass:  os.Getenv("REDIS_PASS"),
		RedisDB:    redisDB,
		NatsURL:    os.Getenv("NATS_URL"),
		IsProd:     os.Getenv("IS_PROD") == "true",

		MpesaEnv:            getEnv("MPESA_ENV", "sandbox"),
		MpesaBaseURL:        os.Getenv("MPESA_BASE_URL"),
		MpesaConsumerKey:    os.Getenv("MPESA_CONSUMER_KEY"),
		MpesaConsumerSecret: os.Getenv("MPESA_CONSUMER_SECRET"),
		MpesaShortCode:      os.Getenv("MPESA_SHORTCODE"),
		MpesaPasskey:        os.Getenv("MPESA_PASSKEY"),
		MpesaCallbackURL:    os.Getenv("MPESA_CALLBACK_URL"),
		MpesaTokenTimeout:   getDuration("MPESA_TOKEN_TIMEOUT", mpesa.DefaultTokenTimeout),
		MpesaPushTimeout:    getDuration("MPESA_PUSH_TIMEOUT", mpesa.DefaultPushTimeout),
	}
}

// Validate reports every required setting that is missing
func (c *Config) Validate() error {
	required := map[string]string{
		"DB_USER":               c.DBUser,
		"DB_NAME":               c.DBName,
		"JWT_SECRET":            c.JWTSecret,
		"MPESA_CONSUMER_KEY":    c.MpesaConsumerKey,
		"MPESA_CONSUMER_SECRET": c.MpesaConsumerSecret,
		"MPESA_SHORTCODE":       c.MpesaShortCode,
		"MPESA_PASSKEY":         c.MpesaPasskey,
		"MPESA_CALLBACK_URL":    c.MpesaCallbackURL,
	}
	var missing []string
	for _, key := range sortedKeys(required) {
		if strings.TrimSpace(required[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.MpesaEnv != "sandbox" && c.MpesaEnv != "production" {
		return errors.New("MPESA_ENV must be sandbox or production")
	}
	if c.IsProd && len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters in production")
	}
	return nil
}

// DSN is the MySQL data source name
func (c *Config) DSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true&charset=utf8mb4&loc=UTC"
}

// MpesaConfig derives the gateway client configuration
func (c *Config) MpesaConfig() mpesa.Config {
	return mpesa.Config{
		Environment:    c.MpesaEnv,
		BaseURL:        c.MpesaBaseURL,
		ConsumerKey:    c.MpesaConsumerKey,
		ConsumerSecret: c.MpesaConsumerSecret,
		ShortCode:      c.MpesaShortCode,
		Passkey:        c.MpesaPasskey,
		CallbackURL:    c.MpesaCallbackURL,
		TokenTimeout:   c.MpesaTokenTimeout,
		PushTimeout:    c.MpesaPushTimeout,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getDuration accepts Go durations ("15s") or whole seconds ("15")
func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
