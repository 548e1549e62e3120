package mpesa

import "time"

// Base URLs for the Daraja API
const (
	SandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	ProductionBaseURL = "https://api.safaricom.co.ke"
)

// Default request bounds
const (
	DefaultTokenTimeout = 10 * time.Second
	DefaultPushTimeout  = 15 * time.Second
)

// Config holds the provider credentials and endpoints. It is built once at
// startup and never mutated.
type Config struct {
	Environment    string // sandbox or production
	BaseURL        string // Overrides Environment when set
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
	TokenTimeout   time.Duration
	PushTimeout    time.Duration
}

// baseURL resolves the API root for the configured environment.
func (c Config) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	if c.Environment == "production" {
		return ProductionBaseURL
	}
	return SandboxBaseURL
}

func (c Config) tokenTimeout() time.Duration {
	if c.TokenTimeout > 0 {
		return c.TokenTimeout
	}
	return DefaultTokenTimeout
}

func (c Config) pushTimeout() time.Duration {
	if c.PushTimeout > 0 {
		return c.PushTimeout
	}
	return DefaultPushTimeout
}
