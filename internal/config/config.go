package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	ListenAddr  string
	Domain      string

	Stripe StripeConfig
	PayPal PayPalConfig

	RedisURL string

	RateLimitMaxPerWindow int
	RateLimitWindow       time.Duration
	RateLimitMaxKeys      int

	IdempotencyTTL     time.Duration
	ReplayTolerance    time.Duration
	StrictVerification bool

	LicenseSecret string

	OutboundTimeout time.Duration
}

// StripeConfig carries the shared-secret trust model settings.
type StripeConfig struct {
	SecretKey      string
	WebhookSecret  string
	PublishableKey string
	PriceBasic     string
	PricePremium   string
	LiveMode       bool
}

// PayPalConfig carries the delegated trust model settings.
type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	Mode         string
	WebhookID    string
	PlanBasic    string
	PlanPremium  string
}

const (
	ModeSandbox = "sandbox"
	ModeLive    = "live"
)

// BaseURL returns the PayPal API host for the configured mode.
func (c PayPalConfig) BaseURL() string {
	if c.Mode == ModeLive {
		return "https://api-m.paypal.com"
	}
	return "https://api-m.sandbox.paypal.com"
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "payments"),
		AppVersion:  getenv("APP_VERSION", "2.0.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		ListenAddr:  getenv("LISTEN_ADDR", ":3000"),
		Domain:      getenv("DOMAIN", "https://veritas.website"),
		Stripe: StripeConfig{
			SecretKey:      strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
			WebhookSecret:  strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			PublishableKey: strings.TrimSpace(getenv("STRIPE_PUBLISHABLE_KEY", "")),
			PriceBasic:     getenv("STRIPE_PRICE_BASIC", ""),
			PricePremium:   getenv("STRIPE_PRICE_PREMIUM", ""),
			LiveMode:       getenv("STRIPE_MODE", "") == "live",
		},
		PayPal: PayPalConfig{
			ClientID:     strings.TrimSpace(getenv("PAYPAL_CLIENT_ID", "")),
			ClientSecret: strings.TrimSpace(getenv("PAYPAL_CLIENT_SECRET", "")),
			Mode:         normalizeMode(getenv("PAYPAL_MODE", ModeSandbox)),
			WebhookID:    strings.TrimSpace(getenv("PAYPAL_WEBHOOK_ID", "")),
			PlanBasic:    getenv("PAYPAL_PLAN_BASIC", "P-BASIC_PLACEHOLDER"),
			PlanPremium:  getenv("PAYPAL_PLAN_PREMIUM", "P-PREMIUM_PLACEHOLDER"),
		},
		RedisURL:              strings.TrimSpace(getenv("REDIS_URL", "")),
		RateLimitMaxPerWindow: getenvInt("RATE_LIMIT_MAX_PER_WINDOW", 30),
		RateLimitWindow:       time.Duration(getenvInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
		RateLimitMaxKeys:      getenvInt("RATE_LIMIT_MAX_KEYS", 10_000),
		IdempotencyTTL:        time.Duration(getenvInt("IDEMPOTENCY_TTL_SECONDS", 7*24*3600)) * time.Second,
		ReplayTolerance:       time.Duration(getenvInt("REPLAY_TOLERANCE_SECONDS", 300)) * time.Second,
		StrictVerification:    getenvBool("STRICT_VERIFICATION", false),
		LicenseSecret:         strings.TrimSpace(getenv("LICENSE_SECRET", "veritas-license-v1")),
		OutboundTimeout:       time.Duration(getenvInt("OUTBOUND_TIMEOUT_SECONDS", 10)) * time.Second,
	}
}

func normalizeMode(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == ModeLive {
		return ModeLive
	}
	return ModeSandbox
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
