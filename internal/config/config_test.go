package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":3000", cfg.ListenAddr)
	assert.Equal(t, 30, cfg.RateLimitMaxPerWindow)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 7*24*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, 300*time.Second, cfg.ReplayTolerance)
	assert.False(t, cfg.StrictVerification)
	assert.Equal(t, ModeSandbox, cfg.PayPal.Mode)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_MAX_PER_WINDOW", "5")
	t.Setenv("REPLAY_TOLERANCE_SECONDS", "120")
	t.Setenv("STRICT_VERIFICATION", "true")
	t.Setenv("STRIPE_MODE", "live")
	t.Setenv("PAYPAL_MODE", "LIVE")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "  whsec_x  ")

	cfg := Load()
	assert.Equal(t, 5, cfg.RateLimitMaxPerWindow)
	assert.Equal(t, 2*time.Minute, cfg.ReplayTolerance)
	assert.True(t, cfg.StrictVerification)
	assert.True(t, cfg.Stripe.LiveMode)
	assert.Equal(t, ModeLive, cfg.PayPal.Mode)
	assert.Equal(t, "whsec_x", cfg.Stripe.WebhookSecret, "secrets are trimmed")
}

func TestPayPalBaseURL(t *testing.T) {
	assert.Equal(t, "https://api-m.sandbox.paypal.com", PayPalConfig{Mode: ModeSandbox}.BaseURL())
	assert.Equal(t, "https://api-m.paypal.com", PayPalConfig{Mode: ModeLive}.BaseURL())
	assert.Equal(t, "https://api-m.sandbox.paypal.com", PayPalConfig{}.BaseURL())
}

func TestGetenvBool(t *testing.T) {
	cases := map[string]bool{
		"1": true, "true": true, "YES": true, "on": true,
		"0": false, "false": false, "no": false, "off": false,
		"maybe": false,
	}
	for raw, want := range cases {
		t.Setenv("TEST_BOOL", raw)
		assert.Equal(t, want, getenvBool("TEST_BOOL", false), "raw %q", raw)
	}
}

func TestGetenvIntBadValueFallsBack(t *testing.T) {
	t.Setenv("TEST_INT", "not-a-number")
	assert.Equal(t, 42, getenvInt("TEST_INT", 42))
}
