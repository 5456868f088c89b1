package checkout

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/veritasweb/payments/internal/config"
	"go.uber.org/zap"
)

func newTestStripeClient() *StripeClient {
	cfg := config.StripeConfig{
		SecretKey:    "sk_test_1",
		PriceBasic:   "price_basic",
		PricePremium: "price_premium",
	}
	return NewStripeClient(cfg, "https://veritas.website", "license-secret", nil, zap.NewNop())
}

func TestCreateCheckoutSessionRejectsUnknownPlan(t *testing.T) {
	c := newTestStripeClient()
	_, err := c.CreateCheckoutSession(context.Background(), "enterprise")
	assert.ErrorIs(t, err, ErrInvalidPlan)
}

func TestCreatePortalSessionRejectsEmptyCustomer(t *testing.T) {
	c := newTestStripeClient()
	_, err := c.CreatePortalSession(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestVerifySessionRejectsBadSessionID(t *testing.T) {
	c := newTestStripeClient()

	for _, id := range []string{"", "sess_123", "cs"} {
		_, err := c.VerifySession(context.Background(), id)
		assert.ErrorIs(t, err, ErrInvalidSession, "id %q", id)
	}
}

func TestLicenseKeyShape(t *testing.T) {
	key := LicenseKey("secret", "cs_test_abc")
	assert.Regexp(t, regexp.MustCompile(`^VRT-[0-9A-F]{5}-[0-9A-F]{5}-[0-9A-F]{5}-[0-9A-F]{5}$`), key)
}

func TestLicenseKeyDeterministic(t *testing.T) {
	assert.Equal(t, LicenseKey("secret", "cs_1"), LicenseKey("secret", "cs_1"))
	assert.NotEqual(t, LicenseKey("secret", "cs_1"), LicenseKey("secret", "cs_2"))
	assert.NotEqual(t, LicenseKey("secret", "cs_1"), LicenseKey("other", "cs_1"))
}
