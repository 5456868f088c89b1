package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veritasweb/payments/internal/audit"
	"github.com/veritasweb/payments/internal/checkout"
	"github.com/veritasweb/payments/internal/clock"
	"github.com/veritasweb/payments/internal/config"
	"github.com/veritasweb/payments/internal/idempotency"
	"github.com/veritasweb/payments/internal/observability/metrics"
	"github.com/veritasweb/payments/internal/ratelimit"
	"github.com/veritasweb/payments/internal/subscriber"
	"github.com/veritasweb/payments/internal/webhook/adapters"
	"github.com/veritasweb/payments/internal/webhook/adapters/stripe"
	"github.com/veritasweb/payments/internal/webhook/dispatch"
	"github.com/veritasweb/payments/internal/webhook/service"
	"go.uber.org/zap"
)

const webhookSecret = "whsec_server_test"

func newTestServer(t *testing.T, limiterCapacity int) (*Server, *clock.FakeClock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clk := clock.NewFakeClock(time.Unix(1_700_000_000, 0))
	log := zap.NewNop()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	subs := subscriber.NewLedger(clk, log)
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	svc := service.NewService(service.Params{
		Log:      log,
		Limiter:  ratelimit.NewFixedWindowLimiter(limiterCapacity, time.Minute, 100, clk, log),
		Registry: adapters.NewRegistry(stripe.New(webhookSecret, 5*time.Minute, false, clk)),
		Ledger:   idempotency.NewMemoryLedger(clk),
		Router:   dispatch.NewRouter(subs, audit.NewService(node, clk, log), log),
		Metrics:  m,
	})

	stripeClient := checkout.NewStripeClient(config.StripeConfig{
		SecretKey:    "sk_test",
		PriceBasic:   "price_b",
		PricePremium: "price_p",
	}, "https://veritas.website", "license-secret", nil, log)
	paypalClient := checkout.NewPayPalClient(config.PayPalConfig{Mode: config.ModeSandbox}, nil, nil, log)

	return NewServer(gin.New(), log, svc, stripeClient, paypalClient), clk
}

func signedRequest(t *testing.T, clk *clock.FakeClock, payload string) *http.Request {
	t.Helper()
	ts := clk.Now().Unix()
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)

	req := httptest.NewRequest(http.MethodPost, "/stripe/webhook", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil))))
	return req
}

func TestWebhookAccepted(t *testing.T) {
	srv, clk := newTestServer(t, 100)

	payload := `{"id":"evt_1","type":"invoice.paid","livemode":false,"data":{"object":{"customer_email":"a@x.com"}}}`
	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, signedRequest(t, clk, payload))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"received":true`)
}

func TestWebhookDuplicateStillAccepted(t *testing.T) {
	srv, clk := newTestServer(t, 100)
	payload := `{"id":"evt_1","type":"invoice.paid","livemode":false,"data":{"object":{}}}`

	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, signedRequest(t, clk, payload))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, signedRequest(t, clk, payload))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "duplicate")
}

func TestWebhookBadSignatureIs401(t *testing.T) {
	srv, clk := newTestServer(t, 100)

	req := httptest.NewRequest(http.MethodPost, "/stripe/webhook", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=deadbeef", clk.Now().Unix()))
	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookMissingSignatureIs401(t *testing.T) {
	srv, _ := newTestServer(t, 100)

	req := httptest.NewRequest(http.MethodPost, "/stripe/webhook", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookMalformedPayloadIs400(t *testing.T) {
	srv, clk := newTestServer(t, 100)

	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, signedRequest(t, clk, "not json"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookRateLimitIs429(t *testing.T) {
	srv, clk := newTestServer(t, 1)
	payload := `{"id":"evt_1","type":"invoice.paid","livemode":false,"data":{"object":{}}}`

	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, signedRequest(t, clk, payload))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, signedRequest(t, clk, payload))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestCheckoutUnknownPlanIs400(t *testing.T) {
	srv, _ := newTestServer(t, 100)

	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stripe/checkout/enterprise", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyBadSessionIs400(t *testing.T) {
	srv, _ := newTestServer(t, 100)

	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stripe/verify?session_id=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPortalRejectsBadBody(t *testing.T) {
	srv, _ := newTestServer(t, 100)

	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stripe/portal", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPayPalCaptureMissingOrderIs400(t *testing.T) {
	srv, _ := newTestServer(t, 100)

	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/paypal/capture", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClientKeyPrefersForwardedFor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/stripe/webhook", nil)
	c.Request.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.1")

	assert.Equal(t, "203.0.113.7", clientKey(c))

	c.Request.Header.Del("X-Forwarded-For")
	c.Request.RemoteAddr = "192.0.2.5:4242"
	assert.Equal(t, "192.0.2.5", clientKey(c))
}
