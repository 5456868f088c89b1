package checkout

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/veritasweb/payments/internal/config"
	"go.uber.org/zap"
)

const stripeAPIBase = "https://api.stripe.com"

// Outbound call failures surfaced to the transport layer.
var (
	ErrInvalidPlan     = errors.New("invalid_plan")
	ErrGatewayFailure  = errors.New("gateway_failure")
	ErrInvalidSession  = errors.New("invalid_session")
	ErrPaymentRequired = errors.New("payment_not_completed")
)

// SessionResult is a created checkout or portal session.
type SessionResult struct {
	URL string
}

// VerifiedSession is the outcome of a successful session verification.
type VerifiedSession struct {
	Plan       string
	Email      string
	LicenseKey string
}

// StripeClient wraps the checkout, portal and session-verification REST
// calls. Thin request/response plumbing; no business state.
type StripeClient struct {
	cfg        config.StripeConfig
	domain     string
	licenseKey string
	httpClient *http.Client
	log        *zap.Logger
}

// NewStripeClient builds the client. licenseSecret keys the deterministic
// license derivation for verified sessions.
func NewStripeClient(cfg config.StripeConfig, domain, licenseSecret string, httpClient *http.Client, log *zap.Logger) *StripeClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &StripeClient{
		cfg:        cfg,
		domain:     strings.TrimRight(domain, "/"),
		licenseKey: licenseSecret,
		httpClient: httpClient,
		log:        log.Named("checkout.stripe"),
	}
}

// CreateCheckoutSession creates a subscription checkout session for the
// plan and returns the redirect URL. The API takes form-encoded params,
// not JSON.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, plan string) (SessionResult, error) {
	var priceID string
	switch plan {
	case "basic":
		priceID = c.cfg.PriceBasic
	case "premium":
		priceID = c.cfg.PricePremium
	default:
		return SessionResult{}, ErrInvalidPlan
	}

	params := url.Values{
		"success_url":                {c.domain + "/success.html?session_id={CHECKOUT_SESSION_ID}"},
		"cancel_url":                 {c.domain + "/cancel.html"},
		"mode":                       {"subscription"},
		"line_items[0][price]":       {priceID},
		"line_items[0][quantity]":    {"1"},
		"metadata[plan]":             {plan},
		"metadata[source]":           {"veritas_website"},
		"allow_promotion_codes":      {"true"},
		"billing_address_collection": {"required"},
		"tax_id_collection[enabled]": {"true"},
	}

	payload, err := c.postForm(ctx, stripeAPIBase+"/v1/checkout/sessions", params)
	if err != nil {
		return SessionResult{}, err
	}
	sessionURL, _ := payload["url"].(string)
	if sessionURL == "" {
		return SessionResult{}, ErrGatewayFailure
	}
	c.log.Info("checkout session created", zap.String("plan", plan))
	return SessionResult{URL: sessionURL}, nil
}

// CreatePortalSession creates a customer portal session.
func (c *StripeClient) CreatePortalSession(ctx context.Context, customerID string) (SessionResult, error) {
	if strings.TrimSpace(customerID) == "" {
		return SessionResult{}, ErrInvalidSession
	}
	params := url.Values{
		"customer":   {customerID},
		"return_url": {c.domain + "/dashboard.html"},
	}
	payload, err := c.postForm(ctx, stripeAPIBase+"/v1/billing_portal/sessions", params)
	if err != nil {
		return SessionResult{}, err
	}
	portalURL, _ := payload["url"].(string)
	if portalURL == "" {
		return SessionResult{}, ErrGatewayFailure
	}
	c.log.Info("portal session created", zap.String("customer_id", customerID))
	return SessionResult{URL: portalURL}, nil
}

type sessionView struct {
	PaymentStatus   *string           `json:"payment_status"`
	CustomerEmail   *string           `json:"customer_email"`
	CustomerDetails *struct {
		Email *string `json:"email"`
	} `json:"customer_details"`
	Metadata map[string]string `json:"metadata"`
}

// VerifySession fetches the checkout session and, when paid, returns the
// contact, plan and a deterministic license key.
func (c *StripeClient) VerifySession(ctx context.Context, sessionID string) (VerifiedSession, error) {
	if sessionID == "" || !strings.HasPrefix(sessionID, "cs_") {
		return VerifiedSession{}, ErrInvalidSession
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, stripeAPIBase+"/v1/checkout/sessions/"+sessionID, nil)
	if err != nil {
		return VerifiedSession{}, ErrGatewayFailure
	}
	req.SetBasicAuth(c.cfg.SecretKey, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return VerifiedSession{}, ErrGatewayFailure
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return VerifiedSession{}, ErrPaymentRequired
	}

	var session sessionView
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return VerifiedSession{}, ErrGatewayFailure
	}
	if session.PaymentStatus == nil || *session.PaymentStatus != "paid" {
		return VerifiedSession{}, ErrPaymentRequired
	}

	email := "unknown"
	if session.CustomerDetails != nil && session.CustomerDetails.Email != nil && *session.CustomerDetails.Email != "" {
		email = *session.CustomerDetails.Email
	} else if session.CustomerEmail != nil && *session.CustomerEmail != "" {
		email = *session.CustomerEmail
	}
	plan := "basic"
	if p, ok := session.Metadata["plan"]; ok && p != "" {
		plan = p
	}

	c.log.Info("session verified", zap.String("session_id", sessionID), zap.String("plan", plan))
	return VerifiedSession{
		Plan:       plan,
		Email:      email,
		LicenseKey: LicenseKey(c.licenseKey, sessionID),
	}, nil
}

func (c *StripeClient) postForm(ctx context.Context, endpoint string, params url.Values) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, ErrGatewayFailure
	}
	req.SetBasicAuth(c.cfg.SecretKey, "")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("stripe api unreachable", zap.Error(err))
		return nil, ErrGatewayFailure
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, ErrGatewayFailure
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn("stripe api error",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body[:min(len(body), 500)]),
		)
		return nil, ErrGatewayFailure
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, ErrGatewayFailure
	}
	return payload, nil
}

// LicenseKey derives a deterministic VRT-XXXXX-XXXXX-XXXXX-XXXXX key from
// the session id using a keyed hash.
func LicenseKey(secret, sessionID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(sessionID))
	digest := strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))

	chars := make([]byte, 0, 20)
	for i := 0; i < len(digest) && len(chars) < 20; i++ {
		ch := digest[i]
		if (ch >= '0' && ch <= '9') || (ch >= 'A' && ch <= 'Z') {
			chars = append(chars, ch)
		}
	}
	return fmt.Sprintf("VRT-%s-%s-%s-%s", chars[0:5], chars[5:10], chars[10:15], chars[15:20])
}
