package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/veritasweb/payments/internal/clock"
	"github.com/veritasweb/payments/internal/webhook/domain"
)

// ProviderName tags notifications from the delegated trust model.
const ProviderName = "paypal"

// Required transport headers for the verification call. Missing any of
// them rejects the request before a credential is fetched.
var requiredHeaders = []string{
	"Paypal-Auth-Algo",
	"Paypal-Cert-Url",
	"Paypal-Transmission-Id",
	"Paypal-Transmission-Sig",
	"Paypal-Transmission-Time",
}

// TokenSource supplies a bearer credential for provider API calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Adapter verifies payloads by delegating to the provider's
// verify-webhook-signature endpoint and parses the PayPal event envelope.
type Adapter struct {
	webhookID  string
	verifyURL  string
	tokens     TokenSource
	httpClient *http.Client
	clock      clock.Clock
}

// New builds the adapter against the given API base URL.
func New(webhookID, baseURL string, tokens TokenSource, httpClient *http.Client, clk clock.Clock) *Adapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Adapter{
		webhookID:  webhookID,
		verifyURL:  strings.TrimRight(baseURL, "/") + "/v1/notifications/verify-webhook-signature",
		tokens:     tokens,
		httpClient: httpClient,
		clock:      clk,
	}
}

func (a *Adapter) Provider() string { return ProviderName }

func (a *Adapter) Delegated() bool { return true }

type verifyRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type verifyResponse struct {
	VerificationStatus string `json:"verification_status"`
}

// Verify submits the transmission headers, the configured webhook id and
// the parsed body to the provider's verification endpoint. A definitive
// non-SUCCESS status is a signature mismatch; transport or response
// failures surface as ErrVerificationCall for the caller's policy.
func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	values := make(map[string]string, len(requiredHeaders))
	for _, name := range requiredHeaders {
		v := strings.TrimSpace(headers.Get(name))
		if v == "" {
			return fmt.Errorf("%w: %s", domain.ErrMissingHeader, strings.ToLower(name))
		}
		values[name] = v
	}

	if !json.Valid(payload) {
		return domain.ErrMalformedPayload
	}

	token, err := a.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrVerificationCall, err)
	}

	body, err := json.Marshal(verifyRequest{
		AuthAlgo:         values["Paypal-Auth-Algo"],
		CertURL:          values["Paypal-Cert-Url"],
		TransmissionID:   values["Paypal-Transmission-Id"],
		TransmissionSig:  values["Paypal-Transmission-Sig"],
		TransmissionTime: values["Paypal-Transmission-Time"],
		WebhookID:        a.webhookID,
		WebhookEvent:     payload,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrVerificationCall, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.verifyURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrVerificationCall, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrVerificationCall, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", domain.ErrVerificationCall, resp.StatusCode, snippet)
	}

	var result verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrVerificationCall, err)
	}
	if result.VerificationStatus != "SUCCESS" {
		return domain.ErrSignatureMismatch
	}
	return nil
}

type event struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	CreateTime   string          `json:"create_time"`
	ResourceType string          `json:"resource_type"`
	Resource     json.RawMessage `json:"resource"`
}

// Parse decodes the event envelope.
func (a *Adapter) Parse(ctx context.Context, payload []byte) (*domain.Notification, error) {
	_ = ctx
	var evt event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, domain.ErrMalformedPayload
	}
	if strings.TrimSpace(evt.ID) == "" || strings.TrimSpace(evt.EventType) == "" {
		return nil, domain.ErrMalformedPayload
	}

	return &domain.Notification{
		Provider:   ProviderName,
		ID:         evt.ID,
		Type:       strings.TrimSpace(evt.EventType),
		ReceivedAt: a.clock.Now(),
		Object:     evt.Resource,
	}, nil
}
