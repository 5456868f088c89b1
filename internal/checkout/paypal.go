package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/veritasweb/payments/internal/config"
	"github.com/veritasweb/payments/internal/credential"
	"go.uber.org/zap"
)

// OrderResult is a created order awaiting buyer approval.
type OrderResult struct {
	OrderID    string
	ApproveURL string
}

// CaptureResult is a completed capture.
type CaptureResult struct {
	OrderID string
	Status  string
}

// PayPalClient wraps the Orders v2 REST calls. Tokens come from the
// shared credential source, the same one the webhook verifier uses.
type PayPalClient struct {
	cfg        config.PayPalConfig
	tokens     *credential.Source
	httpClient *http.Client
	log        *zap.Logger
}

func NewPayPalClient(cfg config.PayPalConfig, tokens *credential.Source, httpClient *http.Client, log *zap.Logger) *PayPalClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &PayPalClient{
		cfg:        cfg,
		tokens:     tokens,
		httpClient: httpClient,
		log:        log.Named("checkout.paypal"),
	}
}

func planAmount(plan string) (string, bool) {
	switch plan {
	case "basic":
		return "9.00", true
	case "premium":
		return "29.00", true
	default:
		return "", false
	}
}

// CreateOrder creates a one-step order for the plan and returns the
// approval redirect.
func (c *PayPalClient) CreateOrder(ctx context.Context, plan string) (OrderResult, error) {
	amount, ok := planAmount(plan)
	if !ok {
		return OrderResult{}, ErrInvalidPlan
	}

	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"amount": map[string]any{
				"currency_code": "USD",
				"value":         amount,
			},
			"description": "Veritas " + plan + " plan",
			"custom_id":   plan,
		}},
	}

	payload, err := c.call(ctx, http.MethodPost, "/v2/checkout/orders", body)
	if err != nil {
		return OrderResult{}, err
	}

	orderID, _ := payload["id"].(string)
	approveURL := approveLink(payload)
	if orderID == "" || approveURL == "" {
		return OrderResult{}, ErrGatewayFailure
	}
	c.log.Info("order created", zap.String("order_id", orderID), zap.String("plan", plan))
	return OrderResult{OrderID: orderID, ApproveURL: approveURL}, nil
}

// CaptureOrder captures an approved order. Anything other than a
// COMPLETED status is treated as payment not finished.
func (c *PayPalClient) CaptureOrder(ctx context.Context, orderID string) (CaptureResult, error) {
	if orderID == "" {
		return CaptureResult{}, ErrInvalidSession
	}

	payload, err := c.call(ctx, http.MethodPost, "/v2/checkout/orders/"+orderID+"/capture", nil)
	if err != nil {
		return CaptureResult{}, err
	}

	status, _ := payload["status"].(string)
	if status != "COMPLETED" {
		c.log.Warn("capture not completed",
			zap.String("order_id", orderID),
			zap.String("status", status),
		)
		return CaptureResult{}, ErrPaymentRequired
	}
	c.log.Info("order captured", zap.String("order_id", orderID))
	return CaptureResult{OrderID: orderID, Status: status}, nil
}

func (c *PayPalClient) call(ctx context.Context, method, path string, body any) (map[string]any, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		c.log.Warn("token fetch failed", zap.Error(err))
		return nil, ErrGatewayFailure
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, ErrGatewayFailure
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL()+path, reader)
	if err != nil {
		return nil, ErrGatewayFailure
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("paypal api unreachable", zap.Error(err))
		return nil, ErrGatewayFailure
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, ErrGatewayFailure
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn("paypal api error",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", raw[:min(len(raw), 500)]),
		)
		return nil, ErrGatewayFailure
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, ErrGatewayFailure
	}
	return payload, nil
}

// approveLink pulls the rel=approve href out of the HATEOAS links array.
func approveLink(payload map[string]any) string {
	links, _ := payload["links"].([]any)
	for _, l := range links {
		link, ok := l.(map[string]any)
		if !ok {
			continue
		}
		if rel, _ := link["rel"].(string); rel == "approve" {
			href, _ := link["href"].(string)
			return href
		}
	}
	return ""
}
