package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/veritasweb/payments/internal/clock"
	"github.com/veritasweb/payments/internal/webhook/domain"
)

// ProviderName tags notifications from the shared-secret trust model.
const ProviderName = "stripe"

const signatureHeader = "Stripe-Signature"

// Adapter verifies payloads with a local keyed-hash check and parses the
// Stripe event envelope.
type Adapter struct {
	webhookSecret   string
	replayTolerance time.Duration
	liveMode        bool
	clock           clock.Clock
}

// New builds the adapter. replayTolerance bounds |now - t| for the
// signature timestamp; liveMode rejects test events as no-ops.
func New(webhookSecret string, replayTolerance time.Duration, liveMode bool, clk clock.Clock) *Adapter {
	if replayTolerance <= 0 {
		replayTolerance = 5 * time.Minute
	}
	return &Adapter{
		webhookSecret:   webhookSecret,
		replayTolerance: replayTolerance,
		liveMode:        liveMode,
		clock:           clk,
	}
}

func (a *Adapter) Provider() string { return ProviderName }

func (a *Adapter) Delegated() bool { return false }

// Verify checks the "t=...,v1=..." signature header against
// HMAC-SHA256(secret, "{t}.{body}"). The comparison is constant-time.
func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	_ = ctx
	sigHeader := strings.TrimSpace(headers.Get(signatureHeader))
	if sigHeader == "" {
		return domain.ErrMissingSignatureHeader
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return err
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return domain.ErrMalformedSignatureHeader
	}
	skew := a.clock.Now().Unix() - ts
	if skew < 0 {
		skew = -skew
	}
	// Boundary inclusive: a timestamp exactly at the tolerance passes.
	if skew > int64(a.replayTolerance/time.Second) {
		return domain.ErrStaleTimestamp
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}
	return domain.ErrSignatureMismatch
}

type event struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Created  int64     `json:"created"`
	Livemode bool      `json:"livemode"`
	Data     eventData `json:"data"`
}

type eventData struct {
	Object json.RawMessage `json:"object"`
}

// Parse decodes the event envelope. Test events arriving in live mode
// surface as ErrEventIgnored so the pipeline accepts them as no-ops.
func (a *Adapter) Parse(ctx context.Context, payload []byte) (*domain.Notification, error) {
	_ = ctx
	var evt event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, domain.ErrMalformedPayload
	}
	if strings.TrimSpace(evt.ID) == "" || strings.TrimSpace(evt.Type) == "" {
		return nil, domain.ErrMalformedPayload
	}
	if !evt.Livemode && a.liveMode {
		return nil, domain.ErrEventIgnored
	}

	return &domain.Notification{
		Provider:   ProviderName,
		ID:         evt.ID,
		Type:       strings.TrimSpace(evt.Type),
		Test:       !evt.Livemode,
		ReceivedAt: a.clock.Now(),
		Object:     evt.Data.Object,
	}, nil
}

func parseSignatureHeader(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, domain.ErrMalformedSignatureHeader
	}
	return timestamp, signatures, nil
}
