package domain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// Notification is a single inbound payment-provider event delivery,
// immutable once received. Identity is (Provider, ID).
type Notification struct {
	Provider   string
	ID         string
	Type       string
	Test       bool
	ReceivedAt time.Time
	// Object is the provider's event payload tree (Stripe data.object,
	// PayPal resource).
	Object json.RawMessage
}

// Adapter is one provider's authenticity and parsing strategy. The
// ingest service selects an adapter by provider tag, never by runtime
// type inspection.
type Adapter interface {
	Provider() string
	// Delegated reports whether verification happens through a
	// provider-side call rather than a local cryptographic check.
	Delegated() bool
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*Notification, error)
}

// Result statuses returned to the transport layer.
const (
	StatusAccepted  = "accepted"
	StatusDuplicate = "duplicate"
	StatusIgnored   = "ignored"
)

// Result is the tri-state pipeline outcome for an accepted request.
// Rejections surface as errors instead.
type Result struct {
	Status  string
	Message string
}

// Error taxonomy. Structural and authenticity failures reject the
// request with no side effects and no idempotency record; handler-level
// failures are recorded and still answered with an accepting status to
// suppress redelivery storms.
var (
	ErrAdmissionDenied          = errors.New("rate_limit_exceeded")
	ErrUnknownProvider          = errors.New("unknown_provider")
	ErrMissingSignatureHeader   = errors.New("missing_signature_header")
	ErrMalformedSignatureHeader = errors.New("malformed_signature_header")
	ErrStaleTimestamp           = errors.New("stale_or_future_timestamp")
	ErrSignatureMismatch        = errors.New("signature_mismatch")
	ErrVerificationCall         = errors.New("verification_call_failed")
	ErrMissingHeader            = errors.New("missing_header")
	ErrMalformedPayload         = errors.New("malformed_payload")
	// ErrEventIgnored short-circuits the pipeline with an accepting
	// response and no record (test events in live mode).
	ErrEventIgnored = errors.New("event_ignored")
)
