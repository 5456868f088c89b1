package idempotency

import (
	"context"
	"fmt"
	"time"
)

// Outcome status values persisted with each record.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusDuplicate = "duplicate"
)

// Outcome captures how a notification was resolved.
type Outcome struct {
	Status      string    `json:"status"`
	Ref         string    `json:"ref,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Success builds a success outcome referencing the business effect.
func Success(ref string, at time.Time) Outcome {
	return Outcome{Status: StatusSuccess, Ref: ref, ProcessedAt: at}
}

// Failed builds a failed outcome with a descriptive reason.
func Failed(reason string, at time.Time) Outcome {
	return Outcome{Status: StatusFailed, Reason: reason, ProcessedAt: at}
}

// Ledger guarantees at-most-once business effect per notification id.
// MarkProcessed must run exactly once after dispatch resolves, never
// before dispatch, or duplicate side effects become possible on
// redelivery.
type Ledger interface {
	IsProcessed(ctx context.Context, provider, id string) (bool, error)
	MarkProcessed(ctx context.Context, provider, id string, outcome Outcome) error
}

// recordKey namespaces notification ids per provider:
// "<provider>_event:<id>".
func recordKey(provider, id string) string {
	return fmt.Sprintf("%s_event:%s", provider, id)
}
