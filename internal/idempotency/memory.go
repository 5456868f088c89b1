package idempotency

import (
	"context"
	"time"

	"github.com/veritasweb/payments/internal/cache"
	"github.com/veritasweb/payments/internal/clock"
)

// memoryTTL is the fallback retention when no external cache is
// configured. Shorter than the durable store's window on purpose.
const memoryTTL = 24 * time.Hour

// MemoryLedger is the in-process fallback store. Entries expire after a
// day; expiry is checked on read and swept opportunistically on write.
type MemoryLedger struct {
	records cache.Cache[string, Outcome]
	ttl     time.Duration
}

// NewMemoryLedger builds the in-memory ledger against the given clock.
func NewMemoryLedger(clk clock.Clock) *MemoryLedger {
	return &MemoryLedger{
		records: cache.NewTTLCacheWithNow[string, Outcome](clk.Now),
		ttl:     memoryTTL,
	}
}

func (l *MemoryLedger) IsProcessed(ctx context.Context, provider, id string) (bool, error) {
	_ = ctx
	_, ok := l.records.Get(recordKey(provider, id))
	return ok, nil
}

// MarkProcessed is an atomic insert-if-absent, closing the
// check-then-act race between concurrent deliveries of the same id.
func (l *MemoryLedger) MarkProcessed(ctx context.Context, provider, id string, outcome Outcome) error {
	_ = ctx
	l.records.SetIfAbsent(recordKey(provider, id), outcome, l.ttl)
	return nil
}
