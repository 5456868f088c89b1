package audit

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/veritasweb/payments/internal/clock"
	"github.com/veritasweb/payments/internal/observability/logger"
	"go.uber.org/zap"
)

// Severity levels for audit entries.
const (
	SeverityInfo = "info"
	SeverityHigh = "high"
)

// Entry is one immutable audit record for a payment event.
type Entry struct {
	ID          snowflake.ID
	Provider    string
	Event       string
	Email       string
	AmountCents *int64
	Severity    string
	Hash        string
	LoggedAt    time.Time
}

// Service emits structured audit entries and retains a bounded window of
// recent ones for manual review (disputes).
type Service struct {
	genID  *snowflake.Node
	clock  clock.Clock
	log    *zap.Logger
	mu     sync.Mutex
	recent []Entry
	limit  int
}

// NewService builds the audit sink.
func NewService(genID *snowflake.Node, clk clock.Clock, log *zap.Logger) *Service {
	return &Service{
		genID: genID,
		clock: clk,
		log:   log.Named("audit"),
		limit: 256,
	}
}

// Log records an audit entry. Email defaults to "SYSTEM" for entries not
// tied to a contact.
func (s *Service) Log(ctx context.Context, provider, event, email string, amountCents *int64, severity string) Entry {
	if strings.TrimSpace(email) == "" {
		email = "SYSTEM"
	}
	if severity == "" {
		severity = SeverityInfo
	}

	entry := Entry{
		ID:          s.genID.Generate(),
		Provider:    provider,
		Event:       event,
		Email:       email,
		AmountCents: amountCents,
		Severity:    severity,
		Hash:        integrityHash(),
		LoggedAt:    s.clock.Now(),
	}

	s.mu.Lock()
	s.recent = append(s.recent, entry)
	if len(s.recent) > s.limit {
		s.recent = s.recent[len(s.recent)-s.limit:]
	}
	s.mu.Unlock()

	fields := []zap.Field{
		zap.String("entry_id", entry.ID.String()),
		zap.String("provider", provider),
		zap.String("event", event),
		zap.String("email", email),
		zap.String("hash", entry.Hash),
		zap.String("node", "payment_gateway"),
	}
	if amountCents != nil {
		fields = append(fields, zap.Int64("amount_cents", *amountCents))
	}

	log := logger.WithContext(ctx, s.log)
	if severity == SeverityHigh {
		log.Warn("audit entry", fields...)
	} else {
		log.Info("audit entry", fields...)
	}
	return entry
}

// Recent returns a copy of the retained entries, newest last.
func (s *Service) Recent() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.recent))
	copy(out, s.recent)
	return out
}

// integrityHash tags each entry with a random correlation hash in the
// gateway's 0x4121 format.
func integrityHash() string {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	return fmt.Sprintf("0x4121:%016x", binary.BigEndian.Uint64(buf[:]))
}
