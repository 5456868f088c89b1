package subscriber

import (
	"sync"

	"github.com/google/uuid"
	"github.com/veritasweb/payments/internal/clock"
	"go.uber.org/zap"
)

// Ledger holds per-subscriber state and applies lifecycle transitions.
// Mutations happen only through the event dispatcher. Records are never
// deleted, only transitioned to canceled.
type Ledger struct {
	mu      sync.RWMutex
	records map[string]Subscriber
	clock   clock.Clock
	log     *zap.Logger
}

// NewLedger builds an empty in-memory subscription ledger.
func NewLedger(clk clock.Clock, log *zap.Logger) *Ledger {
	return &Ledger{
		records: map[string]Subscriber{},
		clock:   clk,
		log:     log.Named("subscriber.ledger"),
	}
}

// Activate creates (or overwrites) the record for the contact with a
// fresh subscriber id and active status.
func (l *Ledger) Activate(email string, customerRef, subscriptionRef *string, planKey string) Subscriber {
	sub := Subscriber{
		ID:              uuid.New(),
		Email:           email,
		CustomerRef:     customerRef,
		SubscriptionRef: subscriptionRef,
		Plan:            PlanFromKey(planKey),
		Status:          StatusActive,
		ActivatedAt:     l.clock.Now(),
	}

	l.mu.Lock()
	l.records[email] = sub
	l.mu.Unlock()

	l.log.Info("subscription activated",
		zap.String("email", email),
		zap.String("plan", planKey),
		zap.String("subscriber_id", sub.ID.String()),
	)
	return sub
}

// SetStatus mutates the status in place when a record exists, returning
// false otherwise.
func (l *Ledger) SetStatus(email string, status Status) bool {
	l.mu.Lock()
	sub, ok := l.records[email]
	if ok {
		sub.Status = status
		l.records[email] = sub
	}
	l.mu.Unlock()

	if ok {
		l.log.Info("subscription status updated",
			zap.String("email", email),
			zap.String("status", string(status)),
		)
	}
	return ok
}

// Cancel transitions the record to canceled. Resubscription creates a
// logically new activation.
func (l *Ledger) Cancel(email string) bool {
	return l.SetStatus(email, StatusCanceled)
}

// GetByEmail returns the record for the contact, if any.
func (l *Ledger) GetByEmail(email string) (Subscriber, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sub, ok := l.records[email]
	return sub, ok
}
