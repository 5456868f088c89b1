package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/veritasweb/payments/internal/idempotency"
	"github.com/veritasweb/payments/internal/observability/metrics"
	"github.com/veritasweb/payments/internal/ratelimit"
	"github.com/veritasweb/payments/internal/webhook/adapters"
	"github.com/veritasweb/payments/internal/webhook/dispatch"
	"github.com/veritasweb/payments/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Limiter  *ratelimit.FixedWindowLimiter
	Registry *adapters.Registry
	Ledger   idempotency.Ledger
	Router   *dispatch.Router
	Metrics  *metrics.Metrics

	StrictVerification bool `name:"strict_verification"`
}

// Service runs the full inbound pipeline: admission, authenticity,
// parse, idempotency, dispatch, record.
type Service struct {
	log      *zap.Logger
	limiter  *ratelimit.FixedWindowLimiter
	registry *adapters.Registry
	ledger   idempotency.Ledger
	router   *dispatch.Router
	metrics  *metrics.Metrics
	strict   bool
}

func NewService(p Params) *Service {
	return &Service{
		log:      p.Log.Named("webhook.service"),
		limiter:  p.Limiter,
		registry: p.Registry,
		ledger:   p.Ledger,
		router:   p.Router,
		metrics:  p.Metrics,
		strict:   p.StrictVerification,
	}
}

// Ingest processes one inbound notification. Errors reject the request
// with no side effects and no idempotency record; an accepted request
// always ends with exactly one MarkProcessed call.
func (s *Service) Ingest(ctx context.Context, provider string, payload []byte, headers http.Header, clientKey string) (domain.Result, error) {
	if !s.limiter.Allow(clientKey) {
		s.metrics.RateLimitDenied.Inc()
		return domain.Result{}, domain.ErrAdmissionDenied
	}

	adapter, ok := s.registry.Lookup(provider)
	if !ok {
		return domain.Result{}, domain.ErrUnknownProvider
	}

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		// Delegated verification errors (not definitive mismatches) are
		// tolerated unless strict verification is configured: an
		// unavailable verification endpoint must not drop provider
		// traffic. Mismatches always reject.
		if !s.strict && adapter.Delegated() && errors.Is(err, domain.ErrVerificationCall) {
			s.log.Warn("verification call failed, continuing unverified",
				zap.String("provider", adapter.Provider()),
				zap.Error(err),
			)
		} else {
			s.metrics.WebhooksRejected.WithLabelValues(adapter.Provider(), "unauthenticated").Inc()
			return domain.Result{}, err
		}
	}

	// Past the gate the request runs to completion even if the client
	// disconnects, so the ledgers are never left half-mutated.
	ctx = context.WithoutCancel(ctx)

	notification, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, domain.ErrEventIgnored) {
			return domain.Result{Status: domain.StatusIgnored, Message: "test event ignored in live mode"}, nil
		}
		s.metrics.WebhooksRejected.WithLabelValues(adapter.Provider(), "malformed").Inc()
		return domain.Result{}, err
	}

	log := s.log.With(
		zap.String("provider", notification.Provider),
		zap.String("notification_id", notification.ID),
		zap.String("event_type", notification.Type),
	)
	log.Info("notification received", zap.Bool("test", notification.Test))

	seen, err := s.ledger.IsProcessed(ctx, notification.Provider, notification.ID)
	if err != nil {
		// Ledger read errors degrade to at-least-once rather than
		// dropping the notification.
		log.Warn("idempotency lookup failed", zap.Error(err))
	}
	if seen {
		log.Info("duplicate delivery skipped")
		s.metrics.WebhooksDup.WithLabelValues(notification.Provider).Inc()
		return domain.Result{Status: domain.StatusDuplicate, Message: "already processed"}, nil
	}

	ref, dispatchErr := s.router.Dispatch(ctx, notification)

	outcome := idempotency.Success(ref, notification.ReceivedAt)
	if dispatchErr != nil {
		// Business-logic failures are recorded and still answered with
		// an accepting status so the provider does not redeliver an
		// event reprocessing cannot fix.
		log.Error("handler failed", zap.Error(dispatchErr))
		outcome = idempotency.Failed(dispatchErr.Error(), notification.ReceivedAt)
	}
	if err := s.ledger.MarkProcessed(ctx, notification.Provider, notification.ID, outcome); err != nil {
		log.Warn("idempotency record write failed", zap.Error(err))
	}

	s.metrics.WebhooksReceived.WithLabelValues(notification.Provider, notification.Type).Inc()

	if dispatchErr != nil {
		return domain.Result{Status: domain.StatusAccepted, Message: "processed with error"}, nil
	}
	return domain.Result{Status: domain.StatusAccepted, Message: "success"}, nil
}
