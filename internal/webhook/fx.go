package webhook

import (
	"net/http"

	"github.com/veritasweb/payments/internal/audit"
	"github.com/veritasweb/payments/internal/clock"
	"github.com/veritasweb/payments/internal/config"
	"github.com/veritasweb/payments/internal/credential"
	"github.com/veritasweb/payments/internal/subscriber"
	"github.com/veritasweb/payments/internal/webhook/adapters"
	"github.com/veritasweb/payments/internal/webhook/adapters/paypal"
	"github.com/veritasweb/payments/internal/webhook/adapters/stripe"
	"github.com/veritasweb/payments/internal/webhook/dispatch"
	"github.com/veritasweb/payments/internal/webhook/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("webhook",
	fx.Provide(
		provideRegistry,
		fx.Annotate(
			func(cfg config.Config) bool { return cfg.StrictVerification },
			fx.ResultTags(`name:"strict_verification"`),
		),
		func(subs *subscriber.Ledger, auditSvc *audit.Service, log *zap.Logger) *dispatch.Router {
			return dispatch.NewRouter(subs, auditSvc, log)
		},
		service.NewService,
	),
)

func provideRegistry(cfg config.Config, tokens *credential.Source, clk clock.Clock) *adapters.Registry {
	httpClient := &http.Client{Timeout: cfg.OutboundTimeout}
	return adapters.NewRegistry(
		stripe.New(cfg.Stripe.WebhookSecret, cfg.ReplayTolerance, cfg.Stripe.LiveMode, clk),
		paypal.New(cfg.PayPal.WebhookID, cfg.PayPal.BaseURL(), tokens, httpClient, clk),
	)
}
