package checkout

import (
	"net/http"

	"github.com/veritasweb/payments/internal/config"
	"github.com/veritasweb/payments/internal/credential"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("checkout",
	fx.Provide(
		func(cfg config.Config, log *zap.Logger) *StripeClient {
			httpClient := &http.Client{Timeout: cfg.OutboundTimeout}
			return NewStripeClient(cfg.Stripe, cfg.Domain, cfg.LicenseSecret, httpClient, log)
		},
		func(cfg config.Config, tokens *credential.Source, log *zap.Logger) *PayPalClient {
			httpClient := &http.Client{Timeout: cfg.OutboundTimeout}
			return NewPayPalClient(cfg.PayPal, tokens, httpClient, log)
		},
	),
)
