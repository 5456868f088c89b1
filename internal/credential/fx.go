package credential

import (
	"net/http"

	"github.com/veritasweb/payments/internal/clock"
	"github.com/veritasweb/payments/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("credential",
	fx.Provide(provideSource),
)

func provideSource(cfg config.Config, clk clock.Clock, log *zap.Logger) *Source {
	httpClient := &http.Client{Timeout: cfg.OutboundTimeout}
	return NewSource(cfg.PayPal.ClientID, cfg.PayPal.ClientSecret, cfg.PayPal.BaseURL(), httpClient, clk, log)
}
