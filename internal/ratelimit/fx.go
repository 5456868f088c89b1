package ratelimit

import (
	"github.com/veritasweb/payments/internal/clock"
	"github.com/veritasweb/payments/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("rate.limit",
	fx.Provide(provideLimiter),
)

func provideLimiter(cfg config.Config, clk clock.Clock, log *zap.Logger) *FixedWindowLimiter {
	return NewFixedWindowLimiter(cfg.RateLimitMaxPerWindow, cfg.RateLimitWindow, cfg.RateLimitMaxKeys, clk, log)
}
