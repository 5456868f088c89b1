package subscriber

import (
	"github.com/veritasweb/payments/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("subscriber",
	fx.Provide(func(clk clock.Clock, log *zap.Logger) *Ledger {
		return NewLedger(clk, log)
	}),
)
