package audit

import (
	"github.com/bwmarrin/snowflake"
	"github.com/veritasweb/payments/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("audit",
	fx.Provide(
		func() (*snowflake.Node, error) { return snowflake.NewNode(1) },
		func(genID *snowflake.Node, clk clock.Clock, log *zap.Logger) *Service {
			return NewService(genID, clk, log)
		},
	),
)
