package idempotency

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/veritasweb/payments/internal/clock"
	"github.com/veritasweb/payments/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("idempotency",
	fx.Provide(provideLedger),
)

// provideLedger selects the durable redis store when REDIS_URL is set and
// falls back to the in-process map otherwise.
func provideLedger(cfg config.Config, clk clock.Clock, log *zap.Logger) (Ledger, error) {
	if cfg.RedisURL == "" {
		log.Named("idempotency").Info("no redis configured, using in-memory ledger")
		return NewMemoryLedger(clk), nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Named("idempotency").Warn("invalid redis url, using in-memory ledger", zap.Error(err))
		return NewMemoryLedger(clk), nil
	}
	return NewRedisLedger(redis.NewClient(opts), cfg.IdempotencyTTL, log), nil
}
