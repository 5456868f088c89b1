package idempotency

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisLedger stores records in an external cache with a TTL-expiring key.
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// NewRedisLedger builds a ledger on the given client. ttl defaults to
// seven days when non-positive.
func NewRedisLedger(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisLedger {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisLedger{
		client: client,
		ttl:    ttl,
		log:    log.Named("idempotency.redis"),
	}
}

func (l *RedisLedger) IsProcessed(ctx context.Context, provider, id string) (bool, error) {
	n, err := l.client.Exists(ctx, recordKey(provider, id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkProcessed inserts the record with SET NX so two concurrent
// deliveries cannot both claim first processing.
func (l *RedisLedger) MarkProcessed(ctx context.Context, provider, id string, outcome Outcome) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return err
	}
	stored, err := l.client.SetNX(ctx, recordKey(provider, id), payload, l.ttl).Result()
	if err != nil {
		return err
	}
	if !stored {
		l.log.Debug("record already present",
			zap.String("provider", provider),
			zap.String("notification_id", id),
		)
	}
	return nil
}
