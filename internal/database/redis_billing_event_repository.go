package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storyboard-server/internal/interfaces"
)

// Compile-time check to ensure redisBillingEventRepository implements BillingEventRepository
var _ interfaces.BillingEventRepository = (*redisBillingEventRepository)(nil)

// Вебхук доставляется at-least-once, поэтому обработанные события помечаются
// в Redis. TTL с запасом перекрывает окно повторных доставок провайдера.
const billingEventTTL = 30 * 24 * time.Hour

type redisBillingEventRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisBillingEventRepository creates a new Redis-backed BillingEventRepository.
func NewRedisBillingEventRepository(client *redis.Client, logger *zap.Logger) interfaces.BillingEventRepository {
	return &redisBillingEventRepository{
		client: client,
		logger: logger.Named("RedisBillingEventRepo"),
	}
}

// MarkProcessed помечает событие обработанным через SETNX: ровно один вызов
// для данного eventID вернет true, все повторные доставки — false.
func (r *redisBillingEventRepository) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	key := fmt.Sprintf("billing_event:%s", eventID)
	ok, err := r.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), billingEventTTL).Result()
	if err != nil {
		r.logger.Error("Failed to mark billing event as processed", zap.Error(err), zap.String("eventID", eventID))
		return false, fmt.Errorf("failed to mark billing event as processed: %w", err)
	}
	if !ok {
		r.logger.Warn("Duplicate billing event delivery ignored", zap.String("eventID", eventID))
	}
	return ok, nil
}
