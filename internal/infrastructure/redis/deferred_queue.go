package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/DanielPopoola/claims-settlement/internal/application"
	"github.com/redis/go-redis/v9"
)

const (
	deferredScheduleKey = "settlement:deferred"
	deferredItemsKey    = "settlement:deferred:items"
)

// DeferredQueue keeps deferred settlements in a sorted set scored by their
// next attempt time, with the payloads in a hash keyed by item ID.
// Enqueueing an ID that is already queued replaces it.
type DeferredQueue struct {
	client *redis.Client
	logger *slog.Logger
}

var _ application.DeferredQueue = (*DeferredQueue)(nil)

func NewDeferredQueue(client *redis.Client, logger *slog.Logger) *DeferredQueue {
	return &DeferredQueue{client: client, logger: logger}
}

func (q *DeferredQueue) Enqueue(ctx context.Context, item application.DeferredSettlement) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal deferred settlement: %w", err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, deferredItemsKey, item.ID, payload)
		pipe.ZAdd(ctx, deferredScheduleKey, redis.Z{
			Score:  float64(item.NextAttemptAt.UnixMilli()),
			Member: item.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("enqueue deferred settlement %s: %w", item.ID, err)
	}
	return nil
}

// Due returns up to limit items whose next attempt is at or before now,
// earliest first. Items stay queued until removed or re-enqueued. Entries
// whose payload is missing or cannot be decoded are dropped.
func (q *DeferredQueue) Due(ctx context.Context, now time.Time, limit int) ([]application.DeferredSettlement, error) {
	ids, err := q.client.ZRangeByScore(ctx, deferredScheduleKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("query due settlements: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	payloads, err := q.client.HMGet(ctx, deferredItemsKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("load due settlements: %w", err)
	}

	items := make([]application.DeferredSettlement, 0, len(payloads))
	for i, raw := range payloads {
		s, ok := raw.(string)
		if !ok {
			q.drop(ctx, ids[i], "missing payload", nil)
			continue
		}
		var item application.DeferredSettlement
		if err := json.Unmarshal([]byte(s), &item); err != nil {
			q.drop(ctx, ids[i], "undecodable payload", err)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (q *DeferredQueue) drop(ctx context.Context, id, reason string, cause error) {
	q.logger.WarnContext(ctx, "dropping deferred settlement",
		"id", id,
		"reason", reason,
		"error", cause,
	)
	if err := q.Remove(ctx, application.DeferredSettlement{ID: id}); err != nil {
		q.logger.ErrorContext(ctx, "failed to drop deferred settlement", "id", id, "error", err)
	}
}

func (q *DeferredQueue) Remove(ctx context.Context, item application.DeferredSettlement) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, deferredScheduleKey, item.ID)
		pipe.HDel(ctx, deferredItemsKey, item.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove deferred settlement %s: %w", item.ID, err)
	}
	return nil
}
