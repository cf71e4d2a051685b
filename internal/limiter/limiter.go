package limiter

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/glowmart/cart-session/internal/api/middleware"
	"github.com/glowmart/cart-session/internal/config"
	"github.com/redis/go-redis/v9"
)

// MutationLimiter bounds how many quantity mutations a single cart line may
// emit inside a sliding window. Stepper clicks are deliberately not debounced
// client-side (each click is one delta request), so this is the operational
// backstop against a stuck key or a hostile client.
type MutationLimiter interface {
	Allow(ctx context.Context, userID, lineID string) (bool, int, error)
}

type redisLimiter struct {
	client *redis.Client
	cfg    *config.RateConfig
	now    func() time.Time
}

func NewMutationLimiter(client *redis.Client, cfg *config.RateConfig) MutationLimiter {
	return &redisLimiter{client: client, cfg: cfg, now: time.Now}
}

// Allow returns whether the mutation may proceed and, when it may not, the
// number of seconds to wait before retrying.
func (r *redisLimiter) Allow(ctx context.Context, userID, lineID string) (bool, int, error) {

	logger := middleware.LoggerFromContext(ctx)

	key := fmt.Sprintf("cart_mutations:%s:%s", userID, lineID)

	ts := r.now()
	now := ts.Unix()
	windowStart := now - int64(r.cfg.WindowSize.Seconds())

	pipe := r.client.Pipeline()

	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart))
	// The member must be unique per click: stepper storms land several
	// mutations inside the same second, and a second-resolution member would
	// dedupe them all into one entry.
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: strconv.FormatInt(ts.UnixNano(), 10)})
	count := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, r.cfg.WindowSize)

	if _, err := pipe.Exec(ctx); err != nil {
		logger.Error("Redis pipeline execution failed for mutation limit", slog.String("key", key), slog.Any("error", err))
		return false, 0, fmt.Errorf("redis pipeline error for mutation limit check: %w", err)
	}

	attempts := count.Val()

	if attempts >= r.cfg.MaxMutations {

		scores, err := r.client.ZRangeArgsWithScores(ctx, redis.ZRangeArgs{
			Key: key, Start: 0, Stop: 0,
		}).Result()
		if err != nil || len(scores) == 0 {
			logger.Error("Failed to get oldest mutation time for rate limit", slog.String("key", key), slog.Any("error", err))
			return false, int(r.cfg.WindowSize.Seconds()), fmt.Errorf("failed to get oldest mutation time: %w", err)
		}

		oldestTimestamp := int64(scores[0].Score)

		retryAfter := max((oldestTimestamp+int64(r.cfg.WindowSize.Seconds()))-now, 0)

		logger.Warn("Mutation rate limit exceeded for line",
			slog.String("line_id", lineID), slog.Int64("attempts", attempts))

		return false, int(retryAfter), nil
	}

	return true, 0, nil
}
