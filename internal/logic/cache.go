package logic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	matchKeyPrefix = "prediction:"
	weekKeyPrefix  = "predictions:week:"

	// ActivationChannel carries the version id of every newly activated model.
	ActivationChannel = "predictions:model-activated"

	scanBatch = 500
)

func matchCacheKey(matchID string, diagnostic bool) string {
	return matchKeyPrefix + matchID + ":" + modeName(diagnostic)
}

func weekCacheKey(season, week int, opts WeekOptions) string {
	return fmt.Sprintf("%s%d:%d:%s%s", weekKeyPrefix, season, week, modeName(opts.AllowPlayed), opts.Simulation.key())
}

func modeName(diagnostic bool) string {
	if diagnostic {
		return "diagnostic"
	}
	return "live"
}

type redisCache struct {
	client RedisClient
	logger *zap.SugaredLogger
}

// NewRedisCache stores values as JSON strings.
func NewRedisCache(client RedisClient, logger *zap.Logger) PredictionCache {
	return &redisCache{client: client, logger: logger.Sugar()}
}

func (c *redisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// DeletePrefix removes every key under prefix using incremental SCAN.
func (c *redisCache) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			return deleted, fmt.Errorf("scan %s*: %w", prefix, err)
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("delete %s*: %w", prefix, err)
			}
			deleted += int(n)
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	c.logger.Infow("Purged cache prefix", "prefix", prefix, "deleted", deleted)
	return deleted, nil
}

// PurgePredictions drops every cached match and week prediction.
func PurgePredictions(ctx context.Context, cache PredictionCache) error {
	var errs []error
	for _, prefix := range []string{matchKeyPrefix, weekKeyPrefix} {
		if _, err := cache.DeletePrefix(ctx, prefix); err != nil {
			cacheErrors.WithLabelValues("purge").Inc()
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type redisNotifier struct {
	client RedisClient
}

// NewActivationNotifier publishes activations on ActivationChannel.
func NewActivationNotifier(client RedisClient) ActivationNotifier {
	return &redisNotifier{client: client}
}

func (n *redisNotifier) NotifyActivated(ctx context.Context, version string) error {
	return n.client.Publish(ctx, ActivationChannel, version).Err()
}

// ListenForActivations reloads the service for every activation message until
// ctx ends or the channel closes.
func ListenForActivations(ctx context.Context, messages <-chan *redis.Message, svc PredictionService, logger *zap.Logger) {
	log := logger.Sugar()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			log.Infow("Model activation received, reloading", "version", msg.Payload)
			svc.Reload()
		}
	}
}
