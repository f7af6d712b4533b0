package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/constants"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
)

var ErrPriceNotFound = errors.New("price not found")

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisCache keeps recent trade activity and display prices.
type RedisCache struct {
	client redis.UniversalClient
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

// Client exposes the underlying connection for stores sharing it.
func (r *RedisCache) Client() redis.UniversalClient { return r.client }

func (r *RedisCache) RecordAttempt(ctx context.Context, attempt *models.TradeAttempt) error {
	return r.AddRecentAttempt(ctx, attempt)
}

// AddRecentAttempt pushes attempt onto the capped recent list.
func (r *RedisCache) AddRecentAttempt(ctx context.Context, attempt *models.TradeAttempt) error {
	data, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, constants.RedisKeyRecentAttempts, data)
	pipe.LTrim(ctx, constants.RedisKeyRecentAttempts, 0, constants.MaxRecentAttempts-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("add recent attempt: %w", err)
	}
	return nil
}

func (r *RedisCache) GetRecentAttempts(ctx context.Context, limit int64) ([]*models.TradeAttempt, error) {
	if limit <= 0 || limit > constants.MaxRecentAttempts {
		limit = constants.MaxRecentAttempts
	}

	vals, err := r.client.LRange(ctx, constants.RedisKeyRecentAttempts, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("get recent attempts: %w", err)
	}

	out := make([]*models.TradeAttempt, 0, len(vals))
	for _, v := range vals {
		var a models.TradeAttempt
		if err := json.Unmarshal([]byte(v), &a); err != nil {
			continue
		}
		out = append(out, &a)
	}
	return out, nil
}

func (r *RedisCache) SetPrice(ctx context.Context, snap models.PriceSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal price: %w", err)
	}
	if err := r.client.Set(ctx, priceKey(snap.Symbol), data, constants.PriceSnapshotTTL).Err(); err != nil {
		return fmt.Errorf("set price: %w", err)
	}
	return nil
}

func (r *RedisCache) GetPrice(ctx context.Context, symbol string) (models.PriceSnapshot, error) {
	val, err := r.client.Get(ctx, priceKey(symbol)).Result()
	if err == redis.Nil {
		return models.PriceSnapshot{}, ErrPriceNotFound
	}
	if err != nil {
		return models.PriceSnapshot{}, fmt.Errorf("get price: %w", err)
	}

	var snap models.PriceSnapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return models.PriceSnapshot{}, fmt.Errorf("unmarshal price: %w", err)
	}
	return snap, nil
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func priceKey(symbol string) string {
	return constants.RedisKeyPricePrefix + strings.ToUpper(symbol)
}
