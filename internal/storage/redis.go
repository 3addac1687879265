package storage

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	myErr "storefront-cart/internal/types/errors"
)

// RedisStorage хранит корзины в Redis, ttl продлевается при каждой записи
type RedisStorage struct {
	RedisClient *redis.Client
	Logger      *zap.SugaredLogger
	ttl         time.Duration
}

func NewRedisStorage(redisClient *redis.Client, logger *zap.SugaredLogger, ttl time.Duration) *RedisStorage {
	return &RedisStorage{
		RedisClient: redisClient,
		Logger:      logger,
		ttl:         ttl,
	}
}

func (rs *RedisStorage) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := rs.RedisClient.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, myErr.ErrNotFound
		}

		rs.Logger.Error(
			"Failed get value from Redis",
			zap.Error(err),
			zap.String("key", key),
		)
		return nil, err
	}

	return data, nil
}

func (rs *RedisStorage) Set(ctx context.Context, key string, value []byte) error {
	// ttl == 0 означает хранение без срока жизни
	if err := rs.RedisClient.Set(ctx, key, value, rs.ttl).Err(); err != nil {
		rs.Logger.Error(
			"Failed save value to Redis",
			zap.Error(err),
			zap.String("key", key),
		)
		return err
	}

	return nil
}

func (rs *RedisStorage) Delete(ctx context.Context, key string) error {
	if err := rs.RedisClient.Del(ctx, key).Err(); err != nil {
		rs.Logger.Error(
			"Failed delete value from Redis",
			zap.Error(err),
			zap.String("key", key),
		)
		return err
	}

	return nil
}
