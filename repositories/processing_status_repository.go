package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisProcessingStatusRepository 把文件的转码状态镜像到 Redis，
// 轮询接口不必打到 MySQL。File 行仍是权威数据。
type RedisProcessingStatusRepository struct {
	redis *redis.Client
}

func NewRedisProcessingStatusRepository(redisClient *redis.Client) *RedisProcessingStatusRepository {
	return &RedisProcessingStatusRepository{redis: redisClient}
}

func processingStatusKey(fileID uint) string {
	return fmt.Sprintf("file:%d:processing", fileID)
}

func (r *RedisProcessingStatusRepository) SetStatus(ctx context.Context, fileID uint, status string, expireSeconds int) error {
	var ttl time.Duration
	if expireSeconds > 0 {
		ttl = time.Duration(expireSeconds) * time.Second
	}
	return r.redis.Set(ctx, processingStatusKey(fileID), status, ttl).Err()
}

// GetStatus 未设置标记时返回空串且不报错。
func (r *RedisProcessingStatusRepository) GetStatus(ctx context.Context, fileID uint) (string, error) {
	status, err := r.redis.Get(ctx, processingStatusKey(fileID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	return status, nil
}

func (r *RedisProcessingStatusRepository) Clear(ctx context.Context, fileID uint) error {
	return r.redis.Del(ctx, processingStatusKey(fileID)).Err()
}
