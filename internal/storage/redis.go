package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/oriys/faultline/internal/config"
	"github.com/oriys/faultline/internal/domain"
	"github.com/redis/go-redis/v9"
)

// spoolKey 是溢出暂存队列的 Redis List 键。
const spoolKey = "faultline:spool"

// RedisStore 是基于 Redis 的溢出暂存队列。
// 归档库不可用时中继将报告推入暂存队列，恢复后由排水协程取回重试。
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore 建立 Redis 连接。
func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// Close 关闭 Redis 连接。
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// PushSpool 将报告推入溢出暂存队列尾部。
func (s *RedisStore) PushSpool(ctx context.Context, rep *domain.Report) error {
	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := s.client.RPush(ctx, spoolKey, data).Err(); err != nil {
		return fmt.Errorf("failed to spool report: %w", err)
	}
	return nil
}

// PopSpool 从暂存队列头部取出一份报告。
// 队列为空时返回 (nil, nil)。
func (s *RedisStore) PopSpool(ctx context.Context) (*domain.Report, error) {
	data, err := s.client.LPop(ctx, spoolKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop spooled report: %w", err)
	}

	rep := &domain.Report{}
	if err := json.Unmarshal(data, rep); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidEnvelope, err)
	}
	return rep, nil
}

// SpoolLen 返回暂存队列长度。
func (s *RedisStore) SpoolLen(ctx context.Context) (int64, error) {
	return s.client.LLen(ctx, spoolKey).Result()
}
