package cache

import (
	"context"
	"fmt"
	"time"

	"crowdfunding/internal/config"
	"crowdfunding/internal/logger"

	"github.com/go-redis/redis/v8"
)

// NewRedis 创建 Redis 客户端并检查连通性
func NewRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}

	logger.Info("[Redis] 连接成功 addr=%s", client.Options().Addr)
	return client, nil
}

// MustRedis 连接失败直接退出
func MustRedis(cfg *config.RedisConfig) *redis.Client {
	client, err := NewRedis(cfg)
	if err != nil {
		logger.Fatal("[Redis] %v", err)
	}
	return client
}
