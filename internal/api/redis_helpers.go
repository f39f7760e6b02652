package api

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// loginCounter 是登录限流所需的最小 redis 子集，便于在测试中替换。
type loginCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// incrWithTTL 自增计数键；首次创建时设置过期时间，形成滚动窗口。
// Expire 失败不回滚计数，窗口宁可偏紧也不放飞。
func incrWithTTL(ctx context.Context, client loginCounter, key string, ttl time.Duration) (int64, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		_ = client.Expire(ctx, key, ttl).Err()
	}
	return count, nil
}
