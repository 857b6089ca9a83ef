package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rift-go/pkg/log"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	// DefaultTTL 是锁在未续期时自动过期的时间，防止持有者崩溃后死锁。
	DefaultTTL = 30 * time.Second
	// retryInterval 是抢锁失败后的重试间隔。
	retryInterval = 50 * time.Millisecond
)

// 只有持有者才能删除锁。
// KEYS[1]: 锁 key, ARGV[1]: owner
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`)

// 只有持有者才能续期。
// KEYS[1]: 锁 key, ARGV[1]: owner, ARGV[2]: 过期毫秒数
var renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("pexpire", KEYS[1], ARGV[2])
else
    return 0
end
`)

// Redis 是基于 SET NX PX 的分布式锁，持有期间后台按 ttl/3 续期。
type Redis struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
	wait   time.Duration
}

// NewRedis 创建 Redis 锁。wait 为 0 时只受 ctx 约束。
func NewRedis(rdb redis.UniversalClient, prefix string, ttl, wait time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{rdb: rdb, prefix: prefix, ttl: ttl, wait: wait}
}

// Acquire 获取 key 对应的锁。
func (l *Redis) Acquire(ctx context.Context, key string) (Unlocker, error) {
	lockKey := fmt.Sprintf("%slock:%s", l.prefix, key)
	owner := uuid.NewString()

	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	for {
		ok, err := l.rdb.SetNX(ctx, lockKey, owner, l.ttl).Result()
		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return nil, ErrTimeout
			}
			return nil, fmt.Errorf("acquire lock %s: %w", lockKey, err)
		}
		if ok {
			break
		}
		select {
		case <-time.After(retryInterval):
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return nil, ErrTimeout
			}
			return nil, ctx.Err()
		}
	}

	renewCtx, stopRenew := context.WithCancel(context.Background())
	go l.renew(renewCtx, lockKey, owner)

	var once sync.Once
	return UnlockFunc(func() {
		once.Do(func() {
			stopRenew()
			if err := releaseScript.Run(context.Background(), l.rdb, []string{lockKey}, owner).Err(); err != nil {
				log.Errorf("[Lock] 释放锁失败, key: %s, error: %v", lockKey, err)
			}
		})
	}), nil
}

// renew 在锁被释放前周期性延长过期时间。续期失败时停止，锁随后自然过期。
func (l *Redis) renew(ctx context.Context, lockKey, owner string) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := renewScript.Run(ctx, l.rdb, []string{lockKey}, owner, l.ttl.Milliseconds()).Int()
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				log.Warnf("[Lock] 续期失败, key: %s, error: %v", lockKey, err)
				return
			}
			if n == 0 {
				log.Warnf("[Lock] 锁已丢失, key: %s", lockKey)
				return
			}
		}
	}
}
