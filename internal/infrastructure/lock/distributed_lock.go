package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crowdfunding/internal/logger"
	"crowdfunding/pkg/idgen"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 分布式锁
// ============================================================================
//
// 多实例部署时，同一个项目的出资/停止请求可能落到不同实例。
// 进程内的互斥只能管住本实例，跨实例靠 Redis 锁：
//
//   加锁：SET key value NX EX timeout
//     - NX 保证互斥，EX 防止持有者崩溃后死锁
//     - value 为请求标识，释放时校验，避免删掉别人的锁
//
//   释放：Lua 脚本里先比对 value 再 DEL，两步在 Redis 内原子执行
//
// ============================================================================

var (
	ErrLockFailed = errors.New("获取分布式锁失败")
	ErrNotHeld    = errors.New("锁已过期或被他人持有")
)

var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// DistributedLock 分布式锁
type DistributedLock struct {
	client     redis.Cmdable
	key        string
	value      string // 锁持有者标识
	expiration time.Duration
}

func NewDistributedLock(client redis.Cmdable, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 非阻塞获取锁
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock 阻塞获取锁，最多重试 maxRetries 次
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		ok, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁。锁已过期或已被他人持有时返回 ErrNotHeld
func (l *DistributedLock) Unlock(ctx context.Context) error {
	n, err := unlockScript.Run(ctx, l.client, []string{l.key}, l.value).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

func (l *DistributedLock) Key() string {
	return l.key
}

// ============================================================================
// 按项目加锁
// ============================================================================

// ProjectLocker 为每个项目创建独立的锁
//
// 锁粒度是项目：同一项目的迁移排队，不同项目可以并发进入。
// 出资人之间不冲突，冲突点只在项目的 total_fund 和资金池账户上。
type ProjectLocker struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewProjectLocker(client redis.Cmdable, ttl time.Duration) *ProjectLocker {
	return &ProjectLocker{client: client, ttl: ttl}
}

// NewProjectLock requestID 作为锁的 value，便于追踪是哪个请求持有锁
func (p *ProjectLocker) NewProjectLock(projectID, requestID string) *DistributedLock {
	key := fmt.Sprintf("crowdfund:lock:project:%s", projectID)
	return NewDistributedLock(p.client, key, requestID, p.ttl)
}

// Locker 服务层持有的锁接口，Acquire 返回释放函数
type Locker interface {
	Acquire(ctx context.Context, projectID string) (release func(), err error)
}

const acquireRetryInterval = 20 * time.Millisecond

// Acquire 在锁的 TTL 内持续重试，拿不到返回 ErrLockFailed
func (p *ProjectLocker) Acquire(ctx context.Context, projectID string) (func(), error) {
	l := p.NewProjectLock(projectID, idgen.GenerateRequestID())
	retries := int(p.ttl/acquireRetryInterval) + 1
	if err := l.Lock(ctx, acquireRetryInterval, retries); err != nil {
		return nil, err
	}
	return func() {
		// 请求的 ctx 可能已取消，释放锁用独立的 ctx
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := l.Unlock(ctx); err != nil {
			logger.Warn("[Lock] 释放锁失败 key=%s err=%v", l.Key(), err)
		}
	}, nil
}
