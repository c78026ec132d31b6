package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-court-reservation/internal/pkg/metrics"
)

var (
	ErrLockNotAcquired = errors.New("ロックを取得できませんでした")
	ErrLockNotOwned    = errors.New("ロックの所有者ではありません")
)

// Lock は取得済みのロック
type Lock interface {
	Release(ctx context.Context) error
	Extend(ctx context.Context, ttl time.Duration) error
}

// Locker はキー単位の排他を提供する
type Locker interface {
	AcquireLockWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (Lock, error)
}

const releaseScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`

const extendScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`

// DistributedLock は Redis を使用した分散ロック
type DistributedLock struct {
	client  *redis.Client
	key     string
	value   string
	ttl     time.Duration
	metrics *metrics.Metrics
}

// LockManager は分散ロックを管理する
type LockManager struct {
	client  *redis.Client
	metrics *metrics.Metrics
}

func NewLockManager(client *redis.Client, m *metrics.Metrics) *LockManager {
	return &LockManager{client: client, metrics: m}
}

// AcquireLock はロックを取得する
func (m *LockManager) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*DistributedLock, error) {
	started := time.Now()
	lockKey := fmt.Sprintf("lock:%s", key)
	lockValue := uuid.New().String()

	// SetNX を使用してロックを取得（キーが存在しない場合のみ設定）
	ok, err := m.client.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		m.metrics.ObserveLock("acquire", "failed", started)
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	if !ok {
		m.metrics.ObserveLock("acquire", "failed", started)
		return nil, ErrLockNotAcquired
	}
	m.metrics.ObserveLock("acquire", "success", started)

	return &DistributedLock{
		client:  m.client,
		key:     lockKey,
		value:   lockValue,
		ttl:     ttl,
		metrics: m.metrics,
	}, nil
}

// AcquireLockWithRetry はリトライ付きでロックを取得する
func (m *LockManager) AcquireLockWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (Lock, error) {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		lock, err := m.AcquireLock(ctx, key, ttl)
		if err == nil {
			return lock, nil
		}
		lastErr = err
		if !errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, lastErr
}

// Release はロックを解放する（Lua スクリプトで所有者確認と削除をアトミックに実行）
func (l *DistributedLock) Release(ctx context.Context) error {
	started := time.Now()
	result, err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.value).Int()
	if err != nil {
		l.metrics.ObserveLock("release", "failed", started)
		return fmt.Errorf("ロック解放に失敗: %w", err)
	}
	if result == 0 {
		l.metrics.ObserveLock("release", "failed", started)
		return ErrLockNotOwned
	}
	l.metrics.ObserveLock("release", "success", started)
	return nil
}

// Extend はロックの有効期限を延長する
func (l *DistributedLock) Extend(ctx context.Context, ttl time.Duration) error {
	result, err := l.client.Eval(ctx, extendScript, []string{l.key}, l.value, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("ロック延長に失敗: %w", err)
	}
	if result == 0 {
		return ErrLockNotOwned
	}
	l.ttl = ttl
	return nil
}
