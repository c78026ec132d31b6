package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

// AvailabilityCache はコートごとの空き状況をハッシュで保持する
// キー: availability:{resourceID}、フィールド: 呼び出し側が決める日付単位の識別子
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAvailabilityCache は新しいAvailabilityCacheインスタンスを作成する
func NewAvailabilityCache(client *redis.Client, ttl time.Duration) *AvailabilityCache {
	return &AvailabilityCache{client: client, ttl: ttl}
}

// Get はキャッシュ済みの値を取得する
func (c *AvailabilityCache) Get(ctx context.Context, resourceID, field string) ([]byte, error) {
	val, err := c.client.HGet(ctx, c.key(resourceID), field).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	return val, nil
}

// Set は値を保存し、コート単位のキーの有効期限を更新する
func (c *AvailabilityCache) Set(ctx context.Context, resourceID, field string, value []byte) error {
	key := c.key(resourceID)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, field, value)
		pipe.Expire(ctx, key, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate はコートのキャッシュを無効化する
func (c *AvailabilityCache) Invalidate(ctx context.Context, resourceID string) error {
	if err := c.client.Del(ctx, c.key(resourceID)).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func (c *AvailabilityCache) key(resourceID string) string {
	return fmt.Sprintf("availability:%s", resourceID)
}
