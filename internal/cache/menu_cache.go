// Package cache はRedisによるメニュー一覧の読み取りキャッシュを提供する。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/jwtpizza/internal/model"
)

// menuKey はメニュー一覧を保存するキー。
const menuKey = "jwtpizza:menu"

// MenuCache はメニュー一覧のキャッシュ操作を定義する。
type MenuCache interface {
	// Get はキャッシュされたメニューを返す。キャッシュがない場合は (nil, false, nil)。
	Get(ctx context.Context) ([]*model.MenuItem, bool, error)
	// Set はメニューをTTL付きで保存する。既存のエントリは上書きする。
	Set(ctx context.Context, items []*model.MenuItem) error
	// Fill はエントリが存在しない場合に限りメニューを保存する。
	// 読み取り側の補充に使い、更新側がSetした新しいメニューを古い値で上書きしない。
	Fill(ctx context.Context, items []*model.MenuItem) error
	// Invalidate はメニューのキャッシュを削除する。
	Invalidate(ctx context.Context) error
}

// RedisMenuCache はgo-redisによるMenuCacheの実装。
// nilレシーバーはキャッシュ無効として振る舞い、常にミスを返す。
type RedisMenuCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisMenuCache はRedisMenuCacheを生成する。
func NewRedisMenuCache(client *redis.Client, ttl time.Duration) *RedisMenuCache {
	return &RedisMenuCache{client: client, ttl: ttl}
}

// Connect はREDIS_URL形式の接続文字列からクライアントを生成し、疎通を確認する。
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func (c *RedisMenuCache) Get(ctx context.Context) ([]*model.MenuItem, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}

	raw, err := c.client.Get(ctx, menuKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get menu cache: %w", err)
	}

	var items []*model.MenuItem
	if err := json.Unmarshal(raw, &items); err != nil {
		// 壊れたエントリはミス扱いにして再取得させる
		slog.Warn("discarding corrupt menu cache", slog.String("error", err.Error()))
		return nil, false, nil
	}
	return items, true, nil
}

func (c *RedisMenuCache) Set(ctx context.Context, items []*model.MenuItem) error {
	if c == nil || c.client == nil {
		return nil
	}

	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode menu cache: %w", err)
	}
	if err := c.client.Set(ctx, menuKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set menu cache: %w", err)
	}
	return nil
}

func (c *RedisMenuCache) Fill(ctx context.Context, items []*model.MenuItem) error {
	if c == nil || c.client == nil {
		return nil
	}

	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode menu cache: %w", err)
	}
	if err := c.client.SetNX(ctx, menuKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to fill menu cache: %w", err)
	}
	return nil
}

func (c *RedisMenuCache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, menuKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate menu cache: %w", err)
	}
	return nil
}
