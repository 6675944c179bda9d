package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/hitoshi/jwtpizza/internal/model"
)

var _ MenuCache = (*RedisMenuCache)(nil)

// nilのキャッシュは常にミスを返し、書き込みも失敗しない
func TestRedisMenuCache_NilIsDisabled(t *testing.T) {
	var c *RedisMenuCache
	ctx := context.Background()

	items, ok, err := c.Get(ctx)
	if err != nil || ok || items != nil {
		t.Errorf("Get() = %v, %v, %v; want nil, false, nil", items, ok, err)
	}
	if err := c.Set(ctx, []*model.MenuItem{{ID: 1}}); err != nil {
		t.Errorf("Set() error = %v", err)
	}
	if err := c.Fill(ctx, []*model.MenuItem{{ID: 1}}); err != nil {
		t.Errorf("Fill() error = %v", err)
	}
	if err := c.Invalidate(ctx); err != nil {
		t.Errorf("Invalidate() error = %v", err)
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	if _, err := Connect(context.Background(), "not a url"); err == nil {
		t.Error("expected error for invalid redis url")
	}
}

func TestRedisMenuCache_RoundTrip(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL is not set")
	}

	ctx := context.Background()
	client, err := Connect(ctx, url)
	if err != nil {
		t.Skipf("redis is not reachable: %v", err)
	}
	defer client.Close()

	c := NewRedisMenuCache(client, time.Minute)
	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	if _, ok, _ := c.Get(ctx); ok {
		t.Fatal("expected cache miss after invalidate")
	}

	want := []*model.MenuItem{
		{ID: 1, Title: "Veggie", Description: "A garden of delight", Image: "pizza1.png", Price: 0.0038},
		{ID: 2, Title: "Pepperoni", Description: "Spicy treat", Image: "pizza2.png", Price: 0.0042},
	}
	if err := c.Set(ctx, want); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok, err := c.Get(ctx)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if len(got) != 2 || got[1].Title != "Pepperoni" || got[0].Price != 0.0038 {
		t.Errorf("cached menu = %+v", got)
	}

	// Fillは既存のエントリを上書きしない
	if err := c.Fill(ctx, want[:1]); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if got, _, _ := c.Get(ctx); len(got) != 2 {
		t.Errorf("Fill overwrote existing entry: %+v", got)
	}

	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, ok, _ := c.Get(ctx); ok {
		t.Error("expected cache miss after invalidate")
	}

	// 空のキャッシュにはFillで保存できる
	if err := c.Fill(ctx, want[:1]); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if got, ok, _ := c.Get(ctx); !ok || len(got) != 1 {
		t.Errorf("Get() after Fill = %+v, %v", got, ok)
	}
	c.Invalidate(ctx)
}
