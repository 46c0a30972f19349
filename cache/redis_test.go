package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreFromClient(rdb, "")
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)
	key := MustKey("AAPL", "2026-11-20", testDay)

	if _, err := store.Load(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() before Save = %v, want ErrNotFound", err)
	}
	if err := store.Save(ctx, key, []byte("data")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := store.Load(ctx, key)
	if err != nil || string(got) != "data" {
		t.Errorf("Load() = (%q, %v), want (data, nil)", got, err)
	}

	if !mr.Exists("snapgate:" + key.Path()) {
		t.Errorf("redis key snapgate:%s missing; keys = %v", key.Path(), mr.Keys())
	}
}

func TestRedisStore_ListAndNamespaces(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)
	_ = store.Save(ctx, MustKey("AAPL", "", testDay), []byte("12345"))
	_ = store.Save(ctx, MustKey("MSFT", "", testDay), []byte("1"))
	_ = store.Save(ctx, MustKey("AAPL", "", testDay).InNamespace("bug-1"), []byte("x"))
	_ = mr.Set("snapgate:live/garbage", "x")
	_ = mr.Set("other:live/AAPL__2026-10-16.snap", "x")

	listings, err := store.List(ctx, DefaultNamespace)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("List() = %d entries, want 2", len(listings))
	}
	var total int64
	for _, l := range listings {
		total += l.Size
	}
	if total != 6 {
		t.Errorf("total size = %d, want 6", total)
	}

	ns, err := store.Namespaces(ctx)
	if err != nil {
		t.Fatalf("Namespaces() error = %v", err)
	}
	if len(ns) != 2 || ns[0] != "bug-1" || ns[1] != "live" {
		t.Errorf("Namespaces() = %v, want [bug-1 live]", ns)
	}
}

func TestRedisStore_Delete(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t)
	key := MustKey("AAPL", "", testDay)
	_ = store.Save(ctx, key, []byte("x"))

	for range 2 {
		if err := store.Delete(ctx, key); err != nil {
			t.Errorf("Delete() error = %v", err)
		}
	}
	if _, err := store.Load(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() after Delete = %v, want ErrNotFound", err)
	}
}

func TestRedisStore_Ping(t *testing.T) {
	store, mr := newTestRedisStore(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	mr.Close()
	if err := store.Ping(context.Background()); err == nil {
		t.Error("Ping() after server close = nil, want error")
	}
}

func TestCache_OverRedis(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)
	c, err := New(store, DefaultPolicy())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	key := MustKey("AAPL", "", testDay)

	_ = c.Put(ctx, key, []byte(`{"iv":0.22}`))
	if got, ok := c.Get(ctx, key); !ok || string(got) != `{"iv":0.22}` {
		t.Errorf("Get() = (%q, %v), want hit", got, ok)
	}

	if n, err := c.Freeze(ctx, "frozen"); err != nil || n != 1 {
		t.Errorf("Freeze() = (%d, %v), want (1, nil)", n, err)
	}

	_ = mr.Set("snapgate:"+key.Path(), "corrupted")
	if _, ok := c.Get(ctx, key); ok {
		t.Error("Get() on corrupt redis entry = hit, want miss")
	}
	if mr.Exists("snapgate:" + key.Path()) {
		t.Error("corrupt redis entry not evicted")
	}
}
