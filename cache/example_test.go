package cache_test

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/snapgate/cache"
)

func ExampleCache_Freeze() {
	ctx := context.Background()
	live, _ := cache.New(cache.NewMemoryStore(), cache.DefaultPolicy())

	asOf := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	key := cache.MustKey("AAPL", "2026-11-20", asOf)
	_ = live.Put(ctx, key, []byte(`{"iv":0.22}`))

	n, _ := live.Freeze(ctx, "bug-123")
	_ = live.Put(ctx, key, []byte(`{"iv":0.31}`))

	replay, _ := live.WithScenario("bug-123")
	payload, _ := replay.Get(ctx, key)

	fmt.Println(n, key.Path())
	fmt.Println(string(payload))
	// Output:
	// 1 live/AAPL_2026-11-20_2026-10-16.snap
	// {"iv":0.22}
}

func ExampleScopeOf() {
	scope, _ := cache.ScopeOf(map[string]any{"expiry": "2026-11-20", "greeks": true})
	fmt.Println(len(scope), scope[:2])
	// Output: 18 p-
}
