package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/snapgate/cache"
)

// Pinger is the part of cache.Store a StoreChecker needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreChecker reports whether the snapshot store is reachable and
// writable. An unreachable store is unhealthy: every fetch would miss and
// nothing could be written back.
type StoreChecker struct {
	name  string
	store Pinger
}

// NewStoreChecker creates a checker over store.
func NewStoreChecker(name string, store Pinger) *StoreChecker {
	if name == "" {
		name = "store"
	}
	return &StoreChecker{name: name, store: store}
}

func (c *StoreChecker) Name() string { return c.name }

func (c *StoreChecker) Check(ctx context.Context) Result {
	if err := c.store.Ping(ctx); err != nil {
		return Unhealthy(fmt.Sprintf("store unreachable: %v", err), err)
	}
	return Healthy("store reachable")
}

var _ Pinger = (cache.Store)(nil)
