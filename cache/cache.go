package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/snapgate/observe"
)

// Cache is a content-addressed snapshot cache scoped to one namespace.
//
// Contract:
// - Concurrency: safe for concurrent use; per-key writes are atomic.
// - Errors: Get never errors; it returns (nil, false) on miss, on a disabled
//   policy, and on a corrupt entry (which is evicted).
// - Isolation: caches for different namespaces never observe each other's entries.
type Cache struct {
	store     Store
	policy    Policy
	namespace string
	logger    observe.Logger
	metrics   observe.Metrics
	now       func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for corruption and storage warnings.
func WithLogger(l observe.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the metrics sink for lookup outcomes.
func WithMetrics(m observe.Metrics) Option {
	return func(c *Cache) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithClock overrides the clock stamped into WrittenAt.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a cache over store, scoped to policy.Namespace.
func New(store Store, policy Policy, opts ...Option) (*Cache, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	policy = policy.withDefaults()
	if err := ValidateNamespace(policy.Namespace); err != nil {
		return nil, err
	}

	c := &Cache{
		store:     store,
		policy:    policy,
		namespace: policy.Namespace,
		logger:    observe.NopLogger(),
		metrics:   observe.NopMetrics(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(observe.F("component", "cache"))
	return c, nil
}

// Namespace returns the namespace this cache reads and writes.
func (c *Cache) Namespace() string { return c.namespace }

// Enabled reports whether the policy allows caching.
func (c *Cache) Enabled() bool { return c.policy.Enabled }

// Store returns the underlying store.
func (c *Cache) Store() Store { return c.store }

// WithScenario returns a cache over the same store and key space, rooted at
// the named namespace. The receiver is not modified.
func (c *Cache) WithScenario(name string) (*Cache, error) {
	if err := ValidateNamespace(name); err != nil {
		return nil, err
	}
	scoped := *c
	scoped.namespace = name
	return &scoped, nil
}

// Get returns the payload stored under key in this cache's namespace.
func (c *Cache) Get(ctx context.Context, key Key) ([]byte, bool) {
	e, ok := c.Lookup(ctx, key)
	if !ok {
		return nil, false
	}
	return e.Payload, true
}

// Lookup is Get with entry metadata.
func (c *Cache) Lookup(ctx context.Context, key Key) (Entry, bool) {
	if !c.policy.Enabled {
		return Entry{}, false
	}
	key = key.InNamespace(c.namespace)
	if ValidateKey(key) != nil {
		return Entry{}, false
	}

	data, err := c.store.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn(ctx, "cache load failed", observe.F("key", key.Path()), observe.F("error", err))
		}
		c.metrics.RecordCacheLookup(ctx, c.namespace, observe.LookupMiss)
		return Entry{}, false
	}

	entry, err := decodeEntry(key, data)
	if err != nil {
		c.evict(ctx, key, err)
		return Entry{}, false
	}

	c.metrics.RecordCacheLookup(ctx, c.namespace, observe.LookupHit)
	return entry, true
}

func (c *Cache) evict(ctx context.Context, key Key, cause error) {
	c.metrics.RecordCacheLookup(ctx, c.namespace, observe.LookupCorrupt)
	c.logger.Warn(ctx, "evicting corrupt cache entry", observe.F("key", key.Path()), observe.F("error", cause))
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.Error(ctx, "evict corrupt entry failed", observe.F("key", key.Path()), observe.F("error", err))
	}
}

// Put stores payload under key, replacing any existing entry atomically.
// A disabled cache drops the write and returns nil.
func (c *Cache) Put(ctx context.Context, key Key, payload []byte) error {
	if !c.policy.Enabled {
		return nil
	}
	key = key.InNamespace(c.namespace)
	if err := ValidateKey(key); err != nil {
		return err
	}
	if c.policy.MaxEntryBytes > 0 && int64(len(payload)) > c.policy.MaxEntryBytes {
		return fmt.Errorf("%w: %d bytes", ErrEntryTooLarge, len(payload))
	}

	data, err := encodeEntry(Entry{Key: key, Payload: payload, WrittenAt: c.now()})
	if err != nil {
		return fmt.Errorf("cache: encode entry: %w", err)
	}
	if err := c.store.Save(ctx, key, data); err != nil {
		return fmt.Errorf("cache: save %s: %w", key.Path(), err)
	}
	return nil
}

// Filter selects entries by key prefix. Empty fields match everything, so the
// zero Filter selects the whole namespace.
type Filter struct {
	SubjectID string
	SubScope  string
	AsOf      time.Time
}

// Matches reports whether key is selected by the filter.
func (f Filter) Matches(key Key) bool {
	if f.SubjectID != "" && key.SubjectID() != f.SubjectID {
		return false
	}
	if f.SubScope != "" && key.SubScope() != f.SubScope {
		return false
	}
	if !f.AsOf.IsZero() && !key.AsOf().Equal(Date(f.AsOf)) {
		return false
	}
	return true
}

// Clear deletes every entry in this cache's namespace matching f and returns
// the number deleted.
func (c *Cache) Clear(ctx context.Context, f Filter) (int, error) {
	listings, err := c.store.List(ctx, c.namespace)
	if err != nil {
		return 0, fmt.Errorf("cache: list %s: %w", c.namespace, err)
	}

	deleted := 0
	for _, l := range listings {
		if !f.Matches(l.Key) {
			continue
		}
		if err := c.store.Delete(ctx, l.Key); err != nil {
			return deleted, fmt.Errorf("cache: delete %s: %w", l.Key.Path(), err)
		}
		deleted++
	}

	c.logger.Info(ctx, "cache cleared",
		observe.F("namespace", c.namespace),
		observe.F("subject", f.SubjectID),
		observe.F("deleted", deleted),
	)
	return deleted, nil
}

// Freeze copies every valid entry of this cache's namespace into the named
// scenario namespace, replacing entries already there. It returns the number
// of entries copied; corrupt entries are evicted and skipped.
func (c *Cache) Freeze(ctx context.Context, name string) (int, error) {
	target, err := c.WithScenario(name)
	if err != nil {
		return 0, err
	}
	if target.namespace == c.namespace {
		return 0, fmt.Errorf("%w: cannot freeze %q onto itself", ErrInvalidScenario, name)
	}

	listings, err := c.store.List(ctx, c.namespace)
	if err != nil {
		return 0, fmt.Errorf("cache: list %s: %w", c.namespace, err)
	}

	copied := 0
	for _, l := range listings {
		data, err := c.store.Load(ctx, l.Key)
		if errors.Is(err, ErrNotFound) {
			continue // cleared concurrently
		}
		if err != nil {
			return copied, err
		}
		entry, err := decodeEntry(l.Key, data)
		if err != nil {
			c.evict(ctx, l.Key, err)
			continue
		}

		entry.Key = l.Key.InNamespace(name)
		framed, err := encodeEntry(entry)
		if err != nil {
			return copied, err
		}
		if err := c.store.Save(ctx, entry.Key, framed); err != nil {
			return copied, fmt.Errorf("cache: save %s: %w", entry.Key.Path(), err)
		}
		copied++
	}

	c.logger.Info(ctx, "scenario frozen",
		observe.F("from", c.namespace),
		observe.F("scenario", name),
		observe.F("entries", copied),
	)
	return copied, nil
}

// NamespaceStats summarizes one namespace.
type NamespaceStats struct {
	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`
}

// Stats summarizes every namespace in the store.
type Stats struct {
	Entries    int                       `json:"entry_count"`
	Bytes      int64                     `json:"total_bytes"`
	Namespaces map[string]NamespaceStats `json:"namespaces"`
}

// Stats reports entry counts and stored sizes for every namespace in the
// underlying store, not only this cache's namespace.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	namespaces, err := c.store.Namespaces(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("cache: list namespaces: %w", err)
	}

	stats := Stats{Namespaces: make(map[string]NamespaceStats, len(namespaces))}
	for _, ns := range namespaces {
		listings, err := c.store.List(ctx, ns)
		if err != nil {
			return Stats{}, fmt.Errorf("cache: list %s: %w", ns, err)
		}
		var nsStats NamespaceStats
		for _, l := range listings {
			nsStats.Entries++
			nsStats.Bytes += l.Size
		}
		stats.Namespaces[ns] = nsStats
		stats.Entries += nsStats.Entries
		stats.Bytes += nsStats.Bytes
	}
	return stats, nil
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}
