package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	Addr     string
	DB       int
	Password string

	// Prefix is prepended to every key as "{Prefix}:{namespace}/{name}".
	// Default: "snapgate"
	Prefix string
}

// RedisStore keeps entries as Redis strings. A single SET is atomic, so
// readers never observe a partially written entry.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisStore dials a Redis client from config.
func NewRedisStore(cfg RedisConfig) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Password: cfg.Password,
	})
	return NewRedisStoreFromClient(rdb, cfg.Prefix)
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "snapgate"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) redisKey(key Key) string {
	return s.prefix + ":" + key.Path()
}

func (s *RedisStore) Load(ctx context.Context, key Key) ([]byte, error) {
	b, err := s.rdb.Get(ctx, s.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return b, err
}

func (s *RedisStore) Save(ctx context.Context, key Key, data []byte) error {
	return s.rdb.Set(ctx, s.redisKey(key), data, 0).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key Key) error {
	return s.rdb.Del(ctx, s.redisKey(key)).Err()
}

func (s *RedisStore) scan(ctx context.Context, pattern string, fn func(string)) error {
	iter := s.rdb.Scan(ctx, 0, pattern, 256).Iterator()
	for iter.Next(ctx) {
		fn(iter.Val())
	}
	return iter.Err()
}

func (s *RedisStore) List(ctx context.Context, namespace string) ([]Listing, error) {
	nsPrefix := s.prefix + ":" + namespace + "/"

	var names []string
	if err := s.scan(ctx, nsPrefix+"*", func(k string) {
		names = append(names, k)
	}); err != nil {
		return nil, fmt.Errorf("cache: scan namespace %s: %w", namespace, err)
	}

	out := make([]Listing, 0, len(names))
	for _, rk := range names {
		key, ok := parseName(namespace, strings.TrimPrefix(rk, nsPrefix))
		if !ok {
			continue
		}
		size, err := s.rdb.StrLen(ctx, rk).Result()
		if err != nil {
			return nil, err
		}
		out = append(out, Listing{Key: key, Size: size})
	}
	return out, nil
}

func (s *RedisStore) Namespaces(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	err := s.scan(ctx, s.prefix+":*", func(k string) {
		rest := strings.TrimPrefix(k, s.prefix+":")
		if ns, _, ok := strings.Cut(rest, "/"); ok && ValidateNamespace(ns) == nil {
			seen[ns] = struct{}{}
		}
	})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(seen))
	for ns := range seen {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

var _ Store = (*RedisStore)(nil)
