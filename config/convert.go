package config

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jonwraymond/snapgate/cache"
	"github.com/jonwraymond/snapgate/dispatch"
	"github.com/jonwraymond/snapgate/gate"
	"github.com/jonwraymond/snapgate/maturity"
	"github.com/jonwraymond/snapgate/observe"
	"github.com/jonwraymond/snapgate/source"
)

// CachePolicy returns the cache policy.
func (c *Config) CachePolicy() cache.Policy {
	return cache.Policy{
		Enabled:       c.Cache.Enabled,
		Namespace:     c.Cache.Namespace,
		MaxEntryBytes: c.Cache.MaxEntryBytes,
	}
}

// OpenStore opens the configured cache backend.
func (c *Config) OpenStore() (cache.Store, error) {
	switch c.Cache.Backend {
	case BackendFile:
		return cache.NewFileStore(c.Cache.Dir)
	case BackendRedis:
		return cache.NewRedisStore(cache.RedisConfig{
			Addr:     c.Cache.Redis.Addr,
			DB:       c.Cache.Redis.DB,
			Password: c.Cache.Redis.Password,
			Prefix:   c.Cache.Redis.Prefix,
		}), nil
	case BackendMemory:
		return cache.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: cache.backend %q", ErrInvalidConfig, c.Cache.Backend)
	}
}

// DispatcherConfig returns the dispatcher bounds.
func (c *Config) DispatcherConfig() dispatch.Config {
	return dispatch.Config{
		Workers:       c.Dispatch.Workers,
		RatePerSecond: c.Dispatch.RatePerSecond,
		Burst:         c.Dispatch.Burst,
		TaskTimeout:   c.Dispatch.TaskTimeout,
	}
}

// RetryPolicy returns the caller-side retry policy.
func (c *Config) RetryPolicy() dispatch.RetryPolicy {
	strategy, _ := parseStrategy(c.Retry.Strategy)
	return dispatch.RetryPolicy{
		MaxAttempts:  c.Retry.MaxAttempts,
		InitialDelay: c.Retry.InitialDelay,
		MaxDelay:     c.Retry.MaxDelay,
		Multiplier:   c.Retry.Multiplier,
		Strategy:     strategy,
		Jitter:       c.Retry.Jitter,
	}
}

func parseStrategy(s string) (dispatch.BackoffStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exponential":
		return dispatch.BackoffExponential, nil
	case "linear":
		return dispatch.BackoffLinear, nil
	case "constant":
		return dispatch.BackoffConstant, nil
	default:
		return 0, fmt.Errorf("%w: retry.strategy %q", ErrInvalidConfig, s)
	}
}

// EngineConfig returns the execution gate configuration. Without declared
// categories the built-in income and directional categories apply.
func (c *Config) EngineConfig() (gate.Config, error) {
	out := gate.DefaultConfig()
	if len(c.Gate.Categories) > 0 {
		out.Categories = make(map[string]gate.Category, len(c.Gate.Categories))
		for name, cat := range c.Gate.Categories {
			tier := maturity.Nascent
			if cat.MinTier != "" {
				t, err := maturity.ParseTier(cat.MinTier)
				if err != nil {
					return gate.Config{}, fmt.Errorf("%w: gate.categories.%s.min_tier: %v", ErrInvalidConfig, name, err)
				}
				tier = t
			}
			out.Categories[name] = gate.Category{
				RequiredFields:     cat.Required,
				CriticalFields:     cat.Critical,
				SupplementalFields: cat.Supplemental,
				MinTier:            tier,
			}
		}
	}

	if c.Gate.LiquidityField != "" {
		out.LiquidityField = c.Gate.LiquidityField
	}
	if c.Gate.VolField != "" {
		out.VolField = c.Gate.VolField
	}
	out.LiquidityFloor = c.Gate.LiquidityFloor
	out.ReadyLiquidity = c.Gate.ReadyLiquidity
	out.VolCeiling = c.Gate.VolCeiling
	out.Thresholds = maturity.Thresholds{
		Early:       c.Gate.Thresholds.Early,
		Established: c.Gate.Thresholds.Established,
		Mature:      c.Gate.Thresholds.Mature,
	}

	if err := out.Validate(); err != nil {
		return gate.Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := out.Thresholds.Validate(); err != nil {
		return gate.Config{}, fmt.Errorf("%w: gate.thresholds: %v", ErrInvalidConfig, err)
	}
	return out, nil
}

// ObserverConfig returns the telemetry configuration.
func (c *Config) ObserverConfig() observe.Config {
	return observe.Config{
		ServiceName: c.ServiceName,
		Tracing: observe.TracingConfig{
			Enabled:   c.Observe.TracingExporter != "" && c.Observe.TracingExporter != "none",
			Exporter:  c.Observe.TracingExporter,
			SamplePct: c.Observe.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.Observe.MetricsExporter != "" && c.Observe.MetricsExporter != "none",
			Exporter: c.Observe.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   c.Observe.LogLevel,
		},
	}
}

// PrimarySource returns the primary provider configuration.
func (c *Config) PrimarySource() source.Config {
	return c.sourceConfig(c.Source.BaseURL)
}

// SupplementalSource returns the supplemental provider configuration and
// whether one is configured.
func (c *Config) SupplementalSource() (source.Config, bool) {
	if c.Source.SupplementalURL == "" {
		return source.Config{}, false
	}
	return c.sourceConfig(c.Source.SupplementalURL), true
}

func (c *Config) sourceConfig(base string) source.Config {
	header := make(http.Header, len(c.Source.Headers))
	for k, v := range c.Source.Headers {
		header.Set(k, v)
	}
	return source.Config{
		BaseURL:      base,
		Timeout:      c.Source.Timeout,
		MaxBodyBytes: c.Source.MaxBodyBytes,
		Header:       header,
	}
}

// Breaker returns a new circuit breaker for one source, or nil when
// breakers are disabled.
func (c *Config) Breaker() *dispatch.Breaker {
	if c.Source.BreakerFailures <= 0 {
		return nil
	}
	return dispatch.NewBreaker(dispatch.BreakerConfig{
		MaxFailures:  c.Source.BreakerFailures,
		ResetTimeout: c.Source.BreakerReset,
	})
}
