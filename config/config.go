package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel errors for configuration loading.
var (
	ErrInvalidConfig = errors.New("config: invalid configuration")
	ErrMissingEnv    = errors.New("config: missing required environment variables")
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SNAPGATE"

// Cache backends.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// ValidBackends lists the accepted cache.backend values.
var ValidBackends = []string{BackendFile, BackendRedis, BackendMemory}

// Config is the full snapgate configuration.
type Config struct {
	ServiceName string         `mapstructure:"service_name"`
	Cache       CacheConfig    `mapstructure:"cache"`
	Source      SourceConfig   `mapstructure:"source"`
	Dispatch    DispatchConfig `mapstructure:"dispatch"`
	Retry       RetryConfig    `mapstructure:"retry"`
	Pipeline    PipelineConfig `mapstructure:"pipeline"`
	Gate        GateConfig     `mapstructure:"gate"`
	Observe     ObserveConfig  `mapstructure:"observe"`
	Server      ServerConfig   `mapstructure:"server"`
}

// CacheConfig selects and tunes the snapshot store.
type CacheConfig struct {
	Enabled       bool        `mapstructure:"enabled"`
	Namespace     string      `mapstructure:"namespace"`
	Backend       string      `mapstructure:"backend"`
	Dir           string      `mapstructure:"dir"`
	MaxEntryBytes int64       `mapstructure:"max_entry_bytes"`
	Redis         RedisConfig `mapstructure:"redis"`

	// WarnBytes and CriticalBytes are the usage health thresholds. Zero
	// disables a threshold.
	WarnBytes     int64 `mapstructure:"warn_bytes"`
	CriticalBytes int64 `mapstructure:"critical_bytes"`
}

// RedisConfig addresses the redis backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
	Prefix   string `mapstructure:"prefix"`
}

// SourceConfig addresses the primary and supplemental providers.
type SourceConfig struct {
	BaseURL         string            `mapstructure:"base_url"`
	SupplementalURL string            `mapstructure:"supplemental_url"`
	Timeout         time.Duration     `mapstructure:"timeout"`
	MaxBodyBytes    int64             `mapstructure:"max_body_bytes"`
	Headers         map[string]string `mapstructure:"headers"`

	// BreakerFailures opens a per-source circuit after this many consecutive
	// transient failures. Zero disables the breaker.
	BreakerFailures int           `mapstructure:"breaker_failures"`
	BreakerReset    time.Duration `mapstructure:"breaker_reset"`
}

// DispatchConfig bounds source traffic.
type DispatchConfig struct {
	Workers       int           `mapstructure:"workers"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	TaskTimeout   time.Duration `mapstructure:"task_timeout"`
}

// RetryConfig is the caller-side retry policy.
type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	Multiplier   float64       `mapstructure:"multiplier"`
	Strategy     string        `mapstructure:"strategy"`
	Jitter       bool          `mapstructure:"jitter"`
}

// PipelineConfig tunes cycles.
type PipelineConfig struct {
	Category          string `mapstructure:"category"`
	MaxWaitCycles     int    `mapstructure:"max_wait_cycles"`
	FetchOnReplayMiss bool   `mapstructure:"fetch_on_replay_miss"`
}

// CategoryConfig declares one category's field requirements.
type CategoryConfig struct {
	Required     []string `mapstructure:"required"`
	Critical     []string `mapstructure:"critical"`
	Supplemental []string `mapstructure:"supplemental"`
	MinTier      string   `mapstructure:"min_tier"`
}

// GateConfig configures the execution gate.
type GateConfig struct {
	Categories     map[string]CategoryConfig `mapstructure:"categories"`
	LiquidityField string                    `mapstructure:"liquidity_field"`
	LiquidityFloor float64                   `mapstructure:"liquidity_floor"`
	ReadyLiquidity float64                   `mapstructure:"ready_liquidity"`
	VolField       string                    `mapstructure:"vol_field"`
	VolCeiling     float64                   `mapstructure:"vol_ceiling"`
	Thresholds     ThresholdConfig           `mapstructure:"thresholds"`
	RankField      string                    `mapstructure:"rank_field"`
}

// ThresholdConfig holds maturity tier boundaries in days.
type ThresholdConfig struct {
	Early       int `mapstructure:"early"`
	Established int `mapstructure:"established"`
	Mature      int `mapstructure:"mature"`
}

// ObserveConfig configures logging and telemetry.
type ObserveConfig struct {
	LogLevel        string  `mapstructure:"log_level"`
	TracingExporter string  `mapstructure:"tracing_exporter"`
	SamplePct       float64 `mapstructure:"sample_pct"`
	MetricsExporter string  `mapstructure:"metrics_exporter"`
}

// ServerConfig configures the ops HTTP server.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "snapgate")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.namespace", "live")
	v.SetDefault("cache.backend", BackendFile)
	v.SetDefault("cache.dir", ".snapgate/cache")
	v.SetDefault("cache.max_entry_bytes", 64<<20)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.prefix", "snapgate")
	v.SetDefault("cache.warn_bytes", 0)
	v.SetDefault("cache.critical_bytes", 0)

	v.SetDefault("source.base_url", "")
	v.SetDefault("source.supplemental_url", "")
	v.SetDefault("source.timeout", 30*time.Second)
	v.SetDefault("source.max_body_bytes", 8<<20)
	v.SetDefault("source.breaker_failures", 5)
	v.SetDefault("source.breaker_reset", 30*time.Second)

	v.SetDefault("dispatch.workers", 4)
	v.SetDefault("dispatch.rate_per_second", 10.0)
	v.SetDefault("dispatch.burst", 1)
	v.SetDefault("dispatch.task_timeout", 30*time.Second)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_delay", 500*time.Millisecond)
	v.SetDefault("retry.max_delay", 30*time.Second)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.strategy", "exponential")
	v.SetDefault("retry.jitter", false)

	v.SetDefault("pipeline.category", "income")
	v.SetDefault("pipeline.max_wait_cycles", 3)
	v.SetDefault("pipeline.fetch_on_replay_miss", false)

	v.SetDefault("gate.liquidity_field", "liquiditySignal")
	v.SetDefault("gate.liquidity_floor", 100.0)
	v.SetDefault("gate.ready_liquidity", 500.0)
	v.SetDefault("gate.vol_field", "supplementalVol")
	v.SetDefault("gate.vol_ceiling", 1.5)
	v.SetDefault("gate.thresholds.early", 20)
	v.SetDefault("gate.thresholds.established", 60)
	v.SetDefault("gate.thresholds.mature", 120)
	v.SetDefault("gate.rank_field", "liquiditySignal")

	v.SetDefault("observe.log_level", "info")
	v.SetDefault("observe.tracing_exporter", "none")
	v.SetDefault("observe.sample_pct", 1.0)
	v.SetDefault("observe.metrics_exporter", "none")

	v.SetDefault("server.addr", ":8080")
}

// Load reads configuration from path (optional; empty means defaults and
// environment only), applies SNAPGATE_* overrides, expands ${VAR}
// references and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.expandEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) expandEnv() error {
	fields := []*string{
		&c.Cache.Dir,
		&c.Cache.Redis.Addr,
		&c.Cache.Redis.Password,
		&c.Source.BaseURL,
		&c.Source.SupplementalURL,
		&c.Server.Addr,
	}
	for _, f := range fields {
		expanded, err := ExpandEnvStrict(*f)
		if err != nil {
			return err
		}
		*f = expanded
	}
	for k, val := range c.Source.Headers {
		expanded, err := ExpandEnvStrict(val)
		if err != nil {
			return fmt.Errorf("header %s: %w", k, err)
		}
		c.Source.Headers[k] = expanded
	}
	return nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if !slices.Contains(ValidBackends, c.Cache.Backend) {
		return fmt.Errorf("%w: cache.backend %q", ErrInvalidConfig, c.Cache.Backend)
	}
	if c.Cache.Backend == BackendFile && strings.TrimSpace(c.Cache.Dir) == "" {
		return fmt.Errorf("%w: cache.dir is required for the file backend", ErrInvalidConfig)
	}
	if c.Cache.Backend == BackendRedis && strings.TrimSpace(c.Cache.Redis.Addr) == "" {
		return fmt.Errorf("%w: cache.redis.addr is required for the redis backend", ErrInvalidConfig)
	}
	if c.Cache.CriticalBytes > 0 && c.Cache.WarnBytes > c.Cache.CriticalBytes {
		return fmt.Errorf("%w: cache.warn_bytes exceeds cache.critical_bytes", ErrInvalidConfig)
	}
	if c.Dispatch.Workers < 0 || c.Dispatch.RatePerSecond < 0 || c.Dispatch.Burst < 0 {
		return fmt.Errorf("%w: dispatch values must not be negative", ErrInvalidConfig)
	}
	if _, err := parseStrategy(c.Retry.Strategy); err != nil {
		return err
	}
	if c.Pipeline.MaxWaitCycles < 0 {
		return fmt.Errorf("%w: pipeline.max_wait_cycles must not be negative", ErrInvalidConfig)
	}
	if _, err := c.EngineConfig(); err != nil {
		return err
	}
	obs := c.ObserverConfig()
	return obs.Validate()
}
