package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonwraymond/snapgate/dispatch"
	"github.com/jonwraymond/snapgate/maturity"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapgate.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Cache.Backend != BackendFile || !cfg.Cache.Enabled || cfg.Cache.Namespace != "live" {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	d := cfg.DispatcherConfig()
	if d.Workers != 4 || d.RatePerSecond != 10 || d.Burst != 1 || d.TaskTimeout != 30*time.Second {
		t.Errorf("DispatcherConfig() = %+v", d)
	}
	if cfg.Pipeline.MaxWaitCycles != 3 {
		t.Errorf("MaxWaitCycles = %d, want 3", cfg.Pipeline.MaxWaitCycles)
	}

	g, err := cfg.EngineConfig()
	if err != nil {
		t.Fatalf("EngineConfig() error = %v", err)
	}
	if _, ok := g.Categories["income"]; !ok {
		t.Errorf("EngineConfig() categories = %v, want built-in income", g.CategoryNames())
	}
	if g.Thresholds != maturity.DefaultThresholds() {
		t.Errorf("Thresholds = %+v, want defaults", g.Thresholds)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
cache:
  backend: memory
  namespace: staging
dispatch:
  workers: 2
  rate_per_second: 5
  task_timeout: 3s
retry:
  strategy: linear
  initial_delay: 50ms
gate:
  categories:
    momentum:
      required: [liquiditySignal, trendScore]
      critical: [liquiditySignal]
      supplemental: [trendScore]
      min_tier: established
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Cache.Backend != BackendMemory || cfg.CachePolicy().Namespace != "staging" {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if d := cfg.DispatcherConfig(); d.Workers != 2 || d.RatePerSecond != 5 || d.TaskTimeout != 3*time.Second {
		t.Errorf("DispatcherConfig() = %+v", d)
	}
	if p := cfg.RetryPolicy(); p.Strategy != dispatch.BackoffLinear || p.InitialDelay != 50*time.Millisecond {
		t.Errorf("RetryPolicy() = %+v", p)
	}

	g, err := cfg.EngineConfig()
	if err != nil {
		t.Fatalf("EngineConfig() error = %v", err)
	}
	cat, ok := g.Categories["momentum"]
	if !ok || len(g.Categories) != 1 {
		t.Fatalf("categories = %v, want only momentum", g.CategoryNames())
	}
	if cat.MinTier != maturity.Established || len(cat.SupplementalFields) != 1 {
		t.Errorf("momentum = %+v", cat)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SNAPGATE_DISPATCH_WORKERS", "9")
	t.Setenv("SNAPGATE_CACHE_BACKEND", "memory")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Dispatch.Workers != 9 {
		t.Errorf("Workers = %d, want 9", cfg.Dispatch.Workers)
	}
	if cfg.Cache.Backend != BackendMemory {
		t.Errorf("Backend = %q, want memory", cfg.Cache.Backend)
	}
}

func TestLoad_ExpandsEnvReferences(t *testing.T) {
	t.Setenv("SNAPGATE_TEST_ROOT", "/var/lib/snapgate")
	t.Setenv("SNAPGATE_TEST_KEY", "s3cr3t")
	path := writeConfig(t, `
cache:
  dir: ${SNAPGATE_TEST_ROOT}/cache
source:
  base_url: https://data.example.com/v1
  headers:
    X-Api-Key: ${SNAPGATE_TEST_KEY}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Cache.Dir != "/var/lib/snapgate/cache" {
		t.Errorf("Dir = %q", cfg.Cache.Dir)
	}
	if got := cfg.PrimarySource().Header.Get("X-Api-Key"); got != "s3cr3t" {
		t.Errorf("X-Api-Key header = %q, want s3cr3t", got)
	}
	if _, ok := cfg.SupplementalSource(); ok {
		t.Error("SupplementalSource() ok = true without supplemental_url")
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"unknown backend", "cache:\n  backend: s3\n", ErrInvalidConfig},
		{"unset env reference", "cache:\n  dir: ${SNAPGATE_TEST_UNSET_VAR}\n", ErrMissingEnv},
		{"bad strategy", "retry:\n  strategy: fibonacci\n", ErrInvalidConfig},
		{"bad tier", "gate:\n  categories:\n    x:\n      required: [a]\n      min_tier: ancient\n", ErrInvalidConfig},
		{"critical not required", "gate:\n  categories:\n    x:\n      required: [a]\n      critical: [b]\n", ErrInvalidConfig},
		{"thresholds out of order", "gate:\n  thresholds:\n    early: 90\n", ErrInvalidConfig},
		{"warn above critical", "cache:\n  warn_bytes: 10\n  critical_bytes: 5\n", ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if !errors.Is(err, tt.want) {
				t.Errorf("Load() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() error = nil, want read error")
	}
}

func TestBreaker(t *testing.T) {
	cfg := &Config{Source: SourceConfig{BreakerFailures: 0}}
	if cfg.Breaker() != nil {
		t.Error("Breaker() != nil with breaker disabled")
	}
	cfg.Source.BreakerFailures = 2
	if b := cfg.Breaker(); b == nil || b.State() != dispatch.StateClosed {
		t.Errorf("Breaker() = %v, want closed breaker", b)
	}
}
