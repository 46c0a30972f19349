package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/snapgate/cache"
)

// StatsSource reports cache statistics. *cache.Cache implements it.
type StatsSource interface {
	Stats(ctx context.Context) (cache.Stats, error)
}

// UsageConfig configures a UsageChecker.
type UsageConfig struct {
	// WarnBytes degrades the check when total stored bytes reach it.
	// Zero disables the warning.
	WarnBytes int64

	// CriticalBytes fails the check when total stored bytes reach it.
	// Zero disables the failure.
	CriticalBytes int64
}

// UsageChecker reports how much the snapshot cache holds across all
// namespaces, including frozen scenarios.
type UsageChecker struct {
	stats  StatsSource
	config UsageConfig
}

// NewUsageChecker creates a usage checker.
func NewUsageChecker(stats StatsSource, config UsageConfig) *UsageChecker {
	return &UsageChecker{stats: stats, config: config}
}

func (u *UsageChecker) Name() string { return "usage" }

func (u *UsageChecker) Check(ctx context.Context) Result {
	stats, err := u.stats.Stats(ctx)
	if err != nil {
		return Unhealthy("cache stats unavailable", err)
	}

	details := map[string]any{
		"entries":    stats.Entries,
		"bytes":      stats.Bytes,
		"namespaces": len(stats.Namespaces),
	}
	msg := fmt.Sprintf("%d entries, %d bytes", stats.Entries, stats.Bytes)

	switch {
	case u.config.CriticalBytes > 0 && stats.Bytes >= u.config.CriticalBytes:
		return Unhealthy("cache usage critical: "+msg, ErrCheckFailed).WithDetails(details)
	case u.config.WarnBytes > 0 && stats.Bytes >= u.config.WarnBytes:
		return Degraded("cache usage high: " + msg).WithDetails(details)
	default:
		return Healthy(msg).WithDetails(details)
	}
}
