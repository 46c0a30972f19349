// Package health reports whether a snapgate process can serve cycles.
//
// A Checker reports one component: StoreChecker pings the snapshot store,
// UsageChecker compares stored bytes against thresholds. An Aggregator runs
// every registered checker concurrently under one deadline and folds the
// results into a single Status (any unhealthy check makes the whole report
// unhealthy; otherwise any degraded check degrades it).
//
// NewRouter exposes the aggregator over HTTP:
//
//	agg := health.NewAggregator()
//	agg.Register("store", health.NewStoreChecker("store", c.Store()))
//	agg.Register("usage", health.NewUsageChecker(c, health.UsageConfig{WarnBytes: 1 << 30}))
//
//	srv := &http.Server{Addr: ":8080", Handler: health.NewRouter(agg, health.WithStats(c))}
//
// Routes: /healthz (liveness), /readyz (plain-text readiness), /health
// (JSON report), /health/{name} (one checker), /stats (cache statistics when
// configured) and /metrics (when a metrics handler is configured).
package health
