package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/snapgate/health"
	"github.com/jonwraymond/snapgate/observe"
	"github.com/jonwraymond/snapgate/pipeline"
)

type serveOptions struct {
	interval time.Duration
	category string
	scope    string
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve [IDENTITY...]",
		Short: "Serve health and stats, optionally running cycles on an interval",
		Long: "Serve /healthz, /readyz, /health, /stats and /metrics. With identities and --interval, " +
			"run a cycle on every tick and carry AWAIT_CONFIRMATION records into the next cycle.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, root)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = a.Close(shutdownCtx)
			}()

			agg := health.NewAggregator()
			agg.Register("store", health.NewStoreChecker("store", a.cache.Store()))
			agg.Register("usage", health.NewUsageChecker(a.cache, health.UsageConfig{
				WarnBytes:     a.cfg.Cache.WarnBytes,
				CriticalBytes: a.cfg.Cache.CriticalBytes,
			}))

			routerOpts := []health.RouterOption{health.WithStats(a.cache)}
			if a.cfg.Observe.MetricsExporter == "prometheus" {
				routerOpts = append(routerOpts, health.WithMetricsHandler(promhttp.Handler()))
			}
			srv := &http.Server{
				Addr:              a.cfg.Server.Addr,
				Handler:           health.NewRouter(agg, routerOpts...),
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info(ctx, "ops server listening", observe.F("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			if len(args) > 0 && opts.interval > 0 {
				if err := a.withPipeline(); err != nil {
					return err
				}
				category := opts.category
				if category == "" {
					category = a.cfg.Pipeline.Category
				}
				go runCycles(ctx, a, pipeline.Request{Identities: args, Scope: opts.scope, Category: category}, opts.interval)
			}

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "run a cycle over the given identities on this interval")
	cmd.Flags().StringVar(&opts.category, "category", "", "category for every identity (default pipeline.category)")
	cmd.Flags().StringVar(&opts.scope, "scope", "", "cache sub-scope")
	return cmd
}

// runCycles steps a scheduler over base on every tick until ctx ends or
// every identity has exhausted its confirmation wait.
func runCycles(ctx context.Context, a *app, base pipeline.Request, interval time.Duration) {
	sched := pipeline.NewScheduler(a.pipeline, base, a.cfg.Pipeline.MaxWaitCycles)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		_, _, err := sched.Step(ctx)
		switch {
		case errors.Is(err, pipeline.ErrNothingToEvaluate):
			a.logger.Warn(ctx, "every identity exhausted its confirmation wait; stopping cycles")
			return
		case err != nil && ctx.Err() != nil:
			return
		case err != nil:
			a.logger.Error(ctx, "cycle failed", observe.F("error", err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
