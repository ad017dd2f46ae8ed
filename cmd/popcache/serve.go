package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	cli "github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/popcache/cache"
	"github.com/IvanBrykalov/popcache/metrics/prom"
)

// serveCmd is the single writer of the ranking: it refreshes on a fixed
// interval and exposes /metrics until interrupted.
var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "refresh the ranking periodically and serve Prometheus metrics",
	Flags: []cli.Flag{
		&cli.DurationFlag{
			Name:  "interval",
			Usage: "time between refreshes (default: popularity.refresh_interval)",
		},
		&cli.StringFlag{
			Name:  "metrics-listen",
			Usage: "address for /metrics (default: metrics.listen)",
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := cctx.Context
		e, err := setup(cctx)
		if err != nil {
			return err
		}
		interval := e.cfg.Popularity.RefreshInterval
		if cctx.IsSet("interval") {
			interval = cctx.Duration("interval")
		}
		if interval <= 0 {
			return errors.New("interval must be positive")
		}
		listen := e.cfg.Metrics.Listen
		if cctx.IsSet("metrics-listen") {
			listen = cctx.String("metrics-listen")
		}

		st, err := e.dialStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		pool, src, err := e.connectSource(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		metrics := prom.New(nil, e.cfg.Metrics.Namespace, "cache", nil)
		pop := e.popularity(st, src, metrics)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			e.log.Info().Str("addr", listen).Msg("serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		g.Go(func() error {
			refreshLoop(gctx, pop, interval, e)
			return nil
		})

		err = g.Wait()
		e.log.Info().Msg("stopped")
		return err
	},
}

// refreshLoop refreshes immediately and then every interval. Failures are
// logged and retried on the next tick only.
func refreshLoop(ctx context.Context, pop *cache.PopularityCache, interval time.Duration, e *env) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := pop.Refresh(ctx); err != nil && ctx.Err() == nil {
			e.log.Warn().Err(err).Dur("next_in", interval).Msg("refresh failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
