package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	cli "github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/popcache/metrics/prom"
	"github.com/IvanBrykalov/popcache/source"
	"github.com/IvanBrykalov/popcache/store"
	"github.com/IvanBrykalov/popcache/store/memstore"
)

// benchCmd runs a synthetic workload of views, recent reads and TopN reads,
// with a writer refreshing the ranking in the background.
var benchCmd = &cli.Command{
	Name:  "bench",
	Usage: "synthetic load against the in-memory store or Redis",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "backend", Value: "mem", Usage: "mem | redis"},
		&cli.IntFlag{Name: "shards", Usage: "memstore shards (0=auto)"},
		&cli.IntFlag{Name: "workers", Value: 2 * runtime.GOMAXPROCS(0), Usage: "number of worker goroutines"},
		&cli.DurationFlag{Name: "duration", Value: 10 * time.Second, Usage: "benchmark duration"},
		&cli.DurationFlag{Name: "refresh-every", Value: time.Second, Usage: "ranking refresh period"},
		&cli.IntFlag{Name: "reads", Value: 60, Usage: "percentage of Recent calls [0..100]"},
		&cli.IntFlag{Name: "top", Value: 20, Usage: "percentage of TopN calls [0..100]; the rest are views"},
		&cli.IntFlag{Name: "subjects", Value: 100_000, Usage: "subject keyspace size"},
		&cli.IntFlag{Name: "items", Value: 10_000, Usage: "item keyspace size"},
		&cli.Float64Flag{Name: "zipf-s", Value: 1.1, Usage: "Zipf s > 1 (skew)"},
		&cli.Float64Flag{Name: "zipf-v", Value: 1.0, Usage: "Zipf v"},
		&cli.Int64Flag{Name: "seed", Value: time.Now().UnixNano(), Usage: "random seed"},
		&cli.StringFlag{Name: "pprof", Usage: "serve pprof at addr (e.g. :6060); empty = disabled"},
		&cli.StringFlag{Name: "http", Usage: "serve Prometheus metrics at addr; empty = disabled"},
	},
	Action: func(cctx *cli.Context) error {
		e, err := setup(cctx)
		if err != nil {
			return err
		}

		readPct, topPct := cctx.Int("reads"), cctx.Int("top")
		if readPct < 0 || topPct < 0 || readPct+topPct > 100 {
			return fmt.Errorf("reads+top must be within [0,100], got %d+%d", readPct, topPct)
		}
		if cctx.Duration("refresh-every") <= 0 {
			return fmt.Errorf("refresh-every must be positive")
		}
		workers := max(cctx.Int("workers"), 1)
		subjects := max(cctx.Int("subjects"), 1)
		items := max(cctx.Int("items"), 2)

		// ---- pprof server (on DefaultServeMux) ----
		if addr := cctx.String("pprof"); addr != "" {
			go func() {
				e.log.Info().Str("addr", addr).Msg("pprof: serving")
				e.log.Err(http.ListenAndServe(addr, nil)).Msg("pprof: stopped")
			}()
		}

		// ---- Prometheus metrics ----
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		metrics := prom.New(reg, e.cfg.Metrics.Namespace, "bench", nil)
		if addr := cctx.String("http"); addr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			defer srv.Close()
			go func() {
				e.log.Info().Str("addr", addr).Msg("metrics: serving")
				e.log.Err(srv.ListenAndServe()).Msg("metrics: stopped")
			}()
		}

		// ---- Build store ----
		var st store.Store
		var mem *memstore.Store
		switch backend := cctx.String("backend"); backend {
		case "mem":
			mem = memstore.New(memstore.Options{Shards: cctx.Int("shards")})
			defer mem.Close()
			st = mem
		case "redis":
			rs, err := e.dialStore(cctx.Context)
			if err != nil {
				return err
			}
			defer rs.Close()
			st = rs
		default:
			return fmt.Errorf("unknown backend: %q (use mem or redis)", backend)
		}

		// ---- Synthetic catalogue: popularity follows item id ----
		seedBase := cctx.Int64("seed")
		catalogue := make(source.Static, 0, items)
		r := rand.New(rand.NewSource(seedBase))
		for i := 0; i < items; i++ {
			catalogue = append(catalogue, source.Record{
				ItemID: int64(i),
				Title:  "item " + strconv.Itoa(i),
				Price:  decimal.New(int64(100+r.Intn(10_000)), -2),
				Count:  int64(items - i + r.Intn(items/2+1)),
			})
		}
		pop := e.popularity(st, catalogue, metrics)
		rec := e.recency(st, metrics)
		if err := pop.Refresh(cctx.Context); err != nil {
			return err
		}

		// ---- Load generation ----
		var views, recents, tops, failures, total atomic.Uint64
		ctx, cancel := context.WithTimeout(cctx.Context, cctx.Duration("duration"))
		defer cancel()

		start := time.Now()
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			refreshLoop(gctx, pop, cctx.Duration("refresh-every"), e)
			return nil
		})
		zipfS, zipfV := cctx.Float64("zipf-s"), cctx.Float64("zipf-v")
		for w := 0; w < workers; w++ {
			w := w
			g.Go(func() error {
				// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
				localR := rand.New(rand.NewSource(seedBase + int64(w)*9973))
				itemZipf := rand.NewZipf(localR, zipfS, zipfV, uint64(items-1))

				for gctx.Err() == nil {
					total.Add(1)
					subject := strconv.Itoa(localR.Intn(subjects))
					var err error
					switch p := int(localR.Int31n(100)); {
					case p < readPct:
						recents.Add(1)
						_, err = rec.Recent(gctx, subject)
					case p < readPct+topPct:
						tops.Add(1)
						_, err = pop.TopN(gctx, 0)
					default:
						views.Add(1)
						err = rec.RecordView(gctx, subject, int64(itemZipf.Uint64()))
					}
					if err != nil && gctx.Err() == nil {
						failures.Add(1)
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		elapsed := time.Since(start)

		// ---- Report ----
		ops := total.Load()
		fmt.Printf("backend=%s workers=%d subjects=%d items=%d dur=%v seed=%d\n",
			cctx.String("backend"), workers, subjects, items, elapsed, seedBase)
		fmt.Printf("ops=%d (%.0f ops/s)  views=%d  recent=%d  top=%d  failures=%d\n",
			ops, float64(ops)/elapsed.Seconds(), views.Load(), recents.Load(), tops.Load(), failures.Load())
		if mem != nil {
			fmt.Printf("keys=%d\n", mem.Len())
		}
		return nil
	},
}
