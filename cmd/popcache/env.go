package main

import (
	"context"
	"errors"
	"net/url"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	cli "github.com/urfave/cli/v2"

	"github.com/IvanBrykalov/popcache/cache"
	"github.com/IvanBrykalov/popcache/internal/config"
	"github.com/IvanBrykalov/popcache/internal/logging"
	"github.com/IvanBrykalov/popcache/source"
	"github.com/IvanBrykalov/popcache/source/pgsource"
	"github.com/IvanBrykalov/popcache/store"
	"github.com/IvanBrykalov/popcache/store/redisstore"
)

// env is what every command starts from: merged config plus a logger.
type env struct {
	cfg *config.Config
	log zerolog.Logger
}

func setup(cctx *cli.Context) (*env, error) {
	cfg, err := config.Load(cctx.String("config"))
	if err != nil {
		return nil, err
	}

	// flags win over file and environment
	if cctx.IsSet("redis-url") {
		cfg.Redis.URL = cctx.String("redis-url")
	}
	if cctx.IsSet("postgres-url") {
		cfg.Postgres.URL = cctx.String("postgres-url")
	}
	if cctx.IsSet("log-level") {
		cfg.Logging.Level = cctx.String("log-level")
	}
	if cctx.IsSet("log-format") {
		cfg.Logging.Format = cctx.String("log-format")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log.With().Str("cmd", cctx.Command.Name).Logger()}, nil
}

func (e *env) dialStore(ctx context.Context) (*redisstore.Store, error) {
	st, err := redisstore.Dial(ctx, e.cfg.Redis.URL)
	if err != nil {
		return nil, err
	}
	e.log.Debug().Str("url", redactURL(e.cfg.Redis.URL)).Msg("connected to redis")
	return st, nil
}

// connectSource opens the PostgreSQL pool; the caller closes it.
func (e *env) connectSource(ctx context.Context) (*pgxpool.Pool, source.Source, error) {
	if e.cfg.Postgres.URL == "" {
		return nil, nil, errors.New("postgres.url is not set (use --postgres-url or POPCACHE_POSTGRES_URL)")
	}
	pool, err := pgsource.Connect(ctx, e.cfg.Postgres.URL)
	if err != nil {
		return nil, nil, err
	}
	src := pgsource.New(pool, pgsource.Options{
		ItemsTable:  e.cfg.Postgres.ItemsTable,
		EventsTable: e.cfg.Postgres.EventsTable,
	})
	return pool, src, nil
}

func (e *env) popularity(st store.Store, src source.Source, m cache.Metrics) *cache.PopularityCache {
	opt := e.cfg.PopularityOptions()
	opt.Metrics = m
	opt.Logger = &e.log
	return cache.NewPopularityCache(st, src, opt)
}

func (e *env) recency(st store.Store, m cache.Metrics) *cache.RecencyTracker {
	opt := e.cfg.RecencyOptions()
	opt.Metrics = m
	opt.Logger = &e.log
	return cache.NewRecencyTracker(st, opt)
}

// readOnly backs caches that only serve TopN.
var readOnly = source.Func(func(context.Context, int) ([]source.Record, error) {
	return nil, errors.New("no source configured")
})

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid>"
	}
	return u.Redacted()
}
