package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/IvanBrykalov/popcache/internal/singleflight"
	"github.com/IvanBrykalov/popcache/source"
	"github.com/IvanBrykalov/popcache/store"
)

var tracer = otel.Tracer("github.com/IvanBrykalov/popcache/cache")

// PopularityCache keeps a ranking snapshot of the most popular items in a
// store.Store and serves it back without touching the source of truth.
//
// Layout in the store:
//   - RankingKey (sorted set): member "item:<id>", score = popularity count
//   - "item:<id>" (hash): id, title, price
type PopularityCache struct {
	st  store.Store
	src source.Source
	opt PopularityOptions
	log zerolog.Logger

	// refreshes coalesced per ranking key when opt.Coalesce is set
	sf singleflight.Group[int]
}

// NewPopularityCache binds a cache to its store and source.
// See PopularityOptions for defaults.
func NewPopularityCache(st store.Store, src source.Source, opt PopularityOptions) *PopularityCache {
	if st == nil || src == nil {
		panic("cache: NewPopularityCache needs a store and a source")
	}
	opt = opt.withDefaults()
	return &PopularityCache{
		st:  st,
		src: src,
		opt: opt,
		log: loggerOrNop(opt.Logger).With().Str("ranking", opt.RankingKey).Logger(),
	}
}

// Refresh pulls the current top-N from the source and replaces the snapshot
// in a single transaction: DEL ranking, then HSET + ZADD per item.
//
// A source failure returns ErrSourceUnavailable and leaves the store alone.
// A commit failure returns ErrPartialRefresh; callers should retry.
func (c *PopularityCache) Refresh(ctx context.Context) error {
	if !c.opt.Coalesce {
		_, err := c.refresh(ctx)
		return err
	}
	n, shared, err := c.sf.Do(ctx, c.opt.RankingKey, c.refresh)
	if shared {
		c.log.Debug().Int("items", n).Err(err).Msg("refresh shared with concurrent callers")
	}
	return err
}

func (c *PopularityCache) refresh(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "PopularityCache.Refresh")
	defer span.End()
	start := time.Now()

	fail := func(outcome RefreshOutcome, err error) (int, error) {
		c.opt.Metrics.Refresh(outcome, 0, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	recs, err := c.src.TopItems(ctx, c.opt.Limit)
	if err != nil {
		c.log.Warn().Err(err).Msg("source query failed, keeping previous ranking")
		return fail(RefreshSourceError, fmt.Errorf("%w: %w", ErrSourceUnavailable, err))
	}
	if len(recs) > c.opt.Limit {
		recs = recs[:c.opt.Limit]
	}

	// Orphans are pruned one refresh late: a hash is deleted only once it
	// has been absent from two consecutive rankings, so a reader still
	// holding the previous ranking never loses its item records.
	var prune, dropped []string
	if c.opt.PruneOrphans {
		prev, err := c.st.ZRevRangeWithScores(ctx, c.opt.RankingKey, 0, -1)
		if err == nil {
			var pending []store.Z
			pending, err = c.st.ZRevRangeWithScores(ctx, c.pendingKey(), 0, -1)
			prune, dropped = c.orphans(prev, pending, recs)
		}
		if err != nil {
			c.log.Error().Err(err).Msg("could not read previous ranking")
			return fail(RefreshStoreError, fmt.Errorf("%w: read previous ranking: %w", ErrStoreUnavailable, err))
		}
	}

	tx := c.st.TxPipeline()
	tx.Del(c.opt.RankingKey)
	for _, r := range recs {
		key := c.itemKey(r.ItemID)
		tx.HSet(key, itemFields(r))
		tx.ZAdd(c.opt.RankingKey, store.Z{Score: float64(max(r.Count, 0)), Member: key})
	}
	if c.opt.PruneOrphans {
		if len(prune) > 0 {
			tx.Del(prune...)
		}
		tx.Del(c.pendingKey())
		for _, key := range dropped {
			tx.ZAdd(c.pendingKey(), store.Z{Member: key})
		}
	}
	queued := tx.Len()
	if err := tx.Exec(ctx); err != nil {
		c.log.Error().Err(err).Int("items", len(recs)).Int("commands", queued).Msg("refresh transaction failed, ranking may be empty until the next refresh")
		return fail(RefreshStoreError, fmt.Errorf("%w: %w", ErrPartialRefresh, err))
	}

	took := time.Since(start)
	c.opt.Metrics.Refresh(RefreshOK, len(recs), took)
	span.SetAttributes(attribute.Int("items", len(recs)), attribute.Int("pruned", len(prune)), attribute.Int("commands", queued))
	c.log.Debug().Int("items", len(recs)).Int("pruned", len(prune)).Int("pending", len(dropped)).Dur("took", took).Msg("ranking refreshed")
	return len(recs), nil
}

// TopN reads the ranking best-first and fetches every item hash in one
// pipelined round trip. Ties keep the store's native order.
func (c *PopularityCache) TopN(ctx context.Context, n int) ([]ItemSummary, error) {
	if n <= 0 {
		n = c.opt.Limit
	}
	ctx, span := tracer.Start(ctx, "PopularityCache.TopN")
	defer span.End()
	span.SetAttributes(attribute.Int("n", n))

	ranked, err := c.st.ZRevRangeWithScores(ctx, c.opt.RankingKey, 0, int64(n-1))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: read ranking: %w", ErrStoreUnavailable, err)
	}
	out := make([]ItemSummary, 0, len(ranked))
	if len(ranked) == 0 {
		c.opt.Metrics.TopN(0, 0)
		return out, nil
	}

	p := c.st.Pipeline()
	replies := make([]*store.HashReply, len(ranked))
	for i, z := range ranked {
		replies[i] = p.HGetAll(z.Member)
	}
	// A record of the wrong type only degrades its own entry.
	if err := p.Exec(ctx); err != nil && !errors.Is(err, store.ErrWrongType) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: read items: %w", ErrStoreUnavailable, err)
	}

	degraded := 0
	for i, z := range ranked {
		fields := replies[i].Fields
		if replies[i].Err != nil {
			c.log.Warn().Err(replies[i].Err).Str("member", z.Member).Msg("unreadable item record")
			fields = nil
		}
		s := decodeItem(z, c.opt.ItemKeyPrefix, fields)
		if s.Degraded {
			degraded++
		}
		out = append(out, s)
	}
	if degraded > 0 {
		c.log.Debug().Int("degraded", degraded).Int("returned", len(out)).Msg("ranking has missing or malformed item records")
	}
	c.opt.Metrics.TopN(len(out), degraded)
	return out, nil
}

func (c *PopularityCache) itemKey(id int64) string {
	return c.opt.ItemKeyPrefix + strconv.FormatInt(id, 10)
}

// pendingKey holds members dropped by the last refresh, awaiting deletion.
func (c *PopularityCache) pendingKey() string {
	return c.opt.RankingKey + pendingSuffix
}

// orphans splits stale members in two: prune were already pending and are
// still neither ranked now nor in the previous ranking; dropped left the
// ranking with this refresh and become pending.
func (c *PopularityCache) orphans(prev, pending []store.Z, next []source.Record) (prune, dropped []string) {
	keep := make(map[string]struct{}, len(next)+len(prev))
	for _, r := range next {
		keep[c.itemKey(r.ItemID)] = struct{}{}
	}
	for _, z := range prev {
		if _, ok := keep[z.Member]; !ok {
			dropped = append(dropped, z.Member)
		}
	}
	for _, z := range prev {
		keep[z.Member] = struct{}{}
	}
	for _, z := range pending {
		if _, ok := keep[z.Member]; !ok {
			prune = append(prune, z.Member)
		}
	}
	return prune, dropped
}
