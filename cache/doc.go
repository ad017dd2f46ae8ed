// Package cache keeps two read models of an item catalogue in a key-value
// store: a ranking of the most popular items and a per-subject log of
// recently viewed items.
//
// Design
//
//   - Store: both components talk to a store.Store. redisstore backs it with
//     Redis (go-redis); memstore is an in-process emulation with the same
//     semantics, used for tests, benchmarks and single-node deployments.
//
//   - Popularity: Refresh asks a source.Source for the top N items and
//     rebuilds the snapshot in one MULTI/EXEC: DEL the ranking sorted set,
//     then HSET item:<id> and ZADD item:popular per item. Readers never see a
//     half-built ranking. TopN reads only the store: one ZREVRANGE plus one
//     pipelined batch of HGETALL.
//
//   - Staleness: the ranking is exactly as fresh as the last successful
//     Refresh. A failing source leaves the previous snapshot in place. Item
//     hashes that drop out of the ranking are left behind unless
//     PruneOrphans is set. Pruning lags one refresh (a dropped hash is
//     deleted by the next Refresh), so a TopN racing a single Refresh never
//     loses the records of the ranking it read.
//
//   - Recency: RecordView pushes the item id to the head of
//     subject:<id>:recent_views, trims the list to MaxEntries and resets its
//     TTL, all in one pipeline. Recent reads the list back, newest first.
//
//   - Metrics and tracing: Options.Metrics receives refresh/read signals
//     (NoopMetrics by default; see metrics/prom). Every operation runs in an
//     OpenTelemetry span taken from the global tracer provider.
//
// Basic usage
//
//	st := memstore.New(memstore.Options{})
//	src := source.Static{{ItemID: 1, Title: "Carpathians", Price: decimal.RequireFromString("120"), Count: 7}}
//
//	pop := cache.NewPopularityCache(st, src, cache.PopularityOptions{})
//	if err := pop.Refresh(ctx); err != nil {
//	    // errors.Is(err, cache.ErrSourceUnavailable): previous ranking still served
//	}
//	top, err := pop.TopN(ctx, 5)
//
// Recently viewed
//
//	rec := cache.NewRecencyTracker(st, cache.RecencyOptions{})
//	_ = rec.RecordView(ctx, "42", 1001)
//	ids, err := rec.Recent(ctx, "42") // [1001]
//
// Against Redis
//
//	st, err := redisstore.Dial(ctx, "redis://localhost:6379/0")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
//
// Thread-safety
//
// PopularityCache and RecencyTracker hold no mutable state besides the
// optional refresh coalescing group and are safe for concurrent use. Several
// writers calling Refresh concurrently race; the last EXEC wins in full.
package cache
