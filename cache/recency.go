package cache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/IvanBrykalov/popcache/store"
)

// RecencyTracker keeps a bounded, expiring list of recently viewed item ids
// per subject, stored at "<KeyPrefix><subject>:recent_views".
type RecencyTracker struct {
	st  store.Store
	opt RecencyOptions
	log zerolog.Logger
}

// NewRecencyTracker binds a tracker to its store. See RecencyOptions for defaults.
func NewRecencyTracker(st store.Store, opt RecencyOptions) *RecencyTracker {
	if st == nil {
		panic("cache: NewRecencyTracker needs a store")
	}
	opt = opt.withDefaults()
	return &RecencyTracker{st: st, opt: opt, log: loggerOrNop(opt.Logger)}
}

// Key returns the store key of subject's log.
func (t *RecencyTracker) Key(subject string) string {
	return t.opt.KeyPrefix + subject + recentViewsKeySuffix
}

// RecordView issues LPUSH, LTRIM 0 MaxEntries-1 and EXPIRE TTL, in that
// order, as one pipeline.
func (t *RecencyTracker) RecordView(ctx context.Context, subject string, itemID int64) error {
	if subject == "" {
		return ErrInvalidSubject
	}
	ctx, span := tracer.Start(ctx, "RecencyTracker.RecordView")
	defer span.End()
	span.SetAttributes(attribute.String("subject", subject), attribute.Int64("item", itemID))

	key := t.Key(subject)
	p := t.st.Pipeline()
	if t.opt.Transactional {
		p = t.st.TxPipeline()
	}
	p.LPush(key, strconv.FormatInt(itemID, 10))
	p.LTrim(key, 0, int64(t.opt.MaxEntries-1))
	p.Expire(key, t.opt.TTL)
	if err := p.Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.log.Error().Err(err).Str("subject", subject).Int64("item", itemID).Msg("could not record view")
		return fmt.Errorf("%w: record view: %w", ErrStoreUnavailable, err)
	}
	t.opt.Metrics.ViewRecorded()
	return nil
}

// Recent returns the subject's recently viewed items, most recent first.
// Entries that are not integers are skipped.
func (t *RecencyTracker) Recent(ctx context.Context, subject string) ([]int64, error) {
	if subject == "" {
		return nil, ErrInvalidSubject
	}
	ctx, span := tracer.Start(ctx, "RecencyTracker.Recent")
	defer span.End()
	span.SetAttributes(attribute.String("subject", subject))

	raw, err := t.st.LRange(ctx, t.Key(subject), 0, int64(t.opt.MaxEntries-1))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: read recent views: %w", ErrStoreUnavailable, err)
	}
	out := make([]int64, 0, len(raw))
	for _, v := range raw {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			t.log.Warn().Str("subject", subject).Str("entry", v).Msg("skipping malformed recent view entry")
			continue
		}
		out = append(out, id)
	}
	t.opt.Metrics.RecentRead(len(out))
	return out, nil
}
