// Package source defines the source-of-truth capability the popularity
// cache refreshes from: the current top items by aggregate count.
package source

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// Record is one row of the popularity aggregate.
type Record struct {
	ItemID int64
	Title  string
	Price  decimal.Decimal
	Count  int64 // >= 0
}

// Source returns at most limit records ordered by Count descending.
type Source interface {
	TopItems(ctx context.Context, limit int) ([]Record, error)
}

// Func adapts a plain function to Source.
type Func func(ctx context.Context, limit int) ([]Record, error)

func (f Func) TopItems(ctx context.Context, limit int) ([]Record, error) { return f(ctx, limit) }

// Static serves a fixed record set, sorted and truncated like a real query.
// Useful for tests, demos and the bench command.
type Static []Record

func (s Static) TopItems(ctx context.Context, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := append([]Record(nil), s...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ItemID < out[j].ItemID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
