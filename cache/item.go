package cache

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/IvanBrykalov/popcache/source"
	"github.com/IvanBrykalov/popcache/store"
)

// Hash field names of an item record.
const (
	fieldID    = "id"
	fieldTitle = "title"
	fieldPrice = "price"
)

// ItemSummary is one entry of the ranking, as read back by TopN.
type ItemSummary struct {
	ID    int64           `json:"id"`
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
	// Score is the popularity count the item was ranked with.
	Score float64 `json:"score"`
	// Degraded is set when the item's hash was missing (e.g. evicted) or
	// held malformed fields. Whatever could be recovered is still filled in.
	Degraded bool `json:"degraded,omitempty"`
}

func itemFields(r source.Record) map[string]string {
	return map[string]string{
		fieldID:    strconv.FormatInt(r.ItemID, 10),
		fieldTitle: r.Title,
		fieldPrice: r.Price.String(),
	}
}

// decodeItem rebuilds a summary from a ranking member and its hash fields.
func decodeItem(z store.Z, prefix string, fields map[string]string) ItemSummary {
	s := ItemSummary{Score: z.Score}
	if len(fields) == 0 {
		s.Degraded = true
		if raw, ok := strings.CutPrefix(z.Member, prefix); ok {
			s.ID, _ = strconv.ParseInt(raw, 10, 64)
		}
		return s
	}

	var err error
	s.Title = fields[fieldTitle]
	if s.ID, err = strconv.ParseInt(fields[fieldID], 10, 64); err != nil {
		s.Degraded = true
		if raw, ok := strings.CutPrefix(z.Member, prefix); ok {
			s.ID, _ = strconv.ParseInt(raw, 10, 64)
		}
	}
	if s.Price, err = decimal.NewFromString(fields[fieldPrice]); err != nil {
		s.Degraded = true
		s.Price = decimal.Zero
	}
	return s
}
