// Package pgsource implements source.Source as an aggregate query against
// PostgreSQL using pgx.
package pgsource

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/IvanBrykalov/popcache/source"
)

// Schema creates the tables the default query reads. Applications with their
// own schema point Options at it instead.
const Schema = `
CREATE TABLE IF NOT EXISTS items (
	id    BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	price NUMERIC(12, 2) NOT NULL
);
CREATE TABLE IF NOT EXISTS item_events (
	id      BIGSERIAL PRIMARY KEY,
	item_id BIGINT NOT NULL REFERENCES items (id)
);
CREATE INDEX IF NOT EXISTS item_events_item_id_idx ON item_events (item_id);
`

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Options names the tables used by the aggregate query.
// Empty fields fall back to "items" and "item_events".
type Options struct {
	ItemsTable  string
	EventsTable string
}

// Source counts events per item and returns the most popular items.
type Source struct {
	db    Querier
	query string
}

var _ source.Source = (*Source)(nil)

// New builds a Source over db.
func New(db Querier, opt Options) *Source {
	if opt.ItemsTable == "" {
		opt.ItemsTable = "items"
	}
	if opt.EventsTable == "" {
		opt.EventsTable = "item_events"
	}
	items := pgx.Identifier{opt.ItemsTable}.Sanitize()
	events := pgx.Identifier{opt.EventsTable}.Sanitize()
	return &Source{
		db: db,
		// Items without events still rank, with a zero count.
		query: fmt.Sprintf(`SELECT i.id, i.title, i.price::text, COUNT(e.id) AS hits
FROM %s i
LEFT JOIN %s e ON e.item_id = i.id
GROUP BY i.id, i.title, i.price
ORDER BY hits DESC, i.id
LIMIT $1`, items, events),
	}
}

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("could not configure postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("could not connect to postgres: %w", err)
	}
	return pool, nil
}

// TopItems runs the aggregate query.
func (s *Source) TopItems(ctx context.Context, limit int) ([]source.Record, error) {
	rows, err := s.db.Query(ctx, s.query, limit)
	if err != nil {
		return nil, fmt.Errorf("popularity query: %w", err)
	}
	defer rows.Close()

	var out []source.Record
	for rows.Next() {
		var (
			r     source.Record
			price string
		)
		if err := rows.Scan(&r.ItemID, &r.Title, &price, &r.Count); err != nil {
			return nil, fmt.Errorf("popularity query scan: %w", err)
		}
		if r.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("item %d has invalid price %q: %w", r.ItemID, price, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("popularity query: %w", err)
	}
	return out, nil
}
