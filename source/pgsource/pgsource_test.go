package pgsource

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRows serves canned (id, title, price, hits) tuples.
type fakeRows struct {
	rows [][4]any
	i    int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.i >= len(r.rows) {
		return false
	}
	r.i++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.i-1]
	*dest[0].(*int64) = row[0].(int64)
	*dest[1].(*string) = row[1].(string)
	*dest[2].(*string) = row[2].(string)
	*dest[3].(*int64) = row[3].(int64)
	return nil
}

type fakeQuerier struct {
	rows  *fakeRows
	err   error
	sql   string
	limit any
}

func (q *fakeQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.sql = sql
	if len(args) > 0 {
		q.limit = args[0]
	}
	if q.err != nil {
		return nil, q.err
	}
	return q.rows, nil
}

func TestTopItems_ScansRows(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{rows: &fakeRows{rows: [][4]any{
		{int64(2), "Odesa seaside", "85.50", int64(3)},
		{int64(1), "Carpathians", "120.00", int64(2)},
	}}}
	recs, err := New(q, Options{}).TopItems(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, 10, q.limit)
	assert.Contains(t, q.sql, `FROM "items" i`)
	assert.Contains(t, q.sql, `LEFT JOIN "item_events" e`)
	assert.Equal(t, int64(2), recs[0].ItemID)
	assert.Equal(t, "85.5", recs[0].Price.String())
	assert.Equal(t, int64(3), recs[0].Count)
}

func TestTopItems_CustomTablesAreQuoted(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{rows: &fakeRows{}}
	_, err := New(q, Options{ItemsTable: "tours", EventsTable: `book"ings`}).TopItems(context.Background(), 5)
	require.NoError(t, err)
	assert.Contains(t, q.sql, `FROM "tours" i`)
	assert.Contains(t, q.sql, `LEFT JOIN "book""ings" e`)
}

func TestTopItems_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	boom := errors.New("connection reset")
	_, err := New(&fakeQuerier{err: boom}, Options{}).TopItems(ctx, 10)
	assert.ErrorIs(t, err, boom)

	_, err = New(&fakeQuerier{rows: &fakeRows{err: boom}}, Options{}).TopItems(ctx, 10)
	assert.ErrorIs(t, err, boom)

	bad := &fakeQuerier{rows: &fakeRows{rows: [][4]any{{int64(1), "x", "not-a-number", int64(1)}}}}
	_, err = New(bad, Options{}).TopItems(ctx, 10)
	assert.ErrorContains(t, err, "invalid price")
}
