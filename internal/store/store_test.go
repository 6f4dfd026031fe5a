package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRows serves fixed rows of (id, path1..path4).
type fakeRows struct {
	rows   [][5]any
	pos    int
	closed bool
	err    error
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }

func (r *fakeRows) Next() bool {
	if r.closed || r.pos >= len(r.rows) {
		r.closed = true
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]any, error) {
	row := r.rows[r.pos-1]
	return row[:], nil
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("expected %d destinations, got %d", len(row), len(dest))
	}
	*dest[0].(*int64) = row[0].(int64)
	for i := 1; i < len(row); i++ {
		p := dest[i].(**string)
		if row[i] == nil {
			*p = nil
			continue
		}
		s := row[i].(string)
		*p = &s
	}
	return nil
}

type fakeQuerier struct {
	rows  *fakeRows
	err   error
	calls int
	sql   string
	args  []any
}

func (q *fakeQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.calls++
	q.sql = sql
	q.args = args
	if q.err != nil {
		return nil, q.err
	}
	return q.rows, nil
}

func TestFetchSnapshots_ScansRows(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{rows: [][5]any{
		{int64(3), "c1.png", nil, nil, nil},
		{int64(1), "a1.png", nil, "a3.png", nil},
	}}}

	records, err := New(q).FetchSnapshots(context.Background(), []uint32{1, 2, 3})
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, uint32(3), records[0].DataCollectionID)
	assert.Equal(t, []string{"c1.png"}, records[0].RawPaths())
	assert.Equal(t, uint32(1), records[1].DataCollectionID)
	assert.Equal(t, []string{"a1.png", "a3.png"}, records[1].RawPaths())
	assert.Nil(t, records[1].Paths[1])

	assert.Equal(t, 1, q.calls)
	assert.Contains(t, q.sql, `= ANY($1::bigint[])`)
	assert.Equal(t, []any{[]int64{1, 2, 3}}, q.args)
	assert.True(t, q.rows.closed)
}

func TestFetchSnapshots_EmptyIDsSkipsQuery(t *testing.T) {
	q := &fakeQuerier{}

	records, err := New(q).FetchSnapshots(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, q.calls)
}

func TestFetchSnapshots_QueryError(t *testing.T) {
	cause := &pgconn.PgError{Code: "42P01", Message: `relation "DataCollection" does not exist`}
	q := &fakeQuerier{err: cause}

	_, err := New(q).FetchSnapshots(context.Background(), []uint32{1})

	require.Error(t, err)
	var pgErr *pgconn.PgError
	assert.True(t, errors.As(err, &pgErr))
	assert.Contains(t, err.Error(), "1 data collections")
}

func TestFetchSnapshots_RowsError(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{err: errors.New("conn reset")}}

	_, err := New(q).FetchSnapshots(context.Background(), []uint32{1})

	assert.ErrorContains(t, err, "conn reset")
}

func TestFetchSnapshots_RejectsOutOfRangeID(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{rows: [][5]any{
		{int64(1) << 40, nil, nil, nil, nil},
	}}}

	_, err := New(q).FetchSnapshots(context.Background(), []uint32{1})

	assert.ErrorContains(t, err, "out of range")
}
