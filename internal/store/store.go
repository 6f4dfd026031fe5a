// Package store reads crystal snapshot paths from the ISPyB DataCollection
// table.
package store

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"

	"github.com/xtal-snapshots/crystal-snapshots/pkg/snapshots"
)

// fetchSnapshotsSQL reads the four snapshot path columns for a set of data
// collections in one round trip.
const fetchSnapshotsSQL = `SELECT "dataCollectionId",
       "xtalSnapshotFullPath1",
       "xtalSnapshotFullPath2",
       "xtalSnapshotFullPath3",
       "xtalSnapshotFullPath4"
  FROM "DataCollection"
 WHERE "dataCollectionId" = ANY($1::bigint[])`

// Querier is the part of *pgxpool.Pool the store needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore implements snapshots.Store with a single bulk query per call.
type PostgresStore struct {
	q Querier
}

var _ snapshots.Store = (*PostgresStore)(nil)

// New returns a store querying through q.
func New(q Querier) *PostgresStore {
	return &PostgresStore{q: q}
}

// FetchSnapshots returns the records of the data collections in ids.
func (s *PostgresStore) FetchSnapshots(ctx context.Context, ids []uint32) ([]snapshots.SnapshotRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]int64, len(ids))
	for i, id := range ids {
		keys[i] = int64(id)
	}

	rows, err := s.q.Query(ctx, fetchSnapshotsSQL, keys)
	if err != nil {
		return nil, fmt.Errorf("query snapshots of %d data collections: %w", len(ids), err)
	}

	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("read snapshots of %d data collections: %w", len(ids), err)
	}
	return records, nil
}

func scanRecord(row pgx.CollectableRow) (snapshots.SnapshotRecord, error) {
	var (
		id  int64
		rec snapshots.SnapshotRecord
	)
	if err := row.Scan(&id, &rec.Paths[0], &rec.Paths[1], &rec.Paths[2], &rec.Paths[3]); err != nil {
		return rec, err
	}
	if id < 0 || id > math.MaxUint32 {
		return rec, fmt.Errorf("data collection id %d out of range", id)
	}
	rec.DataCollectionID = uint32(id)
	return rec, nil
}
