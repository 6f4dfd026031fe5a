package snapshots

import (
	"context"
	"time"
)

// Store fetches snapshot records from the relational backing store.
type Store interface {
	// FetchSnapshots returns the records whose data collection id is in ids.
	// Ids without a record are simply missing from the result; rows come back
	// in no particular order.
	FetchSnapshots(ctx context.Context, ids []uint32) ([]SnapshotRecord, error)
}

// Signer turns a raw object-storage path into a time-limited URL.
// Implementations must be safe for concurrent use and must not keep state
// between calls.
type Signer interface {
	// Sign returns a URL granting read access to path in bucket, valid for
	// expires from the moment of the call.
	Sign(ctx context.Context, bucket, path string, expires time.Duration) (string, error)
}

// SnapshotLoader resolves the signed snapshot URLs of a single data collection.
// ok is false when no snapshots are recorded for id.
type SnapshotLoader interface {
	Load(ctx context.Context, id uint32) (urls []string, ok bool, err error)
}
