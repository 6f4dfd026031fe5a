// Package testing holds helpers shared by the integration tests.
package testing

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xtal-snapshots/crystal-snapshots/internal/testinfra"
)

// TestConnEnv names a connection string that replaces the testcontainer.
const TestConnEnv = "CRYSTAL_SNAPSHOTS_TEST_CONN"

var (
	testContainerOnce sync.Once
	testContainerConn string
	testContainerErr  error
)

func getOrStartTestContainer() (string, error) {
	testContainerOnce.Do(func() {
		container, err := testinfra.StartPostgres(context.Background())
		if err != nil {
			testContainerErr = err
			return
		}
		testContainerConn = container.ConnString
	})
	return testContainerConn, testContainerErr
}

// RequireDatabase returns a connection string for the integration database.
// The test is skipped in -short mode, or when neither TestConnEnv is set nor
// Docker is available.
func RequireDatabase(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if connString := os.Getenv(TestConnEnv); connString != "" {
		return connString
	}

	connString, err := getOrStartTestContainer()
	if err != nil {
		t.Skipf("%s not set and Docker unavailable: %v", TestConnEnv, err)
	}
	return connString
}

// NewPool opens a pool that is closed when the test completes.
func NewPool(t *testing.T, connString string) *pgxpool.Pool {
	t.Helper()

	pool, err := pgxpool.New(t.Context(), connString)
	if err != nil {
		t.Fatalf("Failed to create connection pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// dataCollectionDDL is the subset of the ISPyB DataCollection table the
// service reads.
const dataCollectionDDL = `
CREATE TABLE IF NOT EXISTS "DataCollection" (
    "dataCollectionId"      bigint PRIMARY KEY,
    "xtalSnapshotFullPath1" varchar(255),
    "xtalSnapshotFullPath2" varchar(255),
    "xtalSnapshotFullPath3" varchar(255),
    "xtalSnapshotFullPath4" varchar(255)
)`

// DataCollectionFixture builds rows for the DataCollection table.
//
//	testhelpers.NewDataCollectionFixture().
//	    Add(1, "a.png", "", "c.png").
//	    Add(2).
//	    Insert(t, pool)
type DataCollectionFixture struct {
	rows map[uint32][4]*string
	ids  []uint32
}

func NewDataCollectionFixture() *DataCollectionFixture {
	return &DataCollectionFixture{rows: make(map[uint32][4]*string)}
}

// Add records a data collection. paths fill the snapshot slots in order; an
// empty string leaves its slot NULL.
func (f *DataCollectionFixture) Add(id uint32, paths ...string) *DataCollectionFixture {
	if len(paths) > 4 {
		panic(fmt.Sprintf("data collection %d: at most 4 snapshot paths, got %d", id, len(paths)))
	}

	var slots [4]*string
	for i, p := range paths {
		if p != "" {
			slots[i] = &paths[i]
		}
	}
	if _, exists := f.rows[id]; !exists {
		f.ids = append(f.ids, id)
	}
	f.rows[id] = slots
	return f
}

// Insert creates the table if needed, empties it and writes the fixture rows.
func (f *DataCollectionFixture) Insert(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx := t.Context()

	if _, err := pool.Exec(ctx, dataCollectionDDL); err != nil {
		t.Fatalf("Failed to create DataCollection table: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE "DataCollection"`); err != nil {
		t.Fatalf("Failed to truncate DataCollection: %v", err)
	}

	for _, id := range f.ids {
		s := f.rows[id]
		_, err := pool.Exec(ctx,
			`INSERT INTO "DataCollection" VALUES ($1, $2, $3, $4, $5)`,
			int64(id), s[0], s[1], s[2], s[3])
		if err != nil {
			t.Fatalf("Failed to insert data collection %d: %v", id, err)
		}
	}
	t.Logf("Inserted %d data collections: %s", len(f.ids), strings.Trim(fmt.Sprint(f.ids), "[]"))
}
