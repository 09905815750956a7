// Postgres helpers shared by the storage
// and migration packages.
package wpg

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx
type Conn interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

var (
	lockCollisions    = map[int64]string{}
	lockCollisionsMut sync.Mutex
)

// Uses fnva to compute a key for pg_advisory_lock.
// This is an expensive function since it uses a global map
// and a mutex to check if there was a hash collision.
func LockHash(s string) int64 {
	f := fnv.New32a()
	if _, err := f.Write([]byte(s)); err != nil {
		panic(err)
	}
	n := int64(f.Sum32())

	lockCollisionsMut.Lock()
	defer lockCollisionsMut.Unlock()
	if prev, ok := lockCollisions[n]; ok {
		if prev != s {
			panic(fmt.Sprintf("fnva collision: %s %s %d", s, prev, n))
		}
	} else {
		lockCollisions[n] = s
	}
	return n
}

// Opens a pool and checks that the database is reachable.
func NewPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parsing pg url: %w", err)
	}
	pgp, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening pg pool: %w", err)
	}
	if err := pgp.Ping(ctx); err != nil {
		pgp.Close()
		return nil, fmt.Errorf("connecting to %s: %w", cfg.ConnConfig.Host, err)
	}
	return pgp, nil
}

const TestURLEnv = "HOOKGEN_TEST_PG"

// Returns a pool for the database named by
// HOOKGEN_TEST_PG and skips the test when it isn't set.
// schema is dropped before and after the test.
func TestPG(tb testing.TB, schema string) *pgxpool.Pool {
	tb.Helper()
	url := os.Getenv(TestURLEnv)
	if url == "" {
		tb.Skipf("%s not set", TestURLEnv)
	}
	ctx := context.Background()
	pgp, err := NewPool(ctx, url)
	if err != nil {
		tb.Fatal(err)
	}
	drop := func() {
		q := fmt.Sprintf("drop schema if exists %s cascade", pgx.Identifier{schema}.Sanitize())
		if _, err := pgp.Exec(ctx, q); err != nil {
			tb.Fatalf("dropping schema %s: %s", schema, err)
		}
	}
	drop()
	tb.Cleanup(func() {
		drop()
		pgp.Close()
	})
	return pgp
}
