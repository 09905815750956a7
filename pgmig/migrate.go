// Versioned schema migrations for the hookgen
// postgres schema.
package pgmig

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/indexsupply/hookgen/wpg"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Migration struct {
	SQL string
	// Some types of DDL cannot run inside a transaction.
	// EG CREATE INDEX CONCURRENTLY
	// For these cases callers should disable transactions
	DisableTX bool
}

func normalizeSQL(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func (m Migration) Hash() []byte {
	s := normalizeSQL(m.SQL)
	h := sha256.Sum256([]byte(s))
	return h[:]
}

type Migrations map[int]Migration

// Keys in ascending order
func (migs Migrations) Order() []int {
	keys := make([]int, 0, len(migs))
	for k := range migs {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Runs migs against pgp in key order.
//
// The keys are written to the idx column of the
// hookgen.migrations table which is created if it
// doesn't already exist. A migration whose idx and
// hash are already recorded is skipped.
//
// Migrate uses pg_try_advisory_lock to ensure that only
// one process is migrating the database at a time. An error
// is returned if another process has the lock.
func Migrate(ctx context.Context, pgp *pgxpool.Pool, migs Migrations) error {
	conn, err := pgp.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring conn: %w", err)
	}
	defer conn.Release()

	lock := wpg.LockHash("hookgen-migrate")
	var locked bool
	err = conn.QueryRow(ctx, `select pg_try_advisory_lock($1)`, lock).Scan(&locked)
	if err != nil || !locked {
		return fmt.Errorf("locking db for migrations: %w", err)
	}
	defer conn.Exec(ctx, `select pg_advisory_unlock($1)`, lock)

	const q1 = `create schema if not exists hookgen`
	if _, err := conn.Exec(ctx, q1); err != nil {
		return fmt.Errorf("creating hookgen schema: %w", err)
	}
	const q2 = `
		create table if not exists hookgen.migrations (
			idx int not null,
			hash bytea not null,
			inserted_at timestamptz default now() not null,
			primary key (idx, hash)
		);
	`
	if _, err := conn.Exec(ctx, q2); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}
	for _, i := range migs.Order() {
		if err := run(ctx, conn.Conn(), i, migs[i]); err != nil {
			return err
		}
	}
	return nil
}

func run(ctx context.Context, conn *pgx.Conn, i int, m Migration) error {
	var db wpg.Conn = conn
	if !m.DisableTX {
		tx, err := conn.Begin(ctx)
		if err != nil {
			return fmt.Errorf("opening a tx: %w", err)
		}
		defer tx.Rollback(ctx)
		db = tx
	}
	ok, err := exists(ctx, db, i, m)
	if err != nil {
		return fmt.Errorf("checking migration existence: %w", err)
	}
	if ok {
		return nil
	}
	if err := migrate(ctx, db, i, m); err != nil {
		return fmt.Errorf("running migration: %w", err)
	}
	if tx, ok := db.(pgx.Tx); ok {
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commiting migration tx: %w", err)
		}
	}
	slog.InfoContext(ctx, "migrated", "idx", i, "hash", fmt.Sprintf("%x", m.Hash()[:4]))
	return nil
}

func migrate(ctx context.Context, db wpg.Conn, i int, m Migration) error {
	_, err := db.Exec(ctx, m.SQL)
	if err != nil {
		return fmt.Errorf("migration %d %x exec error: %w", i, m.Hash(), err)
	}
	const q = `insert into hookgen.migrations(idx, hash) values ($1, $2)`
	_, err = db.Exec(ctx, q, i, m.Hash())
	if err != nil {
		return fmt.Errorf("migrations table %d %x insert error: %w", i, m.Hash(), err)
	}
	return nil
}

func exists(ctx context.Context, db wpg.Conn, i int, m Migration) (bool, error) {
	const q = `select true from hookgen.migrations where idx = $1 and hash = $2`
	var found bool
	err := db.QueryRow(ctx, q, i, m.Hash()).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying for existing migration: %w", err)
	}
	return found, nil
}
