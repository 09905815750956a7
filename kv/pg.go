package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/indexsupply/hookgen/pgmig"
	"github.com/indexsupply/hookgen/wpg"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var Migrations = pgmig.Migrations{
	0: pgmig.Migration{
		SQL: `
			create table if not exists hookgen.kv (
				k text primary key,
				v text not null,
				updated_at timestamptz default now() not null
			);
		`,
	},
}

type PG struct {
	pgp *pgxpool.Pool
}

// Connects to url and migrates the hookgen schema
func OpenPG(ctx context.Context, url string) (*PG, error) {
	pgp, err := wpg.NewPool(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := pgmig.Migrate(ctx, pgp, Migrations); err != nil {
		pgp.Close()
		return nil, fmt.Errorf("migrating: %w", err)
	}
	return NewPG(pgp), nil
}

// pgp must already be migrated
func NewPG(pgp *pgxpool.Pool) *PG {
	return &PG{pgp: pgp}
}

func (p *PG) Get(ctx context.Context, key string) (string, error) {
	return get(ctx, p.pgp, key)
}

func get(ctx context.Context, pg wpg.Conn, key string) (string, error) {
	var v string
	err := pg.QueryRow(ctx, `select v from hookgen.kv where k = $1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	return v, nil
}

func (p *PG) Put(ctx context.Context, key, value string) error {
	const q = `
		insert into hookgen.kv (k, v) values ($1, $2)
		on conflict (k) do update set v = excluded.v, updated_at = now()
	`
	if _, err := p.pgp.Exec(ctx, q, key, value); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func (p *PG) Close() error {
	p.pgp.Close()
	return nil
}
