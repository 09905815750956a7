package pgmig

import (
	"context"
	"strings"
	"testing"

	"github.com/indexsupply/hookgen/wpg"
	"kr.dev/diff"
)

func TestHash(t *testing.T) {
	a := Migration{SQL: "create table x(id int)"}
	b := Migration{SQL: "\n\tcreate   table x(id int)\n"}
	c := Migration{SQL: "create table y(id int)"}
	diff.Test(t, t.Errorf, a.Hash(), b.Hash())
	if string(a.Hash()) == string(c.Hash()) {
		t.Error("expected different hashes")
	}
	diff.Test(t, t.Errorf, normalizeSQL(b.SQL), a.SQL)
}

func TestOrder(t *testing.T) {
	migs := Migrations{2: {}, 0: {}, 1: {}}
	diff.Test(t, t.Errorf, migs.Order(), []int{0, 1, 2})
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	pg := wpg.TestPG(t, "hookgen")
	reset := func() {
		for _, q := range []string{
			"drop schema if exists hookgen cascade",
			"drop table if exists public.x",
			"drop table if exists public.t",
		} {
			if _, err := pg.Exec(ctx, q); err != nil {
				t.Fatalf("reset: %s", err)
			}
		}
	}
	t.Cleanup(reset)

	cases := []struct {
		migs     Migrations
		check    string
		errCheck func(error) bool
	}{
		{
			migs: Migrations{
				0: Migration{SQL: "create table x(id int)"},
			},
			check: `select true from pg_tables where tablename = 'x'`,
		},
		{
			migs: Migrations{
				0: Migration{SQL: "create table x(id int)"},
				1: Migration{SQL: "create table x(id int)"},
			},
			check: `select true from pg_tables where tablename = 'x'`,
			errCheck: func(err error) bool {
				return strings.Contains(err.Error(), `"x" already exists`)
			},
		},
		{
			migs: Migrations{
				0: Migration{SQL: "create table t(x int)"},
				1: Migration{SQL: "create index concurrently on t(x)"},
			},
			errCheck: func(err error) bool {
				msg := `CREATE INDEX CONCURRENTLY cannot run inside a transaction block`
				return strings.Contains(err.Error(), msg)
			},
		},
		{
			migs: Migrations{
				0: Migration{SQL: "create table t(x int)"},
				1: Migration{DisableTX: true, SQL: "create index concurrently on t(x)"},
			},
		},
	}
	for _, tc := range cases {
		reset()
		switch err := Migrate(ctx, pg, tc.migs); {
		case tc.errCheck == nil:
			if err != nil {
				t.Errorf("expected err to be nil. got: %s", err)
			}
		default:
			if err == nil || !tc.errCheck(err) {
				t.Errorf("unexpected error: %v", err)
			}
		}
		if tc.check != "" {
			var check bool
			err := pg.QueryRow(ctx, tc.check).Scan(&check)
			diff.Test(t, t.Fatalf, err, nil)
		}
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	ctx := context.Background()
	pg := wpg.TestPG(t, "hookgen")
	migs := Migrations{0: Migration{SQL: "create table hookgen.y(id int)"}}
	diff.Test(t, t.Fatalf, Migrate(ctx, pg, migs), nil)
	diff.Test(t, t.Fatalf, Migrate(ctx, pg, migs), nil)
	var n int
	err := pg.QueryRow(ctx, "select count(*) from hookgen.migrations").Scan(&n)
	diff.Test(t, t.Fatalf, err, nil)
	diff.Test(t, t.Errorf, n, 1)
}
