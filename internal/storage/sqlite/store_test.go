package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/issuetag/internal/storage"
	"github.com/steveyegge/issuetag/internal/types"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "issues.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestConnString(t *testing.T) {
	assert.Equal(t, "file:memdb?mode=memory&_pragma=busy_timeout(30000)", connString(":memory:"))
	assert.Equal(t, "file:x.db?mode=ro", connString("file:x.db?mode=ro"))
	assert.Equal(t, "file:x.db?_pragma=busy_timeout(30000)", connString("file:x.db"))
	assert.Equal(t, "file:/tmp/a.db?_pragma=busy_timeout(30000)&_pragma=journal_mode(WAL)", connString("/tmp/a.db"))
}

func TestEnsureSchemaTwice(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	for i := 0; i < 2; i++ {
		err := store.Unit(ctx, func(ctx context.Context, ex storage.Execer) error {
			return storage.EnsureSchema(ctx, ex, store.Dialect(), []string{"isTest"}, nil)
		})
		require.NoError(t, err, "pass %d", i+1)
	}

	rows, err := store.DB().QueryContext(ctx, "SELECT name FROM pragma_table_info('issue')")
	require.NoError(t, err)
	defer rows.Close()

	seen := map[string]int{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		seen[name]++
	}
	require.NoError(t, rows.Err())
	assert.Len(t, seen, len(storage.IssueColumns())+1)
	for name, n := range seen {
		assert.Equal(t, 1, n, "column %s duplicated", name)
	}
}

func TestTextRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	p := storage.NewPersister(store.Dialect(), nil, nil)

	summary := `O'Brien's "quote" \ backslash`
	batch := types.NewBatch()
	batch.Add(&types.Issue{ID: 1, Key: "PROJ-1", Summary: summary}, nil, nil)

	err := store.Unit(ctx, func(ctx context.Context, ex storage.Execer) error {
		_, err := p.Persist(ctx, ex, batch)
		return err
	})
	require.NoError(t, err)

	var got string
	require.NoError(t, store.DB().QueryRowContext(ctx, "SELECT summary FROM issue WHERE id = 1").Scan(&got))
	assert.Equal(t, summary, got)
}

func TestPersistIdempotent(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	p := storage.NewPersister(store.Dialect(), []string{"isTest"}, nil)

	body := "first"
	batch := types.NewBatch()
	batch.Add(&types.Issue{ID: 1, Key: "PROJ-1", Summary: "one"},
		[]*types.Comment{{ID: 7, IssueKey: "PROJ-1", Body: &body}}, nil)
	batch.Add(&types.Issue{ID: 2, Key: "PROJ-2", Summary: "two"}, nil,
		[]*types.Attachment{{IssueKey: "PROJ-2", Filename: "a.log", Size: 3}})

	snapshot := func() []string {
		var out []string
		for _, q := range []string{
			"SELECT id || '|' || issue_key || '|' || summary || '|' || numComments || '|' || numAttachments FROM issue ORDER BY id",
			"SELECT comment_id || '|' || issue_key || '|' || body FROM comment ORDER BY comment_id",
			"SELECT issue_key || '|' || filename || '|' || size FROM attachment ORDER BY issue_key, filename",
		} {
			rows, err := store.DB().QueryContext(ctx, q)
			require.NoError(t, err)
			for rows.Next() {
				var s string
				require.NoError(t, rows.Scan(&s))
				out = append(out, s)
			}
			require.NoError(t, rows.Err())
			_ = rows.Close()
		}
		return out
	}

	persist := func() {
		err := store.Transaction(ctx, func(ctx context.Context, ex storage.Execer) error {
			_, err := p.Persist(ctx, ex, batch)
			return err
		})
		require.NoError(t, err)
	}

	persist()
	first := snapshot()
	persist()
	second := snapshot()

	assert.Equal(t, []string{
		"1|PROJ-1|one|1|0",
		"2|PROJ-2|two|0|1",
		"7|PROJ-1|first",
		"PROJ-2|a.log|3",
	}, first)
	assert.Equal(t, first, second)
}

func TestTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.Unit(ctx, func(ctx context.Context, ex storage.Execer) error {
		_, err := ex.ExecContext(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY)")
		return err
	}))

	boom := errors.New("boom")
	err := store.Transaction(ctx, func(ctx context.Context, ex storage.Execer) error {
		if _, err := ex.ExecContext(ctx, "INSERT INTO t (id) VALUES (1)"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, store.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM t").Scan(&n))
	assert.Equal(t, 0, n)
}

func TestUnitReleasesConnection(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	// The pool holds a single connection; a leaked one would block forever.
	for i := 0; i < 3; i++ {
		err := store.Unit(ctx, func(ctx context.Context, ex storage.Execer) error {
			return sql.ErrNoRows
		})
		require.ErrorIs(t, err, sql.ErrNoRows)
	}
	require.NoError(t, store.DB().PingContext(ctx))
}

func TestUnicodeCaseFolding(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	var lowered string
	require.NoError(t, store.DB().QueryRowContext(ctx, "SELECT lower('ÄRGER Ωmega')").Scan(&lowered))
	assert.Equal(t, "ärger ωmega", lowered)

	var match bool
	require.NoError(t, store.DB().QueryRowContext(ctx,
		"SELECT lower('ÜBER_alles') LIKE '%über!_%' ESCAPE '!'").Scan(&match))
	assert.True(t, match)
}
