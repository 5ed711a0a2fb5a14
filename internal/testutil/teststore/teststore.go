// Package teststore opens isolated stores for tests and reads back what the
// pipeline wrote.
//
// SQLite stores need nothing installed. Dolt stores use the embedded engine
// and are skipped in binaries built without CGO.
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    env := teststore.NewEnv(t, teststore.SQLite(t))
//	    env.Persist([]string{"isTest"}, issue)
//	    keys := env.Tagged("isTest")
//	}
package teststore

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/steveyegge/issuetag/internal/storage"
	"github.com/steveyegge/issuetag/internal/storage/dolt"
	"github.com/steveyegge/issuetag/internal/storage/sqlite"
	"github.com/steveyegge/issuetag/internal/types"
)

// doltInitMu serializes Dolt engine creation to avoid data races in the
// go-mysql-server global status variable initialization (upstream issue).
var doltInitMu sync.Mutex

// SQLite opens a store on a fresh SQLite file, closed when the test ends.
func SQLite(t testing.TB) *storage.Store {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "issues.db"))
	if err != nil {
		t.Fatalf("teststore: failed to open SQLite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// Dolt opens an embedded Dolt store in a temp directory. The test is
// skipped when embedded Dolt is unavailable or with -short.
func Dolt(t testing.TB) *storage.Store {
	t.Helper()
	if !dolt.EmbeddedAvailable {
		t.Skip("embedded Dolt needs CGO, skipping test")
	}
	if testing.Short() {
		t.Skip("skipping embedded Dolt store in short mode")
	}

	doltInitMu.Lock()
	store, err := dolt.Open(context.Background(), dolt.Config{
		Path:           filepath.Join(t.TempDir(), "dolt"),
		Database:       "testdb",
		CommitterName:  "test",
		CommitterEmail: "test@example.com",
	})
	doltInitMu.Unlock()
	if err != nil {
		t.Fatalf("teststore: failed to open Dolt store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// Env bundles a store with helpers that fail the test on error.
type Env struct {
	t     testing.TB
	Store *storage.Store
	Ctx   context.Context
}

// NewEnv wraps store for a test.
func NewEnv(t testing.TB, store *storage.Store) *Env {
	return &Env{t: t, Store: store, Ctx: context.Background()}
}

// Persist writes issues as one batch with the given tag columns, each
// issue with its own Comments and Attachments.
func (e *Env) Persist(tagNames []string, issues ...*types.Issue) {
	e.t.Helper()
	batch := types.NewBatch()
	for _, issue := range issues {
		batch.Add(issue, issue.Comments, issue.Attachments)
	}
	persister := storage.NewPersister(e.Store.Dialect(), tagNames, nil)
	err := e.Store.Unit(e.Ctx, func(ctx context.Context, ex storage.Execer) error {
		_, err := persister.Persist(ctx, ex, batch)
		return err
	})
	if err != nil {
		e.t.Fatalf("Persist: %v", err)
	}
}

// Tagged returns the keys of the issues whose tag column is TRUE, sorted.
func (e *Env) Tagged(tag string) []string {
	e.t.Helper()
	if err := storage.ValidateIdentifier(tag); err != nil {
		e.t.Fatalf("Tagged: %v", err)
	}
	rows, err := e.Store.DB().QueryContext(e.Ctx, "SELECT issue_key FROM issue WHERE "+tag+" = TRUE")
	if err != nil {
		e.t.Fatalf("Tagged(%s): %v", tag, err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			e.t.Fatalf("Tagged(%s): %v", tag, err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		e.t.Fatalf("Tagged(%s): %v", tag, err)
	}
	sort.Strings(keys)
	return keys
}

// Count returns the number of rows in table.
func (e *Env) Count(table string) int {
	e.t.Helper()
	var n int
	if err := e.Store.DB().QueryRowContext(e.Ctx, "SELECT count(*) FROM "+table).Scan(&n); err != nil {
		e.t.Fatalf("Count(%s): %v", table, err)
	}
	return n
}
