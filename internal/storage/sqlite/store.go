// Package sqlite opens a local SQLite-backed store using the pure-Go
// ncruces/go-sqlite3 driver. It needs no server and no CGO, which makes it
// the backend of choice for local runs and tests.
package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sqlite3 "github.com/ncruces/go-sqlite3"
	"github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/ncruces/go-sqlite3/ext/unicode"
	"github.com/tetratelabs/wazero"

	"github.com/steveyegge/issuetag/internal/storage"
)

// Backend is the factory name of this backend.
const Backend = "sqlite"

// setupWASMCache configures a persistent compilation cache for the SQLite
// WASM module, falling back to an in-memory cache.
func setupWASMCache() {
	var cache wazero.CompilationCache
	if userCache, err := os.UserCacheDir(); err == nil {
		if c, err := wazero.NewCompilationCacheWithDir(filepath.Join(userCache, "issuetag", "wasm")); err == nil {
			cache = c
		}
	}
	if cache == nil {
		cache = wazero.NewCompilationCache()
	}
	sqlite3.RuntimeConfig = wazero.NewRuntimeConfig().WithCompilationCache(cache)
}

func init() {
	setupWASMCache()
}

// connString turns a path into a driver URI. ":memory:" opens a private
// in-memory database shared by the pool's single connection.
func connString(path string) string {
	const pragmas = "_pragma=busy_timeout(30000)&_pragma=journal_mode(WAL)"
	switch {
	case path == ":memory:":
		return "file:memdb?mode=memory&_pragma=busy_timeout(30000)"
	case strings.HasPrefix(path, "file:"):
		if strings.Contains(path, "?") {
			return path
		}
		return path + "?_pragma=busy_timeout(30000)"
	default:
		return "file:" + path + "?" + pragmas
	}
}

func isInMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// Open opens (creating if needed) the SQLite database at path.
func Open(ctx context.Context, path string) (*storage.Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite store requires a path")
	}
	if !isInMemory(path) && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// SQLite's built-in lower() and LIKE fold ASCII only. The unicode
	// extension replaces both on every connection so tag patterns match
	// case-insensitively for any script.
	db, err := driver.Open(connString(path), unicode.Register)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer. In-memory databases are per connection, so a single
	// connection is also what keeps the data visible across units of work.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return storage.NewStore(db, storage.SQLite, Backend, nil), nil
}
