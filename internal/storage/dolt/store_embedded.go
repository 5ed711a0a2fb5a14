//go:build cgo

package dolt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	embedded "github.com/dolthub/driver"

	"github.com/steveyegge/issuetag/internal/storage"
)

const embeddedOpenMaxElapsed = 30 * time.Second

func newEmbeddedOpenBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = embeddedOpenMaxElapsed
	return bo
}

// EmbeddedAvailable reports whether this binary can open embedded Dolt.
const EmbeddedAvailable = true

// embeddedDSN builds a file:// DSN for the embedded driver. database may be
// empty to open the engine without selecting a database.
func embeddedDSN(absPath string, cfg *Config, database string) string {
	q := url.Values{}
	q.Set("commitname", cfg.CommitterName)
	q.Set("commitemail", cfg.CommitterEmail)
	if database != "" {
		q.Set("database", database)
	}
	return "file://" + absPath + "?" + q.Encode()
}

func openEmbedded(ctx context.Context, cfg *Config) (*storage.Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("embedded dolt requires a database path")
	}
	if err := validateDatabaseName(cfg.Database); err != nil {
		return nil, err
	}
	if info, statErr := os.Stat(cfg.Path); statErr == nil && !info.IsDir() {
		return nil, fmt.Errorf("database path %q is a file, not a directory", cfg.Path)
	}
	if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// The embedded driver stacks relative paths onto its working directory.
	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	// Create the database through a short-lived engine, closed before the
	// store's own engine opens so no filesystem lock is held twice.
	bootDB, bootClose, err := connectEmbedded(embeddedDSN(absPath, cfg, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to open Dolt engine: %w", err)
	}
	_, err = bootDB.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", cfg.Database)) //nolint:gosec // validated above
	if err = errors.Join(err, bootClose()); err != nil {
		return nil, fmt.Errorf("failed to create dolt database: %w", err)
	}

	db, closeFn, err := connectEmbedded(embeddedDSN(absPath, cfg, cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("failed to open Dolt database: %w", err)
	}
	// Embedded Dolt is single-writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := storage.NewStore(db, storage.MySQL, BackendEmbedded, closeFn)
	store.SetCommitter(committer(cfg))
	return store, nil
}

// connectEmbedded opens an engine for dsn and pings it. The returned close
// function releases both the pool and the connector, and with them the
// engine's filesystem locks.
func connectEmbedded(dsn string) (*sql.DB, func() error, error) {
	openCfg, err := embedded.ParseDSN(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("parse DSN: %w", err)
	}
	openCfg.BackOff = newEmbeddedOpenBackoff()

	connector, err := embedded.NewConnector(openCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create connector: %w", err)
	}
	db := sql.OpenDB(connector)
	closeFn := func() error {
		return errors.Join(
			dropCanceled(db.Close()),
			dropCanceled(connector.Close()),
		)
	}

	// The driver keeps the context of the first Connect for the session, so
	// it must not be one the caller may cancel.
	if err := db.PingContext(context.Background()); err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return db, closeFn, nil
}

// dropCanceled hides context.Canceled, which engine shutdown may surface
// from background goroutines.
func dropCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
