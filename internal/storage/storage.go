// Package storage provisions the issue, comment and attachment tables and
// writes batches into them.
//
// Statements are rendered as literal SQL text through a Dialect; the
// concrete backends live in the dolt and sqlite sub-packages and are
// selected by the factory sub-package.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/steveyegge/issuetag/internal/storage/doltutil"
)

// Execer is the "execute SQL" capability every component writes through.
// *sql.DB, *sql.Conn and *sql.Tx all satisfy it.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// StatementError is returned when a generated statement fails to execute.
type StatementError struct {
	Statement string
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement failed: %v\nStatement: %s", e.Err, truncateForError(e.Statement))
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

// Exec runs stmt, logging the full statement text on failure.
func Exec(ctx context.Context, ex Execer, logger *slog.Logger, stmt string) (sql.Result, error) {
	res, err := ex.ExecContext(ctx, stmt)
	if err != nil {
		if logger != nil {
			logger.ErrorContext(ctx, "statement failed", "error", err, "statement", stmt)
		}
		return nil, &StatementError{Statement: stmt, Err: err}
	}
	return res, nil
}

// truncateForError truncates a string for use in error messages
func truncateForError(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

// DiscardLogger is used by components constructed without a logger.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ExecWrapper decorates the Execer handed to a unit of work.
type ExecWrapper func(Execer) Execer

// Store is an opened backend: a connection pool plus the dialect its
// statements are rendered in.
type Store struct {
	db      *sql.DB
	dialect Dialect
	name    string
	closeFn func() error
	wrap    ExecWrapper
	commit  func(ctx context.Context, db *sql.DB, message string) error
}

// NewStore wraps an opened pool. closeFn, when non-nil, replaces db.Close
// and must release everything the backend holds.
func NewStore(db *sql.DB, dialect Dialect, name string, closeFn func() error) *Store {
	if closeFn == nil {
		closeFn = db.Close
	}
	return &Store{db: db, dialect: dialect, name: name, closeFn: closeFn}
}

// Dialect returns the dialect statements for this store must be rendered in.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Name identifies the backend, e.g. "dolt-server" or "sqlite".
func (s *Store) Name() string {
	return s.name
}

// DB exposes the underlying pool for read queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// SetExecWrapper installs a decorator applied to every unit of work.
func (s *Store) SetExecWrapper(w ExecWrapper) {
	s.wrap = w
}

// SetCommitter marks the store as versioned. Commit delegates to fn.
func (s *Store) SetCommitter(fn func(ctx context.Context, db *sql.DB, message string) error) {
	s.commit = fn
}

// Versioned reports whether Commit records a version of the data.
func (s *Store) Versioned() bool {
	return s.commit != nil
}

// Commit records the current state of the store under message. It is a
// no-op for backends without version control.
func (s *Store) Commit(ctx context.Context, message string) error {
	if s.commit == nil {
		return nil
	}
	return s.commit(ctx, s.db, message)
}

// Unit runs fn on a dedicated connection that is released when fn returns,
// whether or not it fails.
func (s *Store) Unit(ctx context.Context, fn func(context.Context, Execer) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire %s connection: %w", s.name, err)
	}
	defer func() { _ = conn.Close() }()

	return fn(ctx, s.decorate(conn))
}

// Transaction is Unit with fn wrapped in a single transaction. The
// transaction is rolled back when fn fails.
func (s *Store) Transaction(ctx context.Context, fn func(context.Context, Execer) error) (err error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire %s connection: %w", s.name, err)
	}
	defer func() { _ = conn.Close() }()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	if err = fn(ctx, s.decorate(tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) decorate(ex Execer) Execer {
	if s.wrap == nil {
		return ex
	}
	return s.wrap(ex)
}

// Close releases the pool and any backend resources, bounded by
// doltutil.CloseTimeout.
func (s *Store) Close() error {
	return doltutil.CloseWithTimeout(s.name, s.closeFn)
}
