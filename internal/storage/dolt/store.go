// Package dolt opens Dolt-backed stores.
//
// Two connection modes are supported:
//   - Server: a running dolt sql-server (or any MySQL-compatible server)
//     reached through github.com/go-sql-driver/mysql.
//   - Embedded: an in-process Dolt engine via github.com/dolthub/driver.
//     Only available in CGO builds.
//
// Both modes render statements in the storage.MySQL dialect and support
// committing the working set after a run.
package dolt

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"

	"github.com/steveyegge/issuetag/internal/storage"
)

// Backend names.
const (
	BackendServer   = "dolt-server"
	BackendEmbedded = "dolt"
	BackendMySQL    = "mysql"
)

// Config holds Dolt connection configuration.
type Config struct {
	Path           string // Embedded: database directory
	Database       string // Database name (default: issuetag)
	CommitterName  string // Author for DOLT_COMMIT
	CommitterEmail string

	// Server mode
	ServerMode     bool
	DSN            string // Full DSN; overrides the fields below when set
	ServerHost     string // default: 127.0.0.1
	ServerPort     int    // default: 3307
	ServerUser     string // default: root
	ServerPassword string
	ServerTLS      bool
	// PlainMySQL targets a MySQL server without Dolt: no commits.
	PlainMySQL bool

	// ConnectTimeout bounds the backoff while waiting for the server to
	// accept connections. Zero uses DefaultConnectTimeout.
	ConnectTimeout time.Duration
}

// DefaultConnectTimeout is the default max elapsed time for connection retries.
const DefaultConnectTimeout = 30 * time.Second

const (
	defaultDatabase       = "issuetag"
	defaultCommitterName  = "issuetag"
	defaultCommitterEmail = "issuetag@localhost"
)

func (c *Config) applyDefaults() {
	if c.Database == "" {
		c.Database = defaultDatabase
	}
	if c.CommitterName == "" {
		c.CommitterName = defaultCommitterName
	}
	if c.CommitterEmail == "" {
		c.CommitterEmail = defaultCommitterEmail
	}
	if c.ServerHost == "" {
		c.ServerHost = "127.0.0.1"
	}
	if c.ServerPort == 0 {
		c.ServerPort = 3307
	}
	if c.ServerUser == "" {
		c.ServerUser = "root"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
}

// Open connects to Dolt in the mode selected by cfg.ServerMode and ensures
// the database exists.
func Open(ctx context.Context, cfg Config) (*storage.Store, error) {
	cfg.applyDefaults()
	if cfg.ServerMode {
		return openServer(ctx, &cfg)
	}
	return openEmbedded(ctx, &cfg)
}

var databaseNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_\-]*$`)

// validateDatabaseName guards the backtick-quoted CREATE DATABASE statement.
func validateDatabaseName(name string) error {
	if !databaseNamePattern.MatchString(name) {
		return fmt.Errorf("invalid database name %q", name)
	}
	return nil
}

// serverConfig builds the driver configuration for server mode. database
// overrides the database name; pass "" to connect without selecting one.
func serverConfig(cfg *Config, database string) (*mysql.Config, error) {
	var mc *mysql.Config
	if cfg.DSN != "" {
		parsed, err := mysql.ParseDSN(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("parse store DSN: %w", err)
		}
		mc = parsed
	} else {
		mc = mysql.NewConfig()
		mc.User = cfg.ServerUser
		mc.Passwd = cfg.ServerPassword
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.ServerHost, strconv.Itoa(cfg.ServerPort))
		if cfg.ServerTLS {
			mc.TLSConfig = "true"
		}
	}
	mc.DBName = database
	mc.ParseTime = true
	return mc, nil
}

// serverDatabase is the database named by the DSN, or cfg.Database.
func serverDatabase(cfg *Config) (string, error) {
	if cfg.DSN == "" {
		return cfg.Database, nil
	}
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return "", fmt.Errorf("parse store DSN: %w", err)
	}
	if mc.DBName == "" {
		return cfg.Database, nil
	}
	return mc.DBName, nil
}

func newConnectBackoff(maxElapsed time.Duration) backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxElapsed
	return bo
}

// isRetryableConnectError reports whether a failure to reach the server is
// worth retrying while it starts up.
func isRetryableConnectError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	for _, transient := range []string{
		"driver: bad connection",
		"invalid connection",
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"lost connection",
		"gone away",
	} {
		if strings.Contains(errStr, transient) {
			return true
		}
	}
	return false
}

// pingWithBackoff waits for the server to accept connections. Only
// establishment is retried; statements never are.
func pingWithBackoff(ctx context.Context, db *sql.DB, maxElapsed time.Duration) error {
	return backoff.Retry(func() error {
		err := db.PingContext(ctx)
		if err != nil && isRetryableConnectError(err) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(newConnectBackoff(maxElapsed), ctx))
}

func openServer(ctx context.Context, cfg *Config) (*storage.Store, error) {
	database, err := serverDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if err := validateDatabaseName(database); err != nil {
		return nil, err
	}

	initCfg, err := serverConfig(cfg, "")
	if err != nil {
		return nil, err
	}
	initDB, err := sql.Open("mysql", initCfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open init connection: %w", err)
	}
	defer func() { _ = initDB.Close() }()

	if err := pingWithBackoff(ctx, initDB, cfg.ConnectTimeout); err != nil {
		return nil, fmt.Errorf("failed to connect to Dolt server at %s: %w\n\nThe Dolt server may not be running. Try:\n  dolt sql-server  # in the database directory",
			initCfg.Addr, err)
	}

	_, err = initDB.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", database)) //nolint:gosec // database validated above
	if err != nil {
		// Dolt may return error 1007 even with IF NOT EXISTS
		errLower := strings.ToLower(err.Error())
		if !strings.Contains(errLower, "database exists") && !strings.Contains(errLower, "1007") {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	dbCfg, err := serverConfig(cfg, database)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dbCfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open Dolt server connection: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping Dolt database %s: %w", database, err)
	}

	if cfg.PlainMySQL {
		return storage.NewStore(db, storage.MySQL, BackendMySQL, nil), nil
	}
	store := storage.NewStore(db, storage.MySQL, BackendServer, nil)
	store.SetCommitter(committer(cfg))
	return store, nil
}

// committer commits the working set.
func committer(cfg *Config) func(ctx context.Context, db *sql.DB, message string) error {
	author := fmt.Sprintf("%s <%s>", cfg.CommitterName, cfg.CommitterEmail)
	return func(ctx context.Context, db *sql.DB, message string) error {
		_, err := db.ExecContext(ctx, "CALL DOLT_COMMIT('-Am', ?, '--author', ?)", message, author)
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "nothing to commit") {
				return nil
			}
			return fmt.Errorf("failed to commit: %w", err)
		}
		return nil
	}
}
