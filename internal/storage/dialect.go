package storage

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// Dialect captures the per-backend differences in literal rendering and
// statement verbs. The emitted statement shapes are otherwise identical.
type Dialect interface {
	// Name identifies the dialect in logs and telemetry.
	Name() string
	// Quote renders s as a single-quoted string literal.
	Quote(s string) string
	// Timestamp wraps an already formatted timestamp in the backend's
	// date-construction expression.
	Timestamp(formatted string) string
	// OnConflict is the clause appended to an INSERT so that a row whose key
	// already exists has only the update columns overwritten. Columns the
	// INSERT does not name, such as tags, keep their stored values.
	OnConflict(key, update []string) string
	// IsTableExists reports whether err is the backend's "table already exists" failure.
	IsTableExists(err error) bool
}

// mysqlErrTableExists is ER_TABLE_EXISTS_ERROR.
const mysqlErrTableExists = 1050

// MySQL is the dialect for Dolt, both embedded and sql-server, and for any
// MySQL-compatible server.
var MySQL Dialect = mysqlDialect{}

// SQLite is the dialect for the pure-Go SQLite backend.
var SQLite Dialect = sqliteDialect{}

type mysqlDialect struct{}

// MySQL treats backslash as an escape character inside string literals, so
// backslashes and double quotes are escaped in addition to quote-doubling.
var mysqlEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `''`,
	`"`, `\"`,
	"\r\n", " ",
	"\n", " ",
	"\r", " ",
)

func (mysqlDialect) Name() string { return "mysql" }

func (mysqlDialect) Quote(s string) string {
	return "'" + mysqlEscaper.Replace(s) + "'"
}

func (d mysqlDialect) Timestamp(formatted string) string {
	return "TIMESTAMP(" + d.Quote(formatted) + ")"
}

func (mysqlDialect) OnConflict(key, update []string) string {
	if len(update) == 0 {
		// Nothing to overwrite; a self-assignment turns the duplicate into a no-op.
		update = key[:1]
	}
	sets := make([]string, len(update))
	for i, c := range update {
		sets[i] = c + " = VALUES(" + c + ")"
	}
	return " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
}

func (mysqlDialect) IsTableExists(err error) bool {
	if err == nil {
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlErrTableExists {
		return true
	}
	// Embedded Dolt reports go-mysql-server errors, not wire errors.
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}

type sqliteDialect struct{}

// SQLite string literals have no backslash escapes; only the quote is doubled.
var sqliteEscaper = strings.NewReplacer(
	`'`, `''`,
	"\r\n", " ",
	"\n", " ",
	"\r", " ",
)

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) Quote(s string) string {
	return "'" + sqliteEscaper.Replace(s) + "'"
}

func (d sqliteDialect) Timestamp(formatted string) string {
	return "strftime('%Y-%m-%d %H:%M:%f', " + d.Quote(formatted) + ")"
}

func (sqliteDialect) OnConflict(key, update []string) string {
	target := " ON CONFLICT(" + strings.Join(key, ", ") + ")"
	if len(update) == 0 {
		return target + " DO NOTHING"
	}
	sets := make([]string, len(update))
	for i, c := range update {
		sets[i] = c + " = excluded." + c
	}
	return target + " DO UPDATE SET " + strings.Join(sets, ", ")
}

func (sqliteDialect) IsTableExists(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists")
}

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, bool) {
	switch strings.ToLower(name) {
	case "mysql", "dolt", "dolt-server":
		return MySQL, true
	case "sqlite", "sqlite3":
		return SQLite, true
	}
	return nil, false
}
