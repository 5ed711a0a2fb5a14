package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingExecer records every statement and fails those matching failOn.
type recordingExecer struct {
	statements []string
	failOn     func(stmt string) error
}

func (r *recordingExecer) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	r.statements = append(r.statements, query)
	if r.failOn != nil {
		if err := r.failOn(query); err != nil {
			return nil, err
		}
	}
	return driverResult(1), nil
}

type driverResult int64

func (r driverResult) LastInsertId() (int64, error) { return 0, nil }
func (r driverResult) RowsAffected() (int64, error) { return int64(r), nil }

func TestExecWrapsStatementError(t *testing.T) {
	boom := errors.New("syntax error")
	ex := &recordingExecer{failOn: func(string) error { return boom }}

	_, err := Exec(context.Background(), ex, nil, "UPDATE issue SET x = TRUE")
	require.Error(t, err)

	var stmtErr *StatementError
	require.True(t, errors.As(err, &stmtErr))
	assert.Equal(t, "UPDATE issue SET x = TRUE", stmtErr.Statement)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "Statement: UPDATE issue")
}

func TestTableExistsDetection(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		err     error
		want    bool
	}{
		{"mysql wire error", MySQL, &mysql.MySQLError{Number: 1050, Message: "Table 'issue' already exists"}, true},
		{"mysql wrapped", MySQL, fmt.Errorf("exec: %w", &mysql.MySQLError{Number: 1050}), true},
		{"mysql other error", MySQL, &mysql.MySQLError{Number: 1064, Message: "syntax"}, false},
		{"embedded dolt message", MySQL, errors.New("table with name issue already exists"), true},
		{"sqlite message", SQLite, errors.New("sqlite3: SQL logic error: table comment already exists"), true},
		{"sqlite other", SQLite, errors.New("no such table: issue"), false},
		{"nil", SQLite, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialect.IsTableExists(tt.err); got != tt.want {
				t.Errorf("IsTableExists(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestTruncateForError(t *testing.T) {
	long := strings.Repeat("x", 300)
	got := truncateForError(long)
	if len(got) != 203 || !strings.HasSuffix(got, "...") {
		t.Errorf("truncateForError returned %d chars", len(got))
	}
	if truncateForError("short") != "short" {
		t.Error("short strings should be unchanged")
	}
}
