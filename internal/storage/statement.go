package storage

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"text/template"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name can be used unquoted as a table or
// column name.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// ValidateIdentifier returns an error naming what is invalid.
func ValidateIdentifier(name string) error {
	if !ValidIdentifier(name) {
		return fmt.Errorf("invalid identifier %q: must match %s", name, identifierPattern.String())
	}
	return nil
}

// Row is an ordered list of column assignments.
type Row struct {
	columns []string
	values  []Value
}

// NewRow returns an empty row.
func NewRow() *Row {
	return &Row{}
}

// Set appends a column assignment.
func (r *Row) Set(column string, v Value) *Row {
	r.columns = append(r.columns, column)
	r.values = append(r.values, v)
	return r
}

// Columns returns the column names in assignment order.
func (r *Row) Columns() []string {
	return r.columns
}

var statementFuncs = template.FuncMap{"join": strings.Join}

var upsertTemplate = template.Must(template.New("upsert").Funcs(statementFuncs).Parse(
	`INSERT INTO {{.Table}} ({{join .Columns ", "}}) VALUES ({{join .Values ", "}}){{.Conflict}}`))

// Upsert renders an insert of row into table that, when a row with the same
// key exists, overwrites the row's non-key columns and leaves every other
// column of the stored row untouched. Every key column must be set in row.
func Upsert(d Dialect, table string, key []string, row *Row) (string, error) {
	if err := ValidateIdentifier(table); err != nil {
		return "", err
	}
	if len(row.columns) == 0 {
		return "", fmt.Errorf("upsert into %s: no columns", table)
	}
	if len(key) == 0 {
		return "", fmt.Errorf("upsert into %s: no key columns", table)
	}
	literals := make([]string, len(row.values))
	for i, col := range row.columns {
		if err := ValidateIdentifier(col); err != nil {
			return "", err
		}
		literals[i] = Literal(d, row.values[i])
	}
	for _, k := range key {
		if !slices.Contains(row.columns, k) {
			return "", fmt.Errorf("upsert into %s: key column %s not set", table, k)
		}
	}
	var update []string
	for _, col := range row.columns {
		if !slices.Contains(key, col) {
			update = append(update, col)
		}
	}
	return render(upsertTemplate, struct {
		Table    string
		Columns  []string
		Values   []string
		Conflict string
	}{table, row.columns, literals, d.OnConflict(key, update)})
}

func render(t *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render %s statement: %w", t.Name(), err)
	}
	return sb.String(), nil
}
