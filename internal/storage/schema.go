package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
)

// Table names.
const (
	TableIssue      = "issue"
	TableComment    = "comment"
	TableAttachment = "attachment"
)

// primaryKeys are the key columns of each table, matching the PRIMARY KEY
// clauses of the DDL below.
var primaryKeys = map[string][]string{
	TableComment:    {ColCommentID},
	TableAttachment: {ColIssueKey, ColFilename},
	TableIssue:      {ColID},
}

// Fixed issue columns, in table order. Tag columns follow them.
const (
	ColID                  = "id"
	ColIssueKey            = "issue_key"
	ColSummary             = "summary"
	ColDescription         = "description"
	ColAssignee            = "assignee"
	ColReporter            = "reporter"
	ColCreationDate        = "creationDate"
	ColUpdateDate          = "updateDate"
	ColIssueType           = "issueType"
	ColPriority            = "priority"
	ColResolution          = "resolution"
	ColStatus              = "status"
	ColWatchers            = "watchers"
	ColNumAffectedVersions = "numAffectedVersions"
	ColNumFixVersions      = "numFixVersions"
	ColNumAttachments      = "numAttachments"
	ColNumChangelogs       = "numChangelogs"
	ColNumComments         = "numComments"
	ColNumIssueLinks       = "numIssueLinks"
	ColNumLabels           = "numLabels"
	ColNumSubtasks         = "numSubtasks"
	ColNumWorkLogs         = "numWorkLogs"
)

// Comment and attachment columns not shared with the issue table.
const (
	ColCommentID  = "comment_id"
	ColAuthor     = "author"
	ColBody       = "body"
	ColFilename   = "filename"
	ColContentURI = "contentUri"
	ColMimeType   = "mimeType"
	ColSize       = "size"
)

type columnDef struct {
	Name string
	Type string
}

var issueColumns = []columnDef{
	{ColID, "BIGINT NOT NULL"},
	{ColIssueKey, "VARCHAR(64) NOT NULL"},
	{ColSummary, "TEXT NOT NULL"},
	{ColDescription, "TEXT"},
	{ColAssignee, "VARCHAR(255)"},
	{ColReporter, "VARCHAR(255)"},
	{ColCreationDate, "DATETIME(3)"},
	{ColUpdateDate, "DATETIME(3)"},
	{ColIssueType, "VARCHAR(255)"},
	{ColPriority, "VARCHAR(255)"},
	{ColResolution, "VARCHAR(255)"},
	{ColStatus, "VARCHAR(255)"},
	{ColWatchers, "INT"},
	{ColNumAffectedVersions, "INT"},
	{ColNumFixVersions, "INT"},
	{ColNumAttachments, "INT"},
	{ColNumChangelogs, "INT"},
	{ColNumComments, "INT"},
	{ColNumIssueLinks, "INT"},
	{ColNumLabels, "INT"},
	{ColNumSubtasks, "INT"},
	{ColNumWorkLogs, "INT"},
}

// IssueColumns returns the fixed issue column names in table order.
func IssueColumns() []string {
	names := make([]string, len(issueColumns))
	for i, c := range issueColumns {
		names[i] = c.Name
	}
	return names
}

// IsReservedColumn reports whether name collides, case-insensitively, with a
// fixed issue column.
func IsReservedColumn(name string) bool {
	for _, c := range issueColumns {
		if strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

const tagColumnType = "BOOLEAN NULL"

// Each column line carries its own trailing comma and the constraints always
// follow, so an empty tag list needs no separator trimming.
var ddlTemplates = template.Must(template.New("ddl").Parse(`
{{define "comment"}}CREATE TABLE comment (
  comment_id BIGINT NOT NULL,
  issue_key VARCHAR(64) NOT NULL,
  author VARCHAR(255),
  body TEXT,
  creationDate DATETIME(3),
  PRIMARY KEY (comment_id)
){{end}}
{{define "attachment"}}CREATE TABLE attachment (
  issue_key VARCHAR(64) NOT NULL,
  filename VARCHAR(255) NOT NULL,
  contentUri TEXT,
  author VARCHAR(255),
  mimeType VARCHAR(255),
  size INT NOT NULL,
  creationDate DATETIME(3),
  PRIMARY KEY (issue_key, filename)
){{end}}
{{define "issue"}}CREATE TABLE issue (
{{- range .Columns}}
  {{.Name}} {{.Type}},
{{- end}}
{{- range .Tags}}
  {{.}} {{$.TagType}},
{{- end}}
  PRIMARY KEY (id),
  UNIQUE (issue_key)
){{end}}`))

// SchemaStatements renders the three CREATE TABLE statements in creation
// order: comment, attachment, issue. Tag names become nullable boolean
// columns appended after the fixed issue columns, in the given order.
func SchemaStatements(tagNames []string) ([]string, error) {
	for _, name := range tagNames {
		if err := ValidateIdentifier(name); err != nil {
			return nil, fmt.Errorf("tag column: %w", err)
		}
		if IsReservedColumn(name) {
			return nil, fmt.Errorf("tag column %q collides with a fixed issue column", name)
		}
	}

	data := struct {
		Columns []columnDef
		Tags    []string
		TagType string
	}{issueColumns, tagNames, tagColumnType}

	var stmts []string
	for _, table := range []string{TableComment, TableAttachment, TableIssue} {
		stmt, err := render(ddlTemplates.Lookup(table), data)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

// EnsureSchema creates the comment, attachment and issue tables if they do
// not exist. It is safe to call once per batch. A "table already exists"
// failure is expected and ignored; any other failure is returned.
func EnsureSchema(ctx context.Context, ex Execer, d Dialect, tagNames []string, logger *slog.Logger) error {
	if logger == nil {
		logger = DiscardLogger()
	}
	stmts, err := SchemaStatements(tagNames)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := ex.ExecContext(ctx, stmt); err != nil {
			if d.IsTableExists(err) {
				logger.DebugContext(ctx, "table already exists", "statement", firstLine(stmt))
				continue
			}
			logger.ErrorContext(ctx, "schema statement failed", "error", err, "statement", stmt)
			return &StatementError{Statement: stmt, Err: err}
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
