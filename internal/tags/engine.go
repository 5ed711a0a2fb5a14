package tags

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/steveyegge/issuetag/internal/storage"
)

// Engine runs the classification pass.
type Engine struct {
	rules   *RuleSet
	dialect storage.Dialect
	logger  *slog.Logger
}

// NewEngine returns an engine for rules, rendering statements in dialect d.
func NewEngine(rules *RuleSet, d storage.Dialect, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = storage.DiscardLogger()
	}
	return &Engine{rules: rules, dialect: d, logger: logger}
}

// TagCount is the number of rows a tag statement changed.
type TagCount struct {
	Tag  string `json:"tag"`
	Rows int64  `json:"rows"`
}

// Statements renders every classification statement in rule order without
// executing anything.
func (e *Engine) Statements() ([]string, error) {
	stmts := make([]string, 0, e.rules.Len())
	for _, r := range e.rules.Rules() {
		stmt, err := Statement(e.dialect, r)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

// Classify executes one UPDATE per rule, in rule order. Only TRUE is ever
// written. The first failing statement stops the pass; tags classified
// before it stay applied.
func (e *Engine) Classify(ctx context.Context, ex storage.Execer) ([]TagCount, error) {
	counts := make([]TagCount, 0, e.rules.Len())
	for _, r := range e.rules.Rules() {
		stmt, err := Statement(e.dialect, r)
		if err != nil {
			return counts, err
		}
		res, err := storage.Exec(ctx, ex, e.logger, stmt)
		if err != nil {
			return counts, fmt.Errorf("classify %s: %w", r.Name, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			// Some drivers cannot report it; the update still happened.
			n = -1
		}
		e.logger.DebugContext(ctx, "classified", "tag", r.Name, "rows", n)
		counts = append(counts, TagCount{Tag: r.Name, Rows: n})
	}
	return counts, nil
}
