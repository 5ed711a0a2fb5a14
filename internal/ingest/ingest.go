// Package ingest runs the fetch, persist and classify stages end to end.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/steveyegge/issuetag/internal/fetch"
	"github.com/steveyegge/issuetag/internal/storage"
	"github.com/steveyegge/issuetag/internal/tags"
	"github.com/steveyegge/issuetag/internal/telemetry"
	"github.com/steveyegge/issuetag/internal/types"
)

// Stats summarizes a run.
type Stats struct {
	Backend     string          `json:"backend"`
	Batches     int             `json:"batches"`
	Issues      int             `json:"issues"`
	Comments    int             `json:"comments"`
	Attachments int             `json:"attachments"`
	Duplicates  int             `json:"duplicates_skipped"`
	Tags        []tags.TagCount `json:"tags,omitempty"`
	Classified  bool            `json:"classified"`
	Committed   bool            `json:"committed"`
	Duration    time.Duration   `json:"duration_ns"`
}

// Pipeline wires a batch source to a store and a rule set.
type Pipeline struct {
	Store *storage.Store
	Rules *tags.RuleSet

	// Concurrency bounds the per-issue fetches within a page.
	Concurrency int
	// BatchTransaction wraps each batch in one transaction.
	BatchTransaction bool
	// SkipClassify stops after persisting.
	SkipClassify bool
	// CommitMessage, when non-empty, records a version on versioned stores
	// after a successful run.
	CommitMessage string

	Logger *slog.Logger

	// OnBatch is called after each batch is persisted (optional).
	OnBatch func(n int, batch *types.Batch)
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return storage.DiscardLogger()
	}
	return p.Logger
}

// Run persists every batch of query read from src, then classifies the
// stored issues once. The first failure stops the run; batches persisted
// before it stay stored, and re-running is safe.
func (p *Pipeline) Run(ctx context.Context, src fetch.Source, query string, pageSize int) (stats *Stats, err error) {
	start := time.Now()
	stats = &Stats{Backend: p.Store.Name()}
	ctx, end := telemetry.StartStage(ctx, "run",
		attribute.String("db.system", p.Store.Name()),
		attribute.Int("issuetag.page_size", pageSize),
	)
	defer func() {
		stats.Duration = time.Since(start)
		end(err)
	}()

	f := fetch.New(src,
		fetch.WithConcurrency(p.Concurrency),
		fetch.WithLogger(p.logger()),
		fetch.WithDuplicateHook(func(string) { stats.Duplicates++ }),
	)
	if err := p.persistAll(ctx, f, query, pageSize, stats); err != nil {
		return stats, err
	}

	if !p.SkipClassify {
		counts, err := p.Classify(ctx)
		stats.Tags = counts
		if err != nil {
			return stats, err
		}
		stats.Classified = true
	}

	if p.CommitMessage != "" && p.Store.Versioned() {
		if err := p.Store.Commit(ctx, p.CommitMessage); err != nil {
			return stats, fmt.Errorf("commit: %w", err)
		}
		stats.Committed = true
	}
	return stats, nil
}

func (p *Pipeline) persistAll(ctx context.Context, f *fetch.Fetcher, query string, pageSize int, stats *Stats) (err error) {
	ctx, end := telemetry.StartStage(ctx, "persist")
	defer func() { end(err) }()

	persister := storage.NewPersister(p.Store.Dialect(), p.Rules.Names(), p.logger())
	unit := p.Store.Unit
	if p.BatchTransaction {
		unit = p.Store.Transaction
	}

	for batch, err := range f.Batches(ctx, query, pageSize) {
		if err != nil {
			return err
		}
		stats.Batches++
		p.logger().InfoContext(ctx, "persisting batch",
			"batch", stats.Batches, "issues", batch.Len(), "comments", batch.CommentCount())

		err = unit(ctx, func(ctx context.Context, ex storage.Execer) error {
			res, err := persister.Persist(ctx, ex, batch)
			if err != nil {
				return err
			}
			stats.Issues += res.Issues
			stats.Comments += res.Comments
			stats.Attachments += res.Attachments
			return nil
		})
		if err != nil {
			return fmt.Errorf("persist batch %d: %w", stats.Batches, err)
		}
		if p.OnBatch != nil {
			p.OnBatch(stats.Batches, batch)
		}
	}
	return nil
}

// Classify ensures the schema for the rule set and runs the tag pass over
// everything stored, in one unit of work.
func (p *Pipeline) Classify(ctx context.Context) (counts []tags.TagCount, err error) {
	ctx, end := telemetry.StartStage(ctx, "classify", attribute.Int("issuetag.tags", p.Rules.Len()))
	defer func() { end(err) }()

	engine := tags.NewEngine(p.Rules, p.Store.Dialect(), p.logger())
	err = p.Store.Unit(ctx, func(ctx context.Context, ex storage.Execer) error {
		if err := storage.EnsureSchema(ctx, ex, p.Store.Dialect(), p.Rules.Names(), p.logger()); err != nil {
			return err
		}
		var err error
		counts, err = engine.Classify(ctx, ex)
		return err
	})
	return counts, err
}
