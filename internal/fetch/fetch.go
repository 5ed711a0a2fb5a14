// Package fetch pages through a search result and groups each page's
// issues with their comments and attachments into batches.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/issuetag/internal/types"
)

// ErrInvalidPageSize is returned for a page size below one.
var ErrInvalidPageSize = errors.New("page size must be at least 1")

// Source is the query capability the fetcher pages through.
type Source interface {
	// Search returns at most limit issues of query starting at offset,
	// along with the total result count.
	Search(ctx context.Context, query string, limit, offset int) (*types.SearchPage, error)
	// GetIssue returns a single issue with its comments.
	GetIssue(ctx context.Context, key string) (*types.Issue, error)
}

// Fetcher turns a Source into a sequence of batches.
type Fetcher struct {
	source      Source
	concurrency int
	logger      *slog.Logger
	onDuplicate func(key string)
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithConcurrency sets how many per-issue fetches may run at once within a
// page. Values below one mean sequential.
func WithConcurrency(n int) Option {
	return func(f *Fetcher) {
		if n < 1 {
			n = 1
		}
		f.concurrency = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithDuplicateHook registers fn to be called for every issue dropped
// because its key was already yielded.
func WithDuplicateHook(fn func(key string)) Option {
	return func(f *Fetcher) {
		f.onDuplicate = fn
	}
}

// New returns a fetcher over source.
func New(source Source, opts ...Option) *Fetcher {
	f := &Fetcher{
		source:      source,
		concurrency: 1,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Total runs the size probe and returns the number of matching issues.
func (f *Fetcher) Total(ctx context.Context, query string) (int, error) {
	page, err := f.source.Search(ctx, query, 1, 0)
	if err != nil {
		return 0, fmt.Errorf("probe result size: %w", err)
	}
	return page.Total, nil
}

// Batches returns the batches of query, one per page of pageSize issues.
// The sequence is lazy: each page is requested when the consumer asks for
// the next batch. A fetch error is yielded once and ends the sequence.
//
// Paging stops once the issues received reach the probed total, or at the
// first empty page. A short page does not end paging since servers may cap
// the page size. Issues whose key was already yielded are dropped.
func (f *Fetcher) Batches(ctx context.Context, query string, pageSize int) iter.Seq2[*types.Batch, error] {
	return func(yield func(*types.Batch, error) bool) {
		if pageSize < 1 {
			yield(nil, fmt.Errorf("%w: got %d", ErrInvalidPageSize, pageSize))
			return
		}

		total, err := f.Total(ctx, query)
		if err != nil {
			yield(nil, err)
			return
		}
		f.logger.InfoContext(ctx, "query matched issues", "total", total)

		seen := make(map[string]bool, min(total, 1<<16))
		processed := 0
		for processed < total {
			page, err := f.source.Search(ctx, query, pageSize, processed)
			if err != nil {
				yield(nil, fmt.Errorf("fetch page at offset %d: %w", processed, err))
				return
			}
			if len(page.Issues) == 0 {
				f.logger.WarnContext(ctx, "empty page before reaching total; stopping",
					"offset", processed, "total", total)
				return
			}
			processed += len(page.Issues)

			fresh := page.Issues[:0:0]
			for _, issue := range page.Issues {
				if seen[issue.Key] {
					f.logger.DebugContext(ctx, "dropping repeated issue", "key", issue.Key)
					if f.onDuplicate != nil {
						f.onDuplicate(issue.Key)
					}
					continue
				}
				seen[issue.Key] = true
				fresh = append(fresh, issue)
			}

			batch, err := f.assemble(ctx, fresh)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(batch, nil) {
				return
			}
		}
	}
}

// assemble fetches comments and attachments for issues and builds the batch
// in page order.
func (f *Fetcher) assemble(ctx context.Context, issues []*types.Issue) (*types.Batch, error) {
	comments := make([][]*types.Comment, len(issues))
	attachments := make([][]*types.Attachment, len(issues))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, issue := range issues {
		g.Go(func() error {
			cs, err := f.comments(gctx, issue)
			if err != nil {
				return err
			}
			as, err := f.attachments(gctx, issue)
			if err != nil {
				return err
			}
			comments[i], attachments[i] = cs, as
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	batch := types.NewBatch()
	for i, issue := range issues {
		batch.Add(issue, comments[i], attachments[i])
	}
	return batch, nil
}

func (f *Fetcher) comments(ctx context.Context, issue *types.Issue) ([]*types.Comment, error) {
	detail, err := f.source.GetIssue(ctx, issue.Key)
	if err != nil {
		return nil, fmt.Errorf("fetch comments of %s: %w", issue.Key, err)
	}
	for _, c := range detail.Comments {
		c.IssueKey = issue.Key
	}
	if detail.Comments == nil {
		return []*types.Comment{}, nil
	}
	return detail.Comments, nil
}

// attachments always returns an empty list: the per-issue attachment listing
// of the upstream client does not return data, so nothing is fetched here.
// Schema and persistence handle attachments fully once this is filled in.
func (f *Fetcher) attachments(_ context.Context, _ *types.Issue) ([]*types.Attachment, error) {
	return []*types.Attachment{}, nil
}
