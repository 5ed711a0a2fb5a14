package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/issuetag/internal/config"
	"github.com/steveyegge/issuetag/internal/debug"
	"github.com/steveyegge/issuetag/internal/ingest"
	"github.com/steveyegge/issuetag/internal/jira"
	"github.com/steveyegge/issuetag/internal/timeparsing"
	"github.com/steveyegge/issuetag/internal/types"
	"github.com/steveyegge/issuetag/internal/ui"
)

const defaultCommitMessage = "issuetag: ingest issues"

// jqlTimeLayout is the minute-precision date format JQL accepts.
const jqlTimeLayout = "2006/01/02 15:04"

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, store and tag the issues matching the configured query",
	Long: `Fetches every issue matching the JQL query page by page, with the comments
of each issue, and upserts them into the store. Once all pages are stored the
tag rules are applied to the whole issue table.

Re-running is safe: rows are replaced by their keys.`,
	Example: `  issuetag run
  issuetag run --query 'project = PROJ' --page-size 100
  issuetag run --since "last monday" --json`,
	Run: func(cmd *cobra.Command, args []string) {
		since, _ := cmd.Flags().GetString("since")
		opts := runOptions{}
		opts.SkipClassify, _ = cmd.Flags().GetBool("skip-classify")
		opts.CommitMessage, _ = cmd.Flags().GetString("commit-message")
		if noCommit, _ := cmd.Flags().GetBool("no-commit"); noCommit {
			opts.CommitMessage = ""
		}

		s, err := loadSettings()
		if err != nil {
			fail(err, "config")
		}
		if err := s.RequireJira(); err != nil {
			FatalErrorWithHint(err.Error(), "Run 'issuetag run --query <jql>' or set jira.url and jira.query in "+config.DirName+"/config.yaml")
		}
		if since != "" {
			clause, err := sinceClause(since, time.Now())
			if err != nil {
				fail(err, "usage")
			}
			s.Jira.Query = withClause(s.Jira.Query, clause)
		}
		if !jsonOutput {
			opts.OnBatch = func(_ int, batch *types.Batch) {
				debug.PrintNormal("Persisting batch of %d issues, with %d comments.\n", batch.Len(), batch.CommentCount())
			}
		}

		stats, err := ingestIssues(rootCtx, s, opts)
		if jsonOutput {
			if err != nil {
				outputJSONError(err, "run")
			}
			outputJSON(stats)
			return
		}
		if stats != nil && !debug.IsQuiet() {
			fmt.Print(ui.RenderRunSummary(stats, err))
		}
		if err != nil {
			FatalError("%v", err)
		}
	},
}

func init() {
	runCmd.Flags().String("query", "", "JQL query (overrides jira.query)")
	runCmd.Flags().Int("page-size", 0, "Issues per search page (overrides fetch.page_size)")
	runCmd.Flags().Int("concurrency", 0, "Parallel comment fetches per page (overrides fetch.concurrency)")
	runCmd.Flags().String("since", "", `Only issues updated since this time, e.g. "2024-05-01", "7d" or "last monday"`)
	runCmd.Flags().Bool("skip-classify", false, "Store issues without running the tag pass")
	runCmd.Flags().String("commit-message", defaultCommitMessage, "Dolt commit message recorded after the run")
	runCmd.Flags().Bool("no-commit", false, "Do not create a Dolt commit after the run")
	rootCmd.AddCommand(runCmd)
}

type runOptions struct {
	SkipClassify  bool
	CommitMessage string
	OnBatch       func(n int, batch *types.Batch)
}

// ingestIssues runs one ingestion with the given settings. The returned
// stats describe the work done even when the run fails part way.
func ingestIssues(ctx context.Context, s *config.Settings, opts runOptions) (*ingest.Stats, error) {
	rules, err := loadRules(s)
	if err != nil {
		return nil, err
	}

	client := jira.NewClient(s.Jira.URL, s.Jira.Username, s.Jira.APIToken)
	client.APIVersion = s.Jira.APIVersion
	client.HTTPClient.Timeout = s.Jira.Timeout

	store, err := openStore(ctx, s)
	if err != nil {
		return nil, err
	}
	defer closeStore(store)

	pipeline := &ingest.Pipeline{
		Store:            store,
		Rules:            rules,
		Concurrency:      s.Fetch.Concurrency,
		BatchTransaction: s.Store.BatchTransaction,
		SkipClassify:     opts.SkipClassify,
		CommitMessage:    opts.CommitMessage,
		Logger:           debug.Logger(),
		OnBatch:          opts.OnBatch,
	}
	return pipeline.Run(ctx, client, s.Jira.Query, s.Fetch.PageSize)
}

// sinceClause turns a point in time, absolute or relative to now, into a
// JQL restriction on the updated field.
func sinceClause(expr string, now time.Time) (string, error) {
	t, err := timeparsing.ParseSince(expr, now)
	if err != nil {
		return "", fmt.Errorf("--since: %w", err)
	}
	return fmt.Sprintf(`updated >= "%s"`, t.Format(jqlTimeLayout)), nil
}

// withClause ANDs clause onto query. An ORDER BY suffix stays at the end.
func withClause(query, clause string) string {
	query = strings.TrimSpace(query)
	order := ""
	if i := strings.LastIndex(strings.ToUpper(query), "ORDER BY"); i >= 0 {
		query, order = strings.TrimSpace(query[:i]), " "+query[i:]
	}
	if query == "" {
		return clause + order
	}
	return "(" + query + ") AND " + clause + order
}
