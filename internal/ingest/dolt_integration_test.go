//go:build integration

package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcdolt "github.com/testcontainers/testcontainers-go/modules/dolt"

	"github.com/steveyegge/issuetag/internal/storage/factory"
	"github.com/steveyegge/issuetag/internal/tags"
)

func TestRunAgainstDoltServer(t *testing.T) {
	ctx := context.Background()

	ctr, err := tcdolt.Run(ctx, "dolthub/dolt-sql-server:1.43.0",
		tcdolt.WithDatabase("issuetag"),
		tcdolt.WithUsername("issuetag"),
		tcdolt.WithPassword("issuetag"),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)

	store, err := factory.Open(ctx, factory.Options{
		Backend:        "dolt-server",
		DSN:            dsn,
		ConnectTimeout: time.Minute,
	})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	rules, err := tags.NewRuleSet(
		tags.Rule{Name: "isTest", Include: []string{"test"}},
		tags.Rule{Name: "isBuild", Include: []string{"build"}, Exclude: []string{"o'brien"}},
	)
	require.NoError(t, err)

	p := &Pipeline{Store: store, Rules: rules, BatchTransaction: true, CommitMessage: "ingest run"}
	stats, err := p.Run(ctx, sampleSource(), "project = PROJ", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Issues)
	assert.True(t, stats.Committed)
	assert.Equal(t, []tags.TagCount{{Tag: "isTest", Rows: 2}, {Tag: "isBuild", Rows: 1}}, stats.Tags)

	var commits int
	require.NoError(t, store.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM dolt_log WHERE message = 'ingest run'").Scan(&commits))
	assert.Equal(t, 1, commits)

	// A second run over the same data leaves the same rows.
	_, err = p.Run(ctx, sampleSource(), "project = PROJ", 3)
	require.NoError(t, err)
	var tagged int
	require.NoError(t, store.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM issue WHERE isTest = TRUE").Scan(&tagged))
	assert.Equal(t, 2, tagged)
}
