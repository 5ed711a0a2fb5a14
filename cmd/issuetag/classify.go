package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/issuetag/internal/config"
	"github.com/steveyegge/issuetag/internal/debug"
	"github.com/steveyegge/issuetag/internal/ingest"
	"github.com/steveyegge/issuetag/internal/tags"
	"github.com/steveyegge/issuetag/internal/ui"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Re-apply the tag rules to the stored issues",
	Long: `Runs only the tag pass: sets each tag to TRUE for the stored issues whose
summary matches its rules. No issues are fetched.

Tag columns are created together with the issue table. A rule added after the
table exists fails with an unknown column until the issue table is recreated,
for example by pointing store.path at a new database.`,
	Run: func(cmd *cobra.Command, args []string) {
		s, err := loadSettings()
		if err != nil {
			fail(err, "config")
		}
		counts, err := classifyStored(rootCtx, s)
		if err != nil {
			fail(err, "classify")
		}
		if jsonOutput {
			outputJSON(map[string]interface{}{"tags": counts})
			return
		}
		if !debug.IsQuiet() {
			fmt.Printf("%s Classified %d tags\n\n", ui.RenderPassIcon(), len(counts))
			fmt.Print(ui.RenderTagCounts(counts))
		}
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

func classifyStored(ctx context.Context, s *config.Settings) ([]tags.TagCount, error) {
	rules, err := loadRules(s)
	if err != nil {
		return nil, err
	}
	store, err := openStore(ctx, s)
	if err != nil {
		return nil, err
	}
	defer closeStore(store)

	pipeline := &ingest.Pipeline{Store: store, Rules: rules, Logger: debug.Logger()}
	return pipeline.Classify(ctx)
}
