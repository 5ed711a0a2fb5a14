package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/issuetag/internal/config"
	"github.com/steveyegge/issuetag/internal/debug"
	"github.com/steveyegge/issuetag/internal/storage"
	"github.com/steveyegge/issuetag/internal/tags"
	"github.com/steveyegge/issuetag/internal/ui"
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List the loaded tag rules",
	Long: `Lists every tag with its include and exclude patterns, in the order the
tag pass applies them. With --sql the UPDATE statements for the configured
backend are printed instead.`,
	Run: func(cmd *cobra.Command, args []string) {
		showSQL, _ := cmd.Flags().GetBool("sql")

		s, err := loadSettings()
		if err != nil {
			fail(err, "config")
		}
		rules, err := loadRules(s)
		if err != nil {
			fail(err, "rules")
		}

		if showSQL {
			stmts, err := tagStatements(s, rules)
			if err != nil {
				fail(err, "rules")
			}
			if jsonOutput {
				outputJSON(map[string]interface{}{"statements": stmts})
				return
			}
			for _, stmt := range stmts {
				fmt.Println(stmt + ";")
			}
			return
		}

		if jsonOutput {
			outputJSON(map[string]interface{}{"rules": rules.Rules()})
			return
		}
		if !debug.IsQuiet() {
			fmt.Print(ui.RenderRules(rules))
		}
	},
}

func init() {
	tagsCmd.Flags().Bool("sql", false, "Print the classification statements")
	rootCmd.AddCommand(tagsCmd)
}

// tagStatements renders the tag pass in the dialect of the configured backend.
func tagStatements(s *config.Settings, rules *tags.RuleSet) ([]string, error) {
	d, ok := storage.DialectFor(s.Store.Backend)
	if !ok {
		return nil, fmt.Errorf("unknown store backend %q", s.Store.Backend)
	}
	return tags.NewEngine(rules, d, nil).Statements()
}
