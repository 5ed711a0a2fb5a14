package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/issuetag/internal/config"
	"github.com/steveyegge/issuetag/internal/debug"
	"github.com/steveyegge/issuetag/internal/storage"
	"github.com/steveyegge/issuetag/internal/ui"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create the issue, comment and attachment tables",
	Long: `Creates any of the comment, attachment and issue tables that do not exist
yet, with one boolean column per loaded tag. Existing tables are left as they are.

With --print the statements are written to stdout and nothing is executed.`,
	Run: func(cmd *cobra.Command, args []string) {
		printOnly, _ := cmd.Flags().GetBool("print")

		s, err := loadSettings()
		if err != nil {
			fail(err, "config")
		}
		if printOnly {
			stmts, err := schemaDDL(s)
			if err != nil {
				fail(err, "schema")
			}
			if jsonOutput {
				outputJSON(map[string]interface{}{"statements": stmts})
				return
			}
			fmt.Println(strings.Join(stmts, ";\n\n") + ";")
			return
		}

		if err := ensureSchema(rootCtx, s); err != nil {
			fail(err, "schema")
		}
		if jsonOutput {
			outputJSON(map[string]interface{}{"backend": s.Store.Backend, "ok": true})
			return
		}
		debug.PrintNormal("%s Schema ready on %s\n", ui.RenderPassIcon(), ui.RenderAccent(s.Store.Backend))
	},
}

func init() {
	schemaCmd.Flags().Bool("print", false, "Print the DDL instead of executing it")
	rootCmd.AddCommand(schemaCmd)
}

func schemaDDL(s *config.Settings) ([]string, error) {
	rules, err := loadRules(s)
	if err != nil {
		return nil, err
	}
	return storage.SchemaStatements(rules.Names())
}

func ensureSchema(ctx context.Context, s *config.Settings) error {
	rules, err := loadRules(s)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, s)
	if err != nil {
		return err
	}
	defer closeStore(store)

	return store.Unit(ctx, func(ctx context.Context, ex storage.Execer) error {
		return storage.EnsureSchema(ctx, ex, store.Dialect(), rules.Names(), debug.Logger())
	})
}
