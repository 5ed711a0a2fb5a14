package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/issuetag/internal/config"
	"github.com/steveyegge/issuetag/internal/debug"
	"github.com/steveyegge/issuetag/internal/telemetry"
	"github.com/steveyegge/issuetag/internal/ui"
)

var (
	jsonOutput  bool
	verboseFlag bool
	quietFlag   bool

	rootCtx    = context.Background()
	rootCancel context.CancelFunc
)

// flagKeys maps command-line flags to the config keys they override.
// Flags are bound after config.Initialize, for whichever command runs.
var flagKeys = map[string]string{
	"store-backend": "store.backend",
	"query":         "jira.query",
	"page-size":     "fetch.page_size",
	"concurrency":   "fetch.concurrency",
	"include":       "tags.include",
	"exclude":       "tags.exclude",
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")
	rootCmd.PersistentFlags().String("store-backend", "", "Storage backend (dolt-server, mysql, dolt, sqlite)")
	rootCmd.PersistentFlags().String("include", "", "Include rule file (JSON, YAML or TOML)")
	rootCmd.PersistentFlags().String("exclude", "", "Exclude rule file (JSON, YAML or TOML)")
	rootCmd.Flags().Bool("version", false, "Print version information")
}

var rootCmd = &cobra.Command{
	Use:   "issuetag",
	Short: "issuetag - Jira issue ingestion and tagging",
	Long: `Fetches the issues matching a JQL query with their comments, stores them in
Dolt, MySQL or SQLite, and sets boolean tag columns from include/exclude rules.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("issuetag version %s (%s)\n", Version, Build)
			return
		}
		_ = cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupSignalContext()
		applyVerbosityFlags()
		ui.InitColors()

		if err := config.Initialize(); err != nil {
			FatalError("failed to initialize config: %v", err)
		}
		if err := bindFlags(cmd); err != nil {
			FatalError("%v", err)
		}
		if err := telemetry.Init(rootCtx, "issuetag", Version); err != nil {
			WarnError("telemetry disabled: %v", err)
		}
		if path := config.ConfigFileUsed(); path != "" {
			debug.Logf("using config file %s\n", path)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		telemetry.Shutdown(ctx)

		if rootCancel != nil {
			rootCancel()
		}
	},
}

// setupSignalContext cancels rootCtx on SIGINT or SIGTERM so an interrupted
// run stops between statements.
func setupSignalContext() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// applyVerbosityFlags propagates --verbose and --quiet to the debug package.
func applyVerbosityFlags() {
	debug.SetVerbose(verboseFlag)
	debug.SetQuiet(quietFlag)
}

// bindFlags binds every flag in flagKeys that cmd knows about. Only flags
// set on the command line win over the environment and config file.
func bindFlags(cmd *cobra.Command) error {
	for name, key := range flagKeys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := config.BindFlag(key, flag); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
