package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath  *string
	catalogPath *string
	verbose     *bool
	dumpDir     *string
)

var rootCmd = &cobra.Command{
	Use:   "collector",
	Short: "collector fetches booking schedules, review tags and shelter listings.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		InitTelemetry(cmd.Context(), *verbose, *dumpDir)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ShutdownTelemetry()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	configPath = flags.String("config", "collector.json5", "The collector config, a sibling .local.json5 overrides it.")
	catalogPath = flags.String("catalog", "static/pension_info.csv", "The business catalog to build targets from.")
	verbose = flags.BoolP("verbose", "v", false, "Enable debug logging.")
	dumpDir = flags.String("dump", "", "Write every http exchange to this directory.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
