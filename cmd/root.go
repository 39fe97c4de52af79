package cmd

import (
	"github.com/spf13/cobra"
)

// Version is overridden at build time or from the embedded VERSION file.
var Version = "dev"

var (
	configFlag  string
	verboseFlag int
)

var rootCmd = &cobra.Command{
	Use:           "mediaplan",
	Short:         "Plan a deduplicated, date-ordered media library from an ingest catalogue",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

// ApplyVersion copies Version onto the root command.
func ApplyVersion() {
	rootCmd.Version = Version
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default: <user config dir>/mediaplan/mediaplan.toml)")
	rootCmd.PersistentFlags().CountVarP(&verboseFlag, "verbose", "v", "Increase log verbosity (-v info, -vv debug, -vvv trace)")
	ApplyVersion()
}
