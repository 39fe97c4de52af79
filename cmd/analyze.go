package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"mediaplan/internal"
)

var topDuplicatesFlag int

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Report duplicates, metadata coverage and date range of the catalogue",
	Long: `Scan every catalogue record and report how many copies each content has,
which timestamp tags are present, where resolved dates come from, and which
destinations more than one content would compete for.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		loc, err := conf.Location()
		if err != nil {
			return err
		}

		selection, err := internal.ParseSelection(conf.Selection)
		if err != nil {
			return err
		}

		format := internal.FormatTable
		if cmd.Flags().Changed("format") {
			format = formatFlag
		}
		if format != internal.FormatTable && format != internal.FormatJSON {
			return fmt.Errorf("unknown format %q (want table or json)", format)
		}

		logger, err := internal.NewLogger(cmd.ErrOrStderr(), conf.LogFile, verboseFlag)
		if err != nil {
			return err
		}
		defer logger.Close()

		catalog, err := internal.OpenSQLiteCatalog(cmd.Context(), conf.Catalog, logger.Component("catalog"))
		if err != nil {
			return err
		}
		defer catalog.Close()

		options := &internal.AnalyticsOptions{
			LibraryRoot:   conf.Library,
			Selection:     selection,
			Resolver:      internal.NewTimeResolver(loc),
			TopDuplicates: topDuplicatesFlag,
			Format:        format,
		}

		results, err := internal.AnalyzeCatalog(cmd.Context(), catalog, options)
		if err != nil {
			return fmt.Errorf("failed to analyze catalogue: %w", err)
		}

		return internal.DisplayAnalytics(cmd.OutOrStdout(), results, options)
	},
}

func init() {
	addCatalogFlags(analyzeCmd)
	analyzeCmd.Flags().StringVar(&formatFlag, "format", "", "Output format: table, json (default: table)")
	analyzeCmd.Flags().StringVar(&selectionFlag, "selection", "", "Representative per content for collision checks: first, richest")
	analyzeCmd.Flags().IntVar(&topDuplicatesFlag, "top", 10, "Largest duplicate sets to list (0 = all)")

	rootCmd.AddCommand(analyzeCmd)
}
