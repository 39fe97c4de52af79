package cmd

import (
	"github.com/spf13/cobra"

	"mediaplan/internal"
)

var (
	libraryFlag   string
	catalogFlag   string
	timezoneFlag  string
	logFileFlag   string
	formatFlag    string
	selectionFlag string
	workersFlag   int
)

// addCatalogFlags registers the flags shared by commands that read the
// catalogue.
func addCatalogFlags(c *cobra.Command) {
	c.Flags().StringVar(&libraryFlag, "library", "", "Library root the plan copies into")
	c.Flags().StringVar(&catalogFlag, "catalog", "", "Catalogue database (default: media.db)")
	c.Flags().StringVar(&timezoneFlag, "timezone", "", "Zone for timestamps without offset (default: Local)")
	c.Flags().StringVar(&logFileFlag, "log-file", "", "Also write JSON logs to this file")
}

// loadConfig reads the config file and lets explicitly set flags win.
func loadConfig(c *cobra.Command) (*internal.Config, error) {
	conf, err := internal.LoadConfig(configFlag)
	if err != nil {
		return nil, err
	}

	flags := c.Flags()
	if flags.Changed("library") {
		conf.Library = libraryFlag
	}
	if flags.Changed("catalog") {
		conf.Catalog = catalogFlag
	}
	if flags.Changed("timezone") {
		conf.Timezone = timezoneFlag
	}
	if flags.Changed("log-file") {
		conf.LogFile = logFileFlag
	}
	if flags.Changed("format") {
		conf.Format = formatFlag
	}
	if flags.Changed("selection") {
		conf.Selection = selectionFlag
	}
	if flags.Changed("workers") {
		conf.Workers = workersFlag
	}
	return conf, nil
}
