package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"mediaplan/internal"
)

var (
	outputFlag   string
	manifestFlag string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Build a migration plan from the catalogue",
	Long: `Resolve a capture date for every distinct content in the catalogue and
emit one copy per destination library/YYYY-MM/YYYY-MM-DD/filename.

When two contents land on the same destination, the one carrying GPS
coordinates wins; otherwise the first one processed is kept.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := conf.Validate(); err != nil {
			return err
		}

		if outputFlag == "" || outputFlag == "-" {
			return runPlan(cmd.Context(), conf, cmd.OutOrStdout(), cmd.ErrOrStderr(), manifestFlag)
		}

		var buf bytes.Buffer
		if err := runPlan(cmd.Context(), conf, &buf, cmd.ErrOrStderr(), manifestFlag); err != nil {
			return err
		}
		mode := os.FileMode(0644)
		if conf.Format == internal.FormatScript {
			mode = 0755
		}
		return writeFileAtomic(outputFlag, buf.Bytes(), mode)
	},
}

// writeFileAtomic replaces path only once data is fully on disk, so an
// existing plan survives a failed write.
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create output %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write output %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write output %s: %w", path, err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write output %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace output %s: %w", path, err)
	}
	return nil
}

// runPlan executes one planning run and writes the plan to out. Nothing is
// written to out when the run fails.
func runPlan(ctx context.Context, conf *internal.Config, out, errOut io.Writer, manifestPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := internal.NewLogger(errOut, conf.LogFile, verboseFlag)
	if err != nil {
		return err
	}
	defer logger.Close()

	runID := uuid.NewString()
	logger.Logger = logger.With().Str("run_id", runID).Logger()

	loc, err := conf.Location()
	if err != nil {
		return err
	}
	selection, err := internal.ParseSelection(conf.Selection)
	if err != nil {
		return err
	}

	catalog, err := internal.OpenSQLiteCatalog(ctx, conf.Catalog, logger.Component("catalog"))
	if err != nil {
		printHint(errOut, conf.Catalog, err)
		return err
	}
	defer catalog.Close()

	var session *internal.PlanSession
	if manifestPath != "" {
		session, err = internal.NewPlanSession(manifestPath, runID)
		if err != nil {
			return err
		}
		defer session.Close()
		if err := session.LogRunStart(conf.Catalog, conf.Library, selection); err != nil {
			logger.Warn().Err(err).Msg("manifest write failed")
		}
	}

	planner := internal.NewPlanner(catalog, internal.PlanOptions{
		LibraryRoot: conf.Library,
		Selection:   selection,
		Workers:     conf.Workers,
		Resolver:    internal.NewTimeResolver(loc),
		Logger:      logger.Component("planner"),
		Session:     session,
	})

	plan, summary, err := planner.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("planning aborted")
		printHint(errOut, conf.Catalog, err)
		return err
	}

	if err := session.LogRunEnd(*summary); err != nil {
		logger.Warn().Err(err).Msg("manifest write failed")
	}

	if err := internal.WritePlan(out, plan, conf.Format, runID); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}

	fmt.Fprintf(errOut, "Planned %d files from %d records (%d contents, %d replaced by GPS, %d collisions kept)\n",
		plan.Len(), summary.Records, summary.Digests, summary.Replaced, summary.Kept)
	if summary.Errors.Total > 0 {
		fmt.Fprint(errOut, summary.Errors.GenerateReport())
	}
	return nil
}

func printHint(w io.Writer, catalog string, err error) {
	if procErr := internal.CategorizeError(catalog, err); procErr.Suggestion != "" {
		fmt.Fprintf(w, "Hint: %s\n", procErr.Suggestion)
	}
}

func init() {
	addCatalogFlags(planCmd)
	planCmd.Flags().StringVar(&formatFlag, "format", "", "Output format: script, json, table (default: script)")
	planCmd.Flags().StringVar(&selectionFlag, "selection", "", "Representative per content: first, richest (default: first)")
	planCmd.Flags().IntVar(&workersFlag, "workers", 0, "Digest groups resolved in parallel (default: 1)")
	planCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Write the plan to this file instead of stdout")
	planCmd.Flags().StringVar(&manifestFlag, "manifest", "", "Append a JSONL decision journal to this file")

	rootCmd.AddCommand(planCmd)
}
