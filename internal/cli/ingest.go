package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nimbus-data/nimbus-ingest/internal/config"
	"github.com/nimbus-data/nimbus-ingest/internal/core"
	"github.com/nimbus-data/nimbus-ingest/internal/logging"
	"github.com/nimbus-data/nimbus-ingest/internal/models"
	"github.com/nimbus-data/nimbus-ingest/internal/progress"
	"github.com/nimbus-data/nimbus-ingest/internal/state"
	"github.com/nimbus-data/nimbus-ingest/internal/surface"
)

// ingestOptions holds the 'ingest' flags.
type ingestOptions struct {
	provider   string
	maxFiles   int
	maxSize    string
	multiple   bool
	reselect   bool
	accept     []string
	recursive  bool
	hidden     bool
	noProgress bool
	report     string
}

func newIngestCmd() *cobra.Command {
	opts := &ingestOptions{}

	cmd := &cobra.Command{
		Use:   "ingest <file|glob|dir>...",
		Short: "Upload files and extract their datasets",
		Long: `Stage the given files as one selection and upload each accepted file:
request a slot, transfer the bytes, extract the dataset and register it.

Files that fail the selection policy (type, size, count) are reported and
skipped. The command exits non-zero when any file was rejected or failed.

Examples:
  nimbus-ingest ingest sales.csv
  nimbus-ingest ingest --max-files 10 "exports/*.csv"
  nimbus-ingest ingest --recursive --max-files 50 --report ingest.csv exports/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(GetContext(), opts.provider)
			if err != nil {
				return err
			}
			if err := opts.apply(cmd, cfg); err != nil {
				return err
			}
			return runIngest(GetContext(), cfg, opts, args, cmd.OutOrStdout(), GetLogger())
		},
	}

	cmd.Flags().StringVar(&opts.provider, "provider", "", "Storage provider: remote, s3 or azure")
	cmd.Flags().IntVar(&opts.maxFiles, "max-files", 0, "Maximum number of staged files (implies --multiple when above 1)")
	cmd.Flags().StringVar(&opts.maxSize, "max-size", "", "Maximum file size, e.g. 4MiB or 500kB")
	cmd.Flags().BoolVar(&opts.multiple, "multiple", false, "Allow selecting more than one file")
	cmd.Flags().BoolVar(&opts.reselect, "reselect", false, "A new selection replaces staged files instead of appending")
	cmd.Flags().StringSliceVar(&opts.accept, "accept", nil, "Accepted extensions or MIME types, e.g. .csv,text/csv")
	cmd.Flags().BoolVarP(&opts.recursive, "recursive", "r", false, "Expand directories into the files below them")
	cmd.Flags().BoolVar(&opts.hidden, "include-hidden", false, "Include hidden files when expanding directories")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Print one line per step instead of progress bars")
	cmd.Flags().StringVar(&opts.report, "report", "", "Write or update a CSV report of the ingested files")

	return cmd
}

// apply copies explicitly set flags onto cfg.
func (o *ingestOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("max-files") {
		cfg.MaxFiles = o.maxFiles
		if o.maxFiles > 1 && !flags.Changed("multiple") {
			cfg.AllowMultiple = true
		}
	}
	if flags.Changed("max-size") {
		size, err := config.ParseSize(o.maxSize)
		if err != nil {
			return err
		}
		cfg.MaxSizeBytes = size
	}
	if flags.Changed("multiple") {
		cfg.AllowMultiple = o.multiple
	}
	if flags.Changed("reselect") {
		cfg.ReselectOnFull = o.reselect
	}
	if flags.Changed("accept") {
		cfg.Accept = o.accept
	}
	return nil
}

// runIngest expands args into candidates, runs them through the engine
// and prints a summary to out.
func runIngest(ctx context.Context, cfg *config.Config, opts *ingestOptions, args []string, out io.Writer, logger *logging.Logger) error {
	paths, err := surface.ExpandGlobs(args)
	if err != nil {
		return err
	}

	candidates, pathErrs := surface.FromPaths(paths, surface.Options{
		Recursive:     opts.recursive,
		IncludeHidden: opts.hidden,
	})
	for _, perr := range pathErrs {
		logger.Warn().Err(perr).Msg("Skipping path")
	}
	if len(candidates) == 0 {
		return errors.Join(append([]error{errors.New("no files to ingest")}, pathErrs...)...)
	}
	logger.Debugf("Expanded %d argument(s) into %d file(s)", len(args), len(candidates))

	pol := cfg.Policy()
	accepted, _ := pol.Check(candidates)
	expected := min(len(accepted), pol.MaxFiles)

	ui := progress.NewBatchUI(expected, opts.noProgress)

	engine, err := core.NewEngine(ctx, cfg, logger, core.Hooks{
		OnSelectionChange: ui.Track,
		OnUploadComplete:  func([]models.IngestionResult) {},
		OnFileSettled: func(file models.StagedFile, result models.IngestionResult, err error) {
			ui.Complete(file.Token, result, err)
		},
		OnStep:     ui.OnStep,
		WrapReader: ui.WrapReader,
	})
	if err != nil {
		return err
	}
	defer engine.Stop()

	if len(accepted) > pol.MaxFiles {
		fmt.Fprintf(ui.Writer(), "Selection is limited to %d file(s); %d skipped\n",
			pol.MaxFiles, len(accepted)-pol.MaxFiles)
	}

	start := time.Now()
	results, ingestErr := engine.Ingest(ctx, candidates)
	ui.Wait()

	if opts.report != "" {
		if err := writeReport(opts.report, engine.Session().Snapshot(), results); err != nil {
			logger.Warn().Err(err).Str("path", opts.report).Msg("Failed to write report")
		}
	}

	printSummary(out, results, engine.Session().Len(), time.Since(start))

	if ingestErr != nil {
		return ingestErr
	}
	if len(pathErrs) > 0 {
		return fmt.Errorf("%d path(s) could not be read", len(pathErrs))
	}
	return nil
}

func writeReport(path string, snap state.Snapshot, results []models.IngestionResult) error {
	rm, err := state.NewReportManager(path)
	if err != nil {
		return err
	}
	return rm.Update(state.EntriesFromSnapshot(snap, results, time.Now())...)
}

func printSummary(out io.Writer, results []models.IngestionResult, staged int, elapsed time.Duration) {
	fmt.Fprintf(out, "\nIngested %d of %d file(s) in %s\n", len(results), staged, elapsed.Round(time.Millisecond))
	for _, r := range results {
		fmt.Fprintf(out, "  %s -> file %s, dataset %s (%d columns: %s)\n",
			r.SourceName, r.FileID, r.DatasetID, len(r.Columns), strings.Join(r.Columns, ", "))
	}
}
