package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/tidemark/internal/config"
	"github.com/example/tidemark/internal/pipeline"
	"github.com/example/tidemark/internal/quality"
	"github.com/example/tidemark/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config string
	Source string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one incremental load run",
		Long: `Execute one incremental load run: extract the source batch, validate it,
select the records newer than the target's watermark, and merge them.

The run either completes fully or leaves the target unchanged. Rerunning
with the same source file is a no-op.

Example:
  tidemark run --config ./tidemark.yaml
  tidemark run --config ./tidemark.yaml --source ./data/sales_2024_06.csv`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML config (required)")
	cmd.Flags().StringVar(&opts.Source, "source", "", "source CSV path (overrides config)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runPipeline(opts *RunOptions, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	setupLogging(cfg.Logging.Level, opts.Verbose)

	source := opts.Source
	if source == "" {
		source = cfg.Source.Path
	}
	if source == "" {
		return NewExitError(ExitCommandError, "no source file: set source.path in config or pass --source")
	}

	st, err := store.Open(cfg.Target.Database, cfg.Target.Table, cfg.Staging.Prefix)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open target store", err)
	}
	defer st.Close()

	// An interrupted run must still dispose of its staging table; cancelling
	// the context rolls the merge transaction back and the store's deferred
	// drop covers the rest.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := pipeline.Run(ctx, st, source)
	if err != nil {
		stage := string(pipeline.StageOf(err))
		_ = out.Error(stage, err.Error(), violationDetails(err))
		return WrapExitError(ExitFailure, fmt.Sprintf("run failed at stage %s", stage), err)
	}

	if opts.Format == "json" {
		return out.Success(result)
	}
	return out.Success(formatRunSummary(result))
}

// violationDetails extracts the quality violation report when err is a
// rejected batch, for structured error output.
func violationDetails(err error) interface{} {
	var be *quality.BatchError
	if errors.As(err, &be) {
		return be.Violations
	}
	return nil
}

// formatRunSummary renders the text-mode run summary.
func formatRunSummary(r pipeline.Result) string {
	wm := "absent"
	if !r.Watermark.IsZero() {
		wm = r.Watermark.Format("2006-01-02T15:04:05Z07:00")
	}
	load := ""
	if r.FullLoad {
		load = " (full load)"
	}
	return fmt.Sprintf("Run complete%s: %d read, %d delta, %d inserted, %d updated, watermark %s",
		load, r.RowsRead, r.DeltaSize, r.Inserted, r.Updated, wm)
}
