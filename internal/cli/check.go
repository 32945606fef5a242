package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/tidemark/internal/extract"
	"github.com/example/tidemark/internal/quality"
	"github.com/example/tidemark/internal/transform"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
}

// CheckReport is the payload for check command output.
type CheckReport struct {
	Source     string              `json:"source"`
	Records    int                 `json:"records"`
	Violations []quality.Violation `json:"violations,omitempty"`
}

// NewCheckCommand creates the check command. It runs extraction, transform
// and the quality gate against a source file without touching any target
// store, and prints the violation report the gate would reject the batch
// with.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <source.csv>",
		Short: "Validate a source batch without loading it",
		Long: `Validate a source CSV against the quality gate without loading anything.

Prints the full violation report (every rule failure, not just the first)
so the source can be corrected in one pass and rerun.

Example:
  tidemark check ./data/sales_2024_06.csv`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args[0], cmd)
		},
	}

	return cmd
}

func runCheck(opts *CheckOptions, source string, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	setupLogging("warn", opts.Verbose)

	table, err := extract.Extract(source)
	if err != nil {
		_ = out.Error("extract", err.Error(), nil)
		return WrapExitError(ExitCommandError, "extraction failed", err)
	}

	batch, err := transform.Transform(table)
	if err != nil {
		_ = out.Error("transform", err.Error(), nil)
		return WrapExitError(ExitCommandError, "transform failed", err)
	}

	report := CheckReport{Source: source, Records: batch.Len()}

	_, err = quality.Validate(batch)
	var be *quality.BatchError
	if errors.As(err, &be) {
		report.Violations = be.Violations
	} else if err != nil {
		return WrapExitError(ExitCommandError, "quality gate failed", err)
	}

	if opts.Format == "json" {
		if err := out.Success(report); err != nil {
			return err
		}
	} else {
		printCheckReport(out, report)
	}

	if len(report.Violations) > 0 {
		return NewExitError(ExitFailure,
			fmt.Sprintf("batch rejected: %d violations", len(report.Violations)))
	}
	return nil
}

func printCheckReport(out *OutputFormatter, report CheckReport) {
	if len(report.Violations) == 0 {
		fmt.Fprintf(out.Writer, "Checked %d records: OK\n", report.Records)
		return
	}
	fmt.Fprintf(out.Writer, "Checked %d records: %d violations\n",
		report.Records, len(report.Violations))
	for _, v := range report.Violations {
		fmt.Fprintln(out.Writer, v.String())
	}
}
