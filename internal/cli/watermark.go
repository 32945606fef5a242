package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/tidemark/internal/config"
	"github.com/example/tidemark/internal/store"
)

// WatermarkOptions holds flags for the watermark command.
type WatermarkOptions struct {
	*RootOptions
	Config string
}

// watermarkPayload is the JSON payload for the watermark command.
type watermarkPayload struct {
	Watermark *time.Time `json:"watermark"`
	Absent    bool       `json:"absent"`
}

// NewWatermarkCommand creates the watermark command. It prints the target
// table's current high-water mark, or "absent" when the target is empty.
func NewWatermarkCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatermarkOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watermark",
		Short: "Print the target's current watermark",
		Long: `Print the maximum order_date currently present in the target table.
An empty target prints "absent": the next run will be a full load.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showWatermark(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML config (required)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func showWatermark(opts *WatermarkOptions, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	setupLogging("warn", opts.Verbose)

	st, err := store.Open(cfg.Target.Database, cfg.Target.Table, cfg.Staging.Prefix)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open target store", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	wm, ok, err := st.Watermark(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read watermark", err)
	}

	if opts.Format == "json" {
		payload := watermarkPayload{Absent: !ok}
		if ok {
			payload.Watermark = &wm
		}
		return out.Success(payload)
	}

	if !ok {
		fmt.Fprintln(out.Writer, "absent")
		return nil
	}
	fmt.Fprintln(out.Writer, wm.Format(time.RFC3339))
	return nil
}
