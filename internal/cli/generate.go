package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/artifacts"
	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/config"
	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/logging"
	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/observability"
	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/pipeline"
	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/rpc/runs"
)

// NewGenerateCmd runs the pipeline in-process. A failing QA verdict still
// exits zero; only configuration and PLAN failures are fatal.
func NewGenerateCmd(opts *Options) *cobra.Command {
	var outputDir string
	var maxIterations int
	var clearMode string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "generate [request]",
		Short: "Generate a prototype from a plain-English request",
		Long:  "Generate a prototype from a plain-English request. Without an argument the configured pipeline.request is used.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if outputDir != "" {
				cfg.Pipeline.OutputDir = outputDir
			}
			if cmd.Flags().Changed("max-iterations") {
				cfg.Pipeline.MaxIterations = maxIterations
			}
			if clearMode != "" {
				cfg.Pipeline.ClearOutputs = clearMode
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			request := cfg.Pipeline.Request
			if len(args) == 1 {
				request = args[0]
			}
			if strings.TrimSpace(request) == "" {
				return fmt.Errorf("request cannot be empty")
			}

			if err := prepareOutputs(cfg); err != nil {
				return err
			}
			logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, filepath.Join(cfg.Pipeline.OutputDir, artifacts.DebugLogFile))
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck // best-effort

			seq, _, err := pipeline.Build(cfg, logger, observability.NewMetrics())
			if err != nil {
				return err
			}
			if !quiet {
				progress := cmd.ErrOrStderr()
				seq = seq.WithReporter(pipeline.ReporterFunc(func(e pipeline.Event) {
					_ = renderEvent(progress, runs.FromPipeline(e))
				}))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sum, err := seq.Run(ctx, "", request)
			if err != nil {
				logger.Error("generation failed", zap.Error(err))
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderSummary(sum))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (overrides pipeline.output_dir)")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Refinement cap, 1-5 (overrides pipeline.max_iterations)")
	cmd.Flags().StringVar(&clearMode, "clear", "", "Clear outputs before the run: core, all or none")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print progress events")
	return cmd
}

// prepareOutputs creates the output directory and applies the clear mode
// before the debug log is opened inside it. The run itself then skips
// clearing.
func prepareOutputs(cfg *config.Config) error {
	store, err := artifacts.NewWriter(cfg.Pipeline.OutputDir, nil)
	if err != nil {
		return err
	}
	mode := pipeline.OptionsFromConfig(cfg.Pipeline).Clear
	if mode == pipeline.ClearNone {
		return nil
	}
	if err := store.Clear(mode == pipeline.ClearAll); err != nil {
		return fmt.Errorf("clear outputs: %w", err)
	}
	cfg.Pipeline.ClearOutputs = string(pipeline.ClearNone)
	return nil
}
