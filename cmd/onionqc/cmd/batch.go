package cmd

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/onionqc/internal/batch"
	"github.com/MeKo-Tech/onionqc/internal/config"
	"github.com/spf13/cobra"
)

// batchCmd represents the batch command.
var batchCmd = &cobra.Command{
	Use:   "batch [files or directories...]",
	Short: "Grade many onion photographs in one run",
	Long: `Analyse many image files in one run. Directories are scanned for
supported images; files that cannot be read or analysed are reported as
failed records and do not stop the batch.

Supported formats: JPEG, PNG, GIF, BMP, TIFF, WEBP

Examples:
  onionqc batch *.jpg *.png
  onionqc batch photos/ --recursive --workers 4
  onionqc batch photos/ --format csv --output grades.csv --stats
  onionqc batch photos/ --exclude "*_thumb.jpg" --progress`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runBatchCommand,
}

// configToBatchConfig maps centralized configuration to batch.Config.
// Changed flags override configuration values.
func configToBatchConfig(cfg *config.Config, cmd *cobra.Command) *batch.Config {
	batchConfig := &batch.Config{}

	batchConfig.Format = cfg.Output.Format
	if cmd.Flags().Changed("format") {
		batchConfig.Format, _ = cmd.Flags().GetString("format")
	}

	batchConfig.OutputFile = cfg.Output.File
	if cmd.Flags().Changed("output") {
		batchConfig.OutputFile, _ = cmd.Flags().GetString("output")
	}

	// File discovery and progress settings are CLI-only
	batchConfig.Recursive, _ = cmd.Flags().GetBool("recursive")
	batchConfig.IncludePatterns, _ = cmd.Flags().GetStringSlice("include")
	batchConfig.ExcludePatterns, _ = cmd.Flags().GetStringSlice("exclude")

	batchConfig.ShowProgress, _ = cmd.Flags().GetBool("progress")
	batchConfig.Quiet, _ = cmd.Flags().GetBool("quiet")
	batchConfig.ShowStats, _ = cmd.Flags().GetBool("stats")
	batchConfig.ProgressInterval, _ = cmd.Flags().GetDuration("progress-interval")
	batchConfig.ProgressWriter = cmd.ErrOrStderr()

	return batchConfig
}

func runBatchCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	applyModelFlags(cfg, cmd)
	if cmd.Flags().Changed("workers") {
		cfg.Analysis.BatchWorkers, _ = cmd.Flags().GetInt("workers")
	}
	if cfg.Analysis.BatchWorkers <= 0 {
		return fmt.Errorf("invalid worker count: %d (must be positive)", cfg.Analysis.BatchWorkers)
	}

	config := configToBatchConfig(cfg, cmd)
	if !slices.Contains(outputFormats, config.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)",
			config.Format, strings.Join(outputFormats, ", "))
	}

	ctx := commandContext(cmd)
	analyzer, err := loadEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = analyzer.Close() }()

	if !config.Quiet {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Processing %d paths...\n", len(args))
	}

	result, err := batch.ProcessBatch(ctx, analyzer, args, config)
	if err != nil {
		return fmt.Errorf("batch processing failed: %w", err)
	}

	if err := result.SaveResults(cmd.OutOrStdout(), config.Format, config.OutputFile, config.Quiet); err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}

	if config.ShowStats {
		result.PrintStats(cmd.ErrOrStderr(), config.Quiet)
	}

	return nil
}

func init() {
	rootCmd.AddCommand(batchCmd)
	addBatchFlags(batchCmd)
}

func addBatchFlags(cmd *cobra.Command) {
	// Output flags
	cmd.Flags().StringP("format", "f", batch.FormatText, "output format: text, json, csv, yaml")
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")

	// Model and parallelism flags
	addModelFlags(cmd)
	cmd.Flags().IntP("workers", "w", 1, "number of images analysed concurrently")

	// File discovery flags
	cmd.Flags().BoolP("recursive", "r", false, "recursively scan directories")
	cmd.Flags().StringSlice("include", []string{}, "file name patterns to include (default: all supported images)")
	cmd.Flags().StringSlice("exclude", []string{}, "file name patterns to exclude")

	// Progress and monitoring flags
	cmd.Flags().Bool("progress", false, "show progress bar")
	cmd.Flags().Bool("quiet", false, "suppress progress output")
	cmd.Flags().Bool("stats", false, "print statistics after processing")
	cmd.Flags().Duration("progress-interval", 100*time.Millisecond, "progress bar refresh interval")
}
