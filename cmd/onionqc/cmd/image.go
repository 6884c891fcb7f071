package cmd

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"slices"
	"strings"

	"github.com/MeKo-Tech/onionqc/internal/batch"
	"github.com/MeKo-Tech/onionqc/internal/common"
	"github.com/MeKo-Tech/onionqc/internal/quality"
	"github.com/MeKo-Tech/onionqc/internal/utils"
	"github.com/spf13/cobra"
)

var outputFormats = []string{batch.FormatText, batch.FormatJSON, batch.FormatCSV, batch.FormatYAML}

// imageCmd represents the image command.
var imageCmd = &cobra.Command{
	Use:   "image [files...]",
	Short: "Grade the onions in one or more photographs",
	Long: `Analyse one or more image files and report quality grade, shelf life,
risk factors and storage recommendations for each.

Every file is analysed on its own; any failure makes the command exit
non-zero after the remaining files have been reported.

Supported formats: JPEG, PNG, GIF, BMP, TIFF, WEBP

Examples:
  onionqc image onion.jpg
  onionqc image *.png --format json
  onionqc image crate.jpg --output report.yaml --format yaml`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE:         runImageCommand,
}

// singleAnalyzer is the part of the engine the image command needs.
type singleAnalyzer interface {
	Analyze(ctx context.Context, img image.Image) (quality.OnionAnalysis, error)
}

func runImageCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errors.New("no input files provided")
	}

	cfg := GetConfig()
	applyModelFlags(cfg, cmd)

	format := cfg.Output.Format
	if cmd.Flags().Changed("format") {
		format, _ = cmd.Flags().GetString("format")
	}
	outputFile := cfg.Output.File
	if cmd.Flags().Changed("output") {
		outputFile, _ = cmd.Flags().GetString("output")
	}

	if !slices.Contains(outputFormats, format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", format, strings.Join(outputFormats, ", "))
	}

	ctx := commandContext(cmd)
	analyzer, err := loadEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = analyzer.Close() }()

	result := analyzeFiles(ctx, analyzer, args)
	if err := result.SaveResults(cmd.OutOrStdout(), format, outputFile, false); err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}

	if failed := result.Summary().Failed; failed > 0 {
		return fmt.Errorf("%d of %d images could not be analysed", failed, len(args))
	}
	return nil
}

// analyzeFiles analyses each file in turn. Failures are kept as degraded
// records so that every file appears in the output.
func analyzeFiles(ctx context.Context, analyzer singleAnalyzer, paths []string) *batch.Result {
	timer := common.NewNamedTimer("image")
	items := make([]batch.Item, 0, len(paths))

	for _, path := range paths {
		item := batch.Item{File: path}
		img, _, err := utils.LoadImage(path)
		if err == nil {
			item.Analysis, err = analyzer.Analyze(ctx, img)
		}
		if err != nil {
			slog.Error("Image analysis failed", "file", path, "error", err)
			item.Err = err
			item.Analysis = quality.FailedAnalysis(err)
		}
		items = append(items, item)
	}

	duration := timer.Stop()
	slog.Debug("Stage finished", "stage", timer.Name(), "images", len(items), "duration_ms", timer.Milliseconds())
	return &batch.Result{Items: items, Duration: duration}
}

func init() {
	rootCmd.AddCommand(imageCmd)

	imageCmd.Flags().StringP("format", "f", batch.FormatText, "output format: text, json, csv, yaml")
	imageCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	addModelFlags(imageCmd)
}
