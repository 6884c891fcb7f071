// Package batch analyses sets of image files from disk and renders the
// results for the command line.
package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/MeKo-Tech/onionqc/internal/engine"
)

// ErrNoImages is returned when discovery finds nothing to analyse.
var ErrNoImages = errors.New("no image files found")

// Analyzer is the part of the engine a batch run needs.
type Analyzer interface {
	AnalyzeBatchResults(ctx context.Context, images []image.Image, progress engine.ProgressCallback) []engine.ItemResult
}

// DiscoverFiles expands files and directories into the image files a batch
// would analyse.
func DiscoverFiles(paths []string, config *Config) ([]string, error) {
	files, err := discoverImageFiles(paths, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoImages
	}
	return files, nil
}

// ProcessBatch analyses the images found under imagePaths. Per-image
// failures become degraded records; only discovery errors fail the batch.
func ProcessBatch(ctx context.Context, analyzer Analyzer, imagePaths []string, config *Config) (*Result, error) {
	files, err := DiscoverFiles(imagePaths, config)
	if err != nil {
		return nil, err
	}

	var progress engine.ProgressCallback
	if config.ShowProgress && !config.Quiet {
		progress = engine.NewConsoleProgressCallback(config.ProgressWriter, "Analysing: ").
			WithUpdateInterval(config.ProgressInterval)
	}

	startTime := time.Now()
	images, loadErrs := loadImages(files)
	results := analyzer.AnalyzeBatchResults(ctx, images, progress)
	duration := time.Since(startTime)

	return &Result{
		Items:    collectItems(files, loadErrs, results),
		Duration: duration,
	}, nil
}
