package batch

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/onionqc/internal/engine"
	"github.com/MeKo-Tech/onionqc/internal/quality"
	"github.com/MeKo-Tech/onionqc/internal/utils"
)

// loadAndValidateImage loads an image and checks it against the default
// constraints. Constraint violations are logged, not fatal.
func loadAndValidateImage(path string) (image.Image, utils.ImageMetadata, error) {
	if !utils.IsSupportedImage(path) {
		return nil, utils.ImageMetadata{}, fmt.Errorf("unsupported image format: %s", path)
	}

	img, meta, err := utils.LoadImage(path)
	if err != nil {
		return nil, utils.ImageMetadata{}, fmt.Errorf("failed to load %s: %w", path, err)
	}

	if err := utils.ValidateImageConstraints(img, utils.DefaultImageConstraints()); err != nil {
		slog.Warn("image does not meet constraints", "file", path, "error", err)
	}

	return img, meta, nil
}

// loadImages loads every path. Failed loads leave a nil image and their
// error at the same index.
func loadImages(paths []string) ([]image.Image, []error) {
	images := make([]image.Image, len(paths))
	errs := make([]error, len(paths))
	for i, path := range paths {
		img, _, err := loadAndValidateImage(path)
		if err != nil {
			errs[i] = err
			continue
		}
		images[i] = img
	}
	return images, errs
}

// collectItems pairs engine results with their files. Load errors take
// precedence over the engine's invalid-image error for the same slot.
func collectItems(paths []string, loadErrs []error, results []engine.ItemResult) []Item {
	items := make([]Item, len(paths))
	for i, path := range paths {
		item := Item{File: path}
		switch {
		case loadErrs[i] != nil:
			item.Err = loadErrs[i]
			item.Analysis = quality.FailedAnalysis(loadErrs[i])
		case i < len(results):
			item.Err = results[i].Err
			item.Analysis = results[i].Record()
		}
		items[i] = item
	}
	return items
}
