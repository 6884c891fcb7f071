package engine

import (
	"context"
	"fmt"
	"image"

	"github.com/MeKo-Tech/onionqc/internal/classifier"
	"github.com/MeKo-Tech/onionqc/internal/quality"
)

// Analyze classifies one image and assembles its analysis record. The image
// is resized to the model's square input first.
//
// Errors: ErrModelNotReady before a successful load, ErrInvalidImage for nil
// or empty images, ErrClassificationFailure when the classifier fails or
// returns nothing. A panicking classifier is reported as
// ErrClassificationFailure.
func (e *Engine) Analyze(ctx context.Context, img image.Image) (quality.OnionAnalysis, error) {
	model, err := e.readyModel()
	if err != nil {
		return quality.OnionAnalysis{}, err
	}
	if img == nil {
		return quality.OnionAnalysis{}, fmt.Errorf("%w: nil image", ErrInvalidImage)
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return quality.OnionAnalysis{}, fmt.Errorf("%w: empty image", ErrInvalidImage)
	}

	prepared, err := classifier.Preprocess(img, model.InputSize())
	if err != nil {
		return quality.OnionAnalysis{}, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}

	results, err := classify(ctx, model, prepared)
	if err != nil {
		return quality.OnionAnalysis{}, fmt.Errorf("%w: %w", ErrClassificationFailure, err)
	}
	if len(results) == 0 {
		return quality.OnionAnalysis{}, fmt.Errorf("%w: model returned no predictions", ErrClassificationFailure)
	}

	return quality.Assess(results, e.roles, e.clock().Month()), nil
}

func classify(ctx context.Context, c classifier.Classifier, img image.Image) (results []quality.ClassificationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			results, err = nil, fmt.Errorf("classifier panic: %v", r)
		}
	}()
	return c.Classify(ctx, img)
}
