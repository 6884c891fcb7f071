// Package classifier defines the contract of the external image classifier
// and provides an ONNX Runtime implementation plus a colour-statistics
// fallback.
package classifier

import (
	"context"
	"errors"
	"image"

	"github.com/MeKo-Tech/onionqc/internal/quality"
	"github.com/disintegration/imaging"
)

// DefaultInputSize is the square input edge used when a model does not
// declare one.
const DefaultInputSize = 224

// ErrNoImage is returned when a nil image reaches a classifier.
var ErrNoImage = errors.New("nil image")

// Classifier scores a preprocessed image. Results carry one entry per model
// class, in model order.
type Classifier interface {
	Classify(ctx context.Context, img image.Image) ([]quality.ClassificationResult, error)
}

// Model is a loaded classifier.
type Model interface {
	Classifier
	// TotalClasses is the number of output classes the model declares.
	TotalClasses() int
	// InputSize is the square edge, in pixels, the model consumes.
	InputSize() int
	Close() error
}

// Loader loads a model from its topology and metadata artifacts.
type Loader interface {
	Load(ctx context.Context, topology, metadata string) (Model, error)
}

// Preprocess resizes img to the model's square input. Aspect ratio is not
// preserved, matching how the model was trained.
func Preprocess(img image.Image, size int) (image.Image, error) {
	if img == nil {
		return nil, ErrNoImage
	}
	if size <= 0 {
		size = DefaultInputSize
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.New("empty image")
	}
	return imaging.Resize(img, size, size, imaging.Lanczos), nil
}

// results pairs labels with probabilities.
func results(labels []string, probs []float64) []quality.ClassificationResult {
	out := make([]quality.ClassificationResult, len(probs))
	for i, p := range probs {
		out[i] = quality.ClassificationResult{Label: labelAt(labels, i), Probability: p}
	}
	return out
}
