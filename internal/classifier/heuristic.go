package classifier

import (
	"context"
	"image"
	"math"

	"github.com/MeKo-Tech/onionqc/internal/quality"
	"github.com/disintegration/imaging"
)

const (
	heuristicThumb = 64
	darkValue      = 0.25 // pixels darker than this count as rot or mould
	dullValue      = 0.55
	dullSaturation = 0.18 // greyish pixels below dullValue count as decay
	minSpoiled     = 0.02
	maxSpoiled     = 0.98
)

// HeuristicModel estimates spoilage from colour statistics when no trained
// model is available. It reports two classes: healthy and spoiled.
type HeuristicModel struct {
	healthy string
	spoiled string
	size    int
}

// NewHeuristicModel returns a heuristic model whose labels play the given
// roles.
func NewHeuristicModel(roles quality.LabelRoles, inputSize int) *HeuristicModel {
	if roles.Healthy == "" {
		roles.Healthy = quality.DefaultHealthyLabel
	}
	if roles.Spoiled == "" {
		roles.Spoiled = quality.DefaultSpoiledLabel
	}
	if inputSize <= 0 {
		inputSize = DefaultInputSize
	}
	return &HeuristicModel{healthy: roles.Healthy, spoiled: roles.Spoiled, size: inputSize}
}

// TotalClasses implements Model.
func (h *HeuristicModel) TotalClasses() int { return 2 }

// InputSize implements Model.
func (h *HeuristicModel) InputSize() int { return h.size }

// Close implements Model.
func (h *HeuristicModel) Close() error { return nil }

// Classify implements Classifier.
func (h *HeuristicModel) Classify(ctx context.Context, img image.Image) ([]quality.ClassificationResult, error) {
	if img == nil {
		return nil, ErrNoImage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := SpoiledShare(img) * 2
	p = math.Max(minSpoiled, math.Min(maxSpoiled, p))

	return []quality.ClassificationResult{
		{Label: h.healthy, Probability: 1 - p},
		{Label: h.spoiled, Probability: p},
	}, nil
}

// SpoiledShare returns the fraction of pixels that look dark or dull grey.
func SpoiledShare(img image.Image) float64 {
	thumb := imaging.Resize(img, heuristicThumb, heuristicThumb, imaging.Box)
	b := thumb.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}

	var bad int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := thumb.NRGBAAt(x, y)
			v, s := valueSaturation(c.R, c.G, c.B)
			if v < darkValue || (v < dullValue && s < dullSaturation) {
				bad++
			}
		}
	}
	return float64(bad) / float64(total)
}

func valueSaturation(r, g, b uint8) (float64, float64) {
	maxC := max(r, g, b)
	minC := min(r, g, b)
	if maxC == 0 {
		return 0, 0
	}
	return float64(maxC) / 255, float64(maxC-minC) / float64(maxC)
}
