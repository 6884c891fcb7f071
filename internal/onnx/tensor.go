package onnx

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/MeKo-Tech/onionqc/internal/mempool"
	"github.com/disintegration/imaging"
)

// Layout is the memory order of a 4D image tensor.
type Layout int

// Supported layouts.
const (
	LayoutNCHW Layout = iota
	LayoutNHWC
)

func (l Layout) String() string {
	if l == LayoutNHWC {
		return "NHWC"
	}
	return "NCHW"
}

const channels = 3

// InputGeometry describes a single RGB image input.
type InputGeometry struct {
	Layout Layout
	Height int
	Width  int
}

// Elements returns the number of float32 values in one image.
func (g InputGeometry) Elements() int {
	return channels * g.Height * g.Width
}

// Shape returns the batch-of-one tensor shape.
func (g InputGeometry) Shape() []int64 {
	if g.Layout == LayoutNHWC {
		return []int64{1, int64(g.Height), int64(g.Width), channels}
	}
	return []int64{1, channels, int64(g.Height), int64(g.Width)}
}

// ParseInputGeometry infers layout and spatial size from a model's declared
// input dimensions. Dynamic (non-positive) spatial dims fall back to
// fallbackSize.
func ParseInputGeometry(dims []int64, fallbackSize int) (InputGeometry, error) {
	if len(dims) != 4 {
		return InputGeometry{}, fmt.Errorf("expected 4D input, got %dD", len(dims))
	}

	size := func(v int64) int {
		if v > 0 {
			return int(v)
		}
		return fallbackSize
	}

	switch {
	case dims[1] == channels:
		return InputGeometry{Layout: LayoutNCHW, Height: size(dims[2]), Width: size(dims[3])}, nil
	case dims[3] == channels:
		return InputGeometry{Layout: LayoutNHWC, Height: size(dims[1]), Width: size(dims[2])}, nil
	default:
		return InputGeometry{}, fmt.Errorf("no RGB channel axis in input shape %v", dims)
	}
}

// Tensor is float32 data with its shape. Data from ImageTensor is pooled and
// must be handed back with Release.
type Tensor struct {
	Data  []float32
	Shape []int64
}

// Release returns pooled data. The tensor must not be used afterwards.
func (t *Tensor) Release() {
	mempool.PutFloat32(t.Data)
	t.Data = nil
}

// ImageTensor converts an image of exactly the geometry's size into a tensor
// with pixel values scaled to [-1, 1].
func ImageTensor(img image.Image, g InputGeometry) (Tensor, error) {
	if img == nil {
		return Tensor{}, errors.New("nil image")
	}
	b := img.Bounds()
	if b.Dx() != g.Width || b.Dy() != g.Height {
		return Tensor{}, fmt.Errorf("image is %dx%d, model expects %dx%d", b.Dx(), b.Dy(), g.Width, g.Height)
	}

	nrgba := imaging.Clone(img)
	plane := g.Width * g.Height
	data := mempool.GetFloat32(g.Elements())

	for y := range g.Height {
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := range g.Width {
			px := row[x*4 : x*4+3]
			i := y*g.Width + x
			for c := range channels {
				v := float32(px[c])/127.5 - 1
				if g.Layout == LayoutNHWC {
					data[i*channels+c] = v
				} else {
					data[c*plane+i] = v
				}
			}
		}
	}

	return Tensor{Data: data, Shape: g.Shape()}, nil
}

// Softmax converts logits to probabilities.
func Softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}

	maxLogit := logits[0]
	for _, v := range logits[1:] {
		if v > maxLogit {
			maxLogit = v
		}
	}

	var sum float64
	probs := make([]float64, len(logits))
	for i, v := range logits {
		probs[i] = math.Exp(float64(v - maxLogit))
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// IsDistribution reports whether values already form a probability
// distribution, as produced by models ending in a softmax layer.
func IsDistribution(values []float32) bool {
	if len(values) == 0 {
		return false
	}
	var sum float64
	for _, v := range values {
		if v < 0 || v > 1 {
			return false
		}
		sum += float64(v)
	}
	return math.Abs(sum-1) < 1e-3
}

// Probabilities returns values as probabilities, applying softmax only when
// they are not a distribution yet.
func Probabilities(values []float32) []float64 {
	if !IsDistribution(values) {
		return Softmax(values)
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}
