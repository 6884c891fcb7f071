package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Colours used by the synthetic onion images.
var (
	Background = color.NRGBA{R: 245, G: 245, B: 240, A: 255}
	OnionSkin  = color.NRGBA{R: 205, G: 150, B: 65, A: 255}
	Rot        = color.NRGBA{R: 45, G: 35, B: 25, A: 255}
)

// SolidImage returns a w×h image filled with c.
func SolidImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	nc := color.NRGBAModel.Convert(c).(color.NRGBA) //nolint:forcetypeassert // NRGBAModel always yields NRGBA
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, nc)
		}
	}
	return img
}

// OnionImage draws an onion-coloured ellipse on a light background. spoilage
// in [0,1] darkens that share of the bulb's rows, from the bottom up.
func OnionImage(w, h int, spoilage float64) *image.NRGBA {
	img := SolidImage(w, h, Background)
	cx, cy := float64(w)/2, float64(h)/2
	rx, ry := float64(w)*0.4, float64(h)*0.45
	rotFrom := cy + ry - 2*ry*math.Max(0, math.Min(1, spoilage))

	for y := range h {
		for x := range w {
			dx, dy := (float64(x)-cx)/rx, (float64(y)-cy)/ry
			if dx*dx+dy*dy > 1 {
				continue
			}
			c := OnionSkin
			if float64(y) >= rotFrom {
				c = Rot
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// EncodePNG encodes img as PNG.
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// EncodeJPEG encodes img as JPEG.
func EncodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

// SaveImage writes img as PNG to path, creating parent directories.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	require.NoError(t, EnsureDir(filepath.Dir(path)))
	require.NoError(t, os.WriteFile(path, EncodePNG(t, img), 0o600))
}
