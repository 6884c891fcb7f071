package batch

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/onionqc/internal/engine"
	"github.com/MeKo-Tech/onionqc/internal/quality"
	"github.com/MeKo-Tech/onionqc/internal/testutil"
)

func TestLoadAndValidateImage(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	path := filepath.Join(dir, "onion.png")
	testutil.SaveImage(t, testutil.OnionImage(40, 30, 0), path)

	img, meta, err := loadAndValidateImage(path)
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, "png", meta.Format)
	assert.Equal(t, path, meta.Path)
}

func TestLoadAndValidateImage_TooSmallStillLoads(t *testing.T) {
	path := filepath.Join(testutil.CreateTempDir(t), "tiny.png")
	testutil.SaveImage(t, testutil.SolidImage(2, 2, testutil.OnionSkin), path)

	img, _, err := loadAndValidateImage(path)
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())
}

func TestLoadAndValidateImage_Unsupported(t *testing.T) {
	path := filepath.Join(testutil.CreateTempDir(t), "onion.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	_, _, err := loadAndValidateImage(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported image format")
}

func TestLoadImages_KeepsPositions(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	good := filepath.Join(dir, "good.png")
	testutil.SaveImage(t, testutil.OnionImage(16, 16, 0), good)
	missing := filepath.Join(dir, "missing.png")

	images, errs := loadImages([]string{missing, good})
	require.Len(t, images, 2)
	assert.Nil(t, images[0])
	require.Error(t, errs[0])
	assert.NotNil(t, images[1])
	require.NoError(t, errs[1])
}

func TestCollectItems(t *testing.T) {
	loadErr := errors.New("boom")
	ok := quality.Assess(testutil.Results(0.1), quality.DefaultLabelRoles(), 6)
	results := []engine.ItemResult{
		{Index: 0, Err: engine.ErrInvalidImage},
		{Index: 1, Analysis: ok},
	}

	items := collectItems([]string{"a", "b"}, []error{loadErr, nil}, results)
	require.Len(t, items, 2)
	assert.Equal(t, loadErr, items[0].Err)
	assert.Equal(t, "Analysis failed: boom", items[0].Analysis.RiskFactors[0])
	assert.Equal(t, ok, items[1].Analysis)
	require.NoError(t, items[1].Err)
}
