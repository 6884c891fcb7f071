package cmd

import (
	"bytes"
	"context"
	"errors"
	"image"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/onionqc/internal/quality"
	"github.com/MeKo-Tech/onionqc/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAnalyzer struct {
	err   error
	calls int
}

func (s *stubAnalyzer) Analyze(_ context.Context, _ image.Image) (quality.OnionAnalysis, error) {
	s.calls++
	if s.err != nil {
		return quality.OnionAnalysis{}, s.err
	}
	return quality.Assess(testutil.Results(0.05), quality.DefaultLabelRoles(), time.May), nil
}

func TestImageCommand(t *testing.T) {
	assert.NotNil(t, imageCmd)
	assert.True(t, strings.HasPrefix(imageCmd.Use, "image"))
	assert.NotEmpty(t, imageCmd.Short)

	for _, name := range []string{"format", "output", "topology", "metadata", "heuristic-only", "heuristic-fallback", "gpu"} {
		assert.NotNil(t, imageCmd.Flags().Lookup(name), name)
	}
}

func TestImageCommandHelp(t *testing.T) {
	buf := new(bytes.Buffer)
	imageCmd.SetOut(buf)
	imageCmd.SetErr(buf)

	require.NoError(t, imageCmd.Help())
	output := buf.String()
	assert.Contains(t, output, "Usage:")
	assert.Contains(t, output, "Flags:")
}

func TestImageCommandNoArgs(t *testing.T) {
	err := runImageCommand(imageCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no input files provided")
}

func TestAnalyzeFiles(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.png")
	testutil.SaveImage(t, testutil.OnionImage(64, 64, 0.05), good)
	missing := filepath.Join(dir, "missing.png")

	analyzer := &stubAnalyzer{}
	result := analyzeFiles(context.Background(), analyzer, []string{good, missing})

	require.Len(t, result.Items, 2)
	assert.Equal(t, 1, analyzer.calls)

	assert.Equal(t, good, result.Items[0].File)
	require.NoError(t, result.Items[0].Err)
	assert.Equal(t, quality.GradeA, result.Items[0].Analysis.QualityGrade)

	assert.Equal(t, missing, result.Items[1].File)
	require.Error(t, result.Items[1].Err)
	assert.True(t, quality.IsFailed(result.Items[1].Analysis))

	summary := result.Summary()
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Failed)
}

func TestAnalyzeFilesClassifierError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "onion.png")
	testutil.SaveImage(t, testutil.OnionImage(32, 32, 0.5), path)

	result := analyzeFiles(context.Background(), &stubAnalyzer{err: errors.New("classifier down")}, []string{path})

	require.Len(t, result.Items, 1)
	item := result.Items[0]
	assert.EqualError(t, item.Err, "classifier down")
	assert.Equal(t, quality.GradeF, item.Analysis.QualityGrade)
	assert.Contains(t, item.Analysis.RiskFactors[0], "classifier down")
}
