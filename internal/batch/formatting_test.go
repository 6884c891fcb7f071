package batch

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/onionqc/internal/quality"
	"github.com/MeKo-Tech/onionqc/internal/testutil"
)

func sampleItems() []Item {
	return []Item{
		{File: "/crate/a.png", Analysis: quality.Assess(testutil.Results(0.05), quality.DefaultLabelRoles(), time.September)},
		{File: "/crate/b.png", Analysis: quality.Assess(testutil.Results(0.40), quality.DefaultLabelRoles(), time.September)},
		{File: "/crate/c.png", Err: errors.New("decode failed"), Analysis: quality.FailedAnalysis(errors.New("decode failed"))},
	}
}

func TestFormatBatchResults_Text(t *testing.T) {
	out, err := formatBatchResults(sampleItems(), FormatText)
	require.NoError(t, err)

	assert.Contains(t, out, "# /crate/a.png")
	assert.Contains(t, out, "# /crate/c.png")
	assert.Contains(t, out, "Grade: A (Healthy)")
	assert.Contains(t, out, "Grade: C (At-Risk)")
	assert.Contains(t, out, "Grade: F (Critical)")
	assert.Contains(t, out, "Season: Harvest Season")
	assert.Contains(t, out, "  - Analysis failed: decode failed")
}

func TestFormatBatchResults_UnknownFormatFallsBackToText(t *testing.T) {
	out, err := formatBatchResults(sampleItems()[:1], "xml")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# /crate/a.png\n"))
}

func TestFormatBatchResults_Empty(t *testing.T) {
	out, err := formatBatchResults(nil, FormatText)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFormatBatchResults_JSON(t *testing.T) {
	out, err := formatBatchResults(sampleItems(), FormatJSON)
	require.NoError(t, err)

	var doc struct {
		Images []struct {
			File     string                `json:"file"`
			Error    string                `json:"error"`
			Analysis quality.OnionAnalysis `json:"analysis"`
		} `json:"images"`
		Summary quality.Summary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))

	require.Len(t, doc.Images, 3)
	assert.Equal(t, "/crate/b.png", doc.Images[1].File)
	assert.Equal(t, quality.GradeC, doc.Images[1].Analysis.QualityGrade)
	assert.Empty(t, doc.Images[0].Error)
	assert.Equal(t, "decode failed", doc.Images[2].Error)
	assert.Equal(t, 3, doc.Summary.Total)
	assert.Equal(t, 1, doc.Summary.Failed)
	assert.Contains(t, out, `"qualityGrade": "A"`)
}

func TestFormatBatchResults_YAML(t *testing.T) {
	out, err := formatBatchResults(sampleItems(), FormatYAML)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Contains(t, doc, "images")
	assert.Contains(t, doc, "summary")
	assert.Contains(t, out, "quality_grade: A")
	assert.Contains(t, out, "file: /crate/a.png")
}

func TestFormatBatchResults_CSV(t *testing.T) {
	out, err := formatBatchResults(sampleItems(), FormatCSV)
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "/crate/a.png", rows[1][0])
	assert.Equal(t, "A", rows[1][1])
	assert.Equal(t, "healthy", rows[1][2])
	assert.Equal(t, "Harvest Season", rows[1][8])
	assert.Empty(t, rows[1][10])

	assert.Equal(t, "F", rows[3][1])
	assert.Equal(t, "decode failed", rows[3][10])
}

func TestFormatAnalysisText_OmitsEmptyLists(t *testing.T) {
	a := quality.Assess(testutil.Results(0.05), quality.DefaultLabelRoles(), time.January)
	out := FormatAnalysisText("", a)

	assert.False(t, strings.HasPrefix(out, "#"))
	assert.NotContains(t, out, "Risk factors:")
	assert.Contains(t, out, "Recommendations:")
	assert.Contains(t, out, "Storage:")
	assert.Contains(t, out, "Season: Winter Storage (+")
}
