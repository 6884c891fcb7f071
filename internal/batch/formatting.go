package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/onionqc/internal/quality"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatYAML = "yaml"
)

// formatBatchResults formats the batch results in the specified format.
// Unknown formats fall back to text.
func formatBatchResults(items []Item, format string) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(items)
	case FormatCSV:
		return formatCSV(items)
	case FormatYAML:
		return formatYAML(items)
	default:
		return formatText(items)
	}
}

type fileRecord struct {
	File     string                `json:"file" yaml:"file"`
	Error    string                `json:"error,omitempty" yaml:"error,omitempty"`
	Analysis quality.OnionAnalysis `json:"analysis" yaml:"analysis"`
}

type batchDocument struct {
	Images  []fileRecord    `json:"images" yaml:"images"`
	Summary quality.Summary `json:"summary" yaml:"summary"`
}

func newBatchDocument(items []Item) batchDocument {
	doc := batchDocument{Images: make([]fileRecord, len(items))}
	analyses := make([]quality.OnionAnalysis, len(items))
	for i, it := range items {
		rec := fileRecord{File: it.File, Analysis: it.Analysis}
		if it.Err != nil {
			rec.Error = it.Err.Error()
		}
		doc.Images[i] = rec
		analyses[i] = it.Analysis
	}
	doc.Summary = quality.Summarize(analyses)
	return doc
}

func formatJSON(items []Item) (string, error) {
	bts, err := json.MarshalIndent(newBatchDocument(items), "", "  ")
	return string(bts), err
}

func formatYAML(items []Item) (string, error) {
	bts, err := yaml.Marshal(newBatchDocument(items))
	return string(bts), err
}

var csvHeader = []string{
	"file", "grade", "status", "quality_score", "shelf_life_days", "confidence",
	"deterioration_index", "variety", "season", "adjustment_applied", "error",
}

func formatCSV(items []Item) (string, error) {
	var output strings.Builder
	writer := csv.NewWriter(&output)
	if err := writer.Write(csvHeader); err != nil {
		return "", err
	}

	for _, it := range items {
		a := it.Analysis
		errText := ""
		if it.Err != nil {
			errText = it.Err.Error()
		}
		row := []string{
			it.File,
			string(a.QualityGrade),
			string(a.Status),
			strconv.Itoa(a.QualityScore),
			strconv.Itoa(a.ShelfLifeDays),
			fmt.Sprintf("%.2f", a.Confidence),
			strconv.Itoa(a.DeteriorationIndex),
			string(a.VarietyEstimate),
			a.EnvironmentalFactors.Season,
			strconv.Itoa(a.EnvironmentalFactors.AdjustmentApplied),
			errText,
		}
		if err := writer.Write(row); err != nil {
			return "", err
		}
	}
	writer.Flush()
	return output.String(), writer.Error()
}

func formatText(items []Item) (string, error) {
	var output strings.Builder
	for i, it := range items {
		if i > 0 {
			output.WriteString("\n")
		}
		output.WriteString(FormatAnalysisText(it.File, it.Analysis))
	}
	return output.String(), nil
}

// FormatAnalysisText renders one record as a human readable report headed
// by title.
func FormatAnalysisText(title string, a quality.OnionAnalysis) string {
	// Casers are stateful, so each call gets its own.
	caser := cases.Title(language.English)
	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "# %s\n", title)
	}
	fmt.Fprintf(&b, "Grade: %s (%s)\n", a.QualityGrade, caser.String(string(a.Status)))
	fmt.Fprintf(&b, "Quality score: %d/100\n", a.QualityScore)
	fmt.Fprintf(&b, "Confidence: %.2f%%\n", a.Confidence)
	fmt.Fprintf(&b, "Deterioration index: %d\n", a.DeteriorationIndex)
	fmt.Fprintf(&b, "Shelf life: %d days\n", a.ShelfLifeDays)
	fmt.Fprintf(&b, "Variety estimate: %s\n", caser.String(string(a.VarietyEstimate)))
	fmt.Fprintf(&b, "Season: %s (%+d%%)\n", a.EnvironmentalFactors.Season, a.EnvironmentalFactors.AdjustmentApplied)
	writeList(&b, "Risk factors", a.RiskFactors)
	writeList(&b, "Recommendations", a.Recommendations)
	writeList(&b, "Storage", a.StorageRecommendations)
	return b.String()
}

func writeList(b *strings.Builder, heading string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", heading)
	for _, l := range lines {
		fmt.Fprintf(b, "  - %s\n", l)
	}
}
