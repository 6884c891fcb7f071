package batch

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MeKo-Tech/onionqc/internal/quality"
)

// Config holds all configuration for batch analysis.
type Config struct {
	Format     string
	OutputFile string

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Progress settings
	ShowProgress     bool
	Quiet            bool
	ShowStats        bool
	ProgressInterval time.Duration

	// Progress output, stderr when nil.
	ProgressWriter io.Writer
}

// Item is the outcome for one input file.
type Item struct {
	File     string
	Analysis quality.OnionAnalysis
	Err      error
}

// Result holds the result of batch analysis.
type Result struct {
	Items    []Item
	Duration time.Duration
}

// Analyses returns the records in input order.
func (r *Result) Analyses() []quality.OnionAnalysis {
	out := make([]quality.OnionAnalysis, len(r.Items))
	for i, it := range r.Items {
		out[i] = it.Analysis
	}
	return out
}

// Summary aggregates the batch records.
func (r *Result) Summary() quality.Summary {
	return quality.Summarize(r.Analyses())
}

// FormatResults formats the batch results in the specified format.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r.Items, format)
}

// SaveResults writes the formatted results to outputFile, or to w when
// outputFile is empty.
func (r *Result) SaveResults(w io.Writer, format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !quiet {
			_, _ = fmt.Fprintf(w, "Results written to %s\n", outputFile)
		}
		return nil
	}

	_, _ = fmt.Fprint(w, output)
	return nil
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer, quiet bool) {
	if quiet {
		return
	}
	s := r.Summary()
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total images: %d\n", s.Total)
	_, _ = fmt.Fprintf(w, "  Analysed: %d\n", s.Total-s.Failed)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", s.Failed)
	for _, g := range quality.Grades() {
		_, _ = fmt.Fprintf(w, "  Grade %s: %d\n", g, s.GradeCounts[g])
	}
	_, _ = fmt.Fprintf(w, "  Avg quality score: %.1f\n", s.AverageScore)
	_, _ = fmt.Fprintf(w, "  Avg shelf life: %.1f days\n", s.AverageShelfLife)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", r.Duration.Round(time.Millisecond))
	if n := len(r.Items); n > 0 && r.Duration > 0 {
		_, _ = fmt.Fprintf(w, "  Throughput: %.1f images/sec\n", float64(n)/r.Duration.Seconds())
	}
}
