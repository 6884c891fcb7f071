package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/MeKo-Tech/onionqc/internal/batch"
	"github.com/MeKo-Tech/onionqc/internal/config"
	"github.com/MeKo-Tech/onionqc/internal/models"
	"github.com/MeKo-Tech/onionqc/internal/onnx"
	"github.com/spf13/cobra"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Inspect the classifier model",
}

// modelStatusCmd checks artifacts, the ONNX Runtime library and loading.
var modelStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check model artifacts, ONNX Runtime and model loading",
	Long: `Check that the model topology and metadata can be reached, that the
ONNX Runtime library can be found, and that the model loads.

Examples:
  onionqc model status
  onionqc model status --no-load
  onionqc model status --topology https://models.example.com/onion/model.onnx --format json`,
	SilenceUsage: true,
	RunE:         runModelStatus,
}

type artifactCheck struct {
	Location string `json:"location"`
	Status   int    `json:"status"`
	Error    string `json:"error,omitempty"`
}

type modelReport struct {
	Topology     artifactCheck `json:"topology"`
	Metadata     artifactCheck `json:"metadata"`
	Runtime      string        `json:"runtime,omitempty"`
	RuntimeError string        `json:"runtimeError,omitempty"`
	State        string        `json:"state"`
	ClassCount   int           `json:"classCount"`
	LoadError    string        `json:"loadError,omitempty"`
}

func (r modelReport) ready() bool { return r.LoadError == "" }

func runModelStatus(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	applyModelFlags(cfg, cmd)
	skipLoad, _ := cmd.Flags().GetBool("no-load")
	format, _ := cmd.Flags().GetString("format")

	report := checkModel(cmd, cfg, skipLoad)

	out := cmd.OutOrStdout()
	if format == batch.FormatJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printModelReport(out, report)
	}

	if !report.ready() {
		return fmt.Errorf("model not ready: %s", report.LoadError)
	}
	return nil
}

func checkModel(cmd *cobra.Command, cfg *config.Config, skipLoad bool) modelReport {
	ctx := commandContext(cmd)
	artifacts := cfg.Artifacts()
	source := models.NewSource(nil)

	report := modelReport{
		Topology: probeArtifact(cmd, source, artifacts.Topology),
		Metadata: probeArtifact(cmd, source, artifacts.Metadata),
		State:    "unloaded",
	}

	if !cfg.Model.HeuristicOnly {
		path, err := onnx.SetLibraryPath(cfg.GPU.Enabled)
		if err != nil {
			report.RuntimeError = err.Error()
		} else {
			report.Runtime = path
		}
	}

	if skipLoad {
		return report
	}

	e, err := newEngine(cfg)
	if err != nil {
		report.LoadError = err.Error()
		return report
	}
	defer func() { _ = e.Close() }()

	if _, err := e.LoadModel(ctx); err != nil {
		report.LoadError = err.Error()
	}
	report.State = e.State().String()
	report.ClassCount = e.Status().ClassCount
	return report
}

func probeArtifact(cmd *cobra.Command, source *models.Source, location string) artifactCheck {
	check := artifactCheck{Location: location}
	status, err := source.Probe(commandContext(cmd), location)
	check.Status = status
	if err != nil {
		check.Error = err.Error()
	}
	return check
}

func printModelReport(w io.Writer, r modelReport) {
	for _, a := range []struct {
		name  string
		check artifactCheck
	}{{"Topology", r.Topology}, {"Metadata", r.Metadata}} {
		switch {
		case a.check.Error != "":
			_, _ = fmt.Fprintf(w, "%s: %s (error: %s)\n", a.name, a.check.Location, a.check.Error)
		case models.IsSuccess(a.check.Status):
			_, _ = fmt.Fprintf(w, "%s: %s (ok)\n", a.name, a.check.Location)
		default:
			_, _ = fmt.Fprintf(w, "%s: %s (status %d)\n", a.name, a.check.Location, a.check.Status)
		}
	}

	switch {
	case r.RuntimeError != "":
		_, _ = fmt.Fprintf(w, "ONNX Runtime: %s\n", r.RuntimeError)
	case r.Runtime != "":
		_, _ = fmt.Fprintf(w, "ONNX Runtime: %s\n", r.Runtime)
	}

	_, _ = fmt.Fprintf(w, "Model: %s", r.State)
	if r.ClassCount > 0 {
		_, _ = fmt.Fprintf(w, " (%d classes)", r.ClassCount)
	}
	_, _ = fmt.Fprintln(w)
	if r.LoadError != "" {
		_, _ = fmt.Fprintf(w, "Load error: %s\n", r.LoadError)
	}
}

func init() {
	rootCmd.AddCommand(modelCmd)
	modelCmd.AddCommand(modelStatusCmd)

	modelStatusCmd.Flags().Bool("no-load", false, "only check artifacts, do not load the model")
	modelStatusCmd.Flags().StringP("format", "f", batch.FormatText, "output format: text, json")
	addModelFlags(modelStatusCmd)
}
