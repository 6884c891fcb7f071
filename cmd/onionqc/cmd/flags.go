package cmd

import (
	"context"

	"github.com/MeKo-Tech/onionqc/internal/config"
	"github.com/spf13/cobra"
)

// addModelFlags registers the model overrides shared by the analysis commands.
func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().String("topology", "", "model topology path or URL (overrides models-dir)")
	cmd.Flags().String("metadata", "", "model metadata path or URL (overrides models-dir)")
	cmd.Flags().Bool("heuristic-only", false, "use the colour heuristic instead of the ONNX model")
	cmd.Flags().Bool("heuristic-fallback", false, "use the colour heuristic when the ONNX model cannot be loaded")
	cmd.Flags().Bool("gpu", false, "enable GPU acceleration")
}

// applyModelFlags copies changed model flags onto cfg.
func applyModelFlags(cfg *config.Config, cmd *cobra.Command) {
	if cmd.Flags().Changed("topology") {
		cfg.Model.TopologyURL, _ = cmd.Flags().GetString("topology")
	}
	if cmd.Flags().Changed("metadata") {
		cfg.Model.MetadataURL, _ = cmd.Flags().GetString("metadata")
	}
	if cmd.Flags().Changed("heuristic-only") {
		cfg.Model.HeuristicOnly, _ = cmd.Flags().GetBool("heuristic-only")
	}
	if cmd.Flags().Changed("heuristic-fallback") {
		cfg.Model.HeuristicFallback, _ = cmd.Flags().GetBool("heuristic-fallback")
	}
	if cmd.Flags().Changed("gpu") {
		cfg.GPU.Enabled, _ = cmd.Flags().GetBool("gpu")
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
