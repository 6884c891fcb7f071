package cmd

import (
	"testing"
	"time"

	"github.com/MeKo-Tech/onionqc/internal/batch"
	"github.com/MeKo-Tech/onionqc/internal/config"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBatchTestCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "batch"}
	addBatchFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestBatchCommand(t *testing.T) {
	assert.NotNil(t, batchCmd)
	assert.Equal(t, "batch", batchCmd.Name())
	assert.NotEmpty(t, batchCmd.Short)
	assert.Error(t, batchCmd.Args(batchCmd, nil))
}

func TestConfigToBatchConfigDefaults(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Output.Format = batch.FormatJSON
	cfg.Output.File = "from-config.json"

	got := configToBatchConfig(&cfg, newBatchTestCommand(t))

	assert.Equal(t, batch.FormatJSON, got.Format)
	assert.Equal(t, "from-config.json", got.OutputFile)
	assert.False(t, got.Recursive)
	assert.Empty(t, got.IncludePatterns)
	assert.False(t, got.ShowProgress)
	assert.Equal(t, 100*time.Millisecond, got.ProgressInterval)
	assert.NotNil(t, got.ProgressWriter)
}

func TestConfigToBatchConfigFlagOverrides(t *testing.T) {
	cfg := config.DefaultConfig()
	cmd := newBatchTestCommand(t,
		"--format", "csv",
		"--output", "grades.csv",
		"--recursive",
		"--include", "*.jpg,*.png",
		"--exclude", "*_thumb.jpg",
		"--progress", "--quiet", "--stats",
		"--progress-interval", "1s",
	)

	got := configToBatchConfig(&cfg, cmd)

	assert.Equal(t, batch.FormatCSV, got.Format)
	assert.Equal(t, "grades.csv", got.OutputFile)
	assert.True(t, got.Recursive)
	assert.Equal(t, []string{"*.jpg", "*.png"}, got.IncludePatterns)
	assert.Equal(t, []string{"*_thumb.jpg"}, got.ExcludePatterns)
	assert.True(t, got.ShowProgress)
	assert.True(t, got.Quiet)
	assert.True(t, got.ShowStats)
	assert.Equal(t, time.Second, got.ProgressInterval)
}

func TestApplyModelFlags(t *testing.T) {
	cfg := config.DefaultConfig()
	cmd := newBatchTestCommand(t,
		"--topology", "https://models.example.com/model.onnx",
		"--metadata", "https://models.example.com/metadata.json",
		"--heuristic-fallback",
		"--gpu",
	)

	applyModelFlags(&cfg, cmd)

	assert.Equal(t, "https://models.example.com/model.onnx", cfg.Model.TopologyURL)
	assert.Equal(t, "https://models.example.com/metadata.json", cfg.Model.MetadataURL)
	assert.True(t, cfg.Model.HeuristicFallback)
	assert.False(t, cfg.Model.HeuristicOnly)
	assert.True(t, cfg.GPU.Enabled)
}

func TestApplyModelFlagsUnchangedKeepsConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Model.HeuristicOnly = true
	cfg.Model.TopologyURL = "/srv/models/model.onnx"

	applyModelFlags(&cfg, newBatchTestCommand(t))

	assert.True(t, cfg.Model.HeuristicOnly)
	assert.Equal(t, "/srv/models/model.onnx", cfg.Model.TopologyURL)
}
