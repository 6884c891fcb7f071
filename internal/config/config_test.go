package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 224, cfg.Model.InputSize)
	assert.Equal(t, "healthy", cfg.Model.HealthyLabel)
	assert.Equal(t, "spoiled", cfg.Model.SpoiledLabel)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, time.Hour, cfg.CacheTTL())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "invalid log level"},
		{"output format", func(c *Config) { c.Output.Format = "xml" }, "invalid output format"},
		{"input size", func(c *Config) { c.Model.InputSize = -1 }, "input size"},
		{"threads", func(c *Config) { c.Model.NumThreads = -2 }, "num threads"},
		{"workers", func(c *Config) { c.Analysis.BatchWorkers = 0 }, "batch workers"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "server port"},
		{"upload", func(c *Config) { c.Server.MaxUploadMB = 0 }, "max upload"},
		{"batch images", func(c *Config) { c.Server.MaxBatchImages = 0 }, "max batch images"},
		{"timeout", func(c *Config) { c.Server.TimeoutSec = 0 }, "timeout"},
		{"gpu device", func(c *Config) { c.GPU.Device = -1 }, "GPU device"},
		{"gpu memory", func(c *Config) { c.GPU.MemoryLimit = "lots" }, "GPU memory limit"},
		{"cache ttl", func(c *Config) { c.Cache.Enabled = true; c.Cache.TTLSec = 0 }, "cache ttl"},
		{"brokers", func(c *Config) { c.Events.Enabled = true }, "no brokers"},
		{"topic", func(c *Config) {
			c.Events.Enabled = true
			c.Events.Brokers = []string{"localhost:9092"}
			c.Events.Topic = ""
		}, "no topic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestParseMemoryLimit(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"", 0, false},
		{"auto", 0, false},
		{"512MB", 512 << 20, false},
		{"2GB", 2 << 30, false},
		{"1.5gb", 3 << 29, false},
		{"64KB", 64 << 10, false},
		{"100B", 100, false},
		{"12", 0, true},
		{"xGB", 0, true},
		{"-1MB", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseMemoryLimit(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestConversions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelsDir = "/srv/models"
	cfg.Model.MetadataURL = "https://example.com/metadata.json"
	cfg.Model.HealthyLabel = "fresh"
	cfg.Model.HeuristicFallback = true
	cfg.Model.NumThreads = 3
	cfg.GPU = GPUConfig{Enabled: true, Device: 1, MemoryLimit: "1GB"}

	artifacts := cfg.Artifacts()
	assert.Equal(t, "/srv/models/model.onnx", artifacts.Topology)
	assert.Equal(t, "https://example.com/metadata.json", artifacts.Metadata)

	roles := cfg.LabelRoles()
	assert.Equal(t, "fresh", roles.Healthy)
	assert.Equal(t, "spoiled", roles.Spoiled)

	onnxCfg, err := cfg.ToONNXConfig()
	require.NoError(t, err)
	assert.True(t, onnxCfg.GPU.Enabled)
	assert.Equal(t, 1, onnxCfg.GPU.DeviceID)
	assert.Equal(t, uint64(1<<30), onnxCfg.GPU.MemoryLimit)
	assert.Equal(t, 3, onnxCfg.NumThreads)
	assert.Equal(t, 224, onnxCfg.InputSize)

	fb := cfg.ToFallbackOptions()
	assert.True(t, fb.Fallback)
	assert.False(t, fb.HeuristicOnly)
	assert.Equal(t, roles, fb.Roles)

	cfg.GPU.MemoryLimit = "bad"
	_, err = cfg.ToGPUConfig()
	require.Error(t, err)
}
