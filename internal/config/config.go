//nolint:lll
package config

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/onionqc/internal/classifier"
	"github.com/MeKo-Tech/onionqc/internal/models"
	"github.com/MeKo-Tech/onionqc/internal/onnx"
	"github.com/MeKo-Tech/onionqc/internal/quality"
)

// Config represents the complete configuration for the onionqc application.
// It includes settings for all commands (image, batch, serve) and supports
// loading from configuration files, .env files, environment variables, and
// command-line flags.
type Config struct {
	// Global settings
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Model    ModelConfig    `mapstructure:"model" yaml:"model" json:"model"`
	GPU      GPUConfig      `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
	Analysis AnalysisConfig `mapstructure:"analysis" yaml:"analysis" json:"analysis"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	Cache  CacheConfig  `mapstructure:"cache" yaml:"cache" json:"cache"`
	Events EventsConfig `mapstructure:"events" yaml:"events" json:"events"`
}

// ModelConfig locates the classifier and maps its labels.
type ModelConfig struct {
	// TopologyURL and MetadataURL are local paths or http(s) URLs. Empty
	// values resolve inside models_dir.
	TopologyURL       string `mapstructure:"topology_url" yaml:"topology_url" json:"topology_url"`
	MetadataURL       string `mapstructure:"metadata_url" yaml:"metadata_url" json:"metadata_url"`
	InputSize         int    `mapstructure:"input_size" yaml:"input_size" json:"input_size"`
	NumThreads        int    `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	HeuristicFallback bool   `mapstructure:"heuristic_fallback" yaml:"heuristic_fallback" json:"heuristic_fallback"`
	HeuristicOnly     bool   `mapstructure:"heuristic_only" yaml:"heuristic_only" json:"heuristic_only"`
	HealthyLabel      string `mapstructure:"healthy_label" yaml:"healthy_label" json:"healthy_label"`
	SpoiledLabel      string `mapstructure:"spoiled_label" yaml:"spoiled_label" json:"spoiled_label"`
}

// GPUConfig contains GPU acceleration settings.
type GPUConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Device      int    `mapstructure:"device" yaml:"device" json:"device"`
	MemoryLimit string `mapstructure:"memory_limit" yaml:"memory_limit" json:"memory_limit"`
}

// AnalysisConfig tunes the analysis engine.
type AnalysisConfig struct {
	BatchWorkers int `mapstructure:"batch_workers" yaml:"batch_workers" json:"batch_workers"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	File   string `mapstructure:"file" yaml:"file" json:"file"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host             string `mapstructure:"host" yaml:"host" json:"host"`
	Port             int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin       string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB      int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	MaxBatchImages   int    `mapstructure:"max_batch_images" yaml:"max_batch_images" json:"max_batch_images"`
	TimeoutSec       int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout  int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RateLimitEnabled bool   `mapstructure:"rate_limit_enabled" yaml:"rate_limit_enabled" json:"rate_limit_enabled"`

	// Rate limits per client IP; 0 disables the individual limit.
	RequestsPerMinute int `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDayMB   int `mapstructure:"max_data_per_day" yaml:"max_data_per_day" json:"max_data_per_day"`
}

// CacheConfig controls the analysis result cache.
type CacheConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RedisURL string `mapstructure:"redis_url" yaml:"redis_url" json:"redis_url"` // empty = in-memory
	TTLSec   int    `mapstructure:"ttl_sec" yaml:"ttl_sec" json:"ttl_sec"`
}

// EventsConfig controls analysis event publishing.
type EventsConfig struct {
	Enabled bool     `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Brokers []string `mapstructure:"brokers" yaml:"brokers" json:"brokers"`
	Topic   string   `mapstructure:"topic" yaml:"topic" json:"topic"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	roles := quality.DefaultLabelRoles()
	return Config{
		ModelsDir: models.DefaultModelsDir,
		LogLevel:  "info",
		Verbose:   false,
		Model: ModelConfig{
			InputSize:         classifier.DefaultInputSize,
			NumThreads:        0,
			HeuristicFallback: false,
			HeuristicOnly:     false,
			HealthyLabel:      roles.Healthy,
			SpoiledLabel:      roles.Spoiled,
		},
		GPU: GPUConfig{
			Enabled:     false,
			Device:      0,
			MemoryLimit: "auto",
		},
		Analysis: AnalysisConfig{
			BatchWorkers: 1,
		},
		Output: OutputConfig{
			Format: "text",
		},
		Server: ServerConfig{
			Host:              "localhost",
			Port:              8080,
			CORSOrigin:        "*",
			MaxUploadMB:       50,
			MaxBatchImages:    50,
			TimeoutSec:        30,
			ShutdownTimeout:   10,
			RateLimitEnabled:  false,
			RequestsPerMinute: 60,
			RequestsPerHour:   1000,
			MaxRequestsPerDay: 10000,
			MaxDataPerDayMB:   1024,
		},
		Cache: CacheConfig{
			Enabled: false,
			TTLSec:  3600,
		},
		Events: EventsConfig{
			Enabled: false,
			Brokers: []string{},
			Topic:   "onion-analyses",
		},
	}
}

// Output formats understood by the CLI.
var validFormats = []string{"text", "json", "csv", "yaml"}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	if c.Model.InputSize < 0 {
		return fmt.Errorf("invalid model input size: %d (must not be negative)", c.Model.InputSize)
	}
	if c.Model.NumThreads < 0 {
		return fmt.Errorf("invalid model num threads: %d (must not be negative)", c.Model.NumThreads)
	}
	if c.Analysis.BatchWorkers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Analysis.BatchWorkers)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.MaxBatchImages <= 0 {
		return fmt.Errorf("invalid max batch images: %d (must be positive)", c.Server.MaxBatchImages)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}

	if c.GPU.Device < 0 {
		return fmt.Errorf("invalid GPU device: %d (must not be negative)", c.GPU.Device)
	}
	if _, err := ParseMemoryLimit(c.GPU.MemoryLimit); err != nil {
		return fmt.Errorf("invalid GPU memory limit: %w", err)
	}

	if c.Cache.Enabled && c.Cache.TTLSec <= 0 {
		return fmt.Errorf("invalid cache ttl: %d (must be positive)", c.Cache.TTLSec)
	}
	if c.Events.Enabled {
		if len(c.Events.Brokers) == 0 {
			return errors.New("events enabled but no brokers configured")
		}
		if c.Events.Topic == "" {
			return errors.New("events enabled but no topic configured")
		}
	}

	return nil
}

// Artifacts resolves the model artifact locations.
func (c *Config) Artifacts() models.Artifacts {
	return models.ResolveArtifacts(c.ModelsDir, c.Model.TopologyURL, c.Model.MetadataURL)
}

// LabelRoles returns the configured healthy/spoiled label markers.
func (c *Config) LabelRoles() quality.LabelRoles {
	return quality.LabelRoles{Healthy: c.Model.HealthyLabel, Spoiled: c.Model.SpoiledLabel}
}

// ToGPUConfig converts to onnx.GPUConfig.
func (c *Config) ToGPUConfig() (onnx.GPUConfig, error) {
	limit, err := ParseMemoryLimit(c.GPU.MemoryLimit)
	if err != nil {
		return onnx.GPUConfig{}, err
	}
	return onnx.GPUConfig{Enabled: c.GPU.Enabled, DeviceID: c.GPU.Device, MemoryLimit: limit}, nil
}

// ToONNXConfig converts to classifier.ONNXConfig.
func (c *Config) ToONNXConfig() (classifier.ONNXConfig, error) {
	gpu, err := c.ToGPUConfig()
	if err != nil {
		return classifier.ONNXConfig{}, err
	}
	return classifier.ONNXConfig{GPU: gpu, NumThreads: c.Model.NumThreads, InputSize: c.Model.InputSize}, nil
}

// ToFallbackOptions converts to classifier.FallbackOptions.
func (c *Config) ToFallbackOptions() classifier.FallbackOptions {
	return classifier.FallbackOptions{
		Roles:         c.LabelRoles(),
		InputSize:     c.Model.InputSize,
		HeuristicOnly: c.Model.HeuristicOnly,
		Fallback:      c.Model.HeuristicFallback,
	}
}

// CacheTTL returns the cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSec) * time.Second
}

// ParseMemoryLimit parses a GPU memory limit such as "512MB" or "2GB" into
// bytes. "auto" and "" mean unlimited (0).
func ParseMemoryLimit(limit string) (uint64, error) {
	upper := strings.ToUpper(strings.TrimSpace(limit))
	if upper == "" || upper == "AUTO" {
		return 0, nil
	}

	units := []struct {
		suffix string
		factor float64
	}{
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	}
	for _, u := range units {
		if !strings.HasSuffix(upper, u.suffix) {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(upper, u.suffix)), 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid number in memory limit: %s", limit)
		}
		return uint64(n * u.factor), nil
	}
	return 0, errors.New("memory limit must end with one of: B, KB, MB, GB")
}
