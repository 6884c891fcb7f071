package onnx

import (
	"fmt"
	"log/slog"
	"strconv"

	onnxrt "github.com/yalue/onnxruntime_go"
)

// GPUConfig selects CUDA execution for classifier sessions.
type GPUConfig struct {
	Enabled     bool   // use the CUDA execution provider
	DeviceID    int    // CUDA device index
	MemoryLimit uint64 // arena limit in bytes, 0 = unlimited
}

// DefaultGPUConfig returns a CPU-only configuration.
func DefaultGPUConfig() GPUConfig {
	return GPUConfig{Enabled: false, DeviceID: 0, MemoryLimit: 0}
}

// ValidateGPUConfig checks a GPU configuration. CPU-only configs are always valid.
func ValidateGPUConfig(cfg GPUConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.DeviceID < 0 {
		return fmt.Errorf("device ID must be non-negative, got %d", cfg.DeviceID)
	}
	return nil
}

// cudaSettings builds the CUDA provider options for cfg.
func cudaSettings(cfg GPUConfig) map[string]string {
	settings := map[string]string{
		"device_id":                 strconv.Itoa(cfg.DeviceID),
		"arena_extend_strategy":     "kNextPowerOfTwo",
		"cudnn_conv_algo_search":    "DEFAULT",
		"do_copy_in_default_stream": "1",
	}
	if cfg.MemoryLimit > 0 {
		settings["gpu_mem_limit"] = strconv.FormatUint(cfg.MemoryLimit, 10)
	}
	return settings
}

// ConfigureSessionForGPU appends the CUDA execution provider to opts when the
// config enables it. It is a no-op for CPU-only configs.
func ConfigureSessionForGPU(opts *onnxrt.SessionOptions, cfg GPUConfig) error {
	if !cfg.Enabled {
		return nil
	}

	cudaOpts, err := onnxrt.NewCUDAProviderOptions()
	if err != nil {
		return fmt.Errorf("failed to create CUDA provider options (GPU may not be available): %w", err)
	}
	defer func() {
		if err := cudaOpts.Destroy(); err != nil {
			slog.Warn("failed to destroy CUDA provider options", "error", err)
		}
	}()

	if err := cudaOpts.Update(cudaSettings(cfg)); err != nil {
		return fmt.Errorf("failed to update CUDA provider options: %w", err)
	}
	if err := opts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
		return fmt.Errorf("failed to append CUDA execution provider: %w", err)
	}
	return nil
}

// NewSessionOptions creates session options with the GPU provider and thread
// count applied. The caller destroys the returned options.
func NewSessionOptions(gpu GPUConfig, numThreads int) (*onnxrt.SessionOptions, error) {
	opts, err := onnxrt.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session opts: %w", err)
	}

	if err := ConfigureSessionForGPU(opts, gpu); err != nil {
		_ = opts.Destroy()
		return nil, fmt.Errorf("failed to configure GPU: %w", err)
	}

	if numThreads > 0 {
		if err := opts.SetIntraOpNumThreads(numThreads); err != nil {
			slog.Warn("failed to set intra-op threads", "threads", numThreads, "error", err)
		}
	}

	return opts, nil
}
