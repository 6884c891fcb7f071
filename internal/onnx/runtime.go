package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	onnxrt "github.com/yalue/onnxruntime_go"
)

// EnvLibraryPath overrides the ONNX Runtime shared library location.
const EnvLibraryPath = "ONIONQC_ONNXRUNTIME_LIB"

const (
	osLinux    = "linux"
	osDarwin   = "darwin"
	osWindows  = "windows"
	libLinux   = "libonnxruntime.so"
	libDarwin  = "libonnxruntime.dylib"
	libWindows = "onnxruntime.dll"
)

var initMu sync.Mutex

// libraryName returns the shared library filename for the current OS.
func libraryName(goos string) (string, error) {
	switch goos {
	case osLinux:
		return libLinux, nil
	case osDarwin:
		return libDarwin, nil
	case osWindows:
		return libWindows, nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", goos)
	}
}

// LibraryCandidates lists the places searched for the runtime library, in
// order: the env override, system directories, then the project's
// onnxruntime/ directory. GPU builds are preferred when useGPU is set.
func LibraryCandidates(useGPU bool) []string {
	var out []string
	if p := os.Getenv(EnvLibraryPath); p != "" {
		out = append(out, p)
	}

	libName, err := libraryName(runtime.GOOS)
	if err != nil {
		return out
	}

	if useGPU {
		out = append(out, filepath.Join("/opt/onnxruntime/gpu/lib", libName))
	}
	out = append(out,
		filepath.Join("/usr/local/lib", libName),
		filepath.Join("/usr/lib", libName),
		filepath.Join("/opt/onnxruntime/cpu/lib", libName),
	)

	if root, err := findProjectRoot(); err == nil {
		if useGPU {
			out = append(out, filepath.Join(root, "onnxruntime", "gpu", "lib", libName))
		}
		out = append(out, filepath.Join(root, "onnxruntime", "lib", libName))
	}
	return out
}

// SetLibraryPath points onnxruntime_go at the first existing candidate.
func SetLibraryPath(useGPU bool) (string, error) {
	candidates := LibraryCandidates(useGPU)
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			onnxrt.SetSharedLibraryPath(p)
			return p, nil
		}
	}
	return "", fmt.Errorf("ONNX Runtime library not found (searched %d locations)", len(candidates))
}

// Initialize loads the ONNX Runtime environment once per process.
func Initialize(useGPU bool) error {
	initMu.Lock()
	defer initMu.Unlock()

	if onnxrt.IsInitialized() {
		return nil
	}

	path, err := SetLibraryPath(useGPU)
	if err != nil {
		return fmt.Errorf("onnx lib path: %w", err)
	}
	if err := onnxrt.InitializeEnvironment(); err != nil {
		return fmt.Errorf("init onnx: %w", err)
	}
	slog.Debug("onnx runtime initialized", "library", path, "gpu", useGPU)
	return nil
}

// findProjectRoot walks up from the working directory to the go.mod.
func findProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	root := cwd
	for {
		if _, err := os.Stat(filepath.Join(root, "go.mod")); err == nil {
			return root, nil
		}
		parent := filepath.Dir(root)
		if parent == root {
			return "", errors.New("could not find project root")
		}
		root = parent
	}
}
