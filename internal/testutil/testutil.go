// Package testutil holds shared test helpers: project paths, synthetic onion
// images and fake classifier collaborators.
package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// GetProjectRoot returns the project root directory by finding go.mod.
func GetProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("failed to get caller information")
	}
	dir := filepath.Dir(filename)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("could not find go.mod file starting from %s", filepath.Dir(filename))
}

// GetTestDataDir returns the path to the testdata directory.
func GetTestDataDir(t *testing.T) string {
	t.Helper()

	root, err := GetProjectRoot()
	require.NoError(t, err, "Failed to find project root")
	return filepath.Join(root, "testdata")
}

// CreateTempDir creates a temporary directory for testing.
func CreateTempDir(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o750)
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// DirExists checks if a directory exists.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// WriteModelArtifacts writes placeholder topology and metadata files into dir
// and returns their paths.
func WriteModelArtifacts(t *testing.T, dir string, labels ...string) (topology, metadata string) {
	t.Helper()

	if len(labels) == 0 {
		labels = []string{"Healthy", "Spoiled"}
	}
	require.NoError(t, EnsureDir(dir))

	topology = filepath.Join(dir, "model.onnx")
	metadata = filepath.Join(dir, "metadata.json")

	quoted := ""
	for i, l := range labels {
		if i > 0 {
			quoted += ","
		}
		quoted += fmt.Sprintf("%q", l)
	}
	require.NoError(t, os.WriteFile(topology, []byte("onnx"), 0o600))
	require.NoError(t, os.WriteFile(metadata,
		[]byte(fmt.Sprintf(`{"modelName":"test-model","labels":[%s],"imageSize":224}`, quoted)), 0o600))
	return topology, metadata
}
