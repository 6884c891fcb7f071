// Package models locates the classifier's two artifacts, the topology file
// and its metadata, and checks that they can be fetched.
package models

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Artifact filenames inside a models directory.
const (
	TopologyFile = "model.onnx"
	MetadataFile = "metadata.json"
)

// Default models directory.
const DefaultModelsDir = "models"

// Environment variable for models directory override.
const EnvModelsDir = "ONIONQC_MODELS_DIR"

// Artifacts names the two model artifacts. Each is a local path or an
// http(s) URL.
type Artifacts struct {
	Topology string `json:"topology"`
	Metadata string `json:"metadata"`
}

// findProjectRoot finds the project root by looking for go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

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

	return "", errors.New("could not find project root (go.mod not found)")
}

// GetModelsDir returns the models directory path from various sources.
// Priority: 1. Explicit modelsDir parameter, 2. Environment variable, 3. Project root + default.
func GetModelsDir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}

	if envDir := os.Getenv(EnvModelsDir); envDir != "" {
		return envDir
	}

	if projectRoot, err := findProjectRoot(); err == nil {
		return filepath.Join(projectRoot, DefaultModelsDir)
	}

	return DefaultModelsDir
}

// DefaultArtifacts returns the artifact paths inside a models directory.
func DefaultArtifacts(modelsDir string) Artifacts {
	dir := GetModelsDir(modelsDir)
	return Artifacts{
		Topology: filepath.Join(dir, TopologyFile),
		Metadata: filepath.Join(dir, MetadataFile),
	}
}

// ResolveArtifacts fills empty locations from the models directory.
func ResolveArtifacts(modelsDir, topology, metadata string) Artifacts {
	def := DefaultArtifacts(modelsDir)
	if topology != "" {
		def.Topology = topology
	}
	if metadata != "" {
		def.Metadata = metadata
	}
	return def
}

// IsRemote reports whether location is an http(s) URL.
func IsRemote(location string) bool {
	l := strings.ToLower(location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}
