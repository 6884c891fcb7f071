package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Metadata is the model description exported next to the topology by
// Teachable Machine style trainers.
type Metadata struct {
	ModelName string   `json:"modelName,omitempty"`
	Labels    []string `json:"labels"`
	ImageSize int      `json:"imageSize,omitempty"`
	TMVersion string   `json:"tmVersion,omitempty"`
	TimeStamp string   `json:"timeStamp,omitempty"`
}

// ParseMetadata decodes and checks a metadata document.
func ParseMetadata(data []byte) (Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, fmt.Errorf("parse metadata: %w", err)
	}
	if len(m.Labels) == 0 {
		return Metadata{}, errors.New("metadata declares no labels")
	}
	if m.ImageSize < 0 {
		return Metadata{}, fmt.Errorf("invalid imageSize %d", m.ImageSize)
	}
	return m, nil
}

// labelAt returns labels[i], or "class_i" past the end.
func labelAt(labels []string, i int) string {
	if i >= 0 && i < len(labels) && labels[i] != "" {
		return labels[i]
	}
	return fmt.Sprintf("class_%d", i)
}
