package quality

import "strings"

// Default label markers used when no explicit mapping is configured.
const (
	DefaultHealthyLabel = "healthy"
	DefaultSpoiledLabel = "spoiled"
)

// LabelRoles maps classifier labels to the healthy and spoiled roles. A label
// plays a role when it contains the marker, case-insensitively.
type LabelRoles struct {
	Healthy string
	Spoiled string
}

// DefaultLabelRoles returns the substring markers "healthy" and "spoiled".
func DefaultLabelRoles() LabelRoles {
	return LabelRoles{Healthy: DefaultHealthyLabel, Spoiled: DefaultSpoiledLabel}
}

func (r LabelRoles) withDefaults() LabelRoles {
	if strings.TrimSpace(r.Healthy) == "" {
		r.Healthy = DefaultHealthyLabel
	}
	if strings.TrimSpace(r.Spoiled) == "" {
		r.Spoiled = DefaultSpoiledLabel
	}
	return r
}

// IsHealthy reports whether label denotes a healthy class.
func (r LabelRoles) IsHealthy(label string) bool {
	return matchesRole(label, r.withDefaults().Healthy)
}

// IsSpoiled reports whether label denotes a spoiled class.
func (r LabelRoles) IsSpoiled(label string) bool {
	return matchesRole(label, r.withDefaults().Spoiled)
}

func matchesRole(label, marker string) bool {
	return strings.Contains(strings.ToLower(label), strings.ToLower(strings.TrimSpace(marker)))
}

// DeteriorationIndex returns the spoiled-class probability as a 0..100 index.
// The first result whose label matches the spoiled role is used. When no label
// matches, the index is 0 and the subject is treated as healthy.
func (r LabelRoles) DeteriorationIndex(results []ClassificationResult) float64 {
	for _, res := range results {
		if r.IsSpoiled(res.Label) {
			return percent(res.Probability)
		}
	}
	return 0
}

// TopResult returns the result with the highest probability. Ties keep the
// earliest result. ok is false for an empty slice.
func TopResult(results []ClassificationResult) (ClassificationResult, bool) {
	if len(results) == 0 {
		return ClassificationResult{}, false
	}
	top := results[0]
	for _, res := range results[1:] {
		if res.Probability > top.Probability {
			top = res
		}
	}
	return top, true
}
