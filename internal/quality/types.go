// Package quality turns raw classifier probabilities into an onion quality
// assessment: grade, score, shelf life, risks and storage advice.
//
// Everything in this package is a pure function of its inputs. It is safe to
// call concurrently and holds no state between calls.
package quality

// Grade is the letter quality grade, A best.
type Grade string

// Quality grades.
const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// Status is the coarse grouping of a grade.
type Status string

// Status values.
const (
	StatusHealthy  Status = "healthy"
	StatusAtRisk   Status = "at-risk"
	StatusCritical Status = "critical"
)

// Variety is a display hint guessed from the deterioration pattern.
// It is not a classification claim.
type Variety string

// Variety estimates.
const (
	VarietyStorage Variety = "storage"
	VarietySweet   Variety = "sweet"
	VarietyRed     Variety = "red"
	VarietyUnknown Variety = "unknown"
)

// ClassificationResult is one classifier output.
type ClassificationResult struct {
	Label       string  `json:"label" yaml:"label"`
	Probability float64 `json:"probability" yaml:"probability"`
}

// EnvironmentalFactors reports the seasonal adjustment applied to shelf life.
type EnvironmentalFactors struct {
	Season            string `json:"season" yaml:"season"`
	AdjustmentApplied int    `json:"adjustmentApplied" yaml:"adjustment_applied"` // percent
}

// OnionAnalysis is the assessment of a single image.
type OnionAnalysis struct {
	QualityGrade           Grade                `json:"qualityGrade" yaml:"quality_grade"`
	Confidence             float64              `json:"confidence" yaml:"confidence"`
	ShelfLifeDays          int                  `json:"shelfLifeDays" yaml:"shelf_life_days"`
	QualityScore           int                  `json:"qualityScore" yaml:"quality_score"`
	Status                 Status               `json:"status" yaml:"status"`
	RiskFactors            []string             `json:"riskFactors" yaml:"risk_factors"`
	Recommendations        []string             `json:"recommendations" yaml:"recommendations"`
	DeteriorationIndex     int                  `json:"deteriorationIndex" yaml:"deterioration_index"`
	StorageRecommendations []string             `json:"storageRecommendations" yaml:"storage_recommendations"`
	VarietyEstimate        Variety              `json:"varietyEstimate" yaml:"variety_estimate"`
	EnvironmentalFactors   EnvironmentalFactors `json:"environmentalFactors" yaml:"environmental_factors"`
}

// Range is an inclusive integer range.
type Range struct {
	Min int
	Max int
}

// Contains reports whether v lies in the range.
func (r Range) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

func (r Range) clamp(v int) int {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}
