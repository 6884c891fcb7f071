package quality

import (
	"fmt"
	"math"
	"time"
)

// Assess assembles the full analysis record for one set of classifier
// results. Confidence comes from the highest-probability result and the
// deterioration index from the spoiled-role result.
//
// Storage advice is computed from the base shelf life. It is appended to the
// band recommendations unless the status is critical, and is always reported
// separately in StorageRecommendations.
func Assess(results []ClassificationResult, roles LabelRoles, month time.Month) OnionAnalysis {
	index := roles.DeteriorationIndex(results)

	var confidence float64
	if top, ok := TopResult(results); ok {
		confidence = NormalizeConfidence(top.Probability)
	}

	base := Classify(index)
	storage := StorageRecommendations(base.ShelfLifeDays)

	recommendations := base.Recommendations
	if base.Status != StatusCritical {
		recommendations = append(recommendations, storage...)
	}

	adj := AdjustShelfLife(base.ShelfLifeDays, index, month)

	return OnionAnalysis{
		QualityGrade:           base.Grade,
		Confidence:             confidence,
		ShelfLifeDays:          adj.Days,
		QualityScore:           clampScore(base.QualityScore),
		Status:                 base.Status,
		RiskFactors:            base.RiskFactors,
		Recommendations:        recommendations,
		DeteriorationIndex:     int(math.Round(index)),
		StorageRecommendations: storage,
		VarietyEstimate:        EstimateVariety(index, confidence),
		EnvironmentalFactors: EnvironmentalFactors{
			Season:            adj.Season,
			AdjustmentApplied: adj.AdjustmentApplied,
		},
	}
}

// Score bounds of any analysis record.
const (
	MinQualityScore = 10
	MaxQualityScore = 100
)

func clampScore(v int) int {
	return Range{Min: MinQualityScore, Max: MaxQualityScore}.clamp(v)
}

// Degraded record text.
const (
	FailedRiskPrefix     = "Analysis failed: "
	FailedRecommendation = "Manual inspection required"
	FailedUnknownSeason  = "Unknown"
)

const (
	failedShelfLifeDays    = 1
	failedQualityScore     = 10
	failedDeteriorationIdx = 100
)

// FailedAnalysis is the placeholder record substituted for an image whose
// analysis failed inside a batch. It is a valid record: grade F, status
// critical, with a risk factor naming the failure.
func FailedAnalysis(err error) OnionAnalysis {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return OnionAnalysis{
		QualityGrade:           GradeF,
		Confidence:             0,
		ShelfLifeDays:          failedShelfLifeDays,
		QualityScore:           failedQualityScore,
		Status:                 StatusCritical,
		RiskFactors:            []string{fmt.Sprintf("%s%s", FailedRiskPrefix, msg)},
		Recommendations:        []string{FailedRecommendation},
		DeteriorationIndex:     failedDeteriorationIdx,
		StorageRecommendations: []string{},
		VarietyEstimate:        VarietyUnknown,
		EnvironmentalFactors:   EnvironmentalFactors{Season: FailedUnknownSeason},
	}
}

// IsFailed reports whether a is a degraded placeholder record.
func IsFailed(a OnionAnalysis) bool {
	return a.Confidence == 0 && len(a.Recommendations) == 1 && a.Recommendations[0] == FailedRecommendation
}
