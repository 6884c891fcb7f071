package quality

// Summary aggregates a set of analysis records.
type Summary struct {
	Total             int            `json:"total" yaml:"total"`
	Failed            int            `json:"failed" yaml:"failed"`
	GradeCounts       map[Grade]int  `json:"gradeCounts" yaml:"grade_counts"`
	StatusCounts      map[Status]int `json:"statusCounts" yaml:"status_counts"`
	AverageScore      float64        `json:"averageScore" yaml:"average_score"`
	AverageShelfLife  float64        `json:"averageShelfLifeDays" yaml:"average_shelf_life_days"`
	AverageConfidence float64        `json:"averageConfidence" yaml:"average_confidence"`
}

// Summarize computes grade and status distribution and averages. Failed
// placeholder records are counted in the distributions but excluded from the
// averages.
func Summarize(analyses []OnionAnalysis) Summary {
	s := Summary{
		Total:        len(analyses),
		GradeCounts:  make(map[Grade]int, len(bands)),
		StatusCounts: make(map[Status]int, 3),
	}
	for _, g := range Grades() {
		s.GradeCounts[g] = 0
	}

	var scored int
	var score, shelf, conf float64
	for _, a := range analyses {
		s.GradeCounts[a.QualityGrade]++
		s.StatusCounts[a.Status]++
		if IsFailed(a) {
			s.Failed++
			continue
		}
		scored++
		score += float64(a.QualityScore)
		shelf += float64(a.ShelfLifeDays)
		conf += a.Confidence
	}

	if scored > 0 {
		n := float64(scored)
		s.AverageScore = score / n
		s.AverageShelfLife = shelf / n
		s.AverageConfidence = conf / n
	}
	return s
}
