package quality

import "math"

// Assessment is the grade-level outcome for a deterioration index, before any
// environmental adjustment.
type Assessment struct {
	Grade           Grade
	Status          Status
	ShelfLifeDays   int
	QualityScore    int
	RiskFactors     []string
	Recommendations []string
}

// band maps [lower, upper) of the deterioration index to a grade. Shelf life
// and score fall linearly from Max at lower to Min at upper.
type band struct {
	lower, upper    float64
	grade           Grade
	status          Status
	shelfLife       Range
	score           Range
	riskFactors     []string
	recommendations []string
}

var bands = []band{
	{
		lower: 0, upper: 15,
		grade: GradeA, status: StatusHealthy,
		shelfLife: Range{Min: 120, Max: 180},
		score:     Range{Min: 90, Max: 95},
		recommendations: []string{
			"Excellent quality detected - maintain current conditions",
			"Expected shelf-life: 4-6 months under proper storage",
			"Suitable for long-term storage and premium markets",
			"Monitor for sprouting after 3 months",
		},
	},
	{
		lower: 15, upper: 30,
		grade: GradeB, status: StatusHealthy,
		shelfLife: Range{Min: 60, Max: 90},
		score:     Range{Min: 75, Max: 85},
		recommendations: []string{
			"Good quality with minor signs of aging",
			"Expected shelf-life: 2-3 months",
			"Monitor storage humidity and temperature",
			"Check for soft spots weekly",
		},
	},
	{
		lower: 30, upper: 50,
		grade: GradeC, status: StatusAtRisk,
		shelfLife: Range{Min: 20, Max: 45},
		score:     Range{Min: 50, Max: 65},
		riskFactors: []string{
			"Moderate deterioration detected",
			"Signs of moisture loss or early sprouting",
			"Quality declining faster than optimal",
		},
		recommendations: []string{
			"Use within 1-2 months for best quality",
			"Increase inspection frequency to weekly",
			"Consider processing into value-added products",
			"Separate any soft or sprouting onions",
		},
	},
	{
		lower: 50, upper: 70,
		grade: GradeD, status: StatusCritical,
		shelfLife: Range{Min: 7, Max: 15},
		score:     Range{Min: 25, Max: 40},
		riskFactors: []string{
			"Significant quality deterioration detected",
			"Visible signs of spoilage or sprouting",
			"High risk of rapid quality decline",
			"Potential for mold or bacterial growth",
		},
		recommendations: []string{
			"Use immediately or within 1-2 weeks",
			"Sort and remove any visibly damaged onions",
			"Consider immediate processing or sale",
			"Improve storage ventilation and reduce humidity",
		},
	},
	{
		lower: 70, upper: 100,
		grade: GradeF, status: StatusCritical,
		shelfLife: Range{Min: 1, Max: 7},
		score:     Range{Min: 10, Max: 25},
		riskFactors: []string{
			"Severe deterioration or spoilage detected",
			"High probability of bacterial or fungal contamination",
			"Unsuitable for human consumption in current state",
			"Risk of contaminating healthy stock",
		},
		recommendations: []string{
			"Immediate action required - inspect thoroughly",
			"Separate from healthy inventory immediately",
			"Consider disposal or composting",
			"Investigate storage conditions for systemic issues",
		},
	},
}

// Classify maps a deterioration index to its grade band. Indices outside
// [0,100] are clamped; NaN is treated as 0. Lower band bounds are inclusive,
// upper bounds exclusive, and the F band absorbs everything from 70 up.
func Classify(index float64) Assessment {
	index = clampIndex(index)
	b := bandFor(index)

	t := (index - b.lower) / (b.upper - b.lower)
	if t > 1 {
		t = 1
	}

	return Assessment{
		Grade:           b.grade,
		Status:          b.status,
		ShelfLifeDays:   interpolate(b.shelfLife, t),
		QualityScore:    interpolate(b.score, t),
		RiskFactors:     cloneStrings(b.riskFactors),
		Recommendations: cloneStrings(b.recommendations),
	}
}

// GradeRanges returns the base shelf-life and score ranges of a grade.
func GradeRanges(g Grade) (shelfLife, score Range, ok bool) {
	for _, b := range bands {
		if b.grade == g {
			return b.shelfLife, b.score, true
		}
	}
	return Range{}, Range{}, false
}

// StatusForGrade returns the status paired with a grade. Unknown grades map to
// critical.
func StatusForGrade(g Grade) Status {
	for _, b := range bands {
		if b.grade == g {
			return b.status
		}
	}
	return StatusCritical
}

// Grades lists all grades from best to worst.
func Grades() []Grade {
	out := make([]Grade, 0, len(bands))
	for _, b := range bands {
		out = append(out, b.grade)
	}
	return out
}

func bandFor(index float64) band {
	for _, b := range bands[:len(bands)-1] {
		if index >= b.lower && index < b.upper {
			return b
		}
	}
	return bands[len(bands)-1]
}

func interpolate(r Range, t float64) int {
	v := int(math.Floor(float64(r.Max) - t*float64(r.Max-r.Min) + 1e-9))
	return r.clamp(v)
}

func clampIndex(index float64) float64 {
	switch {
	case math.IsNaN(index), index < 0:
		return 0
	case index > 100:
		return 100
	default:
		return index
	}
}

// cloneStrings copies s and never returns nil, so empty lists encode as [].
func cloneStrings(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
