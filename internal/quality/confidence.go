package quality

import "math"

// MaxConfidence is the highest confidence ever reported. Absolute certainty is
// never displayed.
const MaxConfidence = 99.99

// percent converts a probability to a percentage, trimming float noise so that
// e.g. 0.29 maps to 29 rather than 28.999999999999996.
func percent(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return math.Round(p*100*1e6) / 1e6
}

// NormalizeConfidence maps a probability in [0,1] to a display percentage with
// two decimals in [0, 99.99].
//
// The integer part is floor(p*100). The two decimals carry the probability's
// own sub-percent fraction and exist only for display granularity; callers must
// not branch on them. Saturated input is reported as 99.99.
func NormalizeConfidence(p float64) float64 {
	pct := percent(p)
	if pct >= 100 {
		return MaxConfidence
	}

	base := math.Floor(pct)
	frac := math.Floor((pct-base)*100+1e-6) / 100
	if frac > 0.99 {
		frac = 0.99
	}

	return math.Round((base+frac)*100) / 100
}
