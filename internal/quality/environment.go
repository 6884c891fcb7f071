package quality

import (
	"math"
	"time"
)

// Shelf-life bounds after environmental adjustment.
const (
	MinShelfLifeDays = 1
	MaxShelfLifeDays = 180
)

// Season names reported in EnvironmentalFactors.
const (
	SeasonHarvest       = "Harvest Season"
	SeasonWinterStorage = "Winter Storage"
	SeasonSpringSummer  = "Spring/Summer"
)

// Season is a storage season and its shelf-life multiplier.
type Season struct {
	Name       string
	Multiplier float64
}

// SeasonFor returns the storage season of a calendar month.
// Aug-Oct is harvest, Nov-Feb winter storage, Mar-Jul spring/summer.
func SeasonFor(month time.Month) Season {
	switch {
	case month >= time.August && month <= time.October:
		return Season{Name: SeasonHarvest, Multiplier: 1.20}
	case month >= time.November || month <= time.February:
		return Season{Name: SeasonWinterStorage, Multiplier: 1.10}
	default:
		return Season{Name: SeasonSpringSummer, Multiplier: 0.85}
	}
}

// EstimateVariety guesses the onion type from the deterioration index and the
// display confidence (percent). The result only biases shelf-life display.
func EstimateVariety(index, confidence float64) Variety {
	switch {
	case index < 20 && confidence > 70:
		return VarietyStorage
	case index > 50:
		if confidence > 60 {
			return VarietySweet
		}
		return VarietyRed
	default:
		return VarietyUnknown
	}
}

// VarietyMultiplier returns the shelf-life multiplier implied by the
// deterioration pattern: storage varieties keep longer, sweet and red ones
// shorter.
func VarietyMultiplier(index float64) float64 {
	switch {
	case index < 20:
		return 1.15
	case index > 50:
		return 0.80
	default:
		return 1
	}
}

// Adjustment is an environmentally adjusted shelf-life estimate.
type Adjustment struct {
	Days              int
	Season            string
	AdjustmentApplied int // percent relative to the base estimate
}

// AdjustShelfLife rescales a base shelf-life estimate by season and variety.
// The result is rounded to whole days and clamped to [1, 180].
func AdjustShelfLife(baseDays int, index float64, month time.Month) Adjustment {
	season := SeasonFor(month)
	raw := float64(baseDays) * season.Multiplier * VarietyMultiplier(clampIndex(index))

	days := int(math.Round(raw))
	if days < MinShelfLifeDays {
		days = MinShelfLifeDays
	}
	if days > MaxShelfLifeDays {
		days = MaxShelfLifeDays
	}

	var pct int
	if baseDays > 0 {
		pct = int(math.Round((raw/float64(baseDays) - 1) * 100))
	}

	return Adjustment{Days: days, Season: season.Name, AdjustmentApplied: pct}
}
