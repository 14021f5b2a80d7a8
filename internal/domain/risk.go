package domain

// RiskLevel is the ordinal risk classification shared by weather events,
// hotspots, and predictions.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Weather risk thresholds applied to max(fireIndex, floodIndex).
const (
	criticalIndexThreshold = 70
	highIndexThreshold     = 50
	moderateIndexThreshold = 30
)

// Social report count cutoffs for the combined classification. Fixed absolute
// values regardless of total event volume; exposed as named constants because
// whether they should scale with system load is an open tuning question.
const (
	socialCriticalCutoff = 2 // critical reports needed to force "critical" (strictly more)
	socialHighCutoff     = 2 // high reports needed to force "moderate" (strictly more)
)

// Rank orders risk levels: low=0, moderate=1, high=2, critical=3.
// Unknown levels rank below low.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskLow:
		return 0
	case RiskModerate:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	default:
		return -1
	}
}

// Known reports whether l is one of the four defined levels.
func (l RiskLevel) Known() bool { return l.Rank() >= 0 }

// AtLeast reports whether l is at least as severe as other.
func (l RiskLevel) AtLeast(other RiskLevel) bool { return l.Rank() >= other.Rank() }

// ScoreWeather classifies the weather risk of a cell (or a single reading)
// from its maximum fire and flood indices. Monotonically non-decreasing in
// max(fire, flood).
func ScoreWeather(maxFireIndex, maxFloodIndex float64) RiskLevel {
	index := max(maxFireIndex, maxFloodIndex)
	switch {
	case index >= criticalIndexThreshold:
		return RiskCritical
	case index >= highIndexThreshold:
		return RiskHigh
	case index >= moderateIndexThreshold:
		return RiskModerate
	default:
		return RiskLow
	}
}

// ScoreCombined merges the weather classification with social report counts
// into the cell's combined risk level. Threshold crossings are ORed: a single
// corroborating signal from either source is sufficient and is never diluted
// by the other source's absence.
func ScoreCombined(weather RiskLevel, socialCriticalCount, socialHighCount int) RiskLevel {
	switch {
	case weather == RiskCritical || socialCriticalCount > socialCriticalCutoff:
		return RiskCritical
	case weather.AtLeast(RiskHigh) || socialCriticalCount > 0:
		return RiskHigh
	case weather.AtLeast(RiskModerate) || socialHighCount > socialHighCutoff:
		return RiskModerate
	default:
		return RiskLow
	}
}
