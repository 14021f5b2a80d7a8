package analytics

import (
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/crisis-intel-service/internal/domain"
	"github.com/couchcryptid/crisis-intel-service/internal/store"
)

// DefaultHorizons are the forecast horizons in minutes.
var DefaultHorizons = []int{15, 30, 60}

// Trend directions derived from the velocity ratio between the trailing
// window and the preceding window of equal length.
const (
	TrendEscalatingRapidly = "escalating_rapidly"
	TrendEscalating        = "escalating"
	TrendStable            = "stable"
	TrendDecreasing        = "decreasing"
)

// Velocity ratio thresholds for trend classification. Ratios make the rule
// independent of absolute event volume.
const (
	rapidRatio      = 2.0
	escalatingRatio = 1.25
	decreasingRatio = 0.75
)

// Probability weights. Base probability comes from the trend; velocity adds
// a bounded bonus so the mapping stays monotone in both.
const (
	probRapid        = 85.0
	probEscalating   = 70.0
	probStable       = 40.0
	probDecreasing   = 20.0
	velocityProbCap  = 15.0
	velocityProbGain = 3.0
)

// Prediction is one advisory short-horizon forecast for a crisis type.
// Recomputed from scratch each cycle; carries no persisted state.
type Prediction struct {
	HorizonMinutes     int              `json:"time_horizon_minutes"`
	CrisisType         domain.Category  `json:"crisis_type"`
	Severity           domain.RiskLevel `json:"severity"`
	Probability        float64          `json:"probability"`
	Confidence         float64          `json:"confidence"`
	Trend              string           `json:"trend"`
	VelocityPerMinute  float64          `json:"velocity_per_minute"`
	KeyFactors         []string         `json:"key_factors"`
	RecommendedActions []string         `json:"recommended_actions"`
}

// Predict derives probability-weighted forecasts per horizon and crisis type
// from recent event velocity. The trailing window of length window is
// compared against the preceding window of equal length; a type with zero
// in-window events reports probability 0 with confidence 0, never omitted.
func Predict(snap store.Snapshot, horizons []int, window time.Duration, now time.Time) []Prediction {
	if len(horizons) == 0 {
		horizons = DefaultHorizons
	}
	if window <= 0 {
		window = DefaultWindow
	}

	types := []domain.Category{domain.CategoryFire, domain.CategoryFlood, domain.CategoryOther}
	predictions := make([]Prediction, 0, len(horizons)*len(types))

	for _, crisisType := range types {
		current, previous := countByWindow(snap, crisisType, window, now)
		windowMinutes := window.Minutes()
		velocity := float64(current) / windowMinutes
		prevVelocity := float64(previous) / windowMinutes
		trend := classifyTrend(velocity, prevVelocity)

		for _, horizon := range horizons {
			predictions = append(predictions,
				buildPrediction(crisisType, horizon, current, previous, velocity, trend))
		}
	}

	return predictions
}

// countByWindow counts events of the crisis type in [now-window, now] and in
// the preceding [now-2*window, now-window) slice.
func countByWindow(snap store.Snapshot, crisisType domain.Category, window time.Duration, now time.Time) (current, previous int) {
	cutoff := now.Add(-window)
	prevCutoff := now.Add(-2 * window)

	tally := func(ts time.Time, t domain.Category) {
		if t != crisisType {
			return
		}
		switch {
		case !ts.Before(cutoff):
			current++
		case !ts.Before(prevCutoff):
			previous++
		}
	}

	for _, e := range snap.Weather {
		tally(e.Timestamp, e.CrisisType())
	}
	for _, e := range snap.Social {
		tally(e.Timestamp, e.Signal.Category)
	}
	return current, previous
}

func classifyTrend(velocity, prevVelocity float64) string {
	if velocity == 0 {
		if prevVelocity > 0 {
			return TrendDecreasing
		}
		return TrendStable
	}
	if prevVelocity == 0 {
		// Activity appearing from nothing is the sharpest possible ramp.
		return TrendEscalatingRapidly
	}
	ratio := velocity / prevVelocity
	switch {
	case ratio >= rapidRatio:
		return TrendEscalatingRapidly
	case ratio >= escalatingRatio:
		return TrendEscalating
	case ratio <= decreasingRatio:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

func buildPrediction(crisisType domain.Category, horizon, current, previous int, velocity float64, trend string) Prediction {
	p := Prediction{
		HorizonMinutes:    horizon,
		CrisisType:        crisisType,
		Trend:             trend,
		VelocityPerMinute: round2(velocity),
	}

	if current == 0 {
		p.Probability = 0
		p.Confidence = 0
		p.Severity = domain.RiskLow
		p.KeyFactors = []string{"No matching events in the analysis window"}
		p.RecommendedActions = []string{"Continue standard monitoring"}
		return p
	}

	base := probStable
	switch trend {
	case TrendEscalatingRapidly:
		base = probRapid
	case TrendEscalating:
		base = probEscalating
	case TrendDecreasing:
		base = probDecreasing
	}
	base += math.Min(velocityProbCap, velocity*velocityProbGain)

	// Confidence in a trend decays with distance: weight the base toward
	// its midpoint as the horizon grows. The factor is floored at zero so
	// far horizons saturate at half the base instead of going negative.
	timeFactor := math.Max(0, 1.0-float64(horizon)/240.0)
	probability := math.Min(100, base*(0.5+0.5*timeFactor))

	samples := current + previous
	confidence := math.Min(100, float64(samples)*2.5)
	if trend == TrendStable {
		confidence *= 0.8
	}

	p.Probability = round1(probability)
	p.Confidence = round1(confidence)
	p.Severity = severityForProbability(probability)
	p.KeyFactors = keyFactors(crisisType, current, velocity, trend)
	p.RecommendedActions = recommendedActions(p.Severity, horizon)
	return p
}

// severityForProbability reuses the weather risk thresholds on the
// probability scale so prediction severities stay comparable with hotspot
// levels.
func severityForProbability(probability float64) domain.RiskLevel {
	return domain.ScoreWeather(probability, 0)
}

func keyFactors(crisisType domain.Category, current int, velocity float64, trend string) []string {
	factors := []string{
		fmt.Sprintf("%d %s event(s) in the trailing window", current, crisisType),
		fmt.Sprintf("Event velocity %.2f/min, trend %s", velocity, trend),
	}
	if trend == TrendEscalatingRapidly || trend == TrendEscalating {
		factors = append(factors, "Event rate rising versus the preceding window")
	}
	return factors
}

func recommendedActions(severity domain.RiskLevel, horizon int) []string {
	switch {
	case severity.AtLeast(domain.RiskHigh):
		actions := []string{
			"Initiate emergency response protocols",
			"Pre-deploy resources to hotspot areas",
		}
		if horizon <= 30 {
			actions = append(actions, "Issue immediate public warnings")
		}
		return actions
	case severity == domain.RiskModerate:
		return []string{
			"Increase monitoring frequency",
			"Alert response teams",
		}
	default:
		return []string{"Continue standard monitoring"}
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
