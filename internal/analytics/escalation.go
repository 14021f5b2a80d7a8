package analytics

import (
	"fmt"
	"time"

	"github.com/couchcryptid/crisis-intel-service/internal/domain"
	"github.com/couchcryptid/crisis-intel-service/internal/store"
)

// Severity grades the global escalation state.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Escalation state names.
const (
	StateQuiet    = "quiet"
	StateElevated = "elevated"
	StateCritical = "critical"
)

// Corroboration thresholds. Cross-source agreement (one high-risk weather
// event plus two urgent social reports) escalates immediately; either source
// alone must be more plentiful to reach even the elevated state.
const (
	criticalWeatherMin = 1
	criticalSocialMin  = 2
	elevatedTotalMin   = 3
)

// EscalationState is the global compounding-signal assessment, derived fresh
// from the full current event set on every evaluation. Transitions are
// memoryless: the state is purely a function of the snapshot, never of the
// previous state.
type EscalationState struct {
	State             string    `json:"state"`
	Severity          Severity  `json:"severity"`
	WeatherHighRisk   int       `json:"weather_high_risk_count"`
	SocialHighUrgency int       `json:"social_high_urgency_count"`
	Detail            string    `json:"detail"`
	EvaluatedAt       time.Time `json:"evaluated_at"`
}

// DetectEscalation evaluates the whole snapshot (not per cell) for
// compounding cross-source patterns.
//
// W = weather events classified high or critical, S = social reports with
// urgency high or critical:
//
//	W >= 1 && S >= 2  ->  Critical
//	W + S >= 3        ->  Elevated
//	otherwise         ->  Quiet
func DetectEscalation(snap store.Snapshot, now time.Time) EscalationState {
	var weatherHigh, socialHigh int

	for _, e := range snap.Weather {
		level := e.RiskLevel
		if level == "" {
			level = domain.ScoreWeather(e.Metrics.FireIndex, e.Metrics.FloodIndex)
		}
		if level.AtLeast(domain.RiskHigh) {
			weatherHigh++
		}
	}
	for _, e := range snap.Social {
		if e.Signal.Urgency == domain.UrgencyHigh || e.Signal.Urgency == domain.UrgencyCritical {
			socialHigh++
		}
	}

	st := EscalationState{
		WeatherHighRisk:   weatherHigh,
		SocialHighUrgency: socialHigh,
		EvaluatedAt:       now,
	}

	switch {
	case weatherHigh >= criticalWeatherMin && socialHigh >= criticalSocialMin:
		st.State = StateCritical
		st.Severity = SeverityCritical
		st.Detail = fmt.Sprintf(
			"ESCALATION DETECTED: %d high-risk weather event(s) corroborated by %d urgent social report(s)",
			weatherHigh, socialHigh)
	case weatherHigh+socialHigh >= elevatedTotalMin:
		st.State = StateElevated
		st.Severity = SeverityHigh
		st.Detail = fmt.Sprintf(
			"Elevated activity: %d high-severity signal(s) across sources without cross-source corroboration",
			weatherHigh+socialHigh)
	default:
		st.State = StateQuiet
		st.Severity = SeverityNone
		st.Detail = "No compounding signals detected"
	}

	return st
}
