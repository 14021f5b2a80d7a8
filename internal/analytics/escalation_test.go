package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/crisis-intel-service/internal/domain"
	"github.com/couchcryptid/crisis-intel-service/internal/store"
)

func TestDetectEscalation(t *testing.T) {
	highWeather := func(id string) domain.WeatherEvent {
		return weatherEvent(id, 30.0, -95.0, 75, 10, now)
	}
	lowWeather := func(id string) domain.WeatherEvent {
		return weatherEvent(id, 30.0, -95.0, 10, 10, now)
	}
	urgentSocial := func(id string, u domain.Urgency) domain.SocialEvent {
		return socialEvent(id, 30.0, -95.0, u, false, now)
	}

	tests := []struct {
		name         string
		weather      []domain.WeatherEvent
		social       []domain.SocialEvent
		wantState    string
		wantSeverity Severity
	}{
		{
			name:         "empty snapshot is quiet",
			wantState:    StateQuiet,
			wantSeverity: SeverityNone,
		},
		{
			name:         "one high weather plus two urgent social is critical",
			weather:      []domain.WeatherEvent{highWeather("w-1")},
			social:       []domain.SocialEvent{urgentSocial("s-1", domain.UrgencyCritical), urgentSocial("s-2", domain.UrgencyHigh)},
			wantState:    StateCritical,
			wantSeverity: SeverityCritical,
		},
		{
			name:         "one high weather plus one urgent social stays quiet",
			weather:      []domain.WeatherEvent{highWeather("w-1")},
			social:       []domain.SocialEvent{urgentSocial("s-1", domain.UrgencyCritical)},
			wantState:    StateQuiet,
			wantSeverity: SeverityNone,
		},
		{
			name:         "three high weather with no social is elevated",
			weather:      []domain.WeatherEvent{highWeather("w-1"), highWeather("w-2"), highWeather("w-3")},
			wantState:    StateElevated,
			wantSeverity: SeverityHigh,
		},
		{
			name:         "three urgent social with no weather is elevated",
			social:       []domain.SocialEvent{urgentSocial("s-1", domain.UrgencyHigh), urgentSocial("s-2", domain.UrgencyHigh), urgentSocial("s-3", domain.UrgencyCritical)},
			wantState:    StateElevated,
			wantSeverity: SeverityHigh,
		},
		{
			name:         "low-risk events never count",
			weather:      []domain.WeatherEvent{lowWeather("w-1"), lowWeather("w-2"), lowWeather("w-3")},
			social:       []domain.SocialEvent{socialEvent("s-1", 30.0, -95.0, domain.UrgencyLow, false, now)},
			wantState:    StateQuiet,
			wantSeverity: SeverityNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := DetectEscalation(store.Snapshot{Weather: tt.weather, Social: tt.social}, now)
			assert.Equal(t, tt.wantState, st.State)
			assert.Equal(t, tt.wantSeverity, st.Severity)
			assert.Equal(t, now, st.EvaluatedAt)
			assert.NotEmpty(t, st.Detail)
		})
	}
}

func TestDetectEscalation_DerivesMissingRiskLevel(t *testing.T) {
	// Producers may omit risk_level; classification from the indices must
	// still count the event as high risk.
	unlabeled := weatherEvent("w-1", 30.0, -95.0, 75, 0, now)
	unlabeled.RiskLevel = ""

	st := DetectEscalation(store.Snapshot{
		Weather: []domain.WeatherEvent{unlabeled},
		Social: []domain.SocialEvent{
			socialEvent("s-1", 30.0, -95.0, domain.UrgencyCritical, false, now),
			socialEvent("s-2", 30.0, -95.0, domain.UrgencyCritical, false, now),
		},
	}, now)

	assert.Equal(t, StateCritical, st.State)
	assert.Equal(t, 1, st.WeatherHighRisk)
	assert.Equal(t, 2, st.SocialHighUrgency)
	assert.Contains(t, st.Detail, "ESCALATION DETECTED")
}

func TestDetectEscalation_IsMemoryless(t *testing.T) {
	critical := store.Snapshot{
		Weather: []domain.WeatherEvent{weatherEvent("w-1", 30.0, -95.0, 80, 0, now)},
		Social: []domain.SocialEvent{
			socialEvent("s-1", 30.0, -95.0, domain.UrgencyHigh, false, now),
			socialEvent("s-2", 30.0, -95.0, domain.UrgencyHigh, false, now),
		},
	}

	assert.Equal(t, StateCritical, DetectEscalation(critical, now).State)

	// The same detector applied to an empty snapshot drops straight back to
	// quiet, independent of any earlier evaluation.
	later := now.Add(time.Minute)
	st := DetectEscalation(store.Snapshot{}, later)
	assert.Equal(t, StateQuiet, st.State)
	assert.Equal(t, later, st.EvaluatedAt)
}
