package domain

import (
	"fmt"
	"time"
)

// MaxReportTextLength bounds the free-text field of a social report.
// Longer texts are rejected at ingestion rather than truncated.
const MaxReportTextLength = 500

// Category classifies the crisis type of a social report.
type Category string

const (
	CategoryFire  Category = "fire"
	CategoryFlood Category = "flood"
	CategoryOther Category = "other"
)

// Urgency is the reporter-assigned urgency tier of a social report.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Location is a WGS-84 coordinate pair with an optional place name.
type Location struct {
	Name string  `json:"name,omitempty"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// WeatherMetrics holds the environmental readings of one weather event.
// Indices and humidity are bounded to [0, 100] by validation.
type WeatherMetrics struct {
	FireIndex              float64 `json:"fire_index"`
	FloodIndex             float64 `json:"flood_index"`
	Temperature            float64 `json:"temperature"`
	Humidity               float64 `json:"humidity"`
	WindSpeed              float64 `json:"wind_speed"`
	WindDirection          float64 `json:"wind_direction"`
	PrecipitationIntensity float64 `json:"precipitation_intensity"`
}

// WeatherEvent is one environmental risk reading. Immutable once stored;
// destroyed only by cache cycling.
type WeatherEvent struct {
	ID        string         `json:"event_id"`
	Source    string         `json:"source"`
	Location  Location       `json:"location"`
	Metrics   WeatherMetrics `json:"data"`
	RiskLevel RiskLevel      `json:"risk_level"`
	Timestamp time.Time      `json:"timestamp"`
}

// SocialSignal holds the report payload of one social event.
type SocialSignal struct {
	Text     string   `json:"text"`
	Category Category `json:"category"`
	Urgency  Urgency  `json:"urgency"`
	Verified bool     `json:"verified"`
}

// SocialEvent is one short-text situational report. Same lifecycle as
// WeatherEvent.
type SocialEvent struct {
	ID        string       `json:"event_id"`
	Source    string       `json:"source"`
	Location  Location     `json:"location"`
	Signal    SocialSignal `json:"data"`
	Timestamp time.Time    `json:"timestamp"`
}

// ValidationError reports a malformed or out-of-range event field. Events
// failing validation are dropped at the ingestion boundary, never stored.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event: %s %s", e.Field, e.Reason)
}

func invalidf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks required fields and declared numeric ranges.
func (e *WeatherEvent) Validate() error {
	if e.ID == "" {
		return invalidf("event_id", "is required")
	}
	if e.Timestamp.IsZero() {
		return invalidf("timestamp", "is required")
	}
	if err := validateLocation(e.Location); err != nil {
		return err
	}
	ranges := []struct {
		field    string
		value    float64
		min, max float64
	}{
		{"data.fire_index", e.Metrics.FireIndex, 0, 100},
		{"data.flood_index", e.Metrics.FloodIndex, 0, 100},
		{"data.humidity", e.Metrics.Humidity, 0, 100},
	}
	for _, r := range ranges {
		if r.value < r.min || r.value > r.max {
			return invalidf(r.field, "must be in [%g, %g], got %g", r.min, r.max, r.value)
		}
	}
	if e.RiskLevel != "" && !e.RiskLevel.Known() {
		return invalidf("risk_level", "unknown value %q", e.RiskLevel)
	}
	return nil
}

// Validate checks required fields, enum membership, and text bounds.
func (e *SocialEvent) Validate() error {
	if e.ID == "" {
		return invalidf("event_id", "is required")
	}
	if e.Timestamp.IsZero() {
		return invalidf("timestamp", "is required")
	}
	if err := validateLocation(e.Location); err != nil {
		return err
	}
	if len(e.Signal.Text) > MaxReportTextLength {
		return invalidf("data.text", "exceeds %d characters", MaxReportTextLength)
	}
	switch e.Signal.Category {
	case CategoryFire, CategoryFlood, CategoryOther:
	default:
		return invalidf("data.category", "unknown value %q", e.Signal.Category)
	}
	switch e.Signal.Urgency {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
	default:
		return invalidf("data.urgency", "unknown value %q", e.Signal.Urgency)
	}
	return nil
}

func validateLocation(loc Location) error {
	if loc.Lat < -90 || loc.Lat > 90 {
		return invalidf("location.lat", "must be in [-90, 90], got %g", loc.Lat)
	}
	if loc.Lon < -180 || loc.Lon > 180 {
		return invalidf("location.lon", "must be in [-180, 180], got %g", loc.Lon)
	}
	return nil
}

// CrisisType maps an event to the crisis type it signals. Social reports
// carry an explicit category; weather events are classified by whichever
// index dominates.
func (e *WeatherEvent) CrisisType() Category {
	if e.Metrics.FireIndex >= e.Metrics.FloodIndex {
		return CategoryFire
	}
	return CategoryFlood
}
