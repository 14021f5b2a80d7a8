// Package analytics computes derived views over store snapshots: per-cell
// risk hotspots, the global escalation state, and short-horizon trend
// predictions. Every function here is a pure transformation of a snapshot —
// nothing is cached or maintained incrementally, so results are always
// consistent with the events they were computed from.
package analytics

import (
	"sort"
	"time"

	"github.com/couchcryptid/crisis-intel-service/internal/domain"
	"github.com/couchcryptid/crisis-intel-service/internal/store"
)

// DefaultWindow is the trailing aggregation window.
const DefaultWindow = 30 * time.Minute

// Hotspot is the aggregated statistics and combined risk classification for
// one grid cell over the trailing window. Recomputed fresh on every call,
// never mutated in place.
type Hotspot struct {
	GridLat             float64          `json:"grid_lat"`
	GridLon             float64          `json:"grid_lon"`
	WeatherEventCount   int              `json:"weather_event_count"`
	AvgFireIndex        float64          `json:"avg_fire_index"`
	AvgFloodIndex       float64          `json:"avg_flood_index"`
	MaxFireIndex        float64          `json:"max_fire_index"`
	MaxFloodIndex       float64          `json:"max_flood_index"`
	SocialReportCount   int              `json:"social_report_count"`
	SocialCriticalCount int              `json:"social_critical_count"`
	SocialHighCount     int              `json:"social_high_count"`
	SocialVerifiedCount int              `json:"social_verified_count"`
	CombinedRiskLevel   domain.RiskLevel `json:"combined_risk_level"`
	WindowStart         time.Time        `json:"window_start"`
	WindowEnd           time.Time        `json:"window_end"`
}

// cellStats accumulates one cell's counters during a single pass.
type cellStats struct {
	weatherCount int
	fireSum      float64
	floodSum     float64
	maxFire      float64
	maxFlood     float64
	socialCount  int
	socialCrit   int
	socialHigh   int
	socialVerif  int
}

// Aggregate groups the snapshot's events within the trailing window by grid
// cell and derives one Hotspot per non-empty cell. Cells are sparse: a cell
// with no in-window events yields no row. Results are ordered by combined
// risk descending, then total event count descending, then by cell key for
// determinism.
func Aggregate(snap store.Snapshot, window time.Duration, resolution float64, now time.Time) []Hotspot {
	if window <= 0 {
		window = DefaultWindow
	}
	cutoff := now.Add(-window)

	cells := make(map[domain.CellKey]*cellStats)
	cell := func(loc domain.Location) *cellStats {
		key := domain.BinCoord(loc.Lat, loc.Lon, resolution)
		st, ok := cells[key]
		if !ok {
			st = &cellStats{}
			cells[key] = st
		}
		return st
	}

	for _, e := range snap.Weather {
		if e.Timestamp.Before(cutoff) {
			continue
		}
		st := cell(e.Location)
		st.weatherCount++
		st.fireSum += e.Metrics.FireIndex
		st.floodSum += e.Metrics.FloodIndex
		st.maxFire = max(st.maxFire, e.Metrics.FireIndex)
		st.maxFlood = max(st.maxFlood, e.Metrics.FloodIndex)
	}

	for _, e := range snap.Social {
		if e.Timestamp.Before(cutoff) {
			continue
		}
		st := cell(e.Location)
		st.socialCount++
		switch e.Signal.Urgency {
		case domain.UrgencyCritical:
			st.socialCrit++
		case domain.UrgencyHigh:
			st.socialHigh++
		}
		if e.Signal.Verified {
			st.socialVerif++
		}
	}

	hotspots := make([]Hotspot, 0, len(cells))
	for key, st := range cells {
		h := Hotspot{
			GridLat:             key.Lat,
			GridLon:             key.Lon,
			WeatherEventCount:   st.weatherCount,
			MaxFireIndex:        st.maxFire,
			MaxFloodIndex:       st.maxFlood,
			SocialReportCount:   st.socialCount,
			SocialCriticalCount: st.socialCrit,
			SocialHighCount:     st.socialHigh,
			SocialVerifiedCount: st.socialVerif,
			WindowStart:         cutoff,
			WindowEnd:           now,
		}
		if st.weatherCount > 0 {
			h.AvgFireIndex = st.fireSum / float64(st.weatherCount)
			h.AvgFloodIndex = st.floodSum / float64(st.weatherCount)
		}
		weatherLevel := domain.ScoreWeather(st.maxFire, st.maxFlood)
		if st.weatherCount == 0 {
			// No environmental readings in the cell: the combined level
			// rests on social counts alone.
			weatherLevel = domain.RiskLow
		}
		h.CombinedRiskLevel = domain.ScoreCombined(weatherLevel, st.socialCrit, st.socialHigh)
		hotspots = append(hotspots, h)
	}

	sort.Slice(hotspots, func(i, j int) bool {
		a, b := hotspots[i], hotspots[j]
		if a.CombinedRiskLevel.Rank() != b.CombinedRiskLevel.Rank() {
			return a.CombinedRiskLevel.Rank() > b.CombinedRiskLevel.Rank()
		}
		totalA := a.WeatherEventCount + a.SocialReportCount
		totalB := b.WeatherEventCount + b.SocialReportCount
		if totalA != totalB {
			return totalA > totalB
		}
		if a.GridLat != b.GridLat {
			return a.GridLat < b.GridLat
		}
		return a.GridLon < b.GridLon
	})

	return hotspots
}
