// Package engine ties validation, storage, and analytics together behind one
// facade. Ingestion adapters push events in; the HTTP layer pulls derived
// views out. The engine itself holds no analytic state: every view is
// computed from a fresh store snapshot.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/crisis-intel-service/internal/analytics"
	"github.com/couchcryptid/crisis-intel-service/internal/domain"
	"github.com/couchcryptid/crisis-intel-service/internal/observability"
	"github.com/couchcryptid/crisis-intel-service/internal/store"
)

// Options tunes the analytics the engine computes.
type Options struct {
	Window         time.Duration
	GridResolution float64
	Horizons       []int
	CycleThreshold float64
	KeepFraction   float64

	// ReadyGrace marks the service ready this long after startup even if
	// no event has arrived, so an idle topic does not hold readiness down
	// forever. Zero disables the grace.
	ReadyGrace time.Duration
}

// Engine is the service core shared by the Kafka consumer and the HTTP API.
type Engine struct {
	store     *store.Store
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	opts      Options
	startedAt time.Time
	ready     atomic.Bool
}

// HotspotsView is the hotspot listing served by the API, with the window
// bounds the aggregation covered.
type HotspotsView struct {
	Hotspots    []analytics.Hotspot `json:"hotspots"`
	Count       int                 `json:"count"`
	WindowStart time.Time           `json:"window_start"`
	WindowEnd   time.Time           `json:"window_end"`
}

// EventsView is the recent-events listing served by the API.
type EventsView struct {
	Weather     []domain.WeatherEvent `json:"weather"`
	Social      []domain.SocialEvent  `json:"social"`
	LastUpdated time.Time             `json:"last_updated"`
}

// Stats summarizes the store contents for the stats endpoint.
type Stats struct {
	WeatherEventCount int            `json:"weather_event_count"`
	SocialEventCount  int            `json:"social_event_count"`
	Capacity          int            `json:"capacity_per_kind"`
	ByRiskLevel       map[string]int `json:"by_risk_level"`
	ByUrgency         map[string]int `json:"by_urgency"`
	ByCategory        map[string]int `json:"by_category"`
	GeneratedAt       time.Time      `json:"generated_at"`
}

// CycleResult reports how many events each kind retained after a cycle.
type CycleResult struct {
	WeatherKept int `json:"weather_events_kept"`
	SocialKept  int `json:"social_events_kept"`
}

// New creates an Engine over the given store.
func New(st *store.Store, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock, opts Options) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if opts.Window <= 0 {
		opts.Window = analytics.DefaultWindow
	}
	if opts.GridResolution <= 0 {
		opts.GridResolution = domain.DefaultGridResolution
	}
	if len(opts.Horizons) == 0 {
		opts.Horizons = analytics.DefaultHorizons
	}
	return &Engine{
		store:     st,
		logger:    logger,
		metrics:   metrics,
		clock:     clock,
		opts:      opts,
		startedAt: clock.Now(),
	}
}

// CheckReadiness returns nil once at least one event has been ingested, or
// once the configured startup grace has elapsed on an idle topic.
func (e *Engine) CheckReadiness(_ context.Context) error {
	if e.ready.Load() {
		return nil
	}
	if e.opts.ReadyGrace > 0 && e.clock.Since(e.startedAt) >= e.opts.ReadyGrace {
		return nil
	}
	return errors.New("no events ingested yet")
}

// IngestWeather validates and stores one weather event. Events with an empty
// risk level get one derived from their indices. Redelivery of a stored ID is
// a silent no-op.
func (e *Engine) IngestWeather(ev domain.WeatherEvent) error {
	if err := ev.Validate(); err != nil {
		e.metrics.ValidationErrors.Inc()
		return err
	}
	if ev.RiskLevel == "" {
		ev.RiskLevel = domain.ScoreWeather(ev.Metrics.FireIndex, ev.Metrics.FloodIndex)
	}

	added, evicted := e.store.AddWeather(ev)
	e.observeIngest(store.KindWeather, added, evicted)
	if added {
		e.logger.Debug("weather event stored",
			"event_id", ev.ID, "risk_level", ev.RiskLevel, "location", ev.Location.Name)
	}
	return nil
}

// IngestSocial validates and stores one social report.
func (e *Engine) IngestSocial(ev domain.SocialEvent) error {
	if err := ev.Validate(); err != nil {
		e.metrics.ValidationErrors.Inc()
		return err
	}

	added, evicted := e.store.AddSocial(ev)
	e.observeIngest(store.KindSocial, added, evicted)
	if added {
		e.logger.Debug("social report stored",
			"event_id", ev.ID, "category", ev.Signal.Category, "urgency", ev.Signal.Urgency)
	}
	return nil
}

func (e *Engine) observeIngest(kind store.Kind, added, evicted bool) {
	label := string(kind)
	if !added {
		e.metrics.DuplicateEvents.WithLabelValues(label).Inc()
		return
	}
	e.metrics.EventsIngested.WithLabelValues(label).Inc()
	if evicted {
		e.metrics.EventsDropped.WithLabelValues(label).Inc()
		e.logger.Warn("store at capacity, oldest event evicted",
			"kind", label, "capacity", e.store.Capacity())
	}
	e.ready.Store(true)

	weather, social := e.store.Counts()
	e.metrics.StoredEvents.WithLabelValues(string(store.KindWeather)).Set(float64(weather))
	e.metrics.StoredEvents.WithLabelValues(string(store.KindSocial)).Set(float64(social))
}

// Hotspots aggregates the trailing window into per-cell risk summaries. A
// non-positive window falls back to the configured default.
func (e *Engine) Hotspots(window time.Duration) (HotspotsView, error) {
	if window <= 0 {
		window = e.opts.Window
	}
	snap, err := e.store.Snapshot()
	if err != nil {
		return HotspotsView{}, err
	}

	start := e.clock.Now()
	hotspots := analytics.Aggregate(snap, window, e.opts.GridResolution, snap.TakenAt)
	e.metrics.AggregationDuration.Observe(e.clock.Since(start).Seconds())
	e.metrics.HotspotCount.Set(float64(len(hotspots)))
	return HotspotsView{
		Hotspots:    hotspots,
		Count:       len(hotspots),
		WindowStart: snap.TakenAt.Add(-window),
		WindowEnd:   snap.TakenAt,
	}, nil
}

// Escalation evaluates the global compounding-signal state over the full
// store and records it in logs and metrics.
func (e *Engine) Escalation() (analytics.EscalationState, error) {
	snap, err := e.store.Snapshot()
	if err != nil {
		return analytics.EscalationState{}, err
	}

	st := analytics.DetectEscalation(snap, snap.TakenAt)
	switch st.Severity {
	case analytics.SeverityCritical:
		e.metrics.EscalationSeverity.Set(2)
		e.logger.Warn("escalation critical",
			"weather_high_risk", st.WeatherHighRisk, "social_high_urgency", st.SocialHighUrgency)
	case analytics.SeverityHigh:
		e.metrics.EscalationSeverity.Set(1)
		e.logger.Warn("escalation elevated",
			"weather_high_risk", st.WeatherHighRisk, "social_high_urgency", st.SocialHighUrgency)
	default:
		e.metrics.EscalationSeverity.Set(0)
	}
	return st, nil
}

// Predictions computes short-horizon trend forecasts. Passing no horizons
// uses the configured set.
func (e *Engine) Predictions(horizons []int) ([]analytics.Prediction, error) {
	if len(horizons) == 0 {
		horizons = e.opts.Horizons
	}
	snap, err := e.store.Snapshot()
	if err != nil {
		return nil, err
	}
	return analytics.Predict(snap, horizons, e.opts.Window, snap.TakenAt), nil
}

// LatestEvents returns up to limit most recent events of each kind, newest
// last. A non-positive limit returns everything.
func (e *Engine) LatestEvents(limit int) (EventsView, error) {
	snap, err := e.store.Snapshot()
	if err != nil {
		return EventsView{}, err
	}

	view := EventsView{
		Weather:     snap.Weather,
		Social:      snap.Social,
		LastUpdated: snap.TakenAt,
	}
	if limit > 0 {
		if len(view.Weather) > limit {
			view.Weather = view.Weather[len(view.Weather)-limit:]
		}
		if len(view.Social) > limit {
			view.Social = view.Social[len(view.Social)-limit:]
		}
	}
	return view, nil
}

// Stats summarizes current store contents by risk level, urgency, and
// category.
func (e *Engine) Stats() (Stats, error) {
	snap, err := e.store.Snapshot()
	if err != nil {
		return Stats{}, err
	}

	st := Stats{
		WeatherEventCount: len(snap.Weather),
		SocialEventCount:  len(snap.Social),
		Capacity:          e.store.Capacity(),
		ByRiskLevel:       make(map[string]int),
		ByUrgency:         make(map[string]int),
		ByCategory:        make(map[string]int),
		GeneratedAt:       snap.TakenAt,
	}
	for _, ev := range snap.Weather {
		level := ev.RiskLevel
		if level == "" {
			level = domain.ScoreWeather(ev.Metrics.FireIndex, ev.Metrics.FloodIndex)
		}
		st.ByRiskLevel[string(level)]++
	}
	for _, ev := range snap.Social {
		st.ByUrgency[string(ev.Signal.Urgency)]++
		st.ByCategory[string(ev.Signal.Category)]++
	}
	return st, nil
}

// Cycle trims both buffers to the given keep fraction of their most recent
// events and reports what survived.
func (e *Engine) Cycle(keepFraction float64) CycleResult {
	weatherKept, socialKept := e.store.Cycle(keepFraction)
	e.metrics.CacheCycles.Inc()
	e.metrics.StoredEvents.WithLabelValues(string(store.KindWeather)).Set(float64(weatherKept))
	e.metrics.StoredEvents.WithLabelValues(string(store.KindSocial)).Set(float64(socialKept))
	e.logger.Info("store cycled",
		"weather_kept", weatherKept, "social_kept", socialKept, "keep_fraction", keepFraction)
	return CycleResult{WeatherKept: weatherKept, SocialKept: socialKept}
}

// CycleIfNeeded cycles with the configured keep fraction when either buffer
// has crossed the configured threshold.
func (e *Engine) CycleIfNeeded() (bool, CycleResult) {
	if !e.store.NeedsCycle(e.opts.CycleThreshold) {
		return false, CycleResult{}
	}
	return true, e.Cycle(e.opts.KeepFraction)
}
