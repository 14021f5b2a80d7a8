// Package httpapi exposes the service's HTTP surface: health, readiness,
// metrics, the query API over derived views, and a websocket event feed.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/crisis-intel-service/internal/analytics"
	"github.com/couchcryptid/crisis-intel-service/internal/engine"
	"github.com/couchcryptid/crisis-intel-service/internal/store"
)

// wsPushInterval is how often the websocket feed pushes the latest events.
const wsPushInterval = 5 * time.Second

// Service is the engine surface the API serves. Implemented by engine.Engine.
type Service interface {
	sharedobs.ReadinessChecker
	Hotspots(window time.Duration) (engine.HotspotsView, error)
	Escalation() (analytics.EscalationState, error)
	Predictions(horizons []int) ([]analytics.Prediction, error)
	LatestEvents(limit int) (engine.EventsView, error)
	Stats() (engine.Stats, error)
	Cycle(keepFraction float64) engine.CycleResult
}

// Server exposes health, readiness, metrics, and API routes.
type Server struct {
	httpServer *http.Server
	service    Service
	logger     *slog.Logger
	upgrader   websocket.Upgrader
}

// NewServer creates the HTTP server with all routes registered.
func NewServer(addr string, service Service, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(service))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/hotspots", s.handleHotspots)
	mux.HandleFunc("GET /api/escalation", s.handleEscalation)
	mux.HandleFunc("GET /api/predictions", s.handlePredictions)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("POST /api/cache/cycle", s.handleCycle)
	mux.HandleFunc("GET /ws/events", s.handleEventsFeed)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHotspots(w http.ResponseWriter, r *http.Request) {
	var window time.Duration
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "window must be a positive duration")
			return
		}
		window = d
	}

	view, err := s.service.Hotspots(window)
	if err != nil {
		s.writeServiceError(w, "aggregate hotspots", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleEscalation(w http.ResponseWriter, _ *http.Request) {
	st, err := s.service.Escalation()
	if err != nil {
		s.writeServiceError(w, "evaluate escalation", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	var horizons []int
	if raw := r.URL.Query().Get("horizons"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "horizons must be comma-separated positive minutes")
				return
			}
			horizons = append(horizons, n)
		}
	}

	preds, err := s.service.Predictions(horizons)
	if err != nil {
		s.writeServiceError(w, "compute predictions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"predictions": preds, "count": len(preds)})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	view, err := s.service.LatestEvents(limit)
	if err != nil {
		s.writeServiceError(w, "list events", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	stats, err := s.service.Stats()
	if err != nil {
		s.writeServiceError(w, "compute stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCycle(w http.ResponseWriter, r *http.Request) {
	keep := 0.1
	if raw := r.URL.Query().Get("keep"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || f < 0 || f > 1 {
			writeError(w, http.StatusBadRequest, "keep must be a fraction in [0,1]")
			return
		}
		keep = f
	}

	res := s.service.Cycle(keep)
	writeJSON(w, http.StatusOK, res)
}

// handleEventsFeed upgrades to a websocket and pushes the latest events every
// wsPushInterval until the client disconnects.
func (s *Server) handleEventsFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	defer conn.Close()

	s.logger.Debug("websocket client connected", "remote", r.RemoteAddr)

	// Drain client frames so close and ping control messages are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := s.pushEvents(conn); err != nil {
		return
	}

	ticker := time.NewTicker(wsPushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			s.logger.Debug("websocket client disconnected", "remote", r.RemoteAddr)
			return
		case <-ticker.C:
			if err := s.pushEvents(conn); err != nil {
				s.logger.Debug("websocket push failed", "error", err, "remote", r.RemoteAddr)
				return
			}
		}
	}
}

func (s *Server) pushEvents(conn *websocket.Conn) error {
	view, err := s.service.LatestEvents(0)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second)) //nolint:errcheck
	return conn.WriteJSON(view)
}

// writeServiceError maps engine failures onto status codes. A torn snapshot
// is transient and retryable, everything else is a plain server error.
func (s *Server) writeServiceError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op+" failed", "error", err)
	if errors.Is(err, store.ErrInconsistentSnapshot) {
		writeError(w, http.StatusServiceUnavailable, "snapshot contention, retry")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response write
}
