package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/crisis-intel-service/internal/adapter/httpapi"
	kafkaadapter "github.com/couchcryptid/crisis-intel-service/internal/adapter/kafka"
	"github.com/couchcryptid/crisis-intel-service/internal/config"
	"github.com/couchcryptid/crisis-intel-service/internal/engine"
	"github.com/couchcryptid/crisis-intel-service/internal/observability"
	"github.com/couchcryptid/crisis-intel-service/internal/store"
)

// cycleCheckInterval is how often the background loop checks whether the
// store crossed the cycle threshold.
const cycleCheckInterval = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	st := store.New(cfg.EventCapacity, clock)
	eng := engine.New(st, logger, metrics, clock, engine.Options{
		Window:         cfg.AggregationWindow,
		GridResolution: cfg.GridResolution,
		Horizons:       cfg.PredictionHorizons,
		CycleThreshold: cfg.CycleThreshold,
		KeepFraction:   cfg.CycleKeepFraction,
		ReadyGrace:     cfg.ReadinessGrace,
	})

	consumer := kafkaadapter.NewConsumer(cfg, eng, logger, metrics)
	srv := httpapi.NewServer(cfg.HTTPAddr, eng, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start Kafka consumer.
	go func() {
		if err := consumer.Run(ctx); err != nil {
			logger.Error("consumer error", "error", err)
		}
	}()

	// Cycle the store in the background when it fills up.
	go func() {
		ticker := clock.NewTicker(cycleCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				if cycled, res := eng.CycleIfNeeded(); cycled {
					logger.Info("threshold cycle completed",
						"weather_kept", res.WeatherKept, "social_kept", res.SocialKept)
				}
			}
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := consumer.Close(); err != nil {
		logger.Error("kafka consumer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
