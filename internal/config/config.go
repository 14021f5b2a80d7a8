package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers      []string
	KafkaWeatherTopic string
	KafkaSocialTopic  string
	KafkaGroupID      string
	HTTPAddr          string
	LogLevel          string
	LogFormat         string
	ShutdownTimeout   time.Duration
	ReadinessGrace    time.Duration

	// Store sizing and cycling.
	EventCapacity     int
	CycleThreshold    float64
	CycleKeepFraction float64

	// Analytics tuning.
	AggregationWindow  time.Duration
	GridResolution     float64
	PredictionHorizons []int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	// Zero disables the grace: readiness then waits for the first event.
	readinessGrace, err := parseNonNegativeDuration("READINESS_GRACE", time.Minute)
	if err != nil {
		return nil, err
	}

	capacity, err := parsePositiveInt("EVENT_CAPACITY", 500)
	if err != nil {
		return nil, err
	}

	cycleThreshold, err := parseFraction("CYCLE_THRESHOLD", 0.93)
	if err != nil {
		return nil, err
	}

	keepFraction, err := parseFraction("CYCLE_KEEP_FRACTION", 0.1)
	if err != nil {
		return nil, err
	}

	window, err := parsePositiveDuration("AGGREGATION_WINDOW", 30*time.Minute)
	if err != nil {
		return nil, err
	}

	resolution, err := parsePositiveFloat("GRID_RESOLUTION", 0.5)
	if err != nil {
		return nil, err
	}

	horizons, err := parseHorizons("PREDICTION_HORIZONS", []int{15, 30, 60})
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:      sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaWeatherTopic: sharedcfg.EnvOrDefault("KAFKA_WEATHER_TOPIC", "weather_risks"),
		KafkaSocialTopic:  sharedcfg.EnvOrDefault("KAFKA_SOCIAL_TOPIC", "social_signals"),
		KafkaGroupID:      sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "crisis-intel"),
		HTTPAddr:          sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:          sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:         sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:   shutdownTimeout,
		ReadinessGrace:    readinessGrace,

		EventCapacity:     capacity,
		CycleThreshold:    cycleThreshold,
		CycleKeepFraction: keepFraction,

		AggregationWindow:  window,
		GridResolution:     resolution,
		PredictionHorizons: horizons,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaWeatherTopic == "" {
		return nil, errors.New("KAFKA_WEATHER_TOPIC is required")
	}
	if cfg.KafkaSocialTopic == "" {
		return nil, errors.New("KAFKA_SOCIAL_TOPIC is required")
	}
	if cfg.KafkaWeatherTopic == cfg.KafkaSocialTopic {
		return nil, errors.New("KAFKA_WEATHER_TOPIC and KAFKA_SOCIAL_TOPIC must differ")
	}

	return cfg, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer, got %q", key, s)
	}
	return n, nil
}

func parsePositiveFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive number, got %q", key, s)
	}
	return f, nil
}

func parseFraction(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f > 1 {
		return 0, fmt.Errorf("invalid %s: must be a fraction in [0,1], got %q", key, s)
	}
	return f, nil
}

func parsePositiveDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration, got %q", key, s)
	}
	return d, nil
}

func parseNonNegativeDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s: must be a non-negative duration, got %q", key, s)
	}
	return d, nil
}

func parseHorizons(key string, def []int) ([]int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	parts := strings.Split(s, ",")
	horizons := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid %s: must be comma-separated positive minutes, got %q", key, s)
		}
		horizons = append(horizons, n)
	}
	return horizons, nil
}
