//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkacontainer "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/crisis-intel-service/internal/adapter/httpapi"
	kafkaadapter "github.com/couchcryptid/crisis-intel-service/internal/adapter/kafka"
	"github.com/couchcryptid/crisis-intel-service/internal/analytics"
	"github.com/couchcryptid/crisis-intel-service/internal/config"
	"github.com/couchcryptid/crisis-intel-service/internal/domain"
	"github.com/couchcryptid/crisis-intel-service/internal/engine"
	"github.com/couchcryptid/crisis-intel-service/internal/observability"
	"github.com/couchcryptid/crisis-intel-service/internal/store"
)

const (
	testWeatherTopic = "test-weather-risks"
	testSocialTopic  = "test-social-signals"
)

// startKafka launches a single-node Kafka container and returns its broker
// address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := kafkacontainer.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		kafkacontainer.WithClusterID("test-cluster"),
	)
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(container))
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err, "resolve kafka brokers")
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic via the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err, "dial broker")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "resolve controller")

	controllerConn, err := kafkago.Dial("tcp",
		net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err, "dial controller")
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}), "create topic %s", topic)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func publishJSON(ctx context.Context, t *testing.T, broker, topic, key string, v any) {
	t.Helper()

	payload, err := json.Marshal(v)
	require.NoError(t, err)

	producer := &kafkago.Writer{
		Addr:                   kafkago.TCP(broker),
		Topic:                  topic,
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: false,
	}
	t.Cleanup(func() { _ = producer.Close() })

	require.NoError(t, producer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(key),
		Value: payload,
	}))
}

// TestConsumeAndServe runs the full path: events published to both topics are
// consumed, stored, and surfaced as hotspots and an escalation through the
// HTTP API.
func TestConsumeAndServe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testWeatherTopic)
	createTopic(t, broker, testSocialTopic)

	cfg := &config.Config{
		KafkaBrokers:      []string{broker},
		KafkaWeatherTopic: testWeatherTopic,
		KafkaSocialTopic:  testSocialTopic,
		KafkaGroupID:      fmt.Sprintf("test-intel-%d", time.Now().UnixNano()),
	}

	now := time.Now().UTC()
	weather := domain.WeatherEvent{
		ID:       "itest-w-1",
		Source:   "weather_monitor",
		Location: domain.Location{Name: "Houston", Lat: 29.76, Lon: -95.37},
		Metrics: domain.WeatherMetrics{
			FireIndex:   75,
			FloodIndex:  10,
			Temperature: 38,
			Humidity:    15,
			WindSpeed:   18,
		},
		Timestamp: now,
	}
	socialA := domain.SocialEvent{
		ID:       "itest-s-1",
		Source:   "social_media",
		Location: domain.Location{Lat: 29.81, Lon: -95.41},
		Signal: domain.SocialSignal{
			Text:     "fire spreading near the highway, people evacuating",
			Category: domain.CategoryFire,
			Urgency:  domain.UrgencyCritical,
			Verified: true,
		},
		Timestamp: now,
	}
	socialB := socialA
	socialB.ID = "itest-s-2"
	socialB.Signal.Text = "smoke everywhere downtown, need help"
	socialB.Signal.Verified = false

	publishJSON(ctx, t, broker, testWeatherTopic, weather.ID, weather)
	publishJSON(ctx, t, broker, testSocialTopic, socialA.ID, socialA)
	publishJSON(ctx, t, broker, testSocialTopic, socialB.ID, socialB)

	metrics := observability.NewMetricsForTesting()
	st := store.New(500, clockwork.NewRealClock())
	eng := engine.New(st, discardLogger(), metrics, clockwork.NewRealClock(), engine.Options{
		Window:         30 * time.Minute,
		GridResolution: domain.DefaultGridResolution,
		Horizons:       []int{15, 30, 60},
		CycleThreshold: 0.93,
		KeepFraction:   0.1,
	})

	consumer := kafkaadapter.NewConsumer(cfg, eng, discardLogger(), metrics)
	t.Cleanup(func() { _ = consumer.Close() })

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	go func() {
		_ = consumer.Run(consumerCtx)
	}()

	// Wait until all three events arrive. The consumer group may need time
	// to rebalance before partitions are assigned.
	require.Eventually(t, func() bool {
		stats, err := eng.Stats()
		return err == nil && stats.WeatherEventCount == 1 && stats.SocialEventCount == 2
	}, 60*time.Second, 250*time.Millisecond, "events not consumed in time")

	srv := httpapi.NewServer(":0", eng, discardLogger())

	// Hotspots: all three events bin to the same cell and compound to critical.
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/hotspots", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var hotspotsBody struct {
		Hotspots []analytics.Hotspot `json:"hotspots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hotspotsBody))
	require.Len(t, hotspotsBody.Hotspots, 1)

	h := hotspotsBody.Hotspots[0]
	assert.Equal(t, 30.0, h.GridLat)
	assert.Equal(t, -95.5, h.GridLon)
	assert.Equal(t, 1, h.WeatherEventCount)
	assert.Equal(t, 2, h.SocialCriticalCount)
	assert.Equal(t, 1, h.SocialVerifiedCount)
	assert.Equal(t, domain.RiskCritical, h.CombinedRiskLevel)

	// Escalation: one high-risk weather event plus two urgent social reports.
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/escalation", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var escalation analytics.EscalationState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &escalation))
	assert.Equal(t, analytics.StateCritical, escalation.State)
	assert.Equal(t, analytics.SeverityCritical, escalation.Severity)
	assert.Equal(t, 1, escalation.WeatherHighRisk)
	assert.Equal(t, 2, escalation.SocialHighUrgency)

	// Readiness flips once ingestion has happened.
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestDuplicateDelivery verifies at-least-once redelivery does not double
// count events.
func TestDuplicateDelivery(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testWeatherTopic)
	createTopic(t, broker, testSocialTopic)

	cfg := &config.Config{
		KafkaBrokers:      []string{broker},
		KafkaWeatherTopic: testWeatherTopic,
		KafkaSocialTopic:  testSocialTopic,
		KafkaGroupID:      fmt.Sprintf("test-dup-%d", time.Now().UnixNano()),
	}

	event := domain.WeatherEvent{
		ID:        "itest-dup-1",
		Source:    "weather_monitor",
		Location:  domain.Location{Name: "Dallas", Lat: 32.78, Lon: -96.80},
		Metrics:   domain.WeatherMetrics{FireIndex: 40, FloodIndex: 5},
		Timestamp: time.Now().UTC(),
	}
	// Same event published twice, then a poison pill that must be skipped.
	publishJSON(ctx, t, broker, testWeatherTopic, event.ID, event)
	publishJSON(ctx, t, broker, testWeatherTopic, event.ID, event)

	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testWeatherTopic}
	t.Cleanup(func() { _ = producer.Close() })
	require.NoError(t, producer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte("poison"),
		Value: []byte("{not json"),
	}))

	follower := domain.WeatherEvent{
		ID:        "itest-dup-2",
		Source:    "weather_monitor",
		Location:  domain.Location{Name: "Dallas", Lat: 32.78, Lon: -96.80},
		Metrics:   domain.WeatherMetrics{FireIndex: 10, FloodIndex: 5},
		Timestamp: time.Now().UTC(),
	}
	publishJSON(ctx, t, broker, testWeatherTopic, follower.ID, follower)

	metrics := observability.NewMetricsForTesting()
	st := store.New(500, clockwork.NewRealClock())
	eng := engine.New(st, discardLogger(), metrics, clockwork.NewRealClock(), engine.Options{})

	consumer := kafkaadapter.NewConsumer(cfg, eng, discardLogger(), metrics)
	t.Cleanup(func() { _ = consumer.Close() })

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	go func() {
		_ = consumer.Run(consumerCtx)
	}()

	// The event after the poison pill proves the consumer kept going.
	require.Eventually(t, func() bool {
		view, err := eng.LatestEvents(0)
		if err != nil {
			return false
		}
		for _, e := range view.Weather {
			if e.ID == follower.ID {
				return true
			}
		}
		return false
	}, 60*time.Second, 250*time.Millisecond, "follower event not consumed")

	stats, err := eng.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.WeatherEventCount, "duplicate must be stored once, poison pill not at all")
}
