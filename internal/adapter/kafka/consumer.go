// Package kafka consumes the weather and social event topics and feeds the
// engine. One consumer group reads both topics; dispatch is by message topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/crisis-intel-service/internal/config"
	"github.com/couchcryptid/crisis-intel-service/internal/domain"
	"github.com/couchcryptid/crisis-intel-service/internal/observability"
)

// Ingestor accepts decoded events. Implemented by engine.Engine.
type Ingestor interface {
	IngestWeather(domain.WeatherEvent) error
	IngestSocial(domain.SocialEvent) error
}

// Consumer reads both source topics as one group and pushes events into the
// ingestor.
type Consumer struct {
	reader       *kafkago.Reader
	ingestor     Ingestor
	logger       *slog.Logger
	metrics      *observability.Metrics
	weatherTopic string
	socialTopic  string
}

// NewConsumer creates a consumer-group reader over the configured topics.
func NewConsumer(cfg *config.Config, ingestor Ingestor, logger *slog.Logger, metrics *observability.Metrics) *Consumer {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.KafkaBrokers,
		GroupID:     cfg.KafkaGroupID,
		GroupTopics: []string{cfg.KafkaWeatherTopic, cfg.KafkaSocialTopic},
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
	})
	return &Consumer{
		reader:       r,
		ingestor:     ingestor,
		logger:       logger,
		metrics:      metrics,
		weatherTopic: cfg.KafkaWeatherTopic,
		socialTopic:  cfg.KafkaSocialTopic,
	}
}

// Run consumes until the context is cancelled. Malformed or invalid messages
// are logged, counted, and committed so they are never redelivered; fetch and
// commit failures retry with exponential backoff.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started",
		"weather_topic", c.weatherTopic, "social_topic", c.socialTopic)
	c.metrics.ConsumerRunning.Set(1)
	defer c.metrics.ConsumerRunning.Set(0)

	// Start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.Info("consumer stopping", "reason", context.Cause(ctx))
				return nil
			}
			c.logger.Error("fetch message failed", "error", err)
			if !sleepWithContext(ctx, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}
		backoff = 200 * time.Millisecond

		c.metrics.MessagesConsumed.Inc()
		if err := c.dispatch(msg); err != nil {
			// Poison pill: the message will never become valid, so commit
			// past it instead of wedging the partition.
			c.logger.Warn("message rejected, skipping",
				"error", err,
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
			)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("commit offset failed", "error", err,
				"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
		}
	}
}

// dispatch decodes the message per its topic and hands it to the ingestor.
func (c *Consumer) dispatch(msg kafkago.Message) error {
	switch msg.Topic {
	case c.weatherTopic:
		var ev domain.WeatherEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			return err
		}
		return c.ingestor.IngestWeather(ev)
	case c.socialTopic:
		var ev domain.SocialEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			return err
		}
		return c.ingestor.IngestSocial(ev)
	default:
		return errors.New("message from unexpected topic " + msg.Topic)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

// sleepWithContext waits d or until the context is cancelled. Returns false
// when cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
