// Command genevents generates synthetic weather and social events for local
// development and test fixtures. Events use the same domain types the service
// ingests, so fixtures always match real consumer behavior. With -brokers set
// it publishes straight to Kafka instead of writing files.
//
// Usage:
//
//	go run ./cmd/genevents -count 200 \
//	  -weather-out data/mock/weather_events.json \
//	  -social-out data/mock/social_events.json
//
//	go run ./cmd/genevents -count 50 -brokers localhost:9092
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/crisis-intel-service/internal/domain"
)

var cities = []domain.Location{
	{Name: "New York", Lat: 40.7128, Lon: -74.0060},
	{Name: "Los Angeles", Lat: 34.0522, Lon: -118.2437},
	{Name: "Chicago", Lat: 41.8781, Lon: -87.6298},
	{Name: "Houston", Lat: 29.7604, Lon: -95.3698},
	{Name: "Phoenix", Lat: 33.4484, Lon: -112.0740},
	{Name: "Philadelphia", Lat: 39.9526, Lon: -75.1652},
	{Name: "San Antonio", Lat: 29.4241, Lon: -98.4936},
	{Name: "San Diego", Lat: 32.7157, Lon: -117.1611},
	{Name: "Dallas", Lat: 32.7767, Lon: -96.7970},
	{Name: "Austin", Lat: 30.2672, Lon: -97.7431},
}

type reportTemplate struct {
	text     string
	category domain.Category
	urgency  domain.Urgency
}

var reportTemplates = []reportTemplate{
	{"Emergency: flooding reported in downtown area", domain.CategoryFlood, domain.UrgencyHigh},
	{"Water rising fast on the east side, roads impassable", domain.CategoryFlood, domain.UrgencyCritical},
	{"Smoke visible from the highway, spreading north", domain.CategoryFire, domain.UrgencyHigh},
	{"Brush fire near the reservoir, crews on scene", domain.CategoryFire, domain.UrgencyMedium},
	{"Evacuation underway in the river district", domain.CategoryFire, domain.UrgencyCritical},
	{"Minor street flooding after the storm, draining slowly", domain.CategoryFlood, domain.UrgencyLow},
	{"Power lines down on Main St, area cordoned off", domain.CategoryOther, domain.UrgencyMedium},
	{"Shelter at the community center is at capacity", domain.CategoryOther, domain.UrgencyLow},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	count := flag.Int("count", 100, "events to generate per kind")
	seed := flag.Int64("seed", 42, "random seed for reproducible fixtures")
	weatherOut := flag.String("weather-out", "", "output path for the weather fixture")
	socialOut := flag.String("social-out", "", "output path for the social fixture")
	brokers := flag.String("brokers", "", "publish to these Kafka brokers instead of writing files")
	weatherTopic := flag.String("weather-topic", "weather_risks", "weather topic when publishing")
	socialTopic := flag.String("social-topic", "social_signals", "social topic when publishing")
	flag.Parse()

	if *brokers == "" && (*weatherOut == "" || *socialOut == "") {
		flag.Usage()
		return fmt.Errorf("missing required flags: either -brokers or both -weather-out and -social-out")
	}

	rng := rand.New(rand.NewSource(*seed))
	now := time.Now().UTC()

	weather := make([]domain.WeatherEvent, 0, *count)
	social := make([]domain.SocialEvent, 0, *count)
	for i := 0; i < *count; i++ {
		// Spread timestamps over the trailing hour, newest last.
		ts := now.Add(-time.Duration(*count-i) * time.Hour / time.Duration(*count))
		weather = append(weather, makeWeatherEvent(rng, ts))
		social = append(social, makeSocialEvent(rng, ts))
	}
	log.Printf("generated %d weather and %d social events", len(weather), len(social))

	if *brokers != "" {
		return publish(*brokers, *weatherTopic, *socialTopic, weather, social)
	}

	if err := writeJSON(*weatherOut, weather); err != nil {
		return fmt.Errorf("writing weather fixture: %w", err)
	}
	log.Printf("wrote weather fixture: %s", *weatherOut)

	if err := writeJSON(*socialOut, social); err != nil {
		return fmt.Errorf("writing social fixture: %w", err)
	}
	log.Printf("wrote social fixture: %s", *socialOut)
	return nil
}

func makeWeatherEvent(rng *rand.Rand, ts time.Time) domain.WeatherEvent {
	city := cities[rng.Intn(len(cities))]
	temperature := 10 + rng.Float64()*30
	humidity := rng.Float64() * 100
	windSpeed := rng.Float64() * 25
	precipitation := rng.Float64() * 15

	fire := fireIndex(temperature, humidity, windSpeed)
	flood := floodIndex(precipitation, humidity)

	return domain.WeatherEvent{
		ID:     uuid.NewString(),
		Source: "weather_monitor",
		Location: domain.Location{
			Name: city.Name,
			Lat:  city.Lat,
			Lon:  city.Lon,
		},
		Metrics: domain.WeatherMetrics{
			FireIndex:              fire,
			FloodIndex:             flood,
			Temperature:            temperature,
			Humidity:               humidity,
			WindSpeed:              windSpeed,
			WindDirection:          rng.Float64() * 360,
			PrecipitationIntensity: precipitation,
		},
		RiskLevel: domain.ScoreWeather(fire, flood),
		Timestamp: ts,
	}
}

func makeSocialEvent(rng *rand.Rand, ts time.Time) domain.SocialEvent {
	city := cities[rng.Intn(len(cities))]
	tpl := reportTemplates[rng.Intn(len(reportTemplates))]

	// Scatter reports around the city center, about 2 km of spread.
	latOffset := (rng.Float64() - 0.5) * 0.04
	lonOffset := (rng.Float64() - 0.5) * 0.04

	return domain.SocialEvent{
		ID:     uuid.NewString(),
		Source: "social_media",
		Location: domain.Location{
			Lat: city.Lat + latOffset,
			Lon: city.Lon + lonOffset,
		},
		Signal: domain.SocialSignal{
			Text:     tpl.text,
			Category: tpl.category,
			Urgency:  tpl.urgency,
			Verified: rng.Intn(3) == 0,
		},
		Timestamp: ts,
	}
}

// fireIndex mirrors the service's producers: temperature, dryness, and wind
// each contribute a bounded share of the 0-100 scale.
func fireIndex(temperature, humidity, windSpeed float64) float64 {
	tempFactor := min(max(temperature, 0), 40)
	humidityFactor := max(0, 40-humidity*0.4)
	windFactor := min(windSpeed, 20)
	return min(max(tempFactor+humidityFactor+windFactor, 0), 100)
}

func floodIndex(precipitation, humidity float64) float64 {
	var precipFactor float64
	switch {
	case precipitation < 2.5:
		precipFactor = precipitation * 10
	case precipitation < 10:
		precipFactor = 25 + (precipitation-2.5)*4
	case precipitation < 50:
		precipFactor = 55 + (precipitation - 10)
	default:
		precipFactor = 95
	}
	return min(precipFactor+humidity*0.05, 100)
}

func publish(brokers, weatherTopic, socialTopic string, weather []domain.WeatherEvent, social []domain.SocialEvent) error {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers),
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	defer w.Close()

	msgs := make([]kafkago.Message, 0, len(weather)+len(social))
	for _, e := range weather {
		value, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("serialize weather event: %w", err)
		}
		msgs = append(msgs, kafkago.Message{Topic: weatherTopic, Key: []byte(e.ID), Value: value})
	}
	for _, e := range social {
		value, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("serialize social event: %w", err)
		}
		msgs = append(msgs, kafkago.Message{Topic: socialTopic, Key: []byte(e.ID), Value: value})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish events: %w", err)
	}
	log.Printf("published %d messages to %s", len(msgs), brokers)
	return nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
