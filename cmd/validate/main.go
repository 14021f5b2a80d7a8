// Command validate performs integrity checks over generated event fixtures:
// schema validation against the ingestion rules, ID uniqueness, risk level
// consistency with the raw indices, and timestamp ordering. Run it after
// regenerating fixtures with genevents.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -weather-json data/mock/weather_events.json \
//	  -social-json data/mock/social_events.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/couchcryptid/crisis-intel-service/internal/domain"
)

// phase tracks pass/fail for one validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) failf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	weatherJSON := flag.String("weather-json", "", "path to the weather events fixture")
	socialJSON := flag.String("social-json", "", "path to the social events fixture")
	flag.Parse()

	if *weatherJSON == "" || *socialJSON == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -weather-json, -social-json")
	}

	var weather []domain.WeatherEvent
	if err := readJSON(*weatherJSON, &weather); err != nil {
		return fmt.Errorf("reading weather fixture: %w", err)
	}
	var social []domain.SocialEvent
	if err := readJSON(*socialJSON, &social); err != nil {
		return fmt.Errorf("reading social fixture: %w", err)
	}

	phases := []*phase{
		validateWeather(weather),
		validateSocial(social),
		validateUniqueIDs(weather, social),
		validateOrdering(weather, social),
	}

	failed := 0
	for _, p := range phases {
		if len(p.errors) == 0 {
			fmt.Printf("PASS  %s\n", p.name)
			continue
		}
		failed++
		fmt.Printf("FAIL  %s\n", p.name)
		for _, e := range p.errors {
			fmt.Printf("      %s\n", e)
		}
	}

	fmt.Printf("\n%d weather, %d social events checked, %d/%d phases passed\n",
		len(weather), len(social), len(phases)-failed, len(phases))
	if failed > 0 {
		return fmt.Errorf("%d validation phase(s) failed", failed)
	}
	return nil
}

func validateWeather(events []domain.WeatherEvent) *phase {
	p := &phase{name: "weather schema and risk consistency"}
	if len(events) == 0 {
		p.failf("fixture is empty")
		return p
	}
	for i := range events {
		e := &events[i]
		if err := e.Validate(); err != nil {
			p.failf("%s: %v", e.ID, err)
			continue
		}
		if e.RiskLevel == "" {
			continue
		}
		if want := domain.ScoreWeather(e.Metrics.FireIndex, e.Metrics.FloodIndex); e.RiskLevel != want {
			p.failf("%s: risk_level %s does not match indices (want %s, fire=%.1f flood=%.1f)",
				e.ID, e.RiskLevel, want, e.Metrics.FireIndex, e.Metrics.FloodIndex)
		}
	}
	return p
}

func validateSocial(events []domain.SocialEvent) *phase {
	p := &phase{name: "social schema"}
	if len(events) == 0 {
		p.failf("fixture is empty")
		return p
	}
	for i := range events {
		if err := events[i].Validate(); err != nil {
			p.failf("%s: %v", events[i].ID, err)
		}
	}
	return p
}

func validateUniqueIDs(weather []domain.WeatherEvent, social []domain.SocialEvent) *phase {
	p := &phase{name: "event ID uniqueness"}
	seen := make(map[string]string, len(weather)+len(social))
	check := func(id, kind string) {
		if prev, dup := seen[id]; dup {
			p.failf("%s appears in both %s and %s", id, prev, kind)
			return
		}
		seen[id] = kind
	}
	for _, e := range weather {
		check(e.ID, "weather")
	}
	for _, e := range social {
		check(e.ID, "social")
	}
	return p
}

func validateOrdering(weather []domain.WeatherEvent, social []domain.SocialEvent) *phase {
	p := &phase{name: "chronological ordering"}
	for i := 1; i < len(weather); i++ {
		if weather[i].Timestamp.Before(weather[i-1].Timestamp) {
			p.failf("weather %s is older than its predecessor", weather[i].ID)
		}
	}
	for i := 1; i < len(social); i++ {
		if social[i].Timestamp.Before(social[i-1].Timestamp) {
			p.failf("social %s is older than its predecessor", social[i].ID)
		}
	}
	return p
}

func readJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(v)
}
