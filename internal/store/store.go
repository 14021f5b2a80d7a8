// Package store owns the bounded in-memory event buffers and their
// concurrency discipline: a single readers-writer lock protects appends and
// cycling, while all analytics read from copied snapshots so long reads never
// block ingestion and never observe a half-applied mutation.
package store

import (
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/couchcryptid/crisis-intel-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Kind distinguishes the two event buffers.
type Kind string

const (
	KindWeather Kind = "weather"
	KindSocial  Kind = "social"
)

// ErrInconsistentSnapshot reports that a snapshot copy observed a concurrent
// cycle. Under the store's lock discipline this cannot happen; seeing it
// means a concurrency bug, so the failed request must not serve partial data.
var ErrInconsistentSnapshot = errors.New("store: snapshot observed a concurrent cycle")

// Store holds append-ordered weather and social events, bounded to a fixed
// capacity per kind. Ingestion is idempotent on event ID: re-delivery of an
// already-stored ID is a no-op. When a buffer is full, the oldest event is
// evicted so ingestion never blocks.
type Store struct {
	mu    sync.RWMutex
	clock clockwork.Clock

	capacity int

	weather    []domain.WeatherEvent
	social     []domain.SocialEvent
	weatherIDs map[string]struct{}
	socialIDs  map[string]struct{}

	// generation increments on every cycle; snapshots verify it did not
	// move while they copied.
	generation uint64
}

// Snapshot is an immutable copy of the store's contents at one instant.
// Safe to read without synchronization.
type Snapshot struct {
	Weather []domain.WeatherEvent
	Social  []domain.SocialEvent
	TakenAt time.Time
}

// New creates a Store bounded to capacity events per kind.
func New(capacity int, clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		clock:      clock,
		capacity:   capacity,
		weatherIDs: make(map[string]struct{}, capacity),
		socialIDs:  make(map[string]struct{}, capacity),
	}
}

// AddWeather appends e unless its ID is already present. The second return
// reports whether the oldest weather event was evicted to stay within
// capacity.
func (s *Store) AddWeather(e domain.WeatherEvent) (added, evicted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.weatherIDs[e.ID]; dup {
		return false, false
	}
	if len(s.weather) >= s.capacity {
		delete(s.weatherIDs, s.weather[0].ID)
		s.weather = s.weather[1:]
		evicted = true
	}
	s.weather = append(s.weather, e)
	s.weatherIDs[e.ID] = struct{}{}
	return true, evicted
}

// AddSocial appends e unless its ID is already present.
func (s *Store) AddSocial(e domain.SocialEvent) (added, evicted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.socialIDs[e.ID]; dup {
		return false, false
	}
	if len(s.social) >= s.capacity {
		delete(s.socialIDs, s.social[0].ID)
		s.social = s.social[1:]
		evicted = true
	}
	s.social = append(s.social, e)
	s.socialIDs[e.ID] = struct{}{}
	return true, evicted
}

// Counts returns the current number of stored events per kind.
func (s *Store) Counts() (weather, social int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.weather), len(s.social)
}

// Capacity returns the configured per-kind capacity.
func (s *Store) Capacity() int { return s.capacity }

// NeedsCycle reports whether either kind has reached threshold (a fraction of
// capacity, e.g. 0.93) and the boundary should trigger a cycle.
func (s *Store) NeedsCycle(threshold float64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	limit := int(float64(s.capacity) * threshold)
	return len(s.weather) >= limit || len(s.social) >= limit
}

// Snapshot copies the current event set. Readers get consistent, isolated
// slices: later appends or cycles do not affect a taken snapshot.
func (s *Store) Snapshot() (Snapshot, error) {
	s.mu.RLock()
	genBefore := s.generation
	snap := Snapshot{
		Weather: slices.Clone(s.weather),
		Social:  slices.Clone(s.social),
		TakenAt: s.clock.Now(),
	}
	genAfter := s.generation
	s.mu.RUnlock()

	if genBefore != genAfter {
		return Snapshot{}, ErrInconsistentSnapshot
	}
	return snap, nil
}

// Cycle retains the most recent keepFraction of each kind, ordered by event
// timestamp descending, and discards the rest. Atomic with respect to
// snapshot reads: a concurrent reader sees either the pre-cycle or the
// post-cycle set. Returns the number of events kept per kind.
func (s *Store) Cycle(keepFraction float64) (weatherKept, socialKept int) {
	keepFraction = min(max(keepFraction, 0), 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.weather = retainNewestWeather(s.weather, keepFraction)
	s.social = retainNewestSocial(s.social, keepFraction)

	clear(s.weatherIDs)
	for _, e := range s.weather {
		s.weatherIDs[e.ID] = struct{}{}
	}
	clear(s.socialIDs)
	for _, e := range s.social {
		s.socialIDs[e.ID] = struct{}{}
	}

	s.generation++
	return len(s.weather), len(s.social)
}

func retainNewestWeather(events []domain.WeatherEvent, keepFraction float64) []domain.WeatherEvent {
	keep := int(float64(len(events)) * keepFraction)
	if keep == 0 {
		return nil
	}
	sorted := slices.Clone(events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})
	kept := sorted[:keep]
	// Restore chronological append order for the survivors.
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Timestamp.Before(kept[j].Timestamp)
	})
	return kept
}

func retainNewestSocial(events []domain.SocialEvent, keepFraction float64) []domain.SocialEvent {
	keep := int(float64(len(events)) * keepFraction)
	if keep == 0 {
		return nil
	}
	sorted := slices.Clone(events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})
	kept := sorted[:keep]
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Timestamp.Before(kept[j].Timestamp)
	})
	return kept
}
