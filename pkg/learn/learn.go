// Package learn accumulates fingerprint observations and promotes the ones
// seen often and steadily enough into persistent profiles. The store is the
// write-hot path of the engine: many flows observe concurrently, so state is
// sharded per fingerprint id and each entry carries its own lock.
package learn

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/traceprint/traceprint/pkg/fingerprint"
)

// Defaults for the promotion policy.
const (
	DefaultPromotionThreshold = 10
	DefaultMinStability       = 0.8
	DefaultWindow             = 24 * time.Hour
	DefaultMaxObservations    = 10000
)

// Stability formula weights. The count component saturates at the promotion
// threshold; the rate bonus rewards a steady arrival rate and penalizes both
// one-off bursts and near-dead entries.
const (
	stabilityCountWeight = 0.7
	stabilitySteadyBonus = 0.3
	stabilityBurstBonus  = 0.1

	steadyRateMin = 1.0   // observations per hour
	steadyRateMax = 100.0 // above this the client is hammering, trust less
)

// Observation is one tracked fingerprint with its accumulated counters.
// All fields of a single observation change together under the entry lock;
// readers get a copy, never a live pointer.
type Observation struct {
	ID        string           `json:"id"`
	Type      fingerprint.Type `json:"type"`
	Count     uint64           `json:"count"`
	FirstSeen time.Time        `json:"first_seen"`
	LastSeen  time.Time        `json:"last_seen"`
	Stability float64          `json:"stability"`
	Promoted  bool             `json:"promoted"`
	// Version increments on every mutation, so a reader can tell whether
	// two snapshots reflect the same state.
	Version uint64 `json:"version"`
	// Sample is the first record that produced this observation, kept so a
	// promoted profile has concrete fingerprint data attached.
	Sample *fingerprint.Record `json:"sample,omitempty"`
}

// Sink persists promoted observations. Implemented by the storage backends.
type Sink interface {
	UpsertObservation(ctx context.Context, obs *Observation) error
}

// Config tunes the promotion policy.
type Config struct {
	PromotionThreshold uint64
	MinStability       float64
	Window             time.Duration
	MaxObservations    int
}

// DefaultConfig returns the standard promotion policy.
func DefaultConfig() Config {
	return Config{
		PromotionThreshold: DefaultPromotionThreshold,
		MinStability:       DefaultMinStability,
		Window:             DefaultWindow,
		MaxObservations:    DefaultMaxObservations,
	}
}

// Stats is a point-in-time summary of the store.
type Stats struct {
	Tracked          int    `json:"tracked"`
	Promoted         uint64 `json:"promoted"`
	RejectedCapacity uint64 `json:"rejected_capacity"`
	Expired          uint64 `json:"expired"`
}

type entry struct {
	mu sync.Mutex
	// promoting guards the storage round-trip so concurrent observers
	// cannot double-promote; it is cleared again if the sink fails.
	promoting bool
	obs       Observation
}

// Store tracks observations in memory and promotes them through a Sink.
type Store struct {
	cfg  Config
	sink Sink
	log  zerolog.Logger

	mu      sync.RWMutex
	entries map[string]*entry

	statsMu          sync.Mutex
	promoted         uint64
	rejectedCapacity uint64
	expired          uint64
}

// NewStore builds a store with the given policy. A nil-safe sink is required;
// pass a no-op sink to run without persistence.
func NewStore(cfg Config, sink Sink, log zerolog.Logger) *Store {
	if cfg.PromotionThreshold == 0 {
		cfg.PromotionThreshold = DefaultPromotionThreshold
	}
	if cfg.MinStability == 0 {
		cfg.MinStability = DefaultMinStability
	}
	if cfg.Window == 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MaxObservations == 0 {
		cfg.MaxObservations = DefaultMaxObservations
	}
	return &Store{
		cfg:     cfg,
		sink:    sink,
		log:     log.With().Str("component", "learn").Logger(),
		entries: make(map[string]*entry),
	}
}

// Observe records one sighting of the fingerprint identified by rec's primary
// id. Count, timestamps, stability and version move as one unit; a reader
// never sees a count bumped with a stale score. When the sighting pushes the
// entry over the promotion bar it is persisted exactly once.
func (s *Store) Observe(ctx context.Context, rec *fingerprint.Record) (Observation, error) {
	id := rec.PrimaryID()
	if id == "" {
		return Observation{}, nil
	}

	e, created := s.entryFor(id, rec)
	if e == nil {
		// At capacity and this id is new. Dropping the sighting is the
		// bounded-memory tradeoff; the rejection is counted so operators
		// can see pressure.
		s.statsMu.Lock()
		s.rejectedCapacity++
		s.statsMu.Unlock()
		return Observation{}, nil
	}

	now := rec.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	e.mu.Lock()
	if created {
		e.obs.FirstSeen = now
	}
	e.obs.Count++
	e.obs.LastSeen = now
	e.obs.Stability = s.stability(&e.obs)
	e.obs.Version++

	shouldPromote := !e.obs.Promoted && !e.promoting &&
		e.obs.Count >= s.cfg.PromotionThreshold &&
		e.obs.Stability >= s.cfg.MinStability
	if shouldPromote {
		e.promoting = true
	}
	snapshot := e.obs
	e.mu.Unlock()

	if shouldPromote {
		return s.promote(ctx, e, snapshot)
	}
	return snapshot, nil
}

// promote persists the observation. The in-flight guard is held over the
// storage call without holding the entry lock; on failure the guard is
// cleared so a later sighting retries.
func (s *Store) promote(ctx context.Context, e *entry, snapshot Observation) (Observation, error) {
	snapshot.Promoted = true
	if err := s.sink.UpsertObservation(ctx, &snapshot); err != nil {
		e.mu.Lock()
		e.promoting = false
		e.mu.Unlock()
		s.log.Warn().Err(err).Str("id", snapshot.ID).Msg("promotion failed, will retry")
		return snapshot, err
	}

	e.mu.Lock()
	e.obs.Promoted = true
	e.obs.Version++
	e.promoting = false
	snapshot = e.obs
	e.mu.Unlock()

	s.statsMu.Lock()
	s.promoted++
	s.statsMu.Unlock()

	s.log.Info().
		Str("id", snapshot.ID).
		Uint64("count", snapshot.Count).
		Float64("stability", snapshot.Stability).
		Msg("observation promoted to profile")
	return snapshot, nil
}

// entryFor returns the entry for id, creating it if capacity allows. The
// second return reports whether this call created the entry.
func (s *Store) entryFor(id string, rec *fingerprint.Record) (*entry, bool) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if ok {
		return e, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entries[id]; ok {
		return e, false
	}
	if len(s.entries) >= s.cfg.MaxObservations {
		return nil, false
	}
	e = &entry{obs: Observation{
		ID:     id,
		Type:   typeOf(id),
		Sample: rec,
	}}
	s.entries[id] = e
	return e, true
}

// stability scores how trustworthy an observation is in [0,1]. Call with the
// entry lock held.
func (s *Store) stability(obs *Observation) float64 {
	base := float64(obs.Count) / float64(s.cfg.PromotionThreshold)
	if base > 1 {
		base = 1
	}
	score := base * stabilityCountWeight

	elapsed := obs.LastSeen.Sub(obs.FirstSeen).Hours()
	if elapsed <= 0 {
		elapsed = 1.0 / 3600 // single-instant burst, treat as one second
	}
	rate := float64(obs.Count) / elapsed
	switch {
	case rate >= steadyRateMin && rate <= steadyRateMax:
		score += stabilitySteadyBonus
	case rate > steadyRateMax:
		score += stabilityBurstBonus
	}
	if score > 1 {
		score = 1
	}
	return score
}

// Get returns a snapshot of the observation for id.
func (s *Store) Get(id string) (Observation, bool) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return Observation{}, false
	}
	e.mu.Lock()
	snapshot := e.obs
	e.mu.Unlock()
	return snapshot, true
}

// ExpireStale drops unpromoted entries not seen within the learning window
// and returns how many were removed. Promoted entries stay; they are already
// persisted and cheap to keep as positive matches.
func (s *Store) ExpireStale(now time.Time) int {
	cutoff := now.Add(-s.cfg.Window)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.entries {
		e.mu.Lock()
		stale := !e.obs.Promoted && !e.promoting && e.obs.LastSeen.Before(cutoff)
		e.mu.Unlock()
		if stale {
			delete(s.entries, id)
			removed++
		}
	}
	if removed > 0 {
		s.statsMu.Lock()
		s.expired += uint64(removed)
		s.statsMu.Unlock()
		s.log.Debug().Int("removed", removed).Msg("expired stale observations")
	}
	return removed
}

// Stats returns a point-in-time summary.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	tracked := len(s.entries)
	s.mu.RUnlock()

	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return Stats{
		Tracked:          tracked,
		Promoted:         s.promoted,
		RejectedCapacity: s.rejectedCapacity,
		Expired:          s.expired,
	}
}

func typeOf(id string) fingerprint.Type {
	for i := 0; i < len(id); i++ {
		if id[i] == ':' {
			return fingerprint.Type(id[:i])
		}
	}
	return ""
}
