package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/traceprint/traceprint/pkg/fingerprint"
	"github.com/traceprint/traceprint/pkg/learn"
)

const (
	profilesFile     = "profiles.json"
	observationsFile = "observations.json"
	fileMode         = 0o644
	dirMode          = 0o755
)

// LocalBackend stores profiles and observations as JSON files under a data
// directory. Both collections are loaded at construction and written back on
// every upsert; the dataset is small enough (thousands of entries) that
// whole-file rewrites beat the complexity of an embedded database.
type LocalBackend struct {
	dir string

	mu           sync.RWMutex
	profiles     map[string]*fingerprint.KnownProfile
	observations map[string]*learn.Observation
}

// NewLocalBackend opens (or initializes) the data directory at cfg.Path.
func NewLocalBackend(_ context.Context, cfg *Config) (Backend, error) {
	if err := os.MkdirAll(cfg.Path, dirMode); err != nil {
		return nil, fmt.Errorf("create storage dir %s: %w", cfg.Path, err)
	}
	b := &LocalBackend{
		dir:          cfg.Path,
		profiles:     make(map[string]*fingerprint.KnownProfile),
		observations: make(map[string]*learn.Observation),
	}
	if err := loadJSON(filepath.Join(cfg.Path, profilesFile), &b.profiles); err != nil {
		return nil, err
	}
	if err := loadJSON(filepath.Join(cfg.Path, observationsFile), &b.observations); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *LocalBackend) GetProfile(_ context.Context, id string) (*fingerprint.KnownProfile, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (b *LocalBackend) ListProfiles(_ context.Context) ([]*fingerprint.KnownProfile, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*fingerprint.KnownProfile, 0, len(b.profiles))
	for _, p := range b.profiles {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (b *LocalBackend) UpsertProfile(_ context.Context, p *fingerprint.KnownProfile) error {
	if p == nil || p.ProfileID == "" {
		return fmt.Errorf("profile id is required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := *p
	b.profiles[p.ProfileID] = &cp
	return writeJSON(filepath.Join(b.dir, profilesFile), b.profiles)
}

func (b *LocalBackend) GetObservation(_ context.Context, id string) (*learn.Observation, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	obs, ok := b.observations[id]
	if !ok {
		return nil, fmt.Errorf("observation %s: %w", id, ErrNotFound)
	}
	cp := *obs
	return &cp, nil
}

func (b *LocalBackend) UpsertObservation(_ context.Context, obs *learn.Observation) error {
	if obs == nil || obs.ID == "" {
		return fmt.Errorf("observation id is required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if prev, ok := b.observations[obs.ID]; ok && prev.Version >= obs.Version {
		// Already have this state or newer; idempotent re-promotion.
		return nil
	}
	cp := *obs
	b.observations[obs.ID] = &cp
	return writeJSON(filepath.Join(b.dir, observationsFile), b.observations)
}

func (b *LocalBackend) Close() error { return nil }

func loadJSON(path string, dst any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// writeJSON writes atomically via a temp file so a crash mid-write cannot
// leave a truncated collection on disk.
func writeJSON(path string, src any) error {
	data, err := json.MarshalIndent(src, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, fileMode); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
