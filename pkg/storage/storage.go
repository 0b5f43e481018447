// Package storage persists known profiles and promoted observations. The
// Backend interface is the seam between the engine and the concrete store;
// the bundled implementation is a local JSON-file backend, with the factory
// variable left open for database-backed replacements.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/traceprint/traceprint/pkg/fingerprint"
	"github.com/traceprint/traceprint/pkg/learn"
)

// ErrNotFound is returned when the requested profile or observation does not
// exist in the backend.
var ErrNotFound = errors.New("storage: not found")

// Backend is the persistence contract. Implementations must be safe for
// concurrent use and upserts must be idempotent: re-writing an identical
// entity is a no-op, not an error.
type Backend interface {
	// GetProfile returns the profile with the given id, ErrNotFound when absent.
	GetProfile(ctx context.Context, id string) (*fingerprint.KnownProfile, error)
	// ListProfiles returns every stored profile.
	ListProfiles(ctx context.Context) ([]*fingerprint.KnownProfile, error)
	// UpsertProfile writes the profile, replacing any previous version.
	UpsertProfile(ctx context.Context, p *fingerprint.KnownProfile) error

	// GetObservation returns the promoted observation with the given id.
	GetObservation(ctx context.Context, id string) (*learn.Observation, error)
	// UpsertObservation writes a promoted observation; satisfies learn.Sink.
	UpsertObservation(ctx context.Context, obs *learn.Observation) error

	Close() error
}

// Config selects and parameterizes the backend.
type Config struct {
	// Path is the data directory for the local backend.
	Path string
}

// Validate checks the configuration before a backend is constructed.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("storage config is nil")
	}
	if c.Path == "" {
		return fmt.Errorf("storage path is required")
	}
	return nil
}
