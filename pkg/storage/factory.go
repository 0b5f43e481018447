package storage

import (
	"context"
	"fmt"
)

// Factory creates a Backend from a validated Config.
type Factory func(ctx context.Context, cfg *Config) (Backend, error)

// DefaultFactory is the backend factory used by NewBackend. It defaults to
// the local JSON-file backend and can be overridden at init time to swap in a
// database-backed implementation without touching call sites.
var DefaultFactory Factory = NewLocalBackend

// NewBackend validates cfg and builds a backend through DefaultFactory.
func NewBackend(ctx context.Context, cfg *Config) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid storage configuration: %w", err)
	}
	if DefaultFactory == nil {
		return nil, fmt.Errorf("no storage backend factory registered")
	}
	backend, err := DefaultFactory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create storage backend: %w", err)
	}
	return backend, nil
}
