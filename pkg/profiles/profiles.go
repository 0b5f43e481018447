// Package profiles holds the seed registry of known client profiles. The
// registry is built once at startup from the embedded seed plus optional
// operator-supplied YAML files and is immutable afterwards, so lookups need
// no locking.
package profiles

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/traceprint/traceprint/pkg/fingerprint"
)

//go:embed seed.yaml
var seedYAML []byte

type registryFile struct {
	Profiles []*fingerprint.KnownProfile `yaml:"profiles"`
}

// Registry is an immutable set of known profiles.
type Registry struct {
	byID map[string]*fingerprint.KnownProfile
	all  []*fingerprint.KnownProfile
}

// Load builds the registry from the embedded seed plus any extra YAML files.
// A later file overrides an earlier profile with the same id.
func Load(extraPaths ...string) (*Registry, error) {
	r := &Registry{byID: make(map[string]*fingerprint.KnownProfile)}

	if err := r.merge(seedYAML, "embedded seed"); err != nil {
		return nil, err
	}
	for _, path := range extraPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read profiles %s: %w", path, err)
		}
		if err := r.merge(data, path); err != nil {
			return nil, err
		}
	}

	r.all = make([]*fingerprint.KnownProfile, 0, len(r.byID))
	for _, p := range r.byID {
		r.all = append(r.all, p)
	}
	return r, nil
}

func (r *Registry) merge(data []byte, source string) error {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse profiles from %s: %w", source, err)
	}
	for _, p := range file.Profiles {
		if p.ProfileID == "" {
			return fmt.Errorf("profile without profile_id in %s", source)
		}
		r.byID[p.ProfileID] = p
	}
	return nil
}

// Get returns the profile with the given id.
func (r *Registry) Get(id string) (*fingerprint.KnownProfile, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// All returns every profile. Callers must not mutate the returned slice or
// its entries.
func (r *Registry) All() []*fingerprint.KnownProfile {
	return r.all
}

// Len reports how many profiles are registered.
func (r *Registry) Len() int {
	return len(r.all)
}
