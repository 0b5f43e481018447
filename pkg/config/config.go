// Package config layers the application configuration from hardcoded
// defaults, an optional YAML file and command-line flags, in that precedence
// order.
package config

import (
	"fmt"
	"sync"
	"time"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Manager loads and serves the merged configuration.
type Manager struct {
	k       *koanf.Koanf
	mu      sync.RWMutex
	current Config
}

// NewManager creates an empty configuration manager.
func NewManager() *Manager {
	return &Manager{k: koanf.New(".")}
}

// DefaultConfig returns the baseline configuration used when no other source
// overrides a value.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Storage: StorageConfig{
			Path: "data",
		},
		Cache: CacheConfig{
			LocalCapacity: 4096,
			TTL:           15 * time.Minute,
			SharedTimeout: 250 * time.Millisecond,
		},
		Learner: LearnerConfig{
			PromotionThreshold: 10,
			MinStability:       0.8,
			Window:             24 * time.Hour,
			MaxObservations:    10000,
		},
	}
}

// Load merges defaults, the optional YAML file at configPath and flags into
// the current configuration.
func (m *Manager) Load(flags *pflag.FlagSet, configPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.k.Load(confmap.Provider(defaultConfigAsMap(), "."), nil); err != nil {
		return fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := m.k.Load(file.Provider(configPath), kyaml.Parser()); err != nil {
			return fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	if flags != nil {
		if err := m.k.Load(posflag.Provider(flags, ".", m.k), nil); err != nil {
			return fmt.Errorf("load command-line flags: %w", err)
		}
		if debug := flags.Lookup("debug"); debug != nil && debug.Value.String() == "true" {
			_ = m.k.Set("log.level", "debug")
		}
	}

	var cfg Config
	if err := m.k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	m.current = cfg
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// defaultConfigAsMap flattens DefaultConfig for koanf's confmap provider so
// every key exists before the file and flag layers merge on top.
func defaultConfigAsMap() map[string]interface{} {
	def := DefaultConfig()
	return map[string]interface{}{
		"log.level":  def.Log.Level,
		"log.format": def.Log.Format,

		"storage.path": def.Storage.Path,

		"cache.local_capacity": def.Cache.LocalCapacity,
		"cache.ttl":            def.Cache.TTL,
		"cache.shared_timeout": def.Cache.SharedTimeout,
		"cache.redis.enabled":  def.Cache.Redis.Enabled,
		"cache.redis.addr":     def.Cache.Redis.Addr,
		"cache.redis.password": def.Cache.Redis.Password,
		"cache.redis.db":       def.Cache.Redis.DB,

		"learner.promotion_threshold": def.Learner.PromotionThreshold,
		"learner.min_stability":       def.Learner.MinStability,
		"learner.window":              def.Learner.Window,
		"learner.max_observations":    def.Learner.MaxObservations,

		"profiles.paths": def.Profiles.Paths,
	}
}

// BindFlags defines the command-line flags that override configuration keys.
func BindFlags(flags *pflag.FlagSet) {
	def := DefaultConfig()
	flags.String("log.level", def.Log.Level, "Log level (debug, info, warn, error)")
	flags.String("log.format", def.Log.Format, "Log format (console, json)")
	flags.String("storage.path", def.Storage.Path, "Data directory for profiles and observations")
	flags.Bool("debug", false, "Enable debug logging")
}
