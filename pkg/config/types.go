package config

import "time"

// Config is the full application configuration.
type Config struct {
	Log      LogConfig      `koanf:"log"`
	Storage  StorageConfig  `koanf:"storage"`
	Cache    CacheConfig    `koanf:"cache"`
	Learner  LearnerConfig  `koanf:"learner"`
	Profiles ProfilesConfig `koanf:"profiles"`
}

// LogConfig controls the global logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // console or json
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Path string `koanf:"path"`
}

// CacheConfig tunes the lookup cache tiers.
type CacheConfig struct {
	LocalCapacity int           `koanf:"local_capacity"`
	TTL           time.Duration `koanf:"ttl"`
	SharedTimeout time.Duration `koanf:"shared_timeout"`
	Redis         RedisConfig   `koanf:"redis"`
}

// RedisConfig connects the shared cache tier. Disabled means local-only.
type RedisConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// LearnerConfig tunes the observation store's promotion policy.
type LearnerConfig struct {
	PromotionThreshold uint64        `koanf:"promotion_threshold"`
	MinStability       float64       `koanf:"min_stability"`
	Window             time.Duration `koanf:"window"`
	MaxObservations    int           `koanf:"max_observations"`
}

// ProfilesConfig points at operator-supplied profile registries loaded on top
// of the embedded seed.
type ProfilesConfig struct {
	Paths []string `koanf:"paths"`
}
