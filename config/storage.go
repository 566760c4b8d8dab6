package config

// StorageConfig contains output storage configuration.
type StorageConfig struct {
	// Root is the directory holding results/ (live output) and reports/
	// (archived runs).
	Root string `env:"STORAGE_ROOT" envDefault:"./data"`
}

// Sanitize applies guardrails to storage configuration values.
func (s *StorageConfig) Sanitize() {
	if s.Root == "" {
		s.Root = "./data"
	}
}

// RedisConfig contains Redis configuration for the optional event mirror.
// The mirror is disabled when Addr is empty.
type RedisConfig struct {
	Addr     string `env:"ADDR"     envDefault:""`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB"       envDefault:"0"`
}

// Enabled reports whether the event mirror should be wired up.
func (r *RedisConfig) Enabled() bool {
	return r.Addr != ""
}
