package config

import "fmt"

// Config is the root configuration for an analysis run.
type Config struct {
	Paths    PathsConfig    `mapstructure:"paths"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Cache    CacheConfig    `mapstructure:"cache"`
}

// PathsConfig controls file discovery.
type PathsConfig struct {
	// Include are glob patterns for source files, relative to the project root.
	Include []string `mapstructure:"include"`
	// Ignore are glob patterns excluded from discovery.
	Ignore []string `mapstructure:"ignore"`
}

// AnalysisConfig controls what the walker extracts and how.
type AnalysisConfig struct {
	// CollectSignatures enables signature rendering and complexity metrics.
	CollectSignatures bool `mapstructure:"collect_signatures"`
	// Parallel forces the concurrent walker regardless of project size.
	Parallel bool `mapstructure:"parallel"`
	// MaxWorkers bounds walker concurrency; 0 picks a CPU-based default.
	MaxWorkers int `mapstructure:"max_workers"`
}

// CacheConfig controls the per-file parse cache.
type CacheConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Location is the cache database path, relative to the project root
	// unless absolute.
	Location string `mapstructure:"location"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Include: []string{"**/*.py"},
			Ignore: []string{
				"**/__pycache__/**",
				"**/site-packages/**",
				"venv/**",
				"build/**",
				"dist/**",
			},
		},
		Analysis: AnalysisConfig{
			CollectSignatures: true,
			Parallel:          false,
			MaxWorkers:        0,
		},
		Cache: CacheConfig{
			Enabled:  true,
			Location: ".codesynapse/cache.db",
		},
	}
}

// Validate checks a loaded configuration for values that cannot work.
func Validate(cfg *Config) error {
	if cfg.Analysis.MaxWorkers < 0 {
		return fmt.Errorf("analysis.max_workers must be >= 0, got %d", cfg.Analysis.MaxWorkers)
	}
	if len(cfg.Paths.Include) == 0 {
		return fmt.Errorf("paths.include must list at least one pattern")
	}
	if cfg.Cache.Enabled && cfg.Cache.Location == "" {
		return fmt.Errorf("cache.location is required when the cache is enabled")
	}
	return nil
}
