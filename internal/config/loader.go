package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir    string
	configFile string
}

// NewLoader creates a configuration loader rooted at the analyzed project.
func NewLoader(rootDir string) Loader {
	return &loader{rootDir: rootDir}
}

// NewLoaderWithFile creates a loader reading an explicit config file instead
// of searching the project's .codesynapse directory. The file must exist.
func NewLoaderWithFile(rootDir, configFile string) Loader {
	return &loader{rootDir: rootDir, configFile: configFile}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (CODESYNAPSE_*)
// 2. Config file (.codesynapse/config.yml or .codesynapse/config.yaml)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
	} else {
		configDir := filepath.Join(l.rootDir, ".codesynapse")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir)
	}

	v.SetEnvPrefix("CODESYNAPSE")
	v.AutomaticEnv()
	// Replace . with _ in env var names (e.g., CODESYNAPSE_ANALYSIS_PARALLEL)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.BindEnv("paths.include")
	v.BindEnv("paths.ignore")

	v.BindEnv("analysis.collect_signatures")
	v.BindEnv("analysis.parallel")
	v.BindEnv("analysis.max_workers")

	v.BindEnv("cache.enabled")
	v.BindEnv("cache.location")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - we'll use defaults + env vars.
		// An explicitly named file must exist.
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if l.configFile != "" || !notFound {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("paths.include", defaults.Paths.Include)
	v.SetDefault("paths.ignore", defaults.Paths.Ignore)

	v.SetDefault("analysis.collect_signatures", defaults.Analysis.CollectSignatures)
	v.SetDefault("analysis.parallel", defaults.Analysis.Parallel)
	v.SetDefault("analysis.max_workers", defaults.Analysis.MaxWorkers)

	v.SetDefault("cache.enabled", defaults.Cache.Enabled)
	v.SetDefault("cache.location", defaults.Cache.Location)
}

// LoadConfigFromDir loads configuration for the project rooted at rootDir.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}

// LoadConfigWithFile loads configuration, preferring an explicit config file
// when one is given.
func LoadConfigWithFile(rootDir, configFile string) (*Config, error) {
	if configFile == "" {
		return NewLoader(rootDir).Load()
	}
	return NewLoaderWithFile(rootDir, configFile).Load()
}

// CachePath resolves the configured cache location against the project root.
func (c *Config) CachePath(rootDir string) string {
	if filepath.IsAbs(c.Cache.Location) {
		return c.Cache.Location
	}
	return filepath.Join(rootDir, c.Cache.Location)
}
