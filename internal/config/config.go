package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gocausal/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database  DatabaseConfig
	CausalAPI CausalAPIConfig
	Server    ServerConfig
	Editor    EditorConfig
	Data      DataConfig
	Profiling ProfilingConfig
	LogLevel  string
}

// DatabaseConfig holds database connection settings. An empty URL selects
// the local file store under Data.GraphDir.
type DatabaseConfig struct {
	URL string
}

// Enabled reports whether a database was configured
func (d DatabaseConfig) Enabled() bool { return d.URL != "" }

// CausalAPIConfig points at the remote causal-inference service
type CausalAPIConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// EditorConfig holds canvas tuning knobs
type EditorConfig struct {
	GridSize      float64
	SnapThreshold float64
}

// DataConfig holds the dataset the attribute palette is read from
type DataConfig struct {
	DatasetFile string
	GraphDir    string
}

// ProfilingConfig holds admin/profiling server settings
type ProfilingConfig struct {
	Port    string
	Enabled bool
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{
			URL: getEnvOrDefault("DATABASE_URL", ""),
		},
		CausalAPI: loadCausalAPIConfig(),
		Server: ServerConfig{
			Port:    getEnvOrDefault("PORT", "8080"),
			GinMode: getEnvOrDefault("GIN_MODE", "debug"),
		},
		Editor: EditorConfig{
			GridSize:      getEnvFloatOrDefault("GRID_SIZE", 30),
			SnapThreshold: getEnvFloatOrDefault("SNAP_THRESHOLD", 50),
		},
		Data: DataConfig{
			DatasetFile: getEnvOrDefault("DATASET_FILE", ""),
			GraphDir:    getEnvOrDefault("GRAPH_DIR", "data/graphs"),
		},
		Profiling: ProfilingConfig{
			Port:    getEnvOrDefault("PPROF_PORT", "6060"),
			Enabled: getEnvBoolOrDefault("PPROF_ENABLED", true),
		},
		LogLevel: getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadCausalAPIConfig() CausalAPIConfig {
	return CausalAPIConfig{
		BaseURL: strings.TrimRight(getEnvOrDefault("CAUSAL_API_URL", "http://localhost:5000"), "/"),
		Token:   getEnvOrDefault("CAUSAL_API_TOKEN", ""),
		Timeout: getEnvDurationOrDefault("CAUSAL_API_TIMEOUT", 2*time.Minute),
	}
}

func validateConfig(config *Config) error {
	if config.CausalAPI.BaseURL == "" {
		return errors.ConfigInvalid("CAUSAL_API_URL is required")
	}
	if config.Editor.GridSize <= 0 {
		return errors.ConfigInvalid("GRID_SIZE must be positive")
	}
	if config.Editor.SnapThreshold < 0 {
		return errors.ConfigInvalid("SNAP_THRESHOLD must not be negative")
	}
	if config.CausalAPI.Timeout <= 0 {
		return errors.ConfigInvalid("CAUSAL_API_TIMEOUT must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
