package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/quantmind-br/readtree-go/internal/domain"
)

// Cache backends
const (
	CacheBackendBadger = "badger"
	CacheBackendRedis  = "redis"
)

// Default values
const (
	DefaultTimeout    = 60 * time.Second
	DefaultMaxRetries = 3

	DefaultCacheEnabled = false
	DefaultCacheBackend = CacheBackendBadger
	DefaultCacheTTL     = 24 * time.Hour
	DefaultRedisAddr    = "localhost:6379"

	DefaultMaxFileSize = "10MB"

	DefaultOutputDir    = ""
	DefaultWorkers      = 5
	DefaultOutputFormat = "text"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "pretty"

	// TokenEnvVar is consulted for hosts configured without a token
	TokenEnvVar = "GITHUB_TOKEN"
)

// DefaultHosts returns the public GitHub deployment
func DefaultHosts() []domain.HostConfig {
	return []domain.HostConfig{
		domain.HostConfig{Host: domain.PublicHost}.Normalize(),
	}
}

// ConfigDir returns the config directory path
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".readtree"
	}
	return filepath.Join(home, ".readtree")
}

// CacheDir returns the cache directory path
func CacheDir() string {
	return filepath.Join(ConfigDir(), "cache")
}

// ConfigFilePath returns the config file path
func ConfigFilePath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Hosts: DefaultHosts(),
		HTTP: HTTPConfig{
			Timeout:    DefaultTimeout,
			MaxRetries: DefaultMaxRetries,
		},
		Cache: CacheConfig{
			Enabled:   DefaultCacheEnabled,
			Backend:   DefaultCacheBackend,
			TTL:       DefaultCacheTTL,
			Directory: CacheDir(),
		},
		Extract: ExtractConfig{
			MaxFileSize: DefaultMaxFileSize,
		},
		Output: OutputConfig{
			Directory: DefaultOutputDir,
			Workers:   DefaultWorkers,
			Format:    DefaultOutputFormat,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
