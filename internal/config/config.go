package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/quantmind-br/readtree-go/internal/domain"
)

// Config represents the application configuration
type Config struct {
	Hosts   []domain.HostConfig `mapstructure:"hosts" yaml:"hosts"`
	HTTP    HTTPConfig          `mapstructure:"http" yaml:"http"`
	Cache   CacheConfig         `mapstructure:"cache" yaml:"cache"`
	Extract ExtractConfig       `mapstructure:"extract" yaml:"extract"`
	Output  OutputConfig        `mapstructure:"output" yaml:"output"`
	Logging LoggingConfig       `mapstructure:"logging" yaml:"logging"`
}

// HTTPConfig contains transport settings
type HTTPConfig struct {
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
	UserAgent  string        `mapstructure:"user_agent" yaml:"user_agent"`
}

// CacheConfig contains snapshot cache settings
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	Backend   string        `mapstructure:"backend" yaml:"backend"`
	TTL       time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Directory string        `mapstructure:"directory" yaml:"directory"`
	RedisAddr string        `mapstructure:"redis_addr" yaml:"redis_addr"`
}

// ExtractConfig contains archive extraction settings
type ExtractConfig struct {
	MaxFileSize string   `mapstructure:"max_file_size" yaml:"max_file_size"`
	Exclude     []string `mapstructure:"exclude" yaml:"exclude"`
}

// OutputConfig contains settings for writing trees to disk
type OutputConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
	Workers   int    `mapstructure:"workers" yaml:"workers"`
	Format    string `mapstructure:"format" yaml:"format"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Validate validates the configuration, replacing out-of-range values with defaults
func (c *Config) Validate() error {
	if len(c.Hosts) == 0 {
		c.Hosts = DefaultHosts()
	}
	seen := make(map[string]bool, len(c.Hosts))
	for i, h := range c.Hosts {
		if err := h.Validate(); err != nil {
			return fmt.Errorf("hosts[%d]: %w", i, err)
		}
		h = h.Normalize()
		if seen[h.Host] {
			return fmt.Errorf("hosts[%d]: duplicate host %q", i, h.Host)
		}
		seen[h.Host] = true
		c.Hosts[i] = h
	}

	if c.HTTP.Timeout < time.Second {
		c.HTTP.Timeout = DefaultTimeout
	}
	if c.HTTP.MaxRetries < 0 {
		c.HTTP.MaxRetries = DefaultMaxRetries
	}

	if c.Cache.TTL < time.Minute {
		c.Cache.TTL = DefaultCacheTTL
	}
	switch c.Cache.Backend {
	case "":
		c.Cache.Backend = DefaultCacheBackend
	case CacheBackendBadger, CacheBackendRedis:
	default:
		return fmt.Errorf("invalid cache.backend %q: must be %q or %q", c.Cache.Backend, CacheBackendBadger, CacheBackendRedis)
	}
	if c.Cache.Backend == CacheBackendRedis && c.Cache.RedisAddr == "" {
		c.Cache.RedisAddr = DefaultRedisAddr
	}

	if c.Extract.MaxFileSize == "" {
		c.Extract.MaxFileSize = DefaultMaxFileSize
	} else if _, err := ParseSize(c.Extract.MaxFileSize); err != nil {
		return fmt.Errorf("invalid extract.max_file_size: %w", err)
	}

	if c.Output.Workers < 1 {
		c.Output.Workers = DefaultWorkers
	}
	switch c.Output.Format {
	case "":
		c.Output.Format = DefaultOutputFormat
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("invalid output.format %q", c.Output.Format)
	}
	return nil
}

// MaxFileSizeBytes returns the parsed extract.max_file_size
func (c *Config) MaxFileSizeBytes() int64 {
	n, err := ParseSize(c.Extract.MaxFileSize)
	if err != nil {
		return 0
	}
	return n
}

// ParseSize parses sizes like "512KB", "10MB" or "1GB". "0" disables the limit.
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	var multiplier int64 = 1
	if strings.HasSuffix(s, "GB") {
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "GB")
	} else if strings.HasSuffix(s, "MB") {
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "MB")
	} else if strings.HasSuffix(s, "KB") {
		multiplier = 1024
		s = strings.TrimSuffix(s, "KB")
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("no numeric value in size string")
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric value: %w", err)
	}

	if n < 0 {
		return 0, fmt.Errorf("negative size not allowed")
	}

	return n * multiplier, nil
}
