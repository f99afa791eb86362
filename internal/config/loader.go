package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// LoadFrom loads configuration through v, which may carry flag bindings
func LoadFrom(v *viper.Viper) (*Config, error) {
	return load(v)
}

// LoadWithViper loads configuration into a fresh viper instance and returns it
func LoadWithViper() (*Config, *viper.Viper, error) {
	v := viper.New()
	cfg, err := load(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	if v.ConfigFileUsed() == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(ConfigDir())
		v.AddConfigPath(".")
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// Environment variables (READTREE_*)
	v.SetEnvPrefix("READTREE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	applyEnvTokens(&cfg)

	return &cfg, nil
}

// applyEnvTokens fills missing host tokens from GITHUB_TOKEN
func applyEnvTokens(cfg *Config) {
	token := os.Getenv(TokenEnvVar)
	if token == "" {
		return
	}
	for i := range cfg.Hosts {
		if cfg.Hosts[i].Token == "" {
			cfg.Hosts[i].Token = token
		}
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("hosts", []map[string]any{{"host": "github.com"}})

	v.SetDefault("http.timeout", DefaultTimeout)
	v.SetDefault("http.max_retries", DefaultMaxRetries)
	v.SetDefault("http.user_agent", "")

	v.SetDefault("cache.enabled", DefaultCacheEnabled)
	v.SetDefault("cache.backend", DefaultCacheBackend)
	v.SetDefault("cache.ttl", DefaultCacheTTL)
	v.SetDefault("cache.directory", CacheDir())
	v.SetDefault("cache.redis_addr", DefaultRedisAddr)

	v.SetDefault("extract.max_file_size", DefaultMaxFileSize)
	v.SetDefault("extract.exclude", []string{})

	v.SetDefault("output.directory", DefaultOutputDir)
	v.SetDefault("output.workers", DefaultWorkers)
	v.SetDefault("output.format", DefaultOutputFormat)

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	return os.MkdirAll(ConfigDir(), 0755)
}

// EnsureCacheDir creates the cache directory if it doesn't exist
func EnsureCacheDir() error {
	return os.MkdirAll(CacheDir(), 0755)
}
