package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/samber/lo"
)

const (
	// EnvPrefix prefixes every environment variable read by Load.
	EnvPrefix = "POSTBOX_"
	// DevJWTSecret is the fallback signing key. Never run with it outside dev.
	DevJWTSecret = "change-me"
)

// Config holds application level configuration.
type Config struct {
	ServerPort   string        `koanf:"server_port"`
	DBDriver     string        `koanf:"db_driver"`
	DatabaseDSN  string        `koanf:"database_dsn"`
	CacheBackend string        `koanf:"cache_backend"`
	RedisAddr    string        `koanf:"redis_addr"`
	RedisDB      int           `koanf:"redis_db"`
	RedisPass    string        `koanf:"redis_password"`
	JWTSecret    string        `koanf:"jwt_secret"`
	BcryptCost   int           `koanf:"bcrypt_cost"`
	UserCacheTTL time.Duration `koanf:"user_cache_ttl"`
	LogLevel     string        `koanf:"log_level"`
	LogFormat    string        `koanf:"log_format"`
	SwaggerHost  string        `koanf:"swagger_host"`
	ResetDB      bool          `koanf:"reset_db"`
}

var defaults = map[string]any{
	"server_port":    "8080",
	"db_driver":      "sqlite",
	"database_dsn":   "postbox.db",
	"cache_backend":  "memory",
	"redis_addr":     "localhost:6379",
	"redis_db":       0,
	"jwt_secret":     DevJWTSecret,
	"bcrypt_cost":    10,
	"user_cache_ttl": "5m",
	"log_level":      "info",
	"log_format":     "text",
	"reset_db":       false,
}

var configFiles = []string{"config.yaml", "config.yml", "config.json"}

// Load builds Config from an optional config file, then POSTBOX_* environment
// variables, then defaults.
func Load() (*Config, error) {
	return load(os.Getenv(EnvPrefix+"CONFIG"), configFiles)
}

func load(explicit string, candidates []string) (*Config, error) {
	k := koanf.New(".")

	configFile := explicit
	if configFile == "" {
		configFile, _ = lo.Find(candidates, func(f string) bool {
			_, err := os.Stat(f)
			return err == nil
		})
	}
	if configFile != "" {
		var parser koanf.Parser
		switch ext := filepath.Ext(configFile); ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config file extension: %s", ext)
		}
		if err := k.Load(file.Provider(configFile), parser); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configFile, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			if err := k.Set(key, value); err != nil {
				return nil, fmt.Errorf("set default %s: %w", key, err)
			}
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret must not be empty")
	}
	if !lo.Contains([]string{"mysql", "postgres", "sqlite"}, c.DBDriver) {
		return fmt.Errorf("unsupported db_driver %q", c.DBDriver)
	}
	if !lo.Contains([]string{"redis", "memory", "none"}, c.CacheBackend) {
		return fmt.Errorf("unsupported cache_backend %q", c.CacheBackend)
	}
	return nil
}

// UsesDevSecret reports whether the signing key is the built-in development one.
func (c *Config) UsesDevSecret() bool {
	return c.JWTSecret == DevJWTSecret
}
