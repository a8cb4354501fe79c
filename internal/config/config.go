// Package config loads the portal settings from an optional config.yaml,
// a .env file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	CacheDriverMemory    = "memory"
	CacheDriverCouchbase = "couchbase"
	CacheDriverNone      = "none"
)

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type BackendsConfig struct {
	GenericURL string        `mapstructure:"generic_url"`
	AbsenceURL string        `mapstructure:"absence_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type CacheConfig struct {
	Driver string        `mapstructure:"driver"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type CouchbaseConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Bucket   string `mapstructure:"bucket"`
}

type LogConfig struct {
	Level            string `mapstructure:"level"`
	ElasticsearchURL string `mapstructure:"elasticsearch_url"`
	Index            string `mapstructure:"index"`
}

type MetricsConfig struct {
	Business       bool          `mapstructure:"business"`
	System         bool          `mapstructure:"system"`
	SystemInterval time.Duration `mapstructure:"system_interval"`
}

type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

type FeedConfig struct {
	Timezone        string `mapstructure:"timezone"`
	DefaultPageSize int    `mapstructure:"default_page_size"`
}

type ViewsConfig struct {
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	EvictInterval time.Duration `mapstructure:"evict_interval"`
}

// Config is the whole portal configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Backends  BackendsConfig  `mapstructure:"backends"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Couchbase CouchbaseConfig `mapstructure:"couchbase"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Views     ViewsConfig     `mapstructure:"views"`
}

var envBindings = map[string]string{
	"server.port":             "SERVER_PORT",
	"backends.generic_url":    "GENERIC_BASE_URL",
	"backends.absence_url":    "ABSENCE_BASE_URL",
	"backends.timeout":        "BACKEND_TIMEOUT",
	"cache.driver":            "CACHE_DRIVER",
	"cache.ttl":               "CACHE_TTL",
	"couchbase.url":           "COUCHBASE_URL",
	"couchbase.username":      "COUCHBASE_USERNAME",
	"couchbase.password":      "COUCHBASE_PASSWORD",
	"couchbase.bucket":        "COUCHBASE_BUCKET",
	"log.level":               "LOG_LEVEL",
	"log.elasticsearch_url":   "ELASTICSEARCH_URL",
	"log.index":               "ELASTICSEARCH_INDEX",
	"metrics.business":        "ENABLE_BUSINESS_METRICS",
	"metrics.system":          "ENABLE_SYSTEM_METRICS",
	"metrics.system_interval": "SYSTEM_METRICS_INTERVAL",
	"auth.enabled":            "AUTH_ENABLED",
	"auth.jwt_secret":         "JWT_SECRET",
	"feed.timezone":           "FEED_TIMEZONE",
	"feed.default_page_size":  "DEFAULT_PAGE_SIZE",
	"views.idle_timeout":      "VIEW_IDLE_TIMEOUT",
	"views.evict_interval":    "VIEW_EVICT_INTERVAL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("backends.timeout", 10*time.Second)
	v.SetDefault("cache.driver", CacheDriverMemory)
	v.SetDefault("cache.ttl", 30*time.Second)
	v.SetDefault("couchbase.url", "couchbase://localhost")
	v.SetDefault("couchbase.username", "Administrator")
	v.SetDefault("couchbase.password", "password")
	v.SetDefault("couchbase.bucket", "hrportal")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.index", "hrportal-logs")
	v.SetDefault("metrics.business", true)
	v.SetDefault("metrics.system", true)
	v.SetDefault("metrics.system_interval", 15*time.Second)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("feed.timezone", "UTC")
	v.SetDefault("feed.default_page_size", 20)
	v.SetDefault("views.idle_timeout", 30*time.Minute)
	v.SetDefault("views.evict_interval", time.Minute)
}

// loadDotEnv loads .env from the parent directory, then the working one.
func loadDotEnv() {
	if err := godotenv.Load("../.env"); err != nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Debug().Msg("No .env file found, using environment")
		}
	}
}

// Load reads config.yaml from dir if present and overlays the environment.
func Load(dir string) (Config, error) {
	loadDotEnv()

	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Cache.Driver = strings.ToLower(strings.TrimSpace(cfg.Cache.Driver))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings the portal cannot start without.
func (c Config) Validate() error {
	if c.Backends.GenericURL == "" {
		return errors.New("GENERIC_BASE_URL is required")
	}
	if c.Backends.AbsenceURL == "" {
		return errors.New("ABSENCE_BASE_URL is required")
	}
	switch strings.ToLower(c.Cache.Driver) {
	case CacheDriverMemory, CacheDriverCouchbase, CacheDriverNone:
	default:
		return fmt.Errorf("unknown cache driver %q", c.Cache.Driver)
	}
	if c.Feed.DefaultPageSize <= 0 {
		return fmt.Errorf("default page size must be positive, got %d", c.Feed.DefaultPageSize)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		log.Warn().Msg("Auth enabled without JWT_SECRET, token signatures will not be verified")
	}
	return nil
}

// Location resolves the zone used for date-only bounds and zone-less timestamps.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Feed.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid FEED_TIMEZONE %q: %w", c.Feed.Timezone, err)
	}
	return loc, nil
}
