// Package config loads popcache settings with koanf.
//
// Layers, lowest to highest priority:
//  1. built-in defaults (defaultConfig)
//  2. a YAML file, if one is given or found in DefaultConfigPaths
//  3. POPCACHE_* environment variables, e.g. POPCACHE_REDIS_URL -> redis.url
//     and POPCACHE_POPULARITY_RANKING_KEY -> popularity.ranking_key
//
// Command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/IvanBrykalov/popcache/cache"
	"github.com/IvanBrykalov/popcache/internal/logging"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "POPCACHE_"

// DefaultConfigPaths are searched in order when Load gets no path.
var DefaultConfigPaths = []string{
	"popcache.yaml",
	"popcache.yml",
	"/etc/popcache/config.yaml",
}

type Config struct {
	Redis      RedisConfig      `koanf:"redis"`
	Postgres   PostgresConfig   `koanf:"postgres"`
	Popularity PopularityConfig `koanf:"popularity"`
	Recency    RecencyConfig    `koanf:"recency"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Logging    LoggingConfig    `koanf:"logging"`
}

type RedisConfig struct {
	// URL in go-redis form, e.g. redis://:pass@host:6379/0.
	URL string `koanf:"url"`
}

type PostgresConfig struct {
	URL         string `koanf:"url"`
	ItemsTable  string `koanf:"items_table"`
	EventsTable string `koanf:"events_table"`
}

type PopularityConfig struct {
	Limit           int           `koanf:"limit"`
	RankingKey      string        `koanf:"ranking_key"`
	ItemKeyPrefix   string        `koanf:"item_key_prefix"`
	PruneOrphans    bool          `koanf:"prune_orphans"`
	Coalesce        bool          `koanf:"coalesce"`
	RefreshInterval time.Duration `koanf:"refresh_interval"`
}

type RecencyConfig struct {
	MaxEntries    int           `koanf:"max_entries"`
	TTL           time.Duration `koanf:"ttl"`
	KeyPrefix     string        `koanf:"key_prefix"`
	Transactional bool          `koanf:"transactional"`
}

type MetricsConfig struct {
	Listen    string `koanf:"listen"`
	Namespace string `koanf:"namespace"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() *Config {
	return &Config{
		Redis: RedisConfig{URL: "redis://localhost:6379/0"},
		Postgres: PostgresConfig{
			URL:         "",
			ItemsTable:  "items",
			EventsTable: "item_events",
		},
		Popularity: PopularityConfig{
			Limit:           cache.DefaultLimit,
			RankingKey:      cache.DefaultRankingKey,
			ItemKeyPrefix:   cache.DefaultItemKeyPrefix,
			RefreshInterval: time.Minute,
		},
		Recency: RecencyConfig{
			MaxEntries: cache.DefaultMaxRecent,
			TTL:        cache.DefaultRecentTTL,
			KeyPrefix:  cache.DefaultSubjectPrefix,
		},
		Metrics: MetricsConfig{Listen: ":9464", Namespace: "popcache"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load builds a Config from defaults, the YAML file at path (or the first
// of DefaultConfigPaths that exists when path is empty) and the environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransformFunc maps POPCACHE_SECTION_SOME_FIELD to section.some_field.
// The first segment after the prefix names the section; the rest is the
// field name with its underscores kept.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	section, field, ok := strings.Cut(key, "_")
	if !ok || field == "" {
		return ""
	}
	return section + "." + field
}

// Validate checks limits and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if c.Redis.URL == "" {
		errs = append(errs, errors.New("redis.url is required"))
	}
	if c.Popularity.Limit <= 0 {
		errs = append(errs, fmt.Errorf("popularity.limit must be positive, got %d", c.Popularity.Limit))
	}
	if c.Popularity.RankingKey == "" || c.Popularity.ItemKeyPrefix == "" {
		errs = append(errs, errors.New("popularity key names must not be empty"))
	}
	if c.Popularity.RankingKey != "" && c.Popularity.RankingKey == c.Popularity.ItemKeyPrefix {
		errs = append(errs, errors.New("popularity.ranking_key must differ from item_key_prefix"))
	}
	if c.Popularity.RefreshInterval <= 0 {
		errs = append(errs, fmt.Errorf("popularity.refresh_interval must be positive, got %s", c.Popularity.RefreshInterval))
	}
	if c.Recency.MaxEntries <= 0 {
		errs = append(errs, fmt.Errorf("recency.max_entries must be positive, got %d", c.Recency.MaxEntries))
	}
	if c.Recency.TTL <= 0 {
		errs = append(errs, fmt.Errorf("recency.ttl must be positive, got %s", c.Recency.TTL))
	}
	if c.Recency.KeyPrefix == "" {
		errs = append(errs, errors.New("recency.key_prefix must not be empty"))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// PopularityOptions maps the popularity section to cache options.
func (c *Config) PopularityOptions() cache.PopularityOptions {
	return cache.PopularityOptions{
		Limit:         c.Popularity.Limit,
		RankingKey:    c.Popularity.RankingKey,
		ItemKeyPrefix: c.Popularity.ItemKeyPrefix,
		PruneOrphans:  c.Popularity.PruneOrphans,
		Coalesce:      c.Popularity.Coalesce,
	}
}

// RecencyOptions maps the recency section to cache options.
func (c *Config) RecencyOptions() cache.RecencyOptions {
	return cache.RecencyOptions{
		MaxEntries:    c.Recency.MaxEntries,
		TTL:           c.Recency.TTL,
		KeyPrefix:     c.Recency.KeyPrefix,
		Transactional: c.Recency.Transactional,
	}
}
