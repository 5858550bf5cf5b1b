// Package config binds the application configuration. Values come from
// an optional JSON file, with environment variables overriding it and
// zero-config defaults behind both.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"discoveryserver/sources"
	"discoveryserver/types"
)

// Config configures the server and the discovery pipeline.
type Config struct {
	// Server
	Port     string `json:"port"`
	LogLevel string `json:"log_level"`

	// Storage
	DatabasePath string `json:"database_path"`

	// Discovery run defaults. Per-run requests may override these.
	EnabledSources []types.DiscoverySource `json:"enabled_sources"`
	Concurrency    int                     `json:"concurrency"`
	AdapterTimeout time.Duration           `json:"adapter_timeout"`
	RunTimeout     time.Duration           `json:"run_timeout"`

	// Deduplication
	DuplicateThreshold      float64 `json:"duplicate_threshold"`
	NameConclusiveThreshold float64 `json:"name_conclusive_threshold"`

	// Validation
	ConfidenceThreshold float64  `json:"confidence_threshold"`
	RegionKeywords      []string `json:"region_keywords"`
	DomainKeywords      []string `json:"domain_keywords"`
	StrictValidation    bool     `json:"strict_validation"`

	// Upstream query cache and batching
	CacheEnabled   bool          `json:"cache_enabled"`
	CacheTTL       time.Duration `json:"cache_ttl"`
	CacheMaxSize   int           `json:"cache_max_size"`
	WindowWidth    time.Duration `json:"window_width"`
	MaxBatchSize   int           `json:"max_batch_size"`
	InterItemDelay time.Duration `json:"inter_item_delay"`

	// Source endpoints
	PlacesAPIURL  string                 `json:"places_api_url"`
	PlacesAPIKey  string                 `json:"places_api_key"`
	FeedAPIURL    string                 `json:"feed_api_url"`
	FeedAPIKey    string                 `json:"feed_api_key"`
	FeedTerms     []string               `json:"feed_terms"`
	ScrapeTargets []sources.ScrapeTarget `json:"scrape_targets"`
}

// configJSON mirrors Config for file parsing, with durations as strings.
type configJSON struct {
	Port                    string   `json:"port"`
	LogLevel                string   `json:"log_level"`
	DatabasePath            string   `json:"database_path"`
	EnabledSources          []string `json:"enabled_sources"`
	Concurrency             *int     `json:"concurrency"`
	AdapterTimeout          string   `json:"adapter_timeout"`
	RunTimeout              string   `json:"run_timeout"`
	DuplicateThreshold      *float64 `json:"duplicate_threshold"`
	NameConclusiveThreshold *float64 `json:"name_conclusive_threshold"`
	ConfidenceThreshold     *float64 `json:"confidence_threshold"`
	RegionKeywords          []string `json:"region_keywords"`
	DomainKeywords          []string `json:"domain_keywords"`
	StrictValidation        *bool    `json:"strict_validation"`
	CacheEnabled            *bool    `json:"cache_enabled"`
	CacheTTL                string   `json:"cache_ttl"`
	CacheMaxSize            *int     `json:"cache_max_size"`
	WindowWidth             string   `json:"window_width"`
	MaxBatchSize            *int     `json:"max_batch_size"`
	InterItemDelay          string   `json:"inter_item_delay"`

	PlacesAPIURL  string                 `json:"places_api_url"`
	PlacesAPIKey  string                 `json:"places_api_key"`
	FeedAPIURL    string                 `json:"feed_api_url"`
	FeedAPIKey    string                 `json:"feed_api_key"`
	FeedTerms     []string               `json:"feed_terms"`
	ScrapeTargets []sources.ScrapeTarget `json:"scrape_targets"`
}

// Default returns the built-in configuration. The keyword lists target
// the Lagos restaurant dataset the service was built around.
func Default() *Config {
	return &Config{
		Port:         "9999",
		LogLevel:     "INFO",
		DatabasePath: "locations.db",

		EnabledSources: []types.DiscoverySource{
			types.SourceAPI, types.SourceScraping, types.SourceSocial,
		},
		Concurrency:    2,
		AdapterTimeout: 60 * time.Second,
		RunTimeout:     5 * time.Minute,

		DuplicateThreshold:      0.8,
		NameConclusiveThreshold: 0.9,

		ConfidenceThreshold: 0.6,
		RegionKeywords: []string{
			"lagos", "ikeja", "lekki", "surulere", "yaba", "ogba",
			"victoria island", "ajah", "ikoyi", "festac",
		},
		DomainKeywords: []string{
			"restaurant", "food", "kitchen", "buka", "eatery", "grill",
			"cafe", "bar", "lounge", "jollof", "suya", "amala", "shawarma",
		},
		StrictValidation: false,

		CacheEnabled:   true,
		CacheTTL:       24 * time.Hour,
		CacheMaxSize:   10000,
		WindowWidth:    100 * time.Millisecond,
		MaxBatchSize:   10,
		InterItemDelay: 50 * time.Millisecond,

		FeedTerms: []string{"#lagosfood", "#lagoseats", "#lagosrestaurants"},
	}
}

// Load builds the configuration: defaults, then the JSON file at path
// (skipped when path is empty or the file does not exist), then
// environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var raw configJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if raw.Port != "" {
		c.Port = raw.Port
	}
	if raw.LogLevel != "" {
		c.LogLevel = raw.LogLevel
	}
	if raw.DatabasePath != "" {
		c.DatabasePath = raw.DatabasePath
	}
	if len(raw.EnabledSources) > 0 {
		c.EnabledSources = parseSources(raw.EnabledSources)
	}
	if raw.Concurrency != nil {
		c.Concurrency = *raw.Concurrency
	}
	applyDuration(&c.AdapterTimeout, raw.AdapterTimeout)
	applyDuration(&c.RunTimeout, raw.RunTimeout)
	if raw.DuplicateThreshold != nil {
		c.DuplicateThreshold = *raw.DuplicateThreshold
	}
	if raw.NameConclusiveThreshold != nil {
		c.NameConclusiveThreshold = *raw.NameConclusiveThreshold
	}
	if raw.ConfidenceThreshold != nil {
		c.ConfidenceThreshold = *raw.ConfidenceThreshold
	}
	if len(raw.RegionKeywords) > 0 {
		c.RegionKeywords = raw.RegionKeywords
	}
	if len(raw.DomainKeywords) > 0 {
		c.DomainKeywords = raw.DomainKeywords
	}
	if raw.StrictValidation != nil {
		c.StrictValidation = *raw.StrictValidation
	}
	if raw.CacheEnabled != nil {
		c.CacheEnabled = *raw.CacheEnabled
	}
	applyDuration(&c.CacheTTL, raw.CacheTTL)
	if raw.CacheMaxSize != nil {
		c.CacheMaxSize = *raw.CacheMaxSize
	}
	applyDuration(&c.WindowWidth, raw.WindowWidth)
	if raw.MaxBatchSize != nil {
		c.MaxBatchSize = *raw.MaxBatchSize
	}
	applyDuration(&c.InterItemDelay, raw.InterItemDelay)

	if raw.PlacesAPIURL != "" {
		c.PlacesAPIURL = raw.PlacesAPIURL
	}
	if raw.PlacesAPIKey != "" {
		c.PlacesAPIKey = raw.PlacesAPIKey
	}
	if raw.FeedAPIURL != "" {
		c.FeedAPIURL = raw.FeedAPIURL
	}
	if raw.FeedAPIKey != "" {
		c.FeedAPIKey = raw.FeedAPIKey
	}
	if len(raw.FeedTerms) > 0 {
		c.FeedTerms = raw.FeedTerms
	}
	if len(raw.ScrapeTargets) > 0 {
		c.ScrapeTargets = raw.ScrapeTargets
	}

	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("SERVER_PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.DatabasePath = getEnv("DATABASE_PATH", c.DatabasePath)

	if v := os.Getenv("ENABLED_SOURCES"); v != "" {
		c.EnabledSources = parseSources(strings.Split(v, ","))
	}
	c.Concurrency = getEnvInt("DISCOVERY_CONCURRENCY", c.Concurrency)
	c.AdapterTimeout = getEnvDuration("ADAPTER_TIMEOUT", c.AdapterTimeout)
	c.RunTimeout = getEnvDuration("RUN_TIMEOUT", c.RunTimeout)

	c.DuplicateThreshold = getEnvFloat("DUPLICATE_THRESHOLD", c.DuplicateThreshold)
	c.ConfidenceThreshold = getEnvFloat("CONFIDENCE_THRESHOLD", c.ConfidenceThreshold)
	c.StrictValidation = getEnv("STRICT_VALIDATION", boolString(c.StrictValidation)) == "true"

	c.CacheEnabled = getEnv("CACHE_ENABLED", boolString(c.CacheEnabled)) == "true"
	c.CacheTTL = getEnvDuration("CACHE_TTL", c.CacheTTL)
	c.CacheMaxSize = getEnvInt("CACHE_MAX_SIZE", c.CacheMaxSize)
	c.WindowWidth = getEnvDuration("COALESCE_WINDOW", c.WindowWidth)
	c.MaxBatchSize = getEnvInt("COALESCE_MAX_BATCH", c.MaxBatchSize)
	c.InterItemDelay = getEnvDuration("COALESCE_ITEM_DELAY", c.InterItemDelay)

	c.PlacesAPIURL = getEnv("PLACES_API_URL", c.PlacesAPIURL)
	c.PlacesAPIKey = getEnv("PLACES_API_KEY", c.PlacesAPIKey)
	c.FeedAPIURL = getEnv("FEED_API_URL", c.FeedAPIURL)
	c.FeedAPIKey = getEnv("FEED_API_KEY", c.FeedAPIKey)
	if v := os.Getenv("FEED_TERMS"); v != "" {
		c.FeedTerms = strings.Split(v, ",")
	}
}

// Validate checks ranges. Sources are validated here too so startup
// fails loudly instead of the first discovery run failing.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port must not be empty")
	}
	if len(c.EnabledSources) == 0 {
		return fmt.Errorf("at least one source must be enabled")
	}
	for _, s := range c.EnabledSources {
		switch s {
		case types.SourceAPI, types.SourceScraping, types.SourceSocial:
		default:
			return fmt.Errorf("unknown source %q", s)
		}
	}
	if c.Concurrency < 1 || c.Concurrency > 16 {
		return fmt.Errorf("concurrency %d out of range 1-16", c.Concurrency)
	}
	if c.DuplicateThreshold <= 0 || c.DuplicateThreshold > 1 {
		return fmt.Errorf("duplicate_threshold %.2f out of range (0,1]", c.DuplicateThreshold)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold >= 1 {
		return fmt.Errorf("confidence_threshold %.2f out of range [0,1)", c.ConfidenceThreshold)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache_ttl must be positive")
	}
	if c.MaxBatchSize < 1 {
		return fmt.Errorf("max_batch_size must be at least 1")
	}
	return nil
}

func parseSources(names []string) []types.DiscoverySource {
	sources := make([]types.DiscoverySource, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(strings.ToLower(name))
		if name == "" {
			continue
		}
		sources = append(sources, types.DiscoverySource(name))
	}
	return sources
}

func applyDuration(dst *time.Duration, value string) {
	if value == "" {
		return
	}
	if d, err := time.ParseDuration(value); err == nil {
		*dst = d
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
