// Package app assembles the discovery pipeline from configuration.
// Both entrypoints (the HTTP server and the one-shot CLI) build their
// dependency graph through it.
package app

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/time/rate"

	"discoveryserver/config"
	"discoveryserver/database"
	"discoveryserver/dedup"
	"discoveryserver/discovery"
	"discoveryserver/normalization"
	"discoveryserver/quality"
	"discoveryserver/sources"
	"discoveryserver/upstream"
)

// App holds the assembled components and owns their lifecycle.
type App struct {
	Config       *config.Config
	Locations    *database.LocationDB
	Cache        *upstream.QueryCache
	Orchestrator *discovery.Orchestrator
	RunConfig    discovery.Config
}

// New assembles the application. Adapters are built only for sources
// with a configured upstream; a source enabled in config but lacking
// an endpoint is skipped with a warning rather than failing startup.
func New(cfg *config.Config) (*App, error) {
	setupLogging(cfg.LogLevel)

	locations, err := database.NewLocationDB(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open locations database: %w", err)
	}

	var cache *upstream.QueryCache
	if cfg.CacheEnabled {
		cache = upstream.NewQueryCache(upstream.CacheConfig{
			Enabled: true,
			TTL:     cfg.CacheTTL,
			MaxSize: cfg.CacheMaxSize,
		})
	}

	coalescer := upstream.NewCoalescer(upstream.CoalescerConfig{
		WindowWidth:    cfg.WindowWidth,
		MaxBatchSize:   cfg.MaxBatchSize,
		InterItemDelay: cfg.InterItemDelay,
	}, cache)

	adapters := buildAdapters(cfg, coalescer)

	scorer := quality.NewScorer(quality.ScorerConfig{
		RegionKeywords:      cfg.RegionKeywords,
		DomainKeywords:      cfg.DomainKeywords,
		Strict:              cfg.StrictValidation,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
	})
	resolver := dedup.NewResolver(dedup.ResolverConfig{
		DuplicateThreshold:      cfg.DuplicateThreshold,
		NameConclusiveThreshold: cfg.NameConclusiveThreshold,
	}, scorer.Confidence)
	normalizer := normalization.NewNormalizer(normalization.NormalizerConfig{})

	orchestrator := discovery.NewOrchestrator(adapters, normalizer, resolver, scorer, locations)

	return &App{
		Config:       cfg,
		Locations:    locations,
		Cache:        cache,
		Orchestrator: orchestrator,
		RunConfig: discovery.Config{
			EnabledSources: cfg.EnabledSources,
			Concurrency:    cfg.Concurrency,
			AdapterTimeout: cfg.AdapterTimeout,
			RunTimeout:     cfg.RunTimeout,
		},
	}, nil
}

// Close releases the application's resources.
func (a *App) Close() {
	if a.Cache != nil {
		a.Cache.Close()
	}
	if a.Locations != nil {
		a.Locations.Close()
	}
}

func buildAdapters(cfg *config.Config, coalescer *upstream.Coalescer) []sources.Adapter {
	var adapters []sources.Adapter

	if cfg.PlacesAPIURL != "" {
		provider := sources.NewHTTPPlaceProvider(sources.HTTPClientConfig{
			BaseURL:   cfg.PlacesAPIURL,
			APIKey:    cfg.PlacesAPIKey,
			RateLimit: rate.Every(cfg.InterItemDelay),
		})
		adapters = append(adapters, sources.NewAPIAdapter(sources.APIAdapterConfig{
			BaseURL: cfg.PlacesAPIURL,
		}, provider, coalescer))
	} else {
		slog.Warn("places api url not configured, api source unavailable")
	}

	if len(cfg.ScrapeTargets) > 0 {
		fetcher := sources.NewHTTPPageFetcher(sources.HTTPClientConfig{
			RateLimit: rate.Every(cfg.InterItemDelay),
		})
		adapters = append(adapters, sources.NewScrapeAdapter(sources.ScrapeAdapterConfig{
			Targets: cfg.ScrapeTargets,
		}, fetcher, coalescer))
	} else {
		slog.Warn("no scrape targets configured, scraping source unavailable")
	}

	if cfg.FeedAPIURL != "" {
		searcher := sources.NewHTTPFeedSearcher(sources.HTTPClientConfig{
			BaseURL:   cfg.FeedAPIURL,
			APIKey:    cfg.FeedAPIKey,
			RateLimit: rate.Every(cfg.InterItemDelay),
		})
		adapters = append(adapters, sources.NewSocialAdapter(sources.SocialAdapterConfig{
			Terms: cfg.FeedTerms,
		}, searcher, coalescer))
	} else {
		slog.Warn("feed api url not configured, social source unavailable")
	}

	return adapters
}

func setupLogging(level string) {
	var slogLevel slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		slogLevel = slog.LevelDebug
	case "WARN":
		slogLevel = slog.LevelWarn
	case "ERROR":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slogLevel,
	})))
}
