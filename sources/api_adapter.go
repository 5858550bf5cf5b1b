package sources

import (
	"context"
	"fmt"
	"log/slog"

	"discoveryserver/types"
	"discoveryserver/upstream"
)

// PlaceSummary is one hit of a structured place search.
type PlaceSummary struct {
	PlaceID string
	Name    string
	Address string
	Lat     *float64
	Lng     *float64
}

// PlaceDetails is the per-place detail record. OpeningHours is keyed by
// the provider's day index, 0 = Sunday.
type PlaceDetails struct {
	Phone        string
	Website      string
	Rating       *float64
	ReviewCount  *int
	PriceLevel   int
	OpeningHours map[int]string
	Types        []string
	Description  string
}

// PlaceProvider is the injected structured place API. Both calls may
// fail; retries are the caller's responsibility, not this adapter's.
type PlaceProvider interface {
	Search(ctx context.Context, query string) ([]PlaceSummary, error)
	Details(ctx context.Context, placeID string) (*PlaceDetails, error)
}

// APIAdapterConfig configures the structured-API adapter.
type APIAdapterConfig struct {
	// MaxResults caps how many search hits get a detail lookup.
	MaxResults int `json:"max_results"`
	// BaseURL is recorded as provenance on emitted candidates.
	BaseURL string `json:"base_url"`
}

// APIAdapter turns structured place-API queries into raw candidates.
// Every network access goes through the coalescer so repeated and
// near-simultaneous lookups share one upstream call.
type APIAdapter struct {
	config    APIAdapterConfig
	provider  PlaceProvider
	coalescer *upstream.Coalescer
	logger    *slog.Logger
}

// providerDays maps the provider's day-of-week index to canonical names.
var providerDays = [7]string{
	"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday",
}

// NewAPIAdapter creates the adapter. MaxResults defaults to 10.
func NewAPIAdapter(config APIAdapterConfig, provider PlaceProvider, coalescer *upstream.Coalescer) *APIAdapter {
	if config.MaxResults <= 0 {
		config.MaxResults = 10
	}

	return &APIAdapter{
		config:    config,
		provider:  provider,
		coalescer: coalescer,
		logger:    slog.Default().With("component", "api_adapter"),
	}
}

func (a *APIAdapter) Name() string                { return "place_api" }
func (a *APIAdapter) Kind() types.DiscoverySource { return types.SourceAPI }

// Discover runs one search query, then a coalesced detail lookup per
// hit. A failed detail lookup downgrades that hit to summary fields
// rather than dropping it.
func (a *APIAdapter) Discover(ctx context.Context, query string) ([]RawCandidate, error) {
	searchKey := "place_search:" + query
	raw, err := a.coalescer.Acquire(ctx, searchKey, func(fetchCtx context.Context) (any, error) {
		return a.provider.Search(fetchCtx, query)
	})
	if err != nil {
		return nil, fmt.Errorf("place search %q: %w", query, err)
	}

	summaries, ok := raw.([]PlaceSummary)
	if !ok {
		return nil, fmt.Errorf("place search %q: unexpected cached type %T", query, raw)
	}

	if len(summaries) > a.config.MaxResults {
		summaries = summaries[:a.config.MaxResults]
	}

	candidates := make([]RawCandidate, 0, len(summaries))
	for _, summary := range summaries {
		record := &APIRaw{
			PlaceID:    summary.PlaceID,
			Name:       summary.Name,
			Address:    summary.Address,
			Lat:        summary.Lat,
			Lng:        summary.Lng,
			PriceLevel: -1,
		}

		details, err := a.fetchDetails(ctx, summary.PlaceID)
		if err != nil {
			a.logger.Warn("detail lookup failed, keeping summary fields",
				"place_id", summary.PlaceID,
				"error", err)
		} else if details != nil {
			record.Phone = details.Phone
			record.Website = details.Website
			record.Rating = details.Rating
			record.ReviewCount = details.ReviewCount
			record.PriceLevel = normalizePriceLevel(details.PriceLevel)
			record.OpeningHours = mapOpeningHours(details.OpeningHours)
			record.Tags = details.Types
			record.Description = details.Description
		}

		candidates = append(candidates, RawCandidate{
			Kind:      types.SourceAPI,
			SourceURL: fmt.Sprintf("%s/place/%s", a.config.BaseURL, summary.PlaceID),
			API:       record,
		})
	}

	return candidates, nil
}

func (a *APIAdapter) fetchDetails(ctx context.Context, placeID string) (*PlaceDetails, error) {
	raw, err := a.coalescer.Acquire(ctx, "place_details:"+placeID, func(fetchCtx context.Context) (any, error) {
		return a.provider.Details(fetchCtx, placeID)
	})
	if err != nil {
		return nil, err
	}

	details, ok := raw.(*PlaceDetails)
	if !ok {
		return nil, fmt.Errorf("unexpected cached type %T", raw)
	}
	return details, nil
}

// normalizePriceLevel clamps the provider's 0-4 scale; anything outside
// becomes -1, "not reported".
func normalizePriceLevel(level int) int {
	if level < 0 || level > 4 {
		return -1
	}
	return level
}

// mapOpeningHours converts provider day indexes to canonical weekday
// names, dropping indexes outside 0-6.
func mapOpeningHours(hours map[int]string) map[string]string {
	if len(hours) == 0 {
		return nil
	}

	mapped := make(map[string]string, len(hours))
	for day, ranges := range hours {
		if day < 0 || day > 6 || ranges == "" {
			continue
		}
		mapped[providerDays[day]] = ranges
	}

	if len(mapped) == 0 {
		return nil
	}
	return mapped
}
