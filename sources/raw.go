package sources

import (
	"context"

	"discoveryserver/types"
)

// RawCandidate is the loosely-typed record one adapter call produced.
// It is a tagged union: exactly one of API, Scraped or Social is set,
// selected by Kind. Raw candidates are ephemeral; they are owned by the
// adapter call that produced them and discarded after normalization.
type RawCandidate struct {
	Kind      types.DiscoverySource
	SourceURL string

	API     *APIRaw
	Scraped *ScrapedRaw
	Social  *SocialRaw
}

// APIRaw is a structured place-API result after the detail lookup.
type APIRaw struct {
	PlaceID     string
	Name        string
	Address     string
	Lat         *float64
	Lng         *float64
	Phone       string
	Website     string
	Rating      *float64
	ReviewCount *int
	// PriceLevel is the provider's 0-4 scale, -1 when not reported.
	PriceLevel int
	// OpeningHours maps canonical weekday names to display ranges.
	OpeningHours map[string]string
	Tags         []string
	Description  string
}

// ScrapedRaw is whatever the extraction rules pulled out of one page.
// Scraped pages are noisy; most fields are frequently empty.
type ScrapedRaw struct {
	Name           string
	Address        string
	Phone          string
	Website        string
	RatingText     string
	PriceText      string
	ReviewSnippets []string
}

// SocialRaw is a best-effort mention from a social feed.
type SocialRaw struct {
	ProposedName string
	PostText     string
	Author       string
	Lat          *float64
	Lng          *float64
	Hashtags     []string
}

// Adapter is the per-source discovery contract. Discover fails soft
// from the pipeline's point of view: the orchestrator catches and logs
// adapter errors and treats the adapter as having returned nothing.
type Adapter interface {
	Name() string
	Kind() types.DiscoverySource
	Discover(ctx context.Context, query string) ([]RawCandidate, error)
}
