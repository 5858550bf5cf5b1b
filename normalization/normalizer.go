package normalization

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"discoveryserver/sources"
	"discoveryserver/types"
)

// NormalizerConfig holds the documented defaults substituted for
// missing fields.
type NormalizerConfig struct {
	// DefaultCuisine is the single tag assigned when a source reports
	// no cuisine at all.
	DefaultCuisine string `json:"default_cuisine"`
	// DefaultServiceType is used when the source does not say whether
	// a place does dine-in, delivery or both.
	DefaultServiceType string `json:"default_service_type"`
}

// DefaultNormalizerConfig returns the production defaults.
func DefaultNormalizerConfig() NormalizerConfig {
	return NormalizerConfig{
		DefaultCuisine:     "restaurant",
		DefaultServiceType: "both",
	}
}

// Normalizer maps raw per-source records into the canonical
// LocationCandidate schema. The transform is pure: identical input
// yields identical output modulo the generated id and timestamp.
type Normalizer struct {
	config NormalizerConfig
}

// NewNormalizer creates a normalizer, filling zero-value config fields
// with the documented defaults.
func NewNormalizer(config NormalizerConfig) *Normalizer {
	defaults := DefaultNormalizerConfig()
	if config.DefaultCuisine == "" {
		config.DefaultCuisine = defaults.DefaultCuisine
	}
	if config.DefaultServiceType == "" {
		config.DefaultServiceType = defaults.DefaultServiceType
	}
	return &Normalizer{config: config}
}

// Normalize converts one raw candidate. It errors only on a malformed
// union (no payload for the tagged kind); missing fields are defaulted,
// never rejected.
func (n *Normalizer) Normalize(raw sources.RawCandidate) (types.LocationCandidate, error) {
	var candidate types.LocationCandidate

	switch raw.Kind {
	case types.SourceAPI:
		if raw.API == nil {
			return candidate, fmt.Errorf("api candidate without payload")
		}
		candidate = n.fromAPI(raw.API)
	case types.SourceScraping:
		if raw.Scraped == nil {
			return candidate, fmt.Errorf("scraped candidate without payload")
		}
		candidate = n.fromScraped(raw.Scraped)
	case types.SourceSocial:
		if raw.Social == nil {
			return candidate, fmt.Errorf("social candidate without payload")
		}
		candidate = n.fromSocial(raw.Social)
	default:
		return candidate, fmt.Errorf("unknown discovery source %q", raw.Kind)
	}

	candidate.ID = uuid.NewString()
	candidate.DiscoverySource = raw.Kind
	candidate.SourceURL = raw.SourceURL
	candidate.DiscoveredAt = time.Now().UTC()

	n.applyDefaults(&candidate)
	return candidate, nil
}

func (n *Normalizer) fromAPI(raw *sources.APIRaw) types.LocationCandidate {
	candidate := types.LocationCandidate{
		Name:        strings.TrimSpace(raw.Name),
		Address:     strings.TrimSpace(raw.Address),
		Phone:       strings.TrimSpace(raw.Phone),
		Website:     strings.TrimSpace(raw.Website),
		Description: strings.TrimSpace(raw.Description),
		Cuisine:     cleanTags(raw.Tags),
		Rating:      raw.Rating,
		ReviewCount: raw.ReviewCount,
	}

	if raw.Lat != nil && raw.Lng != nil {
		candidate.Coordinates = &types.Coordinates{Lat: *raw.Lat, Lng: *raw.Lng}
	}

	region := DetectRegion(candidate.Address)
	candidate.PriceInfo = region.PriceForLevel(raw.PriceLevel)

	return candidate
}

func (n *Normalizer) fromScraped(raw *sources.ScrapedRaw) types.LocationCandidate {
	candidate := types.LocationCandidate{
		Name:    strings.TrimSpace(raw.Name),
		Address: strings.TrimSpace(raw.Address),
		Phone:   strings.TrimSpace(raw.Phone),
		Website: strings.TrimSpace(raw.Website),
		Rating:  parseRatingText(raw.RatingText),
	}

	if len(raw.ReviewSnippets) > 0 {
		candidate.Description = strings.Join(raw.ReviewSnippets, " · ")
	}

	if price := strings.TrimSpace(raw.PriceText); price != "" {
		region := DetectRegion(candidate.Address)
		if level := priceSymbolLevel(price); level >= 0 {
			candidate.PriceInfo = region.PriceForLevel(level)
		} else {
			// Free text we cannot map stays display-only.
			candidate.PriceInfo = types.PriceInfo{Display: price, Currency: region.Currency}
		}
	}

	return candidate
}

func (n *Normalizer) fromSocial(raw *sources.SocialRaw) types.LocationCandidate {
	candidate := types.LocationCandidate{
		Name:        strings.TrimSpace(raw.ProposedName),
		Description: strings.TrimSpace(raw.PostText),
	}

	if raw.Lat != nil && raw.Lng != nil {
		candidate.Coordinates = &types.Coordinates{Lat: *raw.Lat, Lng: *raw.Lng}
	}

	// Hashtags double as cuisine hints: "#amala" -> "amala".
	for _, tag := range raw.Hashtags {
		tag = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(tag)), "#")
		if tag != "" {
			candidate.Cuisine = append(candidate.Cuisine, tag)
		}
	}

	return candidate
}

// applyDefaults substitutes the documented defaults for anything the
// source left unset.
func (n *Normalizer) applyDefaults(candidate *types.LocationCandidate) {
	if candidate.Coordinates == nil {
		region := DetectRegion(candidate.Address)
		centroid := region.Centroid
		candidate.Coordinates = &centroid
	}

	if len(candidate.Cuisine) == 0 {
		candidate.Cuisine = []string{n.config.DefaultCuisine}
	}

	if candidate.ServiceType == "" {
		candidate.ServiceType = n.config.DefaultServiceType
	}
}

var ratingPattern = regexp.MustCompile(`(\d+(?:[.,]\d+)?)`)

// parseRatingText pulls a numeric rating out of scraped text like
// "4.5", "4,5 stars" or "Rated 4.5/5". Returns nil when there is none
// or it is outside a 0-5 scale.
func parseRatingText(text string) *float64 {
	match := ratingPattern.FindString(text)
	if match == "" {
		return nil
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", "."), 64)
	if err != nil || value < 0 || value > 5 {
		return nil
	}
	return &value
}

// priceSymbolLevel maps repeated currency glyphs ("₦₦₦", "$$") to a
// 0-4 price level; -1 when the text is not symbol shorthand.
func priceSymbolLevel(text string) int {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return -1
	}

	first := runes[0]
	switch first {
	case '₦', '$', '€', '£', '₵':
	default:
		return -1
	}

	for _, r := range runes {
		if r != first {
			return -1
		}
	}

	level := len(runes) - 1
	if level > 4 {
		level = 4
	}
	return level
}

func cleanTags(tags []string) []string {
	var cleaned []string
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			cleaned = append(cleaned, tag)
		}
	}
	return cleaned
}
