package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// HTTPClientConfig configures the outbound HTTP clients below.
type HTTPClientConfig struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	RateLimit rate.Limit
	UserAgent string
}

func (c HTTPClientConfig) withDefaults() HTTPClientConfig {
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	if c.RateLimit == 0 {
		c.RateLimit = rate.Every(time.Second)
	}
	if c.UserAgent == "" {
		c.UserAgent = "discoveryserver/1.0"
	}
	return c
}

// HTTPPlaceProvider implements PlaceProvider against a JSON places API
// with /search and /details endpoints.
type HTTPPlaceProvider struct {
	config     HTTPClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewHTTPPlaceProvider builds the provider. BaseURL is required.
func NewHTTPPlaceProvider(config HTTPClientConfig) *HTTPPlaceProvider {
	config = config.withDefaults()
	return &HTTPPlaceProvider{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(config.RateLimit, 1),
	}
}

type placeSearchResponse struct {
	Results []struct {
		PlaceID string   `json:"place_id"`
		Name    string   `json:"name"`
		Address string   `json:"formatted_address"`
		Lat     *float64 `json:"lat"`
		Lng     *float64 `json:"lng"`
	} `json:"results"`
}

func (p *HTTPPlaceProvider) Search(ctx context.Context, query string) ([]PlaceSummary, error) {
	params := url.Values{}
	params.Add("query", query)

	var response placeSearchResponse
	if err := p.getJSON(ctx, "/search", params, &response); err != nil {
		return nil, fmt.Errorf("place search %q: %w", query, err)
	}

	summaries := make([]PlaceSummary, 0, len(response.Results))
	for _, r := range response.Results {
		summaries = append(summaries, PlaceSummary{
			PlaceID: r.PlaceID,
			Name:    r.Name,
			Address: r.Address,
			Lat:     r.Lat,
			Lng:     r.Lng,
		})
	}
	return summaries, nil
}

type placeDetailsResponse struct {
	Phone        string         `json:"phone"`
	Website      string         `json:"website"`
	Rating       *float64       `json:"rating"`
	ReviewCount  *int           `json:"review_count"`
	PriceLevel   *int           `json:"price_level"`
	OpeningHours map[int]string `json:"opening_hours"`
	Types        []string       `json:"types"`
	Description  string         `json:"description"`
}

func (p *HTTPPlaceProvider) Details(ctx context.Context, placeID string) (*PlaceDetails, error) {
	params := url.Values{}
	params.Add("place_id", placeID)

	var response placeDetailsResponse
	if err := p.getJSON(ctx, "/details", params, &response); err != nil {
		return nil, fmt.Errorf("place details %q: %w", placeID, err)
	}

	priceLevel := -1
	if response.PriceLevel != nil {
		priceLevel = *response.PriceLevel
	}
	return &PlaceDetails{
		Phone:        response.Phone,
		Website:      response.Website,
		Rating:       response.Rating,
		ReviewCount:  response.ReviewCount,
		PriceLevel:   priceLevel,
		OpeningHours: response.OpeningHours,
		Types:        response.Types,
		Description:  response.Description,
	}, nil
}

func (p *HTTPPlaceProvider) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	if p.config.APIKey != "" {
		params.Add("key", p.config.APIKey)
	}
	endpoint := p.config.BaseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", p.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// HTTPPageFetcher implements PageFetcher with a plain HTTP client.
// Pages needing JavaScript rendering are out of its reach; targets are
// chosen accordingly.
type HTTPPageFetcher struct {
	config     HTTPClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewHTTPPageFetcher builds the fetcher.
func NewHTTPPageFetcher(config HTTPClientConfig) *HTTPPageFetcher {
	config = config.withDefaults()
	return &HTTPPageFetcher{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(config.RateLimit, 1),
	}
}

// maxPageBytes caps how much of a listing page gets read.
const maxPageBytes = 4 << 20

func (f *HTTPPageFetcher) FetchPage(ctx context.Context, pageURL string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: unexpected status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", pageURL, err)
	}
	return string(body), nil
}

// HTTPFeedSearcher implements FeedSearcher against a JSON feed search
// endpoint.
type HTTPFeedSearcher struct {
	config     HTTPClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewHTTPFeedSearcher builds the searcher.
func NewHTTPFeedSearcher(config HTTPClientConfig) *HTTPFeedSearcher {
	config = config.withDefaults()
	return &HTTPFeedSearcher{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(config.RateLimit, 1),
	}
}

type feedSearchResponse struct {
	Posts []struct {
		ID       string   `json:"id"`
		Text     string   `json:"text"`
		Author   string   `json:"author"`
		URL      string   `json:"url"`
		Hashtags []string `json:"hashtags"`
		Lat      *float64 `json:"lat"`
		Lng      *float64 `json:"lng"`
	} `json:"posts"`
}

func (s *HTTPFeedSearcher) SearchFeed(ctx context.Context, term string) ([]FeedPost, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	params := url.Values{}
	params.Add("q", term)
	if s.config.APIKey != "" {
		params.Add("key", s.config.APIKey)
	}
	endpoint := s.config.BaseURL + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed search %q: %w", term, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed search %q: unexpected status %d", term, resp.StatusCode)
	}

	var response feedSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode feed response: %w", err)
	}

	posts := make([]FeedPost, 0, len(response.Posts))
	for _, p := range response.Posts {
		posts = append(posts, FeedPost{
			ID:       p.ID,
			Text:     p.Text,
			Author:   p.Author,
			URL:      p.URL,
			Hashtags: p.Hashtags,
			Lat:      p.Lat,
			Lng:      p.Lng,
		})
	}
	return posts, nil
}
