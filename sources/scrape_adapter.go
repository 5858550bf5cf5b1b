package sources

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"discoveryserver/types"
	"discoveryserver/upstream"
)

// PageFetcher retrieves one page's rendered HTML. Implementations range
// from a plain HTTP client to a browser-automation driver; the adapter
// does not assume which.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (string, error)
}

// FieldRules holds the CSS selectors used to pull candidate fields out
// of one listing block. Empty selectors skip that field.
type FieldRules struct {
	Container     string `json:"container"`
	Name          string `json:"name"`
	Address       string `json:"address"`
	Phone         string `json:"phone"`
	Website       string `json:"website"`
	Rating        string `json:"rating"`
	Price         string `json:"price"`
	ReviewSnippet string `json:"review_snippet"`
}

// ScrapeTarget is one page to scrape with its extraction rules.
type ScrapeTarget struct {
	URL   string     `json:"url"`
	Rules FieldRules `json:"rules"`
}

// ScrapeAdapterConfig configures the scraping adapter.
type ScrapeAdapterConfig struct {
	Targets []ScrapeTarget `json:"targets"`
}

// ScrapeAdapter extracts candidates from listing pages. Scraping is
// inherently noisy: a record is kept only when a name was extracted,
// and downstream scoring expects a higher invalid share from this
// source than from the structured API.
type ScrapeAdapter struct {
	config    ScrapeAdapterConfig
	fetcher   PageFetcher
	coalescer *upstream.Coalescer
	logger    *slog.Logger
}

// NewScrapeAdapter creates the adapter.
func NewScrapeAdapter(config ScrapeAdapterConfig, fetcher PageFetcher, coalescer *upstream.Coalescer) *ScrapeAdapter {
	return &ScrapeAdapter{
		config:    config,
		fetcher:   fetcher,
		coalescer: coalescer,
		logger:    slog.Default().With("component", "scrape_adapter"),
	}
}

func (a *ScrapeAdapter) Name() string                { return "page_scraper" }
func (a *ScrapeAdapter) Kind() types.DiscoverySource { return types.SourceScraping }

// Discover fetches every configured target page (coalesced, so repeat
// runs inside the cache TTL reuse the page) and applies its extraction
// rules. A failed target is logged and skipped; the remaining targets
// still contribute.
func (a *ScrapeAdapter) Discover(ctx context.Context, query string) ([]RawCandidate, error) {
	if len(a.config.Targets) == 0 {
		return nil, nil
	}

	var candidates []RawCandidate
	var failures int

	for _, target := range a.config.Targets {
		raw, err := a.coalescer.Acquire(ctx, "page:"+target.URL, func(fetchCtx context.Context) (any, error) {
			return a.fetcher.FetchPage(fetchCtx, target.URL)
		})
		if err != nil {
			failures++
			a.logger.Warn("page fetch failed", "url", target.URL, "error", err)
			continue
		}

		html, ok := raw.(string)
		if !ok {
			failures++
			a.logger.Warn("unexpected cached page type", "url", target.URL, "type", fmt.Sprintf("%T", raw))
			continue
		}

		extracted, err := extractListings(html, target)
		if err != nil {
			failures++
			a.logger.Warn("page parse failed", "url", target.URL, "error", err)
			continue
		}

		candidates = append(candidates, extracted...)
	}

	if failures == len(a.config.Targets) {
		return nil, fmt.Errorf("all %d scrape targets failed", failures)
	}
	return candidates, nil
}

// extractListings applies one target's selector rules to its page.
func extractListings(html string, target ScrapeTarget) ([]RawCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", target.URL, err)
	}

	rules := target.Rules
	var candidates []RawCandidate

	doc.Find(rules.Container).Each(func(_ int, block *goquery.Selection) {
		name := selectText(block, rules.Name)
		if name == "" {
			// No name, no record. Everything else is optional.
			return
		}

		record := &ScrapedRaw{
			Name:       name,
			Address:    selectText(block, rules.Address),
			Phone:      selectText(block, rules.Phone),
			Website:    selectHref(block, rules.Website),
			RatingText: selectText(block, rules.Rating),
			PriceText:  selectText(block, rules.Price),
		}

		if rules.ReviewSnippet != "" {
			block.Find(rules.ReviewSnippet).Each(func(_ int, s *goquery.Selection) {
				if snippet := strings.TrimSpace(s.Text()); snippet != "" {
					record.ReviewSnippets = append(record.ReviewSnippets, snippet)
				}
			})
		}

		candidates = append(candidates, RawCandidate{
			Kind:      types.SourceScraping,
			SourceURL: target.URL,
			Scraped:   record,
		})
	})

	return candidates, nil
}

func selectText(block *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(block.Find(selector).First().Text())
}

func selectHref(block *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	sel := block.Find(selector).First()
	if href, exists := sel.Attr("href"); exists {
		return strings.TrimSpace(href)
	}
	return strings.TrimSpace(sel.Text())
}
