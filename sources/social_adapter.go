package sources

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"discoveryserver/types"
	"discoveryserver/upstream"
)

// FeedPost is one post returned by a social feed search.
type FeedPost struct {
	ID       string
	Text     string
	Author   string
	URL      string
	Hashtags []string
	Lat      *float64
	Lng      *float64
}

// FeedSearcher searches a social feed for hashtag or keyword matches.
type FeedSearcher interface {
	SearchFeed(ctx context.Context, term string) ([]FeedPost, error)
}

// SocialAdapterConfig configures the social-feed adapter.
type SocialAdapterConfig struct {
	// Terms are the hashtags/keywords searched per discovery query.
	Terms []string `json:"terms"`
}

// venueMention matches a capitalized multi-word phrase followed by a
// venue keyword, e.g. "Mama Cass Kitchen is my new favorite spot".
var venueMention = regexp.MustCompile(
	`([A-Z][\p{L}'&-]*(?:\s+[A-Z][\p{L}'&-]*){0,4})\s+(?:[a-z]+\s){0,4}?(?i:restaurant|spot|place|joint|buka|eatery|kitchen|grill)`)

// SocialAdapter proposes candidates from feed mentions. Names come from
// a lightweight pattern heuristic, coordinates are best effort; this is
// the least reliable source and the scorer treats it that way.
type SocialAdapter struct {
	config    SocialAdapterConfig
	searcher  FeedSearcher
	coalescer *upstream.Coalescer
	logger    *slog.Logger
}

// NewSocialAdapter creates the adapter.
func NewSocialAdapter(config SocialAdapterConfig, searcher FeedSearcher, coalescer *upstream.Coalescer) *SocialAdapter {
	return &SocialAdapter{
		config:    config,
		searcher:  searcher,
		coalescer: coalescer,
		logger:    slog.Default().With("component", "social_adapter"),
	}
}

func (a *SocialAdapter) Name() string                { return "social_feed" }
func (a *SocialAdapter) Kind() types.DiscoverySource { return types.SourceSocial }

// Discover searches the configured terms plus the run query and mines
// venue names out of matching posts.
func (a *SocialAdapter) Discover(ctx context.Context, query string) ([]RawCandidate, error) {
	terms := append([]string{}, a.config.Terms...)
	if query != "" {
		terms = append(terms, query)
	}
	if len(terms) == 0 {
		return nil, nil
	}

	var candidates []RawCandidate
	var failures int
	seen := make(map[string]bool)

	for _, term := range terms {
		raw, err := a.coalescer.Acquire(ctx, "feed:"+term, func(fetchCtx context.Context) (any, error) {
			return a.searcher.SearchFeed(fetchCtx, term)
		})
		if err != nil {
			failures++
			a.logger.Warn("feed search failed", "term", term, "error", err)
			continue
		}

		posts, ok := raw.([]FeedPost)
		if !ok {
			failures++
			continue
		}

		for _, post := range posts {
			name := ProposeVenueName(post.Text)
			if name == "" {
				continue
			}
			// One candidate per proposed name per run.
			dedupKey := strings.ToLower(name)
			if seen[dedupKey] {
				continue
			}
			seen[dedupKey] = true

			candidates = append(candidates, RawCandidate{
				Kind:      types.SourceSocial,
				SourceURL: post.URL,
				Social: &SocialRaw{
					ProposedName: name,
					PostText:     post.Text,
					Author:       post.Author,
					Lat:          post.Lat,
					Lng:          post.Lng,
					Hashtags:     post.Hashtags,
				},
			})
		}
	}

	if failures == len(terms) {
		return nil, fmt.Errorf("all %d feed searches failed", failures)
	}
	return candidates, nil
}

// ProposeVenueName extracts a venue name from free-form post text using
// the capitalized-phrase heuristic. Returns "" when nothing plausible
// matches.
func ProposeVenueName(text string) string {
	matches := venueMention.FindStringSubmatch(text)
	if len(matches) < 2 {
		return ""
	}

	name := strings.TrimSpace(matches[1])
	// Single capitalized words ("This spot...") are noise, require at
	// least two words or one long word.
	if !strings.Contains(name, " ") && len([]rune(name)) < 6 {
		return ""
	}
	return name
}
