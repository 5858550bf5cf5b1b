package normalization

import (
	"testing"

	"discoveryserver/sources"
	"discoveryserver/types"
)

func TestNormalize_API(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{})
	lat, lng := 6.6018, 3.3515
	rating := 4.2
	reviews := 87

	candidate, err := n.Normalize(sources.RawCandidate{
		Kind:      types.SourceAPI,
		SourceURL: "https://places.example/place/p1",
		API: &sources.APIRaw{
			PlaceID:     "p1",
			Name:        "  Chicken Republic  ",
			Address:     "Allen Avenue, Ikeja, Lagos",
			Lat:         &lat,
			Lng:         &lng,
			Phone:       "+234 800 000 0000",
			Rating:      &rating,
			ReviewCount: &reviews,
			PriceLevel:  1,
			Tags:        []string{"Fast_Food", " chicken "},
		},
	})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if candidate.ID == "" {
		t.Error("id must be assigned at normalization")
	}
	if candidate.Name != "Chicken Republic" {
		t.Errorf("name = %q", candidate.Name)
	}
	if candidate.Coordinates == nil || candidate.Coordinates.Lat != lat {
		t.Errorf("coordinates = %+v", candidate.Coordinates)
	}
	if candidate.Rating == nil || *candidate.Rating != 4.2 {
		t.Errorf("rating = %v", candidate.Rating)
	}
	if len(candidate.Cuisine) != 2 || candidate.Cuisine[0] != "fast_food" {
		t.Errorf("cuisine = %v", candidate.Cuisine)
	}
	if candidate.ServiceType != "both" {
		t.Errorf("service type default = %q", candidate.ServiceType)
	}
	if candidate.PriceInfo.Currency != "NGN" || candidate.PriceInfo.Display == "" {
		t.Errorf("price info = %+v, want mapped NGN band", candidate.PriceInfo)
	}
	if candidate.DiscoverySource != types.SourceAPI || candidate.SourceURL == "" {
		t.Errorf("provenance missing: %q %q", candidate.DiscoverySource, candidate.SourceURL)
	}
}

func TestNormalize_ScrapedDefaults(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{})

	candidate, err := n.Normalize(sources.RawCandidate{
		Kind:      types.SourceScraping,
		SourceURL: "https://eatdrink.example/lagos",
		Scraped: &sources.ScrapedRaw{
			Name:           "Mama Cass Kitchen",
			Address:        "12 Ogba Road, Lagos",
			RatingText:     "4.5 stars",
			PriceText:      "₦₦",
			ReviewSnippets: []string{"Best jollof in Ogba.", "Generous portions."},
		},
	})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	// No coordinates from the page: fall back to the region centroid.
	if candidate.Coordinates == nil {
		t.Fatal("coordinates must default to the region centroid")
	}
	if candidate.Coordinates.Lat != 6.5244 || candidate.Coordinates.Lng != 3.3792 {
		t.Errorf("centroid = %+v, want Lagos", candidate.Coordinates)
	}
	if candidate.Rating == nil || *candidate.Rating != 4.5 {
		t.Errorf("parsed rating = %v", candidate.Rating)
	}
	if candidate.PriceInfo.Display != "₦2,000–₦5,000" {
		t.Errorf("price display = %q, want symbol count mapped to band 1", candidate.PriceInfo.Display)
	}
	if len(candidate.Cuisine) != 1 || candidate.Cuisine[0] != "restaurant" {
		t.Errorf("cuisine default = %v", candidate.Cuisine)
	}
	if candidate.Description == "" {
		t.Error("review snippets should become the description")
	}
}

func TestNormalize_SocialBestEffort(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{})

	candidate, err := n.Normalize(sources.RawCandidate{
		Kind:      types.SourceSocial,
		SourceURL: "https://social.example/p1",
		Social: &sources.SocialRaw{
			ProposedName: "Ofada Boy",
			PostText:     "Just tried Ofada Boy restaurant in Surulere",
			Hashtags:     []string{"#LagosFood", "#ofada"},
		},
	})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if candidate.Address != "" {
		t.Errorf("social candidates have no address, got %q", candidate.Address)
	}
	if candidate.Rating != nil {
		t.Error("unknown rating must stay nil, not coerce to 0")
	}
	if len(candidate.Cuisine) != 2 || candidate.Cuisine[0] != "lagosfood" {
		t.Errorf("hashtag cuisine = %v", candidate.Cuisine)
	}
	if candidate.Coordinates == nil {
		t.Error("missing coordinates should default to the centroid")
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{})
	raw := sources.RawCandidate{
		Kind:    types.SourceScraping,
		Scraped: &sources.ScrapedRaw{Name: "Bukka Hut", Address: "Lekki, Lagos", PriceText: "₦₦₦"},
	}

	a, err := n.Normalize(raw)
	if err != nil {
		t.Fatal(err)
	}
	b, err := n.Normalize(raw)
	if err != nil {
		t.Fatal(err)
	}

	if a.ID == b.ID {
		t.Error("ids are generated, not stable across runs")
	}

	// Identical input, identical output modulo id and timestamp.
	if a.Name != b.Name || a.Address != b.Address ||
		a.PriceInfo.Display != b.PriceInfo.Display || a.PriceInfo.Currency != b.PriceInfo.Currency ||
		*a.PriceInfo.PriceMin != *b.PriceInfo.PriceMin ||
		*a.Coordinates != *b.Coordinates || a.ServiceType != b.ServiceType {
		t.Errorf("normalization not deterministic: %+v vs %+v", a, b)
	}
}

func TestNormalize_MalformedUnion(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{})
	if _, err := n.Normalize(sources.RawCandidate{Kind: types.SourceAPI}); err == nil {
		t.Error("tagged kind without payload must error")
	}
	if _, err := n.Normalize(sources.RawCandidate{Kind: "carrier_pigeon"}); err == nil {
		t.Error("unknown kind must error")
	}
}

func TestDetectRegion(t *testing.T) {
	tests := []struct {
		address  string
		expected string
	}{
		{"12 Ogba Road, Lagos", "nigeria"},
		{"Oxford Street, Osu, Accra", "ghana"},
		{"Westlands, Nairobi", "kenya"},
		{"742 Evergreen Terrace", "nigeria"}, // unknown falls back to deployment region
		{"", "nigeria"},
	}
	for _, tt := range tests {
		if got := DetectRegion(tt.address); got.Name != tt.expected {
			t.Errorf("DetectRegion(%q) = %q, want %q", tt.address, got.Name, tt.expected)
		}
	}
}

func TestPriceForLevel_OutOfRange(t *testing.T) {
	region := DetectRegion("Lagos")
	if info := region.PriceForLevel(-1); info.Display != "" || info.PriceMin != nil {
		t.Errorf("unreported level should yield empty PriceInfo, got %+v", info)
	}
}
