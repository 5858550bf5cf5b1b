package similarity

import (
	"math"
	"testing"

	"discoveryserver/types"
)

func TestStringSimilarity_Identity(t *testing.T) {
	inputs := []string{"Mama Cass", "Ofada Boy", "a", "Café Neo", "12 Ogba Road"}
	for _, s := range inputs {
		if got := StringSimilarity(s, s); got != 1.0 {
			t.Errorf("StringSimilarity(%q, %q) = %f, want 1.0", s, s, got)
		}
	}
}

func TestStringSimilarity_Symmetry(t *testing.T) {
	pairs := [][2]string{
		{"Mama Cass", "Mama Cass Kitchen"},
		{"Ofada Boy", "Ofada Boi"},
		{"The Place", "ThePlace Lekki"},
		{"", "Bukka Hut"},
	}
	for _, p := range pairs {
		ab := StringSimilarity(p[0], p[1])
		ba := StringSimilarity(p[1], p[0])
		if math.Abs(ab-ba) > 1e-12 {
			t.Errorf("StringSimilarity not symmetric for %q/%q: %f vs %f", p[0], p[1], ab, ba)
		}
	}
}

func TestStringSimilarity_EmptyConvention(t *testing.T) {
	if got := StringSimilarity("", ""); got != 1.0 {
		t.Errorf("both empty = %f, want 1.0", got)
	}
	if got := StringSimilarity("", "Mama Cass"); got != 0.0 {
		t.Errorf("one empty = %f, want 0.0", got)
	}
	if got := StringSimilarity("Mama Cass", ""); got != 0.0 {
		t.Errorf("one empty = %f, want 0.0", got)
	}
}

func TestStringSimilarity_PrefixBoost(t *testing.T) {
	// Shared prefix variants should score higher under Jaro-Winkler
	// than under plain edit distance similarity.
	jw := StringSimilarity("Mama Cass", "Mama Cass Kitchen")
	ed := EditDistanceSimilarity("mama cass", "mama cass kitchen")
	if jw <= ed {
		t.Errorf("expected Jaro-Winkler (%f) > edit distance similarity (%f) for prefix variant", jw, ed)
	}
	if jw < 0.9 {
		t.Errorf("expected high similarity for prefix variant, got %f", jw)
	}
}

func TestEditDistanceSimilarity(t *testing.T) {
	tests := []struct {
		s1, s2   string
		expected float64
	}{
		{"", "", 1.0},
		{"abc", "", 0.0},
		{"", "abc", 0.0},
		{"kitten", "kitten", 1.0},
		{"kitten", "sitten", 1.0 - 1.0/6.0},
	}
	for _, tt := range tests {
		if got := EditDistanceSimilarity(tt.s1, tt.s2); math.Abs(got-tt.expected) > 1e-12 {
			t.Errorf("EditDistanceSimilarity(%q, %q) = %f, want %f", tt.s1, tt.s2, got, tt.expected)
		}
	}
}

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		s1, s2   string
		expected int
	}{
		{"kitten", "sitting", 3},
		{"", "abc", 3},
		{"abc", "", 3},
		{"same", "same", 0},
		{"суя", "суп", 1}, // rune-safe, not byte-safe
	}
	for _, tt := range tests {
		if got := LevenshteinDistance(tt.s1, tt.s2); got != tt.expected {
			t.Errorf("LevenshteinDistance(%q, %q) = %d, want %d", tt.s1, tt.s2, got, tt.expected)
		}
	}
}

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"12 Ogba Road, Lagos", "12 ogba lagos"},
		{"12 Ogba Rd, Lagos", "12 ogba lagos"},
		{"45 Admiralty Way, Lekki Phase 1", "45 admiralty lekki phase 1"},
		{"  23   Allen Avenue ", "23 allen"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeAddress(tt.input); got != tt.expected {
			t.Errorf("NormalizeAddress(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestNormalizeAddress_Idempotent(t *testing.T) {
	inputs := []string{
		"12 Ogba Road, Lagos",
		"45 Admiralty Way, Lekki Phase 1",
		"Plot 7, Adeola Odeku Street, V.I.",
	}
	for _, in := range inputs {
		once := NormalizeAddress(in)
		twice := NormalizeAddress(once)
		if once != twice {
			t.Errorf("NormalizeAddress not idempotent for %q: %q vs %q", in, once, twice)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"+234 803 456 7890", "2348034567890"},
		{"(0803) 456-7890", "08034567890"},
		{"no digits", ""},
	}
	for _, tt := range tests {
		if got := NormalizePhone(tt.input); got != tt.expected {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestFoldAccents(t *testing.T) {
	if got := FoldAccents("Café Néo"); got != "Cafe Neo" {
		t.Errorf("FoldAccents = %q, want %q", got, "Cafe Neo")
	}
}

func TestHaversineMeters(t *testing.T) {
	ikeja := types.Coordinates{Lat: 6.6018, Lng: 3.3515}
	lekki := types.Coordinates{Lat: 6.4478, Lng: 3.4723}

	if got := HaversineMeters(ikeja, ikeja); got != 0 {
		t.Errorf("distance to self = %f, want 0", got)
	}

	d := HaversineMeters(ikeja, lekki)
	// Ikeja to Lekki is roughly 21-22 km.
	if d < 20000 || d > 24000 {
		t.Errorf("Ikeja-Lekki distance = %f m, want ~21500", d)
	}

	if ab, ba := HaversineMeters(ikeja, lekki), HaversineMeters(lekki, ikeja); ab != ba {
		t.Errorf("haversine not symmetric: %f vs %f", ab, ba)
	}
}
