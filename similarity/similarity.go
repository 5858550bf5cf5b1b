package similarity

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"discoveryserver/types"
)

const earthRadiusMeters = 6371000.0

// JaroSimilarity computes the Jaro similarity between two strings.
func JaroSimilarity(s1, s2 string) float64 {
	s1 = strings.ToLower(strings.TrimSpace(s1))
	s2 = strings.ToLower(strings.TrimSpace(s2))

	if s1 == s2 {
		return 1.0
	}

	r1, r2 := []rune(s1), []rune(s2)
	len1, len2 := len(r1), len(r2)

	if len1 == 0 || len2 == 0 {
		return 0.0
	}

	matchWindow := max(len1, len2)/2 - 1
	if matchWindow < 0 {
		matchWindow = 0
	}

	matches1 := make([]bool, len1)
	matches2 := make([]bool, len2)
	matches := 0

	for i := 0; i < len1; i++ {
		start := max(0, i-matchWindow)
		end := min(len2, i+matchWindow+1)

		for j := start; j < end; j++ {
			if matches2[j] || r1[i] != r2[j] {
				continue
			}
			matches1[i] = true
			matches2[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0.0
	}

	transpositions := 0
	k := 0
	for i := 0; i < len1; i++ {
		if !matches1[i] {
			continue
		}
		for !matches2[k] {
			k++
		}
		if r1[i] != r2[k] {
			transpositions++
		}
		k++
	}

	return (float64(matches)/float64(len1) +
		float64(matches)/float64(len2) +
		(float64(matches)-float64(transpositions)/2.0)/float64(matches)) / 3.0
}

// StringSimilarity computes Jaro-Winkler similarity: the Jaro score
// boosted for a shared prefix of up to 4 characters once the base
// score exceeds 0.7. Rewards common-prefix name variants
// ("Mama Cass" vs "Mama Cass Kitchen") better than pure edit distance.
// Empty-string convention: both empty yields 1.0, exactly one empty
// yields 0.0, so missing fields never count as a vacuous match.
func StringSimilarity(s1, s2 string) float64 {
	s1 = strings.TrimSpace(s1)
	s2 = strings.TrimSpace(s2)
	if s1 == "" && s2 == "" {
		return 1.0
	}
	if s1 == "" || s2 == "" {
		return 0.0
	}

	jaro := JaroSimilarity(s1, s2)
	if jaro < 0.7 {
		return jaro
	}

	// Common prefix length, capped at 4
	prefixLen := 0
	r1, r2 := []rune(strings.ToLower(s1)), []rune(strings.ToLower(s2))
	minLen := min(len(r1), len(r2))
	for i := 0; i < minLen && i < 4; i++ {
		if r1[i] != r2[i] {
			break
		}
		prefixLen++
	}

	winkler := jaro + float64(prefixLen)*0.1*(1.0-jaro)
	return math.Min(winkler, 1.0)
}

// LevenshteinDistance computes the edit distance between two strings.
// Single-column implementation, rune-safe.
func LevenshteinDistance(s1, s2 string) int {
	r1 := []rune(s1)
	r2 := []rune(s2)
	len1 := len(r1)
	len2 := len(r2)

	if len1 == 0 {
		return len2
	}
	if len2 == 0 {
		return len1
	}

	column := make([]int, len1+1)
	for i := 1; i <= len1; i++ {
		column[i] = i
	}

	for x := 1; x <= len2; x++ {
		column[0] = x
		lastDiag := x - 1
		for y := 1; y <= len1; y++ {
			oldDiag := column[y]
			cost := 0
			if r1[y-1] != r2[x-1] {
				cost = 1
			}
			column[y] = min3(column[y]+1, column[y-1]+1, lastDiag+cost)
			lastDiag = oldDiag
		}
	}

	return column[len1]
}

// EditDistanceSimilarity computes (maxLen - levenshtein) / maxLen.
// Used for address matching where the Winkler prefix bias is
// undesirable. Same empty-string convention as StringSimilarity.
func EditDistanceSimilarity(s1, s2 string) float64 {
	if s1 == "" && s2 == "" {
		return 1.0
	}
	if s1 == "" || s2 == "" {
		return 0.0
	}

	distance := LevenshteinDistance(s1, s2)
	maxLen := len([]rune(s1))
	if l := len([]rune(s2)); l > maxLen {
		maxLen = l
	}

	return 1.0 - float64(distance)/float64(maxLen)
}

// roadTokens are road-type words stripped during address normalization,
// including the usual abbreviations.
var roadTokens = map[string]bool{
	"street": true, "st": true,
	"road": true, "rd": true,
	"avenue": true, "ave": true,
	"lane": true, "ln": true,
	"drive": true, "dr": true,
	"close": true, "crescent": true, "cres": true,
	"boulevard": true, "blvd": true,
	"way": true, "expressway": true,
}

// NormalizeAddress lowercases, strips punctuation and road-type tokens
// and collapses whitespace. Idempotent; both inputs to any address
// comparison must go through it first.
func NormalizeAddress(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	kept := fields[:0]
	for _, f := range fields {
		if roadTokens[f] {
			continue
		}
		kept = append(kept, f)
	}

	return strings.Join(kept, " ")
}

// NormalizePhone strips everything that is not a digit.
func NormalizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldAccents removes diacritical marks ("Café" -> "Cafe") so name
// comparison does not penalize accented spellings.
func FoldAccents(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		return s
	}
	return folded
}

// HaversineMeters computes the great-circle distance between two points.
func HaversineMeters(p1, p2 types.Coordinates) float64 {
	lat1 := p1.Lat * math.Pi / 180
	lat2 := p2.Lat * math.Pi / 180
	dLat := (p2.Lat - p1.Lat) * math.Pi / 180
	dLng := (p2.Lng - p1.Lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

func min3(a, b, c int) int {
	if a < b {
		if a < c {
			return a
		}
		return c
	}
	if b < c {
		return b
	}
	return c
}
