package quality

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball"

	"discoveryserver/types"
)

// Penalties and bonuses applied by the scorer. Flat and independent:
// several can stack on one candidate.
const (
	penaltyBadName         = 0.4
	penaltyNoAddress       = 0.3
	penaltyOutsideRegion   = 0.2
	penaltyOffDomain       = 0.3
	penaltyOffDomainStrict = 0.4
	bonusHighRating        = 0.1
	bonusAPISource         = 0.1
)

// ScorerConfig configures the validation scorer for one deployment.
type ScorerConfig struct {
	// RegionKeywords make the address relevance check; empty disables it.
	RegionKeywords []string `json:"region_keywords"`
	// DomainKeywords are cuisine/dish/food-culture terms expected in
	// the name or description; empty disables the check.
	DomainKeywords []string `json:"domain_keywords"`
	// Strict raises the off-domain penalty from 0.3 to 0.4.
	Strict bool `json:"strict"`
	// ConfidenceThreshold gates isValid; defaults to 0.6.
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	// MaxIssues is the issue count at which a candidate is invalid
	// regardless of confidence; defaults to 3.
	MaxIssues int `json:"max_issues"`
}

// Scorer computes an explainable confidence score per candidate. Flat
// rules, no learned model: moderators can see exactly why a candidate
// was accepted or rejected.
type Scorer struct {
	config        ScorerConfig
	regionLower   []string
	domainStemmed [][]string
}

// NewScorer creates a scorer, pre-stemming the configured keyword lists.
func NewScorer(config ScorerConfig) *Scorer {
	if config.ConfidenceThreshold <= 0 {
		config.ConfidenceThreshold = 0.6
	}
	if config.MaxIssues <= 0 {
		config.MaxIssues = 3
	}

	s := &Scorer{config: config}
	for _, kw := range config.RegionKeywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			s.regionLower = append(s.regionLower, kw)
		}
	}
	for _, kw := range config.DomainKeywords {
		if stems := stemTokens(kw); len(stems) > 0 {
			s.domainStemmed = append(s.domainStemmed, stems)
		}
	}
	return s
}

// Score applies the rule list to one candidate. Confidence starts at
// 1.0, each failed heuristic subtracts its flat penalty, bonuses add,
// and the result is clamped to [0,1].
func (s *Scorer) Score(candidate types.LocationCandidate) types.ValidationResult {
	confidence := 1.0
	issues := []string{}

	name := strings.TrimSpace(candidate.Name)
	if len([]rune(name)) < 3 {
		confidence -= penaltyBadName
		issues = append(issues, "invalid or missing name")
	}

	address := strings.TrimSpace(candidate.Address)
	if address == "" {
		confidence -= penaltyNoAddress
		issues = append(issues, "missing address")
	} else if len(s.regionLower) > 0 && !containsAny(strings.ToLower(address), s.regionLower) {
		confidence -= penaltyOutsideRegion
		issues = append(issues, "may be outside target region")
	}

	if len(s.domainStemmed) > 0 && !s.matchesDomain(candidate) {
		penalty := penaltyOffDomain
		if s.config.Strict {
			penalty = penaltyOffDomainStrict
		}
		confidence -= penalty
		issues = append(issues, "may not match target cuisine")
	}

	if candidate.Rating != nil && *candidate.Rating > 4.0 {
		confidence += bonusHighRating
	}
	if candidate.DiscoverySource == types.SourceAPI {
		confidence += bonusAPISource
	}

	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return types.ValidationResult{
		IsValid:    confidence > s.config.ConfidenceThreshold && len(issues) < s.config.MaxIssues,
		Confidence: confidence,
		Issues:     issues,
	}
}

// Confidence returns just the scalar score, for callers that only need
// the tie-break value.
func (s *Scorer) Confidence(candidate types.LocationCandidate) float64 {
	return s.Score(candidate).Confidence
}

// matchesDomain checks the name, description and cuisine tags against
// the stemmed domain keywords. A multi-word keyword matches when all of
// its stems appear.
func (s *Scorer) matchesDomain(candidate types.LocationCandidate) bool {
	text := candidate.Name + " " + candidate.Description + " " + strings.Join(candidate.Cuisine, " ")
	stems := make(map[string]bool)
	for _, stem := range stemTokens(text) {
		stems[stem] = true
	}

	for _, keyword := range s.domainStemmed {
		matched := true
		for _, stem := range keyword {
			if !stems[stem] {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

// stemTokens lowercases, tokenizes and snowball-stems a text so that
// "grilled" matches the keyword "grill".
func stemTokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	stems := make([]string, 0, len(fields))
	for _, field := range fields {
		stemmed, err := snowball.Stem(field, "english", true)
		if err != nil || stemmed == "" {
			stemmed = field
		}
		stems = append(stems, stemmed)
	}
	return stems
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}
