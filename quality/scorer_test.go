package quality

import (
	"math"
	"testing"

	"discoveryserver/types"
)

func testScorer() *Scorer {
	return NewScorer(ScorerConfig{
		RegionKeywords: []string{"lagos", "ikeja", "lekki"},
		DomainKeywords: []string{"jollof", "amala", "suya", "grill", "nigerian"},
	})
}

func TestScore_ShortNameNoAddress(t *testing.T) {
	result := testScorer().Score(types.LocationCandidate{Name: "XY"})

	// -0.4 name, -0.3 address, -0.3 off-domain.
	if result.Confidence > 0.3+1e-9 {
		t.Errorf("confidence = %f, want <= 0.3", result.Confidence)
	}
	if result.IsValid {
		t.Error("two-char name without address must be invalid")
	}
	if !hasIssue(result, "invalid or missing name") || !hasIssue(result, "missing address") {
		t.Errorf("issues = %v", result.Issues)
	}
}

func TestScore_EmptyNameAndAddressNeverValid(t *testing.T) {
	result := testScorer().Score(types.LocationCandidate{})
	if result.IsValid {
		t.Error("empty name and address must always be invalid")
	}
}

func TestScore_CleanAPICandidate(t *testing.T) {
	rating := 4.6
	result := testScorer().Score(types.LocationCandidate{
		Name:            "Mama Cass Kitchen",
		Address:         "12 Ogba Road, Lagos",
		Description:     "Famous for party jollof rice",
		Rating:          &rating,
		DiscoverySource: types.SourceAPI,
	})

	// No penalties, +0.1 rating, +0.1 api source, clamped to 1.0.
	if result.Confidence != 1.0 {
		t.Errorf("confidence = %f, want clamped 1.0", result.Confidence)
	}
	if !result.IsValid || len(result.Issues) != 0 {
		t.Errorf("result = %+v, want valid with no issues", result)
	}
}

func TestScore_OutsideRegion(t *testing.T) {
	result := testScorer().Score(types.LocationCandidate{
		Name:        "Suya Express",
		Address:     "Baker Street, London",
		Description: "suya",
	})
	if !hasIssue(result, "may be outside target region") {
		t.Errorf("issues = %v", result.Issues)
	}
	if math.Abs(result.Confidence-0.8) > 1e-9 {
		t.Errorf("confidence = %f, want 0.8", result.Confidence)
	}
}

func TestScore_OffDomainPenaltyByStrictness(t *testing.T) {
	candidate := types.LocationCandidate{
		Name:    "Giovanni Trattoria",
		Address: "Admiralty Way, Lekki",
	}

	relaxed := testScorer().Score(candidate)
	if math.Abs(relaxed.Confidence-0.7) > 1e-9 {
		t.Errorf("relaxed confidence = %f, want 0.7", relaxed.Confidence)
	}

	strict := NewScorer(ScorerConfig{
		RegionKeywords: []string{"lekki"},
		DomainKeywords: []string{"jollof"},
		Strict:         true,
	}).Score(candidate)
	if math.Abs(strict.Confidence-0.6) > 1e-9 {
		t.Errorf("strict confidence = %f, want 0.6", strict.Confidence)
	}
	if strict.IsValid {
		t.Error("0.6 is not above the 0.6 threshold")
	}
}

func TestScore_StemmedKeywordMatch(t *testing.T) {
	// "grilled" must match the keyword "grill" via stemming.
	result := testScorer().Score(types.LocationCandidate{
		Name:        "Fire and Smoke",
		Address:     "Ikeja GRA",
		Description: "Perfectly grilled catfish every evening",
	})
	if hasIssue(result, "may not match target cuisine") {
		t.Errorf("stemmed match failed, issues = %v", result.Issues)
	}
}

func TestScore_UnknownRatingNotCoerced(t *testing.T) {
	zero := 0.0
	withZero := testScorer().Score(types.LocationCandidate{
		Name: "Amala Hut", Address: "Lagos", Description: "amala", Rating: &zero,
	})
	withNil := testScorer().Score(types.LocationCandidate{
		Name: "Amala Hut", Address: "Lagos", Description: "amala", Rating: nil,
	})
	if withZero.Confidence != withNil.Confidence {
		t.Errorf("nil and 0.0 rating both earn no bonus: %f vs %f", withNil.Confidence, withZero.Confidence)
	}
}

func TestScore_ConfidenceClampedToZero(t *testing.T) {
	result := NewScorer(ScorerConfig{
		RegionKeywords: []string{"lagos"},
		DomainKeywords: []string{"jollof"},
		Strict:         true,
	}).Score(types.LocationCandidate{Name: "X"})
	if result.Confidence < 0 {
		t.Errorf("confidence = %f, must be clamped to [0,1]", result.Confidence)
	}
}

func hasIssue(result types.ValidationResult, issue string) bool {
	for _, i := range result.Issues {
		if i == issue {
			return true
		}
	}
	return false
}
