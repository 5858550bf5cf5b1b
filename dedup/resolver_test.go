package dedup

import (
	"math/rand"
	"testing"

	"github.com/brianvoe/gofakeit/v6"

	"discoveryserver/types"
)

func candidate(id, name, address, phone string) types.LocationCandidate {
	return types.LocationCandidate{ID: id, Name: name, Address: address, Phone: phone}
}

func TestResolve_PhoneMatchIsConclusive(t *testing.T) {
	r := NewResolver(ResolverConfig{}, nil)

	existing := []types.LocationCandidate{
		candidate("ex-1", "Mama Cass", "12 Ogba Rd, Lagos", "+2348034567890"),
	}
	batch := []types.LocationCandidate{
		candidate("c-1", "Mama Cass Kitchen", "12 Ogba Road, Lagos", "+2348034567890"),
	}

	resolutions := r.Resolve(batch, existing)
	verdict := resolutions[0].Verdict
	if verdict.Kind != types.VerdictDuplicateOfExisting {
		t.Fatalf("verdict = %q, want duplicate of existing", verdict.Kind)
	}
	if verdict.MatchedID != "ex-1" {
		t.Errorf("matched id = %q", verdict.MatchedID)
	}
	if verdict.Score == nil || verdict.Score.PhoneScore != 1.0 {
		t.Errorf("score = %+v, want phone score 1.0", verdict.Score)
	}
}

func TestResolve_IdenticalPhonesAlwaysDuplicate(t *testing.T) {
	r := NewResolver(ResolverConfig{}, nil)

	// Wildly different names and addresses, same normalized phone.
	a := candidate("a", "The Blue Door", "1 Awolowo Road, Ikoyi", "0803-456-7890")
	b := candidate("b", "Zanzibar Grill House", "99 Aba Expressway", "+234 (803) 456 7890")

	score := r.Compare(a, b)
	if score.PhoneScore != 1.0 {
		t.Fatalf("phone score = %f, want 1.0", score.PhoneScore)
	}
	if !r.IsDuplicate(score) {
		t.Error("identical non-empty phones must be conclusive regardless of name/address")
	}
}

func TestCompare_EmptyPhonesNeverMatch(t *testing.T) {
	r := NewResolver(ResolverConfig{}, nil)
	score := r.Compare(candidate("a", "A Place", "Lagos", ""), candidate("b", "B Place", "Lagos", ""))
	if score.PhoneScore != 0.0 {
		t.Errorf("two empty phones score %f, want 0.0 (no data is no match)", score.PhoneScore)
	}
}

func TestResolve_ExistingOrderIndependence(t *testing.T) {
	gofakeit.Seed(11)
	r := NewResolver(ResolverConfig{}, nil)

	existing := []types.LocationCandidate{
		candidate("ex-1", "Mama Cass", "12 Ogba Rd, Lagos", "+2348034567890"),
		candidate("ex-2", "Bukka Hut Lekki", "2 Admiralty Way, Lekki", ""),
	}

	batch := []types.LocationCandidate{
		candidate("c-1", "Mama Cass Kitchen", "12 Ogba Road, Lagos", "+2348034567890"),
		candidate("c-2", "Bukka Hut Lekki", "2 Admiralty Way Lekki", ""),
	}
	for i := 0; i < 6; i++ {
		batch = append(batch, candidate(
			gofakeit.UUID(),
			gofakeit.Company(),
			gofakeit.Street()+", Lagos",
			"",
		))
	}

	dupAgainstExisting := func(order []types.LocationCandidate) map[string]bool {
		flagged := make(map[string]bool)
		for _, res := range r.Resolve(order, existing) {
			if res.Verdict.Kind == types.VerdictDuplicateOfExisting {
				flagged[res.Candidate.ID] = true
			}
		}
		return flagged
	}

	base := dupAgainstExisting(batch)

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 5; trial++ {
		shuffled := append([]types.LocationCandidate{}, batch...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got := dupAgainstExisting(shuffled)
		if len(got) != len(base) {
			t.Fatalf("trial %d: %d flagged vs %d in base order", trial, len(got), len(base))
		}
		for id := range base {
			if !got[id] {
				t.Errorf("trial %d: candidate %s flagged in base order but not after shuffle", trial, id)
			}
		}
	}
}

func TestResolve_BatchKeepsHigherConfidence(t *testing.T) {
	confidences := map[string]float64{"weak": 0.5, "strong": 0.9}
	r := NewResolver(ResolverConfig{}, func(c types.LocationCandidate) float64 {
		return confidences[c.ID]
	})

	weak := candidate("weak", "Ofada Boy", "Surulere, Lagos", "")
	strong := candidate("strong", "Ofada Boy", "23 Adelabu Street, Surulere, Lagos", "+2347011112222")

	resolutions := r.Resolve([]types.LocationCandidate{weak, strong}, nil)

	if resolutions[0].Verdict.Kind != types.VerdictDuplicateInBatch {
		t.Errorf("weak candidate should lose to the higher-confidence one: %+v", resolutions[0].Verdict)
	}
	if resolutions[0].Verdict.MatchedID != "strong" {
		t.Errorf("weak should point at its survivor, got %q", resolutions[0].Verdict.MatchedID)
	}
	if resolutions[1].Verdict.Kind != types.VerdictUnique {
		t.Errorf("strong candidate should survive: %+v", resolutions[1].Verdict)
	}
}

func TestResolve_BatchTieKeepsEarlier(t *testing.T) {
	r := NewResolver(ResolverConfig{}, func(types.LocationCandidate) float64 { return 0.7 })

	first := candidate("first", "Amala Skye", "Bodija, Ibadan", "")
	second := candidate("second", "Amala Skye", "Bodija Ibadan", "")

	resolutions := r.Resolve([]types.LocationCandidate{first, second}, nil)
	if resolutions[0].Verdict.Kind != types.VerdictUnique {
		t.Errorf("tie must keep the earlier-discovered candidate: %+v", resolutions[0].Verdict)
	}
	if resolutions[1].Verdict.Kind != types.VerdictDuplicateInBatch {
		t.Errorf("later tie candidate must be the duplicate: %+v", resolutions[1].Verdict)
	}
}

func TestResolve_DistinctCandidatesAllUnique(t *testing.T) {
	r := NewResolver(ResolverConfig{}, nil)

	batch := []types.LocationCandidate{
		candidate("a", "Mama Cass Kitchen", "12 Ogba Road, Lagos", "+2348034567890"),
		candidate("b", "Zanzibar Grill House", "14 Adeola Odeku, Victoria Island", "+2348123456789"),
		candidate("c", "Golden Dragon", "3 Akin Adesola, Victoria Island", ""),
	}

	for i, res := range r.Resolve(batch, nil) {
		if res.Verdict.Kind != types.VerdictUnique {
			t.Errorf("candidate %d should be unique, got %+v", i, res.Verdict)
		}
	}
}

func TestProximityScore(t *testing.T) {
	r := NewResolver(ResolverConfig{}, nil)

	near := &types.Coordinates{Lat: 6.5244, Lng: 3.3792}
	same := &types.Coordinates{Lat: 6.5244, Lng: 3.3792}
	far := &types.Coordinates{Lat: 6.6, Lng: 3.5}

	if got := r.proximityScore(near, same); got != 1.0 {
		t.Errorf("co-located score = %f, want 1.0", got)
	}
	if got := r.proximityScore(near, far); got != 0.0 {
		t.Errorf("distant score = %f, want 0.0", got)
	}
	if got := r.proximityScore(near, nil); got != 0.0 {
		t.Errorf("missing coordinates score = %f, want 0.0", got)
	}

	// Mid-range distances decay linearly between the two radii.
	mid := &types.Coordinates{Lat: 6.5244 + 0.0045, Lng: 3.3792} // ~500 m north
	got := r.proximityScore(near, mid)
	if got <= 0.0 || got >= 1.0 {
		t.Errorf("mid-range score = %f, want strictly between 0 and 1", got)
	}
}
