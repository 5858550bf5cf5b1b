package dedup

import (
	"log/slog"

	"discoveryserver/similarity"
	"discoveryserver/types"
)

// Weights blend the per-field scores into the overall score.
type Weights struct {
	Name      float64 `json:"name"`
	Address   float64 `json:"address"`
	Phone     float64 `json:"phone"`
	Proximity float64 `json:"proximity"`
}

// DefaultWeights returns the canonical blend.
func DefaultWeights() Weights {
	return Weights{Name: 0.4, Address: 0.3, Phone: 0.2, Proximity: 0.1}
}

// ResolverConfig tunes duplicate detection. Thresholds are deployment
// configuration, not constants.
type ResolverConfig struct {
	// DuplicateThreshold flags a pair when the weighted blend exceeds
	// it; defaults to 0.8.
	DuplicateThreshold float64 `json:"duplicate_threshold"`
	// NameConclusiveThreshold flags on name similarity alone; 0.9.
	NameConclusiveThreshold float64 `json:"name_conclusive_threshold"`
	// ProximityFullMeters is full proximity credit; 100 m.
	ProximityFullMeters float64 `json:"proximity_full_meters"`
	// ProximityZeroMeters is where proximity decays to zero; 1000 m.
	ProximityZeroMeters float64 `json:"proximity_zero_meters"`
	Weights             Weights `json:"weights"`
}

// DefaultResolverConfig returns the canonical thresholds.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		DuplicateThreshold:      0.8,
		NameConclusiveThreshold: 0.9,
		ProximityFullMeters:     100,
		ProximityZeroMeters:     1000,
		Weights:                 DefaultWeights(),
	}
}

// ConfidenceFunc supplies the validation confidence used to pick the
// survivor of a same-batch duplicate pair.
type ConfidenceFunc func(types.LocationCandidate) float64

// Resolution pairs a candidate with its duplicate verdict.
type Resolution struct {
	Candidate types.LocationCandidate
	Verdict   types.DuplicateVerdict
}

// Resolver partitions a candidate batch into unique candidates and
// duplicates, against both the existing approved dataset and the batch
// itself.
type Resolver struct {
	config     ResolverConfig
	confidence ConfidenceFunc
	logger     *slog.Logger
}

// NewResolver creates a resolver. Zero-value config fields get the
// canonical defaults; a nil confidence function makes same-batch ties
// always keep the earlier-discovered candidate.
func NewResolver(config ResolverConfig, confidence ConfidenceFunc) *Resolver {
	defaults := DefaultResolverConfig()
	if config.DuplicateThreshold <= 0 {
		config.DuplicateThreshold = defaults.DuplicateThreshold
	}
	if config.NameConclusiveThreshold <= 0 {
		config.NameConclusiveThreshold = defaults.NameConclusiveThreshold
	}
	if config.ProximityFullMeters <= 0 {
		config.ProximityFullMeters = defaults.ProximityFullMeters
	}
	if config.ProximityZeroMeters <= config.ProximityFullMeters {
		config.ProximityZeroMeters = defaults.ProximityZeroMeters
	}
	if config.Weights == (Weights{}) {
		config.Weights = defaults.Weights
	}
	if confidence == nil {
		confidence = func(types.LocationCandidate) float64 { return 0 }
	}

	return &Resolver{
		config:     config,
		confidence: confidence,
		logger:     slog.Default().With("component", "dedup"),
	}
}

// Compare computes the similarity breakdown for one pair. Both address
// inputs are normalized before comparison; names are accent-folded.
func (r *Resolver) Compare(a, b types.LocationCandidate) types.SimilarityScore {
	score := types.SimilarityScore{
		NameScore: similarity.StringSimilarity(
			similarity.FoldAccents(a.Name),
			similarity.FoldAccents(b.Name),
		),
		AddressScore: similarity.EditDistanceSimilarity(
			similarity.NormalizeAddress(a.Address),
			similarity.NormalizeAddress(b.Address),
		),
		PhoneScore:     phoneScore(a.Phone, b.Phone),
		ProximityScore: r.proximityScore(a.Coordinates, b.Coordinates),
	}

	w := r.config.Weights
	score.OverallScore = w.Name*score.NameScore +
		w.Address*score.AddressScore +
		w.Phone*score.PhoneScore +
		w.Proximity*score.ProximityScore

	return score
}

// IsDuplicate applies the verdict rule: weighted blend over the
// threshold, or a near-exact name, or an exact phone match. The last
// two are each independently conclusive because they are
// low-false-positive signals.
func (r *Resolver) IsDuplicate(score types.SimilarityScore) bool {
	return score.OverallScore > r.config.DuplicateThreshold ||
		score.NameScore > r.config.NameConclusiveThreshold ||
		score.PhoneScore == 1.0
}

// Resolve runs the single resolution pass in stable discovery order:
// every candidate is first checked against the existing dataset
// (existing data wins), then against candidates accepted earlier in the
// same pass. For a same-batch pair the higher-confidence candidate
// survives; ties keep the earlier-discovered one.
func (r *Resolver) Resolve(candidates, existing []types.LocationCandidate) []Resolution {
	resolutions := make([]Resolution, len(candidates))
	accepted := make([]int, 0, len(candidates))

	for i, candidate := range candidates {
		resolutions[i] = Resolution{
			Candidate: candidate,
			Verdict:   types.DuplicateVerdict{Kind: types.VerdictUnique},
		}

		if matched, score := r.matchExisting(candidate, existing); matched != nil {
			resolutions[i].Verdict = types.DuplicateVerdict{
				Kind:      types.VerdictDuplicateOfExisting,
				MatchedID: matched.ID,
				Score:     score,
			}
			continue
		}

		dupOf := -1
		var dupScore types.SimilarityScore
		for _, j := range accepted {
			score := r.Compare(candidate, resolutions[j].Candidate)
			if r.IsDuplicate(score) {
				dupOf = j
				dupScore = score
				break
			}
		}

		if dupOf == -1 {
			accepted = append(accepted, i)
			continue
		}

		if r.confidence(candidate) > r.confidence(resolutions[dupOf].Candidate) {
			// The newer candidate is stronger: it replaces the earlier
			// one in the accepted set.
			resolutions[dupOf].Verdict = types.DuplicateVerdict{
				Kind:      types.VerdictDuplicateInBatch,
				MatchedID: candidate.ID,
				Score:     &dupScore,
			}
			for k, idx := range accepted {
				if idx == dupOf {
					accepted[k] = i
					break
				}
			}
		} else {
			resolutions[i].Verdict = types.DuplicateVerdict{
				Kind:      types.VerdictDuplicateInBatch,
				MatchedID: resolutions[dupOf].Candidate.ID,
				Score:     &dupScore,
			}
		}
	}

	return resolutions
}

// matchExisting returns the first existing record the candidate
// duplicates, if any.
func (r *Resolver) matchExisting(candidate types.LocationCandidate, existing []types.LocationCandidate) (*types.LocationCandidate, *types.SimilarityScore) {
	for i := range existing {
		score := r.Compare(candidate, existing[i])
		if r.IsDuplicate(score) {
			return &existing[i], &score
		}
	}
	return nil, nil
}

// phoneScore is binary: 1.0 only when both numbers normalize to the
// same non-empty digit string.
func phoneScore(a, b string) float64 {
	na := similarity.NormalizePhone(a)
	nb := similarity.NormalizePhone(b)
	if na != "" && na == nb {
		return 1.0
	}
	return 0.0
}

// proximityScore gives full credit under the near radius and decays
// linearly to zero at the far radius. Missing coordinates on either
// side contribute nothing.
func (r *Resolver) proximityScore(a, b *types.Coordinates) float64 {
	if a == nil || b == nil {
		return 0.0
	}

	d := similarity.HaversineMeters(*a, *b)
	switch {
	case d < r.config.ProximityFullMeters:
		return 1.0
	case d >= r.config.ProximityZeroMeters:
		return 0.0
	default:
		return (r.config.ProximityZeroMeters - d) /
			(r.config.ProximityZeroMeters - r.config.ProximityFullMeters)
	}
}
