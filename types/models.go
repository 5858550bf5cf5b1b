package types

import "time"

// DiscoverySource identifies which kind of adapter produced a candidate.
type DiscoverySource string

const (
	SourceAPI      DiscoverySource = "api"
	SourceScraping DiscoverySource = "scraping"
	SourceSocial   DiscoverySource = "social"
)

// CandidateStatus is the pipeline verdict attached to a candidate.
// Pending candidates await moderation; approved ones form the dataset
// later discoveries are deduplicated against.
type CandidateStatus string

const (
	StatusPending   CandidateStatus = "pending"
	StatusApproved  CandidateStatus = "approved"
	StatusDuplicate CandidateStatus = "duplicate"
	StatusRejected  CandidateStatus = "rejected"
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PriceInfo holds display pricing plus optional structured bounds
// in minor currency units.
type PriceInfo struct {
	Display  string `json:"display,omitempty"`
	PriceMin *int64 `json:"price_min,omitempty"`
	PriceMax *int64 `json:"price_max,omitempty"`
	Currency string `json:"currency,omitempty"`
}

// LocationCandidate is the canonical unit of work of the discovery
// pipeline. Created by the normalizer, consumed read-only by the
// duplicate resolver and the validation scorer.
type LocationCandidate struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Address     string       `json:"address"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`

	Phone       string   `json:"phone,omitempty"`
	Website     string   `json:"website,omitempty"`
	Description string   `json:"description,omitempty"`
	Cuisine     []string `json:"cuisine"`

	// Rating and ReviewCount stay nil when the source did not report
	// them; display code may render them as zero, scoring must not.
	Rating      *float64 `json:"rating,omitempty"`
	ReviewCount *int     `json:"review_count,omitempty"`

	ServiceType string    `json:"service_type"`
	PriceInfo   PriceInfo `json:"price_info"`

	DiscoverySource DiscoverySource `json:"discovery_source"`
	SourceURL       string          `json:"source_url"`
	DiscoveredAt    time.Time       `json:"discovered_at"`

	Status     CandidateStatus   `json:"status,omitempty"`
	Validation *ValidationResult `json:"validation,omitempty"`
}

// SimilarityScore is the per-pair comparison breakdown. Transient,
// never persisted.
type SimilarityScore struct {
	NameScore      float64 `json:"name_score"`
	AddressScore   float64 `json:"address_score"`
	PhoneScore     float64 `json:"phone_score"`
	ProximityScore float64 `json:"proximity_score"`
	OverallScore   float64 `json:"overall_score"`
}

// ValidationResult is the scorer's explainable verdict for one candidate.
type ValidationResult struct {
	IsValid    bool     `json:"is_valid"`
	Confidence float64  `json:"confidence"`
	Issues     []string `json:"issues"`
}

// VerdictKind classifies the outcome of duplicate resolution.
type VerdictKind string

const (
	VerdictUnique              VerdictKind = "unique"
	VerdictDuplicateOfExisting VerdictKind = "duplicate_of_existing"
	VerdictDuplicateInBatch    VerdictKind = "duplicate_in_batch"
)

// DuplicateVerdict records what a candidate was matched against and how.
type DuplicateVerdict struct {
	Kind      VerdictKind      `json:"kind"`
	MatchedID string           `json:"matched_id,omitempty"`
	Score     *SimilarityScore `json:"score,omitempty"`
}
