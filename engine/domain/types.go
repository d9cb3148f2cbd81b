// Package domain defines core domain types, constants, and validation for the
// TrialScope engine pipeline. It acts as the validation gate at pipeline
// entry points.
package domain

import "time"

// Phase is a clinical trial phase.
type Phase string

const (
	PhaseNone Phase = ""
	Phase1    Phase = "PHASE1"
	Phase2    Phase = "PHASE2"
	Phase3    Phase = "PHASE3"
	Phase4    Phase = "PHASE4"
)

// ValidPhases is the set of recognised trial phases.
var ValidPhases = map[Phase]bool{
	Phase1: true, Phase2: true, Phase3: true, Phase4: true,
}

// Status is the overall recruitment status of a trial.
type Status string

const (
	StatusUnspecified   Status = ""
	StatusRecruiting    Status = "RECRUITING"
	StatusNotYetOpen    Status = "NOT_YET_RECRUITING"
	StatusActive        Status = "ACTIVE_NOT_RECRUITING"
	StatusCompleted     Status = "COMPLETED"
	StatusTerminated    Status = "TERMINATED"
	StatusSuspended     Status = "SUSPENDED"
	StatusWithdrawn     Status = "WITHDRAWN"
)

// ValidStatuses is the set of recognised trial statuses.
var ValidStatuses = map[Status]bool{
	StatusRecruiting: true, StatusNotYetOpen: true, StatusActive: true,
	StatusCompleted: true, StatusTerminated: true, StatusSuspended: true,
	StatusWithdrawn: true,
}

// SponsorClass distinguishes industry from academic/other sponsors.
type SponsorClass string

const (
	SponsorUnspecified SponsorClass = ""
	SponsorIndustry    SponsorClass = "INDUSTRY"
	SponsorNIH         SponsorClass = "NIH"
	SponsorFed         SponsorClass = "FED"
	SponsorOther       SponsorClass = "OTHER"
)

// AgeGroup buckets eligible participant ages.
type AgeGroup string

const (
	AgeUnspecified AgeGroup = ""
	AgeChild       AgeGroup = "CHILD"
	AgeAdult       AgeGroup = "ADULT"
	AgeOlderAdult  AgeGroup = "OLDER_ADULT"
)

// EnrollmentBucket buckets trial size.
type EnrollmentBucket string

const (
	EnrollmentUnspecified EnrollmentBucket = ""
	EnrollmentSmall       EnrollmentBucket = "SMALL"  // < 100
	EnrollmentMedium      EnrollmentBucket = "MEDIUM" // 100-500
	EnrollmentLarge       EnrollmentBucket = "LARGE"  // > 500
)

// TrialRecord is an immutable snapshot of a clinical trial as stored in the
// search backends. The engine only reads projections of it.
type TrialRecord struct {
	NCTID         string       `json:"nct_id"`
	Title         string       `json:"brief_title"`
	OfficialTitle string       `json:"official_title,omitempty"`
	Summary       string       `json:"brief_summary,omitempty"`
	Description   string       `json:"detailed_description,omitempty"`
	Phase         Phase        `json:"phase,omitempty"`
	Status        Status       `json:"overall_status,omitempty"`
	Enrollment    int          `json:"enrollment"`
	Sponsor       string       `json:"sponsor,omitempty"`
	SponsorClass  SponsorClass `json:"sponsor_class,omitempty"`
	Conditions    []string     `json:"conditions,omitempty"`
	Interventions []string     `json:"interventions,omitempty"`
	Locations     []string     `json:"locations,omitempty"`
	Keywords      []string     `json:"keywords,omitempty"`
	StartDate     time.Time    `json:"start_date,omitzero"`
	HasDMC        bool         `json:"has_dmc,omitempty"`
	Randomized    bool         `json:"randomized,omitempty"`
	Blinded       bool         `json:"blinded,omitempty"`
	QualityScore  float64      `json:"quality_score"`

	// Embedding is the precomputed document vector, present only when the
	// record was indexed with semantic search enabled.
	Embedding []float32 `json:"-"`
}

// QueryAnalysis holds the structured filters extracted from one query.
// Zero values mean "unspecified". Created fresh per query and never mutated
// after creation.
type QueryAnalysis struct {
	Condition    string           `json:"condition,omitempty"`
	Phase        Phase            `json:"phase,omitempty"`
	Status       Status           `json:"status,omitempty"`
	Location     string           `json:"location,omitempty"`
	Sponsor      string           `json:"sponsor,omitempty"`
	Intervention string           `json:"intervention,omitempty"`
	AgeGroup     AgeGroup         `json:"age_group,omitempty"`
	Enrollment   EnrollmentBucket `json:"enrollment,omitempty"`
	Keywords     []string         `json:"keywords,omitempty"`
}

// IsEmpty reports whether no structured filter was extracted.
func (a QueryAnalysis) IsEmpty() bool {
	return a.Condition == "" && a.Phase == PhaseNone && a.Status == StatusUnspecified &&
		a.Location == "" && a.Sponsor == "" && a.Intervention == "" &&
		a.AgeGroup == AgeUnspecified && a.Enrollment == EnrollmentUnspecified
}

// BucketEnrollment maps a raw enrollment count to its bucket.
func BucketEnrollment(n int) EnrollmentBucket {
	switch {
	case n <= 0:
		return EnrollmentUnspecified
	case n < 100:
		return EnrollmentSmall
	case n <= 500:
		return EnrollmentMedium
	default:
		return EnrollmentLarge
	}
}
