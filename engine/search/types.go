package search

import (
	"github.com/TrialScopeAI/trialscope-mvp/engine/answer"
	"github.com/TrialScopeAI/trialscope-mvp/engine/domain"
	"github.com/TrialScopeAI/trialscope-mvp/engine/query"
)

// Mode selects the retrieval strategy.
type Mode string

const (
	// ModeKeyword retrieves by field-weighted keyword match only.
	ModeKeyword Mode = "keyword"
	// ModeHybrid combines keyword match with vector similarity and fuses the
	// two rankings. Self-downgrades to keyword when embedding fails.
	ModeHybrid Mode = "hybrid"
)

const (
	// DefaultLimit is the fixed result size for both modes.
	DefaultLimit = 50
	// DefaultSimilarityFloor excludes weak vector candidates before fusion.
	DefaultSimilarityFloor = 0.55
	// DefaultRRFConstant is the k in the reciprocal-rank-fusion formula.
	DefaultRRFConstant = 60
	// DefaultQualityWeight scales the quality-score boost. Tunable, not a
	// structural invariant.
	DefaultQualityWeight = 0.1
)

// RetrievalRequest is the plan for one retrieval execution.
type RetrievalRequest struct {
	Query           string
	Analysis        domain.QueryAnalysis
	Embedding       []float32 // nil in keyword mode
	Limit           int
	SimilarityFloor float64
	Mode            Mode
}

// Hit is one scored document from a backend: a raw keyword score or a vector
// similarity, depending on which searcher produced it.
type Hit struct {
	Trial domain.TrialRecord
	Score float64
}

// RankedResult is one fused result. Ordering by FusedScore descending is the
// external contract; ties break by higher keyword score, then by smaller
// trial identifier, so output is a total order.
type RankedResult struct {
	Trial        domain.TrialRecord `json:"trial"`
	KeywordRank  int                `json:"keyword_rank,omitempty"` // 1-based, 0 = absent
	VectorRank   int                `json:"vector_rank,omitempty"`  // 1-based, 0 = absent
	KeywordScore float64            `json:"keyword_score,omitempty"`
	FusedScore   float64            `json:"fused_score"`
}

// Request is one search invocation.
type Request struct {
	Query string
	Mode  Mode
	// IsQuestion forces answer composition; when false the engine still
	// composes if the query reads as a question.
	IsQuestion bool
	Limit      int
}

// Response is the engine's answer to one search request.
type Response struct {
	Results []RankedResult `json:"results"`
	// Degraded reports that validation or embedding fell back; the ranking
	// contract for the executed mode is unchanged.
	Degraded       bool                 `json:"degraded"`
	DegradedReason string               `json:"degraded_reason,omitempty"`
	Mode           Mode                 `json:"mode"`
	Verdict        query.Verdict        `json:"verdict"`
	Analysis       domain.QueryAnalysis `json:"analysis"`
	Answer         *answer.Answer       `json:"answer,omitempty"`
	// Related lists trials sharing a condition with the top result, from the
	// knowledge graph. Best effort; absent when the graph is unavailable.
	Related []domain.TrialRecord `json:"related,omitempty"`
}
