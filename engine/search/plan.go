package search

import (
	"sort"
	"time"

	"github.com/TrialScopeAI/trialscope-mvp/engine/domain"
)

// Boost factors. They compose multiplicatively and apply to every keyword
// candidate the same way regardless of retrieval mode.
const (
	boostRecruiting  = 1.5
	boostRecentStart = 1.3 // started within the last year
	boostLargeTrial  = 1.2 // enrollment > 500
	boostIndustry    = 1.2
)

// Plan builds the retrieval request for one query. A hybrid plan without an
// embedding downgrades to keyword; the engine records that as degraded.
func Plan(queryText string, analysis domain.QueryAnalysis, embedding []float32, mode Mode, limit int, floor float64) RetrievalRequest {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if floor <= 0 {
		floor = DefaultSimilarityFloor
	}
	if mode != ModeKeyword && mode != ModeHybrid {
		mode = ModeHybrid
	}
	if mode == ModeHybrid && len(embedding) == 0 {
		mode = ModeKeyword
	}
	req := RetrievalRequest{
		Query:           queryText,
		Analysis:        analysis,
		Limit:           limit,
		SimilarityFloor: floor,
		Mode:            mode,
	}
	if mode == ModeHybrid {
		req.Embedding = embedding
	}
	return req
}

// boostFactor computes the multiplicative boost for one trial. The quality
// bonus is a small monotonic multiplier applied last; its weight is tunable.
func boostFactor(t domain.TrialRecord, now time.Time, qualityWeight float64) float64 {
	factor := 1.0
	if t.Status == domain.StatusRecruiting {
		factor *= boostRecruiting
	}
	if !t.StartDate.IsZero() && now.Sub(t.StartDate) <= 365*24*time.Hour {
		factor *= boostRecentStart
	}
	if t.Enrollment > 500 {
		factor *= boostLargeTrial
	}
	if domain.IsIndustrySponsor(t) {
		factor *= boostIndustry
	}
	factor *= 1 + qualityWeight*t.QualityScore/100
	return factor
}

// applyBoosts multiplies each keyword hit's raw score by its boost factor
// and re-sorts descending. Equal scores order by trial identifier so the
// ranking is a total order.
func applyBoosts(hits []Hit, now time.Time, qualityWeight float64) []Hit {
	boosted := make([]Hit, len(hits))
	for i, h := range hits {
		h.Score *= boostFactor(h.Trial, now, qualityWeight)
		boosted[i] = h
	}
	sort.SliceStable(boosted, func(i, j int) bool {
		if boosted[i].Score != boosted[j].Score {
			return boosted[i].Score > boosted[j].Score
		}
		return boosted[i].Trial.NCTID < boosted[j].Trial.NCTID
	})
	return boosted
}

// filterFloor drops vector hits below the similarity floor. The backend
// already applies the floor; this keeps the exclusion a local invariant
// rather than a remote promise.
func filterFloor(hits []Hit, floor float64) []Hit {
	out := hits[:0:0]
	for _, h := range hits {
		if h.Score >= floor {
			out = append(out, h)
		}
	}
	return out
}
