package search

import "sort"

// FuseRRF merges a keyword ranking and a vector ranking into one list by
// reciprocal rank fusion: score(d) = Σ 1/(k + rank_i(d)) over the rankers
// that contain d, with 1-based ranks. A document absent from a ranker
// contributes nothing for it. Pure function: no transport, no state.
//
// Ordering is by fused score descending; ties break by higher keyword score,
// then by lexicographically smaller trial identifier. Callers boost keyword
// hits before fusing, so the tie-break deliberately sees post-boost scores.
func FuseRRF(keyword, vector []Hit, k int) []RankedResult {
	if k <= 0 {
		k = DefaultRRFConstant
	}

	byID := make(map[string]*RankedResult, len(keyword)+len(vector))
	order := make([]string, 0, len(keyword)+len(vector))

	get := func(id string) *RankedResult {
		if r, ok := byID[id]; ok {
			return r
		}
		r := &RankedResult{}
		byID[id] = r
		order = append(order, id)
		return r
	}

	for i, h := range keyword {
		r := get(h.Trial.NCTID)
		r.Trial = h.Trial
		r.KeywordRank = i + 1
		r.KeywordScore = h.Score
		r.FusedScore += 1 / float64(k+i+1)
	}
	for i, h := range vector {
		r := get(h.Trial.NCTID)
		if r.KeywordRank == 0 {
			r.Trial = h.Trial
		}
		r.VectorRank = i + 1
		r.FusedScore += 1 / float64(k+i+1)
	}

	out := make([]RankedResult, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		if out[i].KeywordScore != out[j].KeywordScore {
			return out[i].KeywordScore > out[j].KeywordScore
		}
		return out[i].Trial.NCTID < out[j].Trial.NCTID
	})
	return out
}

// RankKeyword converts a boosted keyword ranking into results directly; in
// keyword mode the fused score is the keyword score itself.
func RankKeyword(keyword []Hit) []RankedResult {
	out := make([]RankedResult, len(keyword))
	for i, h := range keyword {
		out[i] = RankedResult{
			Trial:        h.Trial,
			KeywordRank:  i + 1,
			KeywordScore: h.Score,
			FusedScore:   h.Score,
		}
	}
	return out
}
