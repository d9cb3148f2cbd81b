package search

import (
	"math"
	"reflect"
	"testing"

	"github.com/TrialScopeAI/trialscope-mvp/engine/domain"
)

func hit(id string, score float64) Hit {
	return Hit{Trial: domain.TrialRecord{NCTID: id}, Score: score}
}

func TestFuseRRF_Scores(t *testing.T) {
	keyword := []Hit{hit("NCT00000001", 3.0), hit("NCT00000002", 2.0), hit("NCT00000003", 1.0)}
	vector := []Hit{hit("NCT00000002", 0.9), hit("NCT00000001", 0.8), hit("NCT00000004", 0.7)}

	results := FuseRRF(keyword, vector, 60)
	if len(results) != 4 {
		t.Fatalf("expected 4 fused results, got %d", len(results))
	}

	// A is keyword rank 1 + vector rank 2; B is keyword rank 2 + vector
	// rank 1. Their fused scores are equal, so A wins on keyword score.
	wantOrder := []string{"NCT00000001", "NCT00000002", "NCT00000003", "NCT00000004"}
	for i, want := range wantOrder {
		if results[i].Trial.NCTID != want {
			t.Fatalf("position %d: got %s, want %s", i, results[i].Trial.NCTID, want)
		}
	}

	wantA := 1.0/61 + 1.0/62
	if math.Abs(results[0].FusedScore-wantA) > 1e-12 {
		t.Errorf("fused score for NCT00000001 = %v, want %v", results[0].FusedScore, wantA)
	}
	if math.Abs(results[1].FusedScore-wantA) > 1e-12 {
		t.Errorf("fused score for NCT00000002 = %v, want %v", results[1].FusedScore, wantA)
	}
	wantC := 1.0 / 63
	if math.Abs(results[2].FusedScore-wantC) > 1e-12 {
		t.Errorf("fused score for NCT00000003 = %v, want %v", results[2].FusedScore, wantC)
	}
	if math.Abs(results[3].FusedScore-wantC) > 1e-12 {
		t.Errorf("fused score for NCT00000004 = %v, want %v", results[3].FusedScore, wantC)
	}
}

func TestFuseRRF_Ranks(t *testing.T) {
	keyword := []Hit{hit("NCT00000001", 2.0), hit("NCT00000002", 1.0)}
	vector := []Hit{hit("NCT00000002", 0.9)}

	results := FuseRRF(keyword, vector, 60)

	byID := map[string]RankedResult{}
	for _, r := range results {
		byID[r.Trial.NCTID] = r
	}
	a := byID["NCT00000001"]
	if a.KeywordRank != 1 || a.VectorRank != 0 {
		t.Errorf("NCT00000001 ranks = (%d, %d), want (1, 0)", a.KeywordRank, a.VectorRank)
	}
	b := byID["NCT00000002"]
	if b.KeywordRank != 2 || b.VectorRank != 1 {
		t.Errorf("NCT00000002 ranks = (%d, %d), want (2, 1)", b.KeywordRank, b.VectorRank)
	}
}

func TestFuseRRF_IdentifierTieBreak(t *testing.T) {
	// Same fused score and same keyword score: smaller identifier first.
	keyword := []Hit{hit("NCT00000009", 1.0)}
	vector := []Hit{hit("NCT00000001", 0.9)}

	results := FuseRRF(keyword, vector, 60)
	if results[0].Trial.NCTID == results[1].Trial.NCTID {
		t.Fatal("expected two distinct results")
	}
	// Keyword-only doc carries a keyword score, so it outranks the
	// vector-only doc despite the larger identifier.
	if results[0].Trial.NCTID != "NCT00000009" {
		t.Fatalf("expected keyword-score tiebreak first, got %s", results[0].Trial.NCTID)
	}

	// With keyword score removed from the picture, identifiers decide.
	vecOnly := FuseRRF(nil, []Hit{hit("NCT00000009", 0.9), hit("NCT00000001", 0.8)}, 60)
	if vecOnly[0].Trial.NCTID != "NCT00000009" {
		t.Fatalf("rank 1 beats rank 2: got %s first", vecOnly[0].Trial.NCTID)
	}
}

func TestFuseRRF_Deterministic(t *testing.T) {
	keyword := []Hit{hit("NCT00000003", 3.0), hit("NCT00000001", 2.0), hit("NCT00000002", 1.0)}
	vector := []Hit{hit("NCT00000002", 0.95), hit("NCT00000003", 0.9), hit("NCT00000005", 0.8)}

	first := FuseRRF(keyword, vector, 60)
	for i := 0; i < 10; i++ {
		again := FuseRRF(keyword, vector, 60)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d produced a different ordering", i)
		}
	}
}

func TestFuseRRF_Empty(t *testing.T) {
	if got := FuseRRF(nil, nil, 60); len(got) != 0 {
		t.Fatalf("expected no results, got %d", len(got))
	}
	one := FuseRRF([]Hit{hit("NCT00000001", 1.0)}, nil, 60)
	if len(one) != 1 || one[0].VectorRank != 0 {
		t.Fatalf("unexpected single-ranker result: %+v", one)
	}
}

func TestRankKeyword(t *testing.T) {
	results := RankKeyword([]Hit{hit("NCT00000001", 4.5), hit("NCT00000002", 2.25)})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].FusedScore != 4.5 || results[0].KeywordRank != 1 {
		t.Errorf("first result = %+v", results[0])
	}
	if results[1].FusedScore != 2.25 || results[1].KeywordRank != 2 {
		t.Errorf("second result = %+v", results[1])
	}
}
