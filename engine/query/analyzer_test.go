package query

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/TrialScopeAI/trialscope-mvp/engine/domain"
)

func TestAnalyze_SynonymTable(t *testing.T) {
	// The synonym table alone must handle common phrasings; the provider is
	// not consulted when it finds structured filters.
	p := &mockProvider{err: errors.New("must not be called")}
	a := NewAnalyzer(p, 0, nil)

	got := a.Analyze(context.Background(), "Phase 3 diabetes trials, recruiting")

	if got.Phase != domain.Phase3 {
		t.Errorf("Phase = %q, want PHASE3", got.Phase)
	}
	if got.Condition != "diabetes" {
		t.Errorf("Condition = %q, want diabetes", got.Condition)
	}
	if got.Status != domain.StatusRecruiting {
		t.Errorf("Status = %q, want RECRUITING", got.Status)
	}
	if len(p.prompts) != 0 {
		t.Error("provider should not be consulted when the table matched")
	}
}

func TestAnalyze_ProviderRefinesUnmatchedQuery(t *testing.T) {
	p := &mockProvider{payload: `{
		"condition": "Psoriatic Arthritis", "phase": "phase2",
		"status": "RECRUITING", "location": "Berlin",
		"intervention": "ustekinumab", "age_group": "ADULT",
		"enrollment": "LARGE", "keywords": ["ustekinumab"]}`}
	a := NewAnalyzer(p, 0, nil)

	got := a.Analyze(context.Background(), "ustekinumab availability")

	if got.Condition != "psoriatic arthritis" {
		t.Errorf("Condition = %q", got.Condition)
	}
	if got.Phase != domain.Phase2 {
		t.Errorf("Phase = %q, want PHASE2 (case-folded)", got.Phase)
	}
	if got.Status != domain.StatusRecruiting {
		t.Errorf("Status = %q", got.Status)
	}
	if got.Location != "Berlin" || got.Intervention != "ustekinumab" {
		t.Errorf("Location/Intervention = %q/%q", got.Location, got.Intervention)
	}
	if got.AgeGroup != domain.AgeAdult || got.Enrollment != domain.EnrollmentLarge {
		t.Errorf("AgeGroup/Enrollment = %q/%q", got.AgeGroup, got.Enrollment)
	}
}

func TestAnalyze_ProviderFailureFallback(t *testing.T) {
	p := &mockProvider{err: errors.New("provider down")}
	a := NewAnalyzer(p, 0, nil)

	query := "zxqv unusual wording nobody maps"
	got := a.Analyze(context.Background(), query)

	if !got.IsEmpty() {
		t.Errorf("degraded analysis must be all-unspecified, got %+v", got)
	}
	if !reflect.DeepEqual(got.Keywords, []string{query}) {
		t.Errorf("Keywords = %v, want exactly the original query", got.Keywords)
	}
}

func TestAnalyze_KeywordsNeverEmpty(t *testing.T) {
	a := NewAnalyzer(nil, 0, nil)
	got := a.Analyze(context.Background(), "diabetes")
	if len(got.Keywords) == 0 {
		t.Fatal("analysis must always carry at least one keyword")
	}
}

func TestIsQuestion(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"What trials exist for melanoma?", true},
		{"are there recruiting diabetes trials", true},
		{"how effective is semaglutide", true},
		{"phase 3 diabetes trials", false},
		{"melanoma immunotherapy recruiting", false},
		{"trials in Boston?", true},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsQuestion(tt.query); got != tt.want {
			t.Errorf("IsQuestion(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}
