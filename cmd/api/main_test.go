package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/TrialScopeAI/trialscope-mvp/engine/domain"
	"github.com/TrialScopeAI/trialscope-mvp/engine/search"
	"github.com/TrialScopeAI/trialscope-mvp/pkg/metrics"
)

type fakeSearcher struct {
	resp *search.Response
	err  error
	last search.Request
}

func (f *fakeSearcher) Search(ctx context.Context, req search.Request) (*search.Response, error) {
	f.last = req
	return f.resp, f.err
}

func doSearch(t *testing.T, s searcher, body string) *httptest.ResponseRecorder {
	t.Helper()
	m := newAPIMetrics(metrics.New(), nil)
	h := handleSearch(s, m, slog.Default())
	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestHandleSearch_OK(t *testing.T) {
	resp := &search.Response{
		Mode: search.ModeHybrid,
		Results: []search.RankedResult{
			{Trial: domain.TrialRecord{NCTID: "NCT00000001"}, FusedScore: 0.03},
		},
	}
	rec := doSearch(t, &fakeSearcher{resp: resp}, `{"query":"diabetes trials"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var got search.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Results) != 1 || got.Results[0].Trial.NCTID != "NCT00000001" {
		t.Errorf("results = %+v", got.Results)
	}
}

func TestHandleSearch_QuestionFlag(t *testing.T) {
	s := &fakeSearcher{resp: &search.Response{Mode: search.ModeHybrid}}
	rec := doSearch(t, s, `{"query":"phase 3 diabetes trials","question":true,"mode":"hybrid","limit":5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !s.last.IsQuestion {
		t.Error("IsQuestion not carried through to the engine")
	}
	if s.last.Mode != search.ModeHybrid || s.last.Limit != 5 {
		t.Errorf("request = %+v", s.last)
	}
}

func TestHandleSearch_EmptyQuery(t *testing.T) {
	rec := doSearch(t, &fakeSearcher{}, `{"query":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleSearch_BadBody(t *testing.T) {
	rec := doSearch(t, &fakeSearcher{}, `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleSearch_Rejected(t *testing.T) {
	err := &domain.RejectedError{Score: 12, Reason: "not a clinical trial query"}
	rec := doSearch(t, &fakeSearcher{err: err}, `{"query":"best pizza"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Score != 12 || resp.Reason == "" {
		t.Errorf("response = %+v", resp)
	}
}

func TestHandleSearch_BackendDown(t *testing.T) {
	err := fmt.Errorf("search: keyword retrieval: %w: dial refused", domain.ErrBackendUnreachable)
	rec := doSearch(t, &fakeSearcher{err: err}, `{"query":"diabetes"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleSearch_InternalError(t *testing.T) {
	rec := doSearch(t, &fakeSearcher{err: errors.New("boom")}, `{"query":"diabetes"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	handleHealth(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Fatalf("health = %d %s", rec.Code, rec.Body.String())
	}
}

func TestMetricsRender(t *testing.T) {
	m := newAPIMetrics(metrics.New(), nil)
	m.requests.Inc()
	rec := httptest.NewRecorder()
	m.handleRender(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "search_requests_total") {
		t.Errorf("render missing counter:\n%s", rec.Body.String())
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := loadConfig()
	if cfg.Port != "8080" || cfg.Collection != "trials" {
		t.Errorf("cfg = %+v", cfg)
	}
}
