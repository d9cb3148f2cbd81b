// Package search orchestrates the trial discovery pipeline. It gates and
// validates the query, analyzes it into structured filters, embeds it,
// runs keyword and vector retrieval concurrently, fuses the rankings, and
// optionally composes a grounded answer for question-shaped queries.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/TrialScopeAI/trialscope-mvp/engine/domain"
	"github.com/TrialScopeAI/trialscope-mvp/engine/query"
)

// Validator screens queries for domain relevance. query.Validator
// satisfies it.
type Validator interface {
	Validate(ctx context.Context, q string) query.Verdict
}

// Analyzer derives structured filters from free text. query.Analyzer
// satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, q string) domain.QueryAnalysis
}

// RelatedFinder looks up trials connected to the given conditions in the
// knowledge graph.
type RelatedFinder interface {
	RelatedTrials(ctx context.Context, conditions []string, limit int) ([]domain.TrialRecord, error)
}

// Deps holds the engine's collaborators. Keyword is the only hard
// requirement at search time; everything else degrades or is optional.
type Deps struct {
	Validator Validator
	Analyzer  Analyzer
	Embedder  Embedder
	Keyword   KeywordSearcher
	Vector    VectorSearcher
	Composer  Composer
	Related   RelatedFinder
	Logger    *slog.Logger
}

// Options configures the search pipeline behaviour.
type Options struct {
	Limit           int
	SimilarityFloor float64
	RRFConstant     int
	QualityWeight   float64
	SearchTimeout   time.Duration
	RelatedLimit    int
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Limit:           DefaultLimit,
		SimilarityFloor: DefaultSimilarityFloor,
		RRFConstant:     DefaultRRFConstant,
		QualityWeight:   DefaultQualityWeight,
		SearchTimeout:   5 * time.Second,
		RelatedLimit:    5,
	}
}

// Engine runs the search pipeline.
type Engine struct {
	deps Deps
	opts Options
	now  func() time.Time
}

// New creates a search Engine.
func New(deps Deps, opts Options) *Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.SimilarityFloor <= 0 {
		opts.SimilarityFloor = DefaultSimilarityFloor
	}
	if opts.RRFConstant <= 0 {
		opts.RRFConstant = DefaultRRFConstant
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = 5 * time.Second
	}
	return &Engine{deps: deps, opts: opts, now: time.Now}
}

// Search runs the full pipeline for one query. Rejections surface as a
// *domain.RejectedError; a dead keyword backend surfaces as
// domain.ErrBackendUnreachable. Embedding and vector failures downgrade
// the response instead of failing it.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	q := strings.TrimSpace(req.Query)
	if err := domain.ValidateQuery(q); err != nil {
		return nil, &domain.RejectedError{Score: 0, Reason: err.Error()}
	}

	verdict := e.deps.Validator.Validate(ctx, q)
	if !verdict.IsValid {
		return nil, &domain.RejectedError{Score: verdict.Score, Reason: verdict.Reason}
	}

	resp := &Response{Verdict: verdict}
	if verdict.Skipped {
		e.degrade(resp, "validation skipped")
	}

	mode := req.Mode
	if mode != ModeKeyword && mode != ModeHybrid {
		mode = ModeHybrid
	}
	limit := req.Limit
	if limit <= 0 {
		limit = e.opts.Limit
	}

	// Analysis and embedding have no data dependency on each other.
	var (
		analysis  domain.QueryAnalysis
		embedding []float32
		embedErr  error
		wg        sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		analysis = e.deps.Analyzer.Analyze(ctx, q)
	}()
	if mode == ModeHybrid && e.deps.Embedder != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			embedding, embedErr = e.deps.Embedder.Embed(ctx, q)
		}()
	}
	wg.Wait()
	resp.Analysis = analysis

	if mode == ModeHybrid && (embedErr != nil || len(embedding) == 0) {
		if embedErr != nil {
			e.deps.Logger.Warn("search: embedding unavailable, downgrading to keyword", "err", embedErr)
		}
		e.degrade(resp, "embedding unavailable")
		embedding = nil
	}

	plan := Plan(q, analysis, embedding, mode, limit, e.opts.SimilarityFloor)
	keywordHits, vectorHits, err := e.retrieve(ctx, plan, resp)
	if err != nil {
		return nil, err
	}

	boosted := applyBoosts(keywordHits, e.now(), e.opts.QualityWeight)

	var results []RankedResult
	if resp.Mode == ModeHybrid {
		results = FuseRRF(boosted, filterFloor(vectorHits, plan.SimilarityFloor), e.opts.RRFConstant)
	} else {
		results = RankKeyword(boosted)
	}
	if len(results) > limit {
		results = results[:limit]
	}
	resp.Results = results

	if (req.IsQuestion || query.IsQuestion(q)) && e.deps.Composer != nil {
		trials := make([]domain.TrialRecord, len(results))
		for i, r := range results {
			trials[i] = r.Trial
		}
		ans := e.deps.Composer.Compose(ctx, q, trials)
		resp.Answer = &ans
	}

	resp.Related = e.relatedTrials(ctx, results)

	e.deps.Logger.Info("search done",
		"mode", resp.Mode, "results", len(results),
		"degraded", resp.Degraded, "answered", resp.Answer != nil)
	return resp, nil
}

// retrieve executes the planned backend calls. In hybrid mode keyword and
// vector search run concurrently; a keyword failure is fatal while a
// vector failure downgrades the response to keyword mode.
func (e *Engine) retrieve(ctx context.Context, plan RetrievalRequest, resp *Response) (keyword, vector []Hit, err error) {
	searchCtx, cancel := context.WithTimeout(ctx, e.opts.SearchTimeout)
	defer cancel()

	resp.Mode = plan.Mode
	if plan.Mode == ModeKeyword {
		keyword, err = e.deps.Keyword.SearchKeyword(searchCtx, plan)
		if err != nil {
			return nil, nil, fmt.Errorf("search: keyword retrieval: %w: %v", domain.ErrBackendUnreachable, err)
		}
		return keyword, nil, nil
	}

	var (
		keywordErr error
		vectorErr  error
		wg         sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		keyword, keywordErr = e.deps.Keyword.SearchKeyword(searchCtx, plan)
	}()
	go func() {
		defer wg.Done()
		vector, vectorErr = e.deps.Vector.SearchVector(searchCtx, plan)
	}()
	wg.Wait()

	if keywordErr != nil {
		return nil, nil, fmt.Errorf("search: keyword retrieval: %w: %v", domain.ErrBackendUnreachable, keywordErr)
	}
	if vectorErr != nil {
		e.deps.Logger.Warn("search: vector retrieval failed, continuing keyword-only", "err", vectorErr)
		e.degrade(resp, "vector search unavailable")
		resp.Mode = ModeKeyword
		return keyword, nil, nil
	}
	return keyword, vector, nil
}

// relatedTrials fetches graph neighbours of the top result's conditions.
// Failures are logged and skipped.
func (e *Engine) relatedTrials(ctx context.Context, results []RankedResult) []domain.TrialRecord {
	if e.deps.Related == nil || e.opts.RelatedLimit <= 0 || len(results) == 0 {
		return nil
	}
	conditions := results[0].Trial.Conditions
	if len(conditions) == 0 {
		return nil
	}
	related, err := e.deps.Related.RelatedTrials(ctx, conditions, e.opts.RelatedLimit)
	if err != nil {
		e.deps.Logger.Warn("search: related-trial lookup failed, continuing without", "err", err)
		return nil
	}
	// The top results already cover these; drop duplicates.
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		seen[r.Trial.NCTID] = true
	}
	out := related[:0:0]
	for _, t := range related {
		if !seen[t.NCTID] {
			out = append(out, t)
		}
	}
	return out
}

func (e *Engine) degrade(resp *Response, reason string) {
	resp.Degraded = true
	if resp.DegradedReason == "" {
		resp.DegradedReason = reason
	} else if !strings.Contains(resp.DegradedReason, reason) {
		resp.DegradedReason += "; " + reason
	}
}
