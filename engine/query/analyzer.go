package query

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/TrialScopeAI/trialscope-mvp/engine/domain"
)

// Analyzer extracts structured filters from free-text queries. A synonym
// table handles the common phrasings deterministically; the provider fills
// whatever the table could not.
type Analyzer struct {
	provider Provider
	timeout  time.Duration
	logger   *slog.Logger
}

// NewAnalyzer creates a query analyzer. A zero timeout disables the per-call
// bound.
func NewAnalyzer(provider Provider, timeout time.Duration, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{provider: provider, timeout: timeout, logger: logger}
}

type analysisWire struct {
	Condition    string   `json:"condition"`
	Phase        string   `json:"phase"`
	Status       string   `json:"status"`
	Location     string   `json:"location"`
	Sponsor      string   `json:"sponsor"`
	Intervention string   `json:"intervention"`
	AgeGroup     string   `json:"age_group"`
	Enrollment   string   `json:"enrollment"`
	Keywords     []string `json:"keywords"`
}

// Analyze never fails: the synonym table runs first, the provider refines,
// and total analysis failure yields an all-unspecified analysis whose
// keyword set is exactly the original query text. The Retrieval Planner
// always receives valid input.
func (a *Analyzer) Analyze(ctx context.Context, query string) domain.QueryAnalysis {
	analysis := analyzeLocal(query)

	if a.provider != nil && analysis.IsEmpty() {
		refined, err := a.analyzeProvider(ctx, query)
		if err != nil {
			a.logger.Warn("query analysis degraded, provider failed", "err", err)
			// Degraded contract: unspecified filters, original query as the
			// sole keyword.
			return domain.QueryAnalysis{Keywords: []string{query}}
		}
		analysis = merge(analysis, refined)
	}

	if len(analysis.Keywords) == 0 {
		analysis.Keywords = []string{query}
	}
	return analysis
}

// analyzeLocal runs the synonym-table pass. Pure and deterministic.
func analyzeLocal(query string) domain.QueryAnalysis {
	return domain.QueryAnalysis{
		Condition:  domain.ConditionFromText(query),
		Phase:      domain.PhaseFromText(query),
		Status:     domain.StatusFromText(query),
		AgeGroup:   domain.AgeGroupFromText(query),
		Enrollment: domain.EnrollmentFromText(query),
		Keywords:   domain.ExtractKeywords(query),
	}
}

func (a *Analyzer) analyzeProvider(ctx context.Context, query string) (domain.QueryAnalysis, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	var wire analysisWire
	if err := a.provider.GenerateJSON(ctx, analysisPrompt(query), &wire); err != nil {
		return domain.QueryAnalysis{}, err
	}
	return fromWire(wire), nil
}

// fromWire maps the provider's loose strings onto domain enums, dropping
// anything unrecognised rather than trusting it.
func fromWire(w analysisWire) domain.QueryAnalysis {
	out := domain.QueryAnalysis{
		Condition:    strings.TrimSpace(strings.ToLower(w.Condition)),
		Location:     strings.TrimSpace(w.Location),
		Sponsor:      strings.TrimSpace(w.Sponsor),
		Intervention: strings.TrimSpace(w.Intervention),
		Keywords:     w.Keywords,
	}
	if p := domain.Phase(strings.ToUpper(strings.TrimSpace(w.Phase))); domain.ValidPhases[p] {
		out.Phase = p
	}
	if s := domain.Status(strings.ToUpper(strings.TrimSpace(w.Status))); domain.ValidStatuses[s] {
		out.Status = s
	}
	switch domain.AgeGroup(strings.ToUpper(strings.TrimSpace(w.AgeGroup))) {
	case domain.AgeChild:
		out.AgeGroup = domain.AgeChild
	case domain.AgeAdult:
		out.AgeGroup = domain.AgeAdult
	case domain.AgeOlderAdult:
		out.AgeGroup = domain.AgeOlderAdult
	}
	switch domain.EnrollmentBucket(strings.ToUpper(strings.TrimSpace(w.Enrollment))) {
	case domain.EnrollmentSmall:
		out.Enrollment = domain.EnrollmentSmall
	case domain.EnrollmentMedium:
		out.Enrollment = domain.EnrollmentMedium
	case domain.EnrollmentLarge:
		out.Enrollment = domain.EnrollmentLarge
	}
	return out
}

// merge prefers the synonym table's values, filling gaps from the provider.
func merge(local, refined domain.QueryAnalysis) domain.QueryAnalysis {
	out := local
	if out.Condition == "" {
		out.Condition = refined.Condition
	}
	if out.Phase == domain.PhaseNone {
		out.Phase = refined.Phase
	}
	if out.Status == domain.StatusUnspecified {
		out.Status = refined.Status
	}
	if out.Location == "" {
		out.Location = refined.Location
	}
	if out.Sponsor == "" {
		out.Sponsor = refined.Sponsor
	}
	if out.Intervention == "" {
		out.Intervention = refined.Intervention
	}
	if out.AgeGroup == domain.AgeUnspecified {
		out.AgeGroup = refined.AgeGroup
	}
	if out.Enrollment == domain.EnrollmentUnspecified {
		out.Enrollment = refined.Enrollment
	}
	if len(out.Keywords) == 0 {
		out.Keywords = refined.Keywords
	}
	return out
}
