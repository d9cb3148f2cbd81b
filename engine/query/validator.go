package query

import (
	"context"
	"log/slog"
	"time"
)

// RejectThreshold is the minimum relevance score a query needs to proceed to
// retrieval. Scores below it are hard rejections.
const RejectThreshold = 40

// Verdict is the validation gate's decision for one query.
type Verdict struct {
	IsValid bool   `json:"is_valid"`
	Score   int    `json:"score"` // 0-100 domain relevance
	Reason  string `json:"reason"`
	// Skipped is set when the provider was unreachable and the gate degraded
	// open rather than blocking the query.
	Skipped bool `json:"skipped,omitempty"`
}

// Validator decides whether a query is about clinical trials before any
// expensive retrieval is attempted.
type Validator struct {
	provider Provider
	timeout  time.Duration
	logger   *slog.Logger
}

// NewValidator creates a validation gate. A zero timeout disables the
// per-call bound.
func NewValidator(provider Provider, timeout time.Duration, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{provider: provider, timeout: timeout, logger: logger}
}

type verdictWire struct {
	Score  int    `json:"score"`
	Reason string `json:"reason"`
}

// Validate classifies the query's domain relevance. Provider failures
// degrade open: the query proceeds with a distinguishable reason instead of
// being blocked. Provider-classified low relevance degrades closed.
func (v *Validator) Validate(ctx context.Context, query string) Verdict {
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	var wire verdictWire
	if err := v.provider.GenerateJSON(ctx, validationPrompt(query), &wire); err != nil {
		v.logger.Warn("query validation skipped, provider failed", "err", err)
		return Verdict{IsValid: true, Reason: "validation skipped", Skipped: true}
	}

	score := wire.Score
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	reason := wire.Reason
	if reason == "" {
		reason = "no reason given"
	}
	return Verdict{
		IsValid: score >= RejectThreshold,
		Score:   score,
		Reason:  reason,
	}
}
