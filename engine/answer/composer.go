// Package answer composes cited natural-language answers over a retrieved
// trial set. Every citation the caller sees resolves to a trial that was in
// the context; anything else the provider invents is stripped.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/TrialScopeAI/trialscope-mvp/engine/domain"
)

// Provider is the text-understanding collaborator used for answer
// generation. Malformed replies are errors.
type Provider interface {
	GenerateJSON(ctx context.Context, prompt string, out any) error
}

// Answer is a composed answer with its grounded citations, in first-mention
// order and deduplicated.
type Answer struct {
	Text      string   `json:"text"`
	Citations []string `json:"citations"`
}

// Fallback texts. Compose never propagates a provider error to the caller.
const (
	apologyText  = "I wasn't able to generate an answer for this question right now. The ranked trial list below is still valid. Please try the question again shortly."
	noTrialsText = "I couldn't find any trials matching this question, so there is nothing to summarize."
)

const maxContextTrials = 50

// Composer generates grounded answers.
type Composer struct {
	provider Provider
	timeout  time.Duration
	logger   *slog.Logger
}

// NewComposer creates an answer composer. A zero timeout disables the
// per-call bound.
func NewComposer(provider Provider, timeout time.Duration, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{provider: provider, timeout: timeout, logger: logger}
}

type answerWire struct {
	Answer    string   `json:"answer"`
	Citations []string `json:"citations"`
}

// Compose answers the question using only the supplied trials. Provider
// failures yield a fixed apology with no citations; they are never raised.
func (c *Composer) Compose(ctx context.Context, question string, trials []domain.TrialRecord) Answer {
	if len(trials) == 0 {
		return Answer{Text: noTrialsText, Citations: []string{}}
	}
	if len(trials) > maxContextTrials {
		trials = trials[:maxContextTrials]
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var wire answerWire
	if err := c.provider.GenerateJSON(ctx, composePrompt(question, trials), &wire); err != nil {
		c.logger.Warn("answer composition failed, returning fallback", "err", err)
		return Answer{Text: apologyText, Citations: []string{}}
	}
	if strings.TrimSpace(wire.Answer) == "" {
		c.logger.Warn("answer composition returned empty text, returning fallback")
		return Answer{Text: apologyText, Citations: []string{}}
	}

	allowed := make(map[string]bool, len(trials))
	for _, t := range trials {
		allowed[t.NCTID] = true
	}

	return Answer{
		Text:      wire.Answer,
		Citations: groundCitations(wire.Citations, allowed),
	}
}

// groundCitations keeps only citations that resolve to the supplied trial
// set, deduplicated, preserving first-mention order.
func groundCitations(citations []string, allowed map[string]bool) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, c := range citations {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" || seen[c] || !allowed[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

func composePrompt(question string, trials []domain.TrialRecord) string {
	var b strings.Builder
	b.WriteString(`You are a clinical trial research assistant.
Answer the user's question using ONLY the trials listed below. Cite trials
by their NCT identifier. If the trials do not contain enough information,
say so. Do not mention any trial that is not listed.

Respond with ONLY a JSON object, no prose:
{"answer": "<answer text>", "citations": ["NCT...", ...]}

Trials:
`)
	for _, t := range trials {
		fmt.Fprintf(&b, "[%s] %s (phase: %s, status: %s, enrollment: %d)\n",
			t.NCTID, t.Title, orNone(string(t.Phase)), orNone(string(t.Status)), t.Enrollment)
		if s := summarize(t); s != "" {
			fmt.Fprintf(&b, "  %s\n", s)
		}
	}
	fmt.Fprintf(&b, "\nQuestion: %q", question)
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// summarize returns a compact context line for one trial.
func summarize(t domain.TrialRecord) string {
	s := t.Summary
	if s == "" {
		s = t.Description
	}
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 300 {
		s = s[:300] + "..."
	}
	parts := []string{}
	if len(t.Conditions) > 0 {
		parts = append(parts, "conditions: "+strings.Join(t.Conditions, ", "))
	}
	if s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, " | ")
}
