// Package query classifies and analyzes user queries ahead of retrieval:
// a domain-relevance gate and a structured-filter extractor, both backed by
// a text-understanding provider with deterministic local fallbacks.
package query

import "context"

// Provider is the text-understanding collaborator. GenerateJSON prompts the
// model and unmarshals its reply into out; malformed or empty replies are
// errors, never silently empty values.
type Provider interface {
	GenerateJSON(ctx context.Context, prompt string, out any) error
}
