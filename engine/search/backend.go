package search

import (
	"context"

	"github.com/TrialScopeAI/trialscope-mvp/engine/answer"
	"github.com/TrialScopeAI/trialscope-mvp/engine/domain"
)

// KeywordSearcher executes field-weighted keyword retrieval against the
// trial index. Hits come back ordered by raw keyword score descending.
type KeywordSearcher interface {
	SearchKeyword(ctx context.Context, req RetrievalRequest) ([]Hit, error)
}

// VectorSearcher executes k-nearest-neighbor retrieval. Hits carry cosine
// similarity; the backend applies the request's similarity floor so weak
// candidates never reach fusion.
type VectorSearcher interface {
	SearchVector(ctx context.Context, req RetrievalRequest) ([]Hit, error)
}

// Embedder produces the query vector. engine/embed.Service satisfies it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Composer turns a question plus the top fused trials into a grounded
// answer. It never fails; degraded composition is its own concern.
type Composer interface {
	Compose(ctx context.Context, question string, trials []domain.TrialRecord) answer.Answer
}
