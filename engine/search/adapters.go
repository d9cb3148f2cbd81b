package search

import (
	"context"

	"github.com/TrialScopeAI/trialscope-mvp/engine/index"
	"github.com/TrialScopeAI/trialscope-mvp/engine/semantic"
)

// TrialIndexBackend adapts the Neo4j trial index to KeywordSearcher.
type TrialIndexBackend struct {
	Store *index.TrialStore
}

func (b TrialIndexBackend) SearchKeyword(ctx context.Context, req RetrievalRequest) ([]Hit, error) {
	hits, err := b.Store.SearchKeyword(ctx, req.Analysis, req.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]Hit, len(hits))
	for i, h := range hits {
		out[i] = Hit{Trial: h.Trial, Score: h.Score}
	}
	return out, nil
}

// VectorStoreBackend adapts the Qdrant store to VectorSearcher.
type VectorStoreBackend struct {
	Store *semantic.VectorStore
}

func (b VectorStoreBackend) SearchVector(ctx context.Context, req RetrievalRequest) ([]Hit, error) {
	hits, err := b.Store.Search(ctx, req.Embedding, req.Limit, req.SimilarityFloor, req.Analysis)
	if err != nil {
		return nil, err
	}
	out := make([]Hit, len(hits))
	for i, h := range hits {
		out[i] = Hit{Trial: h.Trial, Score: h.Score}
	}
	return out, nil
}
