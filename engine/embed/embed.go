// Package embed provides query embedding with a process-wide bounded cache.
// Vectors are unit-normalized on the way in so downstream similarity is a
// plain dot product.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/TrialScopeAI/trialscope-mvp/engine/domain"
)

// ErrUnavailable marks a failed embedding provider call. Callers must catch
// it and fall back to keyword-only retrieval; it never carries a usable
// vector.
var ErrUnavailable = errors.New("embedding unavailable")

// Provider turns text into a fixed-dimensionality vector. Implementations
// are network clients and may fail.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Service embeds query text through a Provider, caching normalized vectors
// by canonical query text.
type Service struct {
	provider Provider
	cache    *Cache
	timeout  time.Duration
	logger   *slog.Logger
}

// NewService creates an embedding service. A zero timeout disables the
// per-call bound.
func NewService(provider Provider, cache *Cache, timeout time.Duration, logger *slog.Logger) *Service {
	if cache == nil {
		cache = NewCache(DefaultCapacity, DefaultTTL)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{provider: provider, cache: cache, timeout: timeout, logger: logger}
}

// Embed returns the unit-length embedding for text, serving repeats from the
// cache. Provider failures surface as ErrUnavailable, never as a zero
// vector.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	key := domain.NormalizeQuery(text)
	if key == "" {
		return nil, fmt.Errorf("embed: %w: empty text", ErrUnavailable)
	}

	if vec, ok := s.cache.Get(key); ok {
		return vec, nil
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	vec, err := s.provider.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed: %w: %v", ErrUnavailable, err)
	}
	if err := Normalize(vec); err != nil {
		return nil, fmt.Errorf("embed: %w: %v", ErrUnavailable, err)
	}

	s.cache.Put(key, vec)
	return vec, nil
}

// CacheStats exposes cache hit/miss counts for metrics collection.
func (s *Service) CacheStats() (hits, misses uint64) {
	return s.cache.Stats()
}

// Normalize scales vec to unit length in place. A zero or empty vector is an
// error: it would silently flatten similarity ranking downstream.
func Normalize(vec []float32) error {
	if len(vec) == 0 {
		return errors.New("empty vector")
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return errors.New("zero vector")
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return nil
}
