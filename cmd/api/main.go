// Package main implements the TrialScope search API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/TrialScopeAI/trialscope-mvp/engine/answer"
	"github.com/TrialScopeAI/trialscope-mvp/engine/domain"
	"github.com/TrialScopeAI/trialscope-mvp/engine/embed"
	"github.com/TrialScopeAI/trialscope-mvp/engine/index"
	"github.com/TrialScopeAI/trialscope-mvp/engine/query"
	"github.com/TrialScopeAI/trialscope-mvp/engine/search"
	"github.com/TrialScopeAI/trialscope-mvp/engine/semantic"
	"github.com/TrialScopeAI/trialscope-mvp/pkg/gemini"
	"github.com/TrialScopeAI/trialscope-mvp/pkg/metrics"
	"github.com/TrialScopeAI/trialscope-mvp/pkg/mid"
)

// Config holds all environment-based configuration.
type Config struct {
	Port         string
	GeminiURL    string
	GeminiKey    string
	GeminiModel  string
	EmbedModel   string
	Neo4jURL     string
	Neo4jUser    string
	Neo4jPass    string
	QdrantURL    string
	Collection   string
	CORSOrigin   string
	ProviderRPS  float64
	SearchLimit  int
	RelatedLimit int
}

func loadConfig() Config {
	return Config{
		Port:         envOr("PORT", "8080"),
		GeminiURL:    envOr("GEMINI_URL", ""),
		GeminiKey:    envOr("GEMINI_API_KEY", ""),
		GeminiModel:  envOr("GEMINI_MODEL", ""),
		EmbedModel:   envOr("GEMINI_EMBED_MODEL", ""),
		Neo4jURL:     envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:    envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:    envOr("NEO4J_PASS", "password"),
		QdrantURL:    envOr("QDRANT_URL", "localhost:6334"),
		Collection:   envOr("QDRANT_COLLECTION", "trials"),
		CORSOrigin:   envOr("CORS_ORIGIN", "*"),
		ProviderRPS:  2,
		SearchLimit:  search.DefaultLimit,
		RelatedLimit: 5,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Text-understanding provider ---
	provider := gemini.New(gemini.Config{
		BaseURL:           cfg.GeminiURL,
		APIKey:            cfg.GeminiKey,
		Model:             cfg.GeminiModel,
		EmbedModel:        cfg.EmbedModel,
		RequestsPerSecond: cfg.ProviderRPS,
	})

	// --- Connect to Neo4j ---
	neo4jDriver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer neo4jDriver.Close(ctx)

	trialStore := index.New(neo4jDriver)

	// --- Connect to Qdrant ---
	vectorStore, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()

	// --- Build the search engine ---
	embedSvc := embed.NewService(provider, embed.NewCache(embed.DefaultCapacity, embed.DefaultTTL), 10*time.Second, logger)

	opts := search.DefaultOptions()
	opts.Limit = cfg.SearchLimit
	opts.RelatedLimit = cfg.RelatedLimit

	engine := search.New(search.Deps{
		Validator: query.NewValidator(provider, 10*time.Second, logger),
		Analyzer:  query.NewAnalyzer(provider, 10*time.Second, logger),
		Embedder:  embedSvc,
		Keyword:   search.TrialIndexBackend{Store: trialStore},
		Vector:    search.VectorStoreBackend{Store: vectorStore},
		Composer:  answer.NewComposer(provider, 20*time.Second, logger),
		Related:   trialStore,
		Logger:    logger,
	}, opts)

	// --- Metrics ---
	reg := metrics.New()
	m := newAPIMetrics(reg, embedSvc)

	// --- Build HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.Handle("POST /api/search", handleSearch(engine, m, logger))
	mux.HandleFunc("GET /metrics", m.handleRender)

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("trialscope-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// SearchRequest is the JSON body for POST /api/search. Question forces
// answer composition even when the query text does not read as a question.
type SearchRequest struct {
	Query    string `json:"query"`
	Mode     string `json:"mode,omitempty"`
	Question bool   `json:"question,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Score  int    `json:"score,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type searcher interface {
	Search(ctx context.Context, req search.Request) (*search.Response, error)
}

func handleSearch(engine searcher, m *apiMetrics, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.requests.Inc()

		var req SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		if req.Query == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "query is required"})
			return
		}

		resp, err := engine.Search(r.Context(), search.Request{
			Query:      req.Query,
			Mode:       search.Mode(req.Mode),
			IsQuestion: req.Question,
			Limit:      req.Limit,
		})
		if err != nil {
			var rejected *domain.RejectedError
			switch {
			case errors.As(err, &rejected):
				m.rejected.Inc()
				writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
					Error:  "query rejected",
					Score:  rejected.Score,
					Reason: rejected.Reason,
				})
			case errors.Is(err, domain.ErrBackendUnreachable):
				logger.Error("search backend unreachable", "err", err)
				writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "search backend unavailable"})
			default:
				logger.Error("search failed", "err", err)
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
			}
			return
		}

		if resp.Degraded {
			m.degraded.Inc()
		}
		m.latency.Since(start)
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// --- Metrics ---

type apiMetrics struct {
	reg      *metrics.Registry
	requests *metrics.Counter
	rejected *metrics.Counter
	degraded *metrics.Counter
	latency  *metrics.Histogram
	embedSvc *embed.Service
	hits     *metrics.Gauge
	misses   *metrics.Gauge
}

func newAPIMetrics(reg *metrics.Registry, embedSvc *embed.Service) *apiMetrics {
	return &apiMetrics{
		reg:      reg,
		requests: reg.Counter("search_requests_total", "Search requests received"),
		rejected: reg.Counter("search_rejected_total", "Queries rejected by validation"),
		degraded: reg.Counter("search_degraded_total", "Searches that fell back to keyword-only"),
		latency:  reg.Histogram("search_duration_seconds", "Search latency", nil),
		embedSvc: embedSvc,
		hits:     reg.Gauge("embed_cache_hits", "Embedding cache hits"),
		misses:   reg.Gauge("embed_cache_misses", "Embedding cache misses"),
	}
}

func (m *apiMetrics) handleRender(w http.ResponseWriter, _ *http.Request) {
	if m.embedSvc != nil {
		hits, misses := m.embedSvc.CacheStats()
		m.hits.Set(int64(hits))
		m.misses.Set(int64(misses))
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprint(w, m.reg.Render())
}
