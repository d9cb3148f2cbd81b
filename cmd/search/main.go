// Command search runs a single query against the trial stack and prints
// the ranked results. It wires the engine directly (no API server) and is
// meant for local debugging of ranking and degradation behavior.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
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
)

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func main() {
	var (
		neo4jURL   = flag.String("neo4j", envOr("NEO4J_URL", "neo4j://localhost:7687"), "Neo4j bolt URL")
		neo4jUser  = flag.String("neo4j-user", envOr("NEO4J_USER", "neo4j"), "Neo4j username")
		neo4jPass  = flag.String("neo4j-pass", envOr("NEO4J_PASS", "password"), "Neo4j password")
		qdrantAddr = flag.String("qdrant", envOr("QDRANT_URL", "localhost:6334"), "Qdrant gRPC address")
		collection = flag.String("collection", envOr("QDRANT_COLLECTION", "trials"), "Qdrant collection name")
		geminiKey  = flag.String("gemini-key", envOr("GEMINI_API_KEY", ""), "Gemini API key")
		mode       = flag.String("mode", "hybrid", "retrieval mode: keyword or hybrid")
		limit      = flag.Int("limit", 10, "max results to print")
		asJSON     = flag.Bool("json", false, "print the full response as JSON")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: search [flags] <query text>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	queryText := strings.Join(flag.Args(), " ")

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	driver, err := neo4j.NewDriverWithContext(*neo4jURL, neo4j.BasicAuth(*neo4jUser, *neo4jPass, ""))
	if err != nil {
		fatal(logger, "neo4j driver", err)
	}
	defer driver.Close(ctx)

	vectorStore, err := semantic.New(*qdrantAddr, *collection)
	if err != nil {
		fatal(logger, "qdrant connect", err)
	}
	defer vectorStore.Close()

	trialStore := index.New(driver)
	provider := gemini.New(gemini.Config{APIKey: *geminiKey, RequestsPerSecond: 2})
	embedSvc := embed.NewService(provider, embed.NewCache(embed.DefaultCapacity, embed.DefaultTTL), 10*time.Second, logger)

	opts := search.DefaultOptions()
	opts.Limit = *limit

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

	start := time.Now()
	resp, err := engine.Search(ctx, search.Request{Query: queryText, Mode: search.Mode(*mode)})
	if err != nil {
		var rej *domain.RejectedError
		if errors.As(err, &rej) {
			fmt.Fprintf(os.Stderr, "query rejected (score %d): %s\n", rej.Score, rej.Reason)
			os.Exit(1)
		}
		fatal(logger, "search", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			fatal(logger, "encode", err)
		}
		return
	}

	printResponse(resp, time.Since(start))
}

func printResponse(resp *search.Response, took time.Duration) {
	if resp.Degraded {
		fmt.Printf("DEGRADED: %s\n", resp.DegradedReason)
	}
	fmt.Printf("mode=%s results=%d took=%s\n\n", resp.Mode, len(resp.Results), took.Round(time.Millisecond))

	for i, r := range resp.Results {
		t := r.Trial
		fmt.Printf("%2d. %-12s %.4f  %s\n", i+1, t.NCTID, r.FusedScore, t.Title)
		fmt.Printf("    %s | %s | enrollment %d | quality %.0f\n",
			t.Phase, t.Status, t.Enrollment, t.QualityScore)
	}

	if resp.Answer != nil {
		fmt.Printf("\nANSWER: %s\n", resp.Answer.Text)
		if len(resp.Answer.Citations) > 0 {
			fmt.Printf("  cites: %s\n", strings.Join(resp.Answer.Citations, ", "))
		}
	}

	if len(resp.Related) > 0 {
		fmt.Println("\nRELATED:")
		for _, t := range resp.Related {
			fmt.Printf("  %-12s %s\n", t.NCTID, t.Title)
		}
	}
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "err", err)
	os.Exit(1)
}
