// Command ingest consumes registry records from NATS and runs them through
// the ingestion pipeline into Neo4j and Qdrant. With -file it instead
// publishes a local JSON export onto the ingest subject and exits.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/TrialScopeAI/trialscope-mvp/engine/ingest"
	"github.com/TrialScopeAI/trialscope-mvp/engine/index"
	"github.com/TrialScopeAI/trialscope-mvp/engine/semantic"
	"github.com/TrialScopeAI/trialscope-mvp/pkg/gemini"
	"github.com/TrialScopeAI/trialscope-mvp/pkg/metrics"
	"github.com/TrialScopeAI/trialscope-mvp/pkg/natsutil"
)

var met = metrics.New()

var (
	mIndexed = met.Counter("trialscope_ingest_indexed_total", "Trials indexed")
	mSkipped = met.Counter("trialscope_ingest_skipped_total", "Trials skipped by dedup")
)

func main() {
	var (
		natsURL      = flag.String("nats", nats.DefaultURL, "NATS server URL")
		file         = flag.String("file", "", "publish a registry JSON export and exit")
		geminiKey    = flag.String("gemini-key", os.Getenv("GEMINI_API_KEY"), "Gemini API key")
		neo4jURL     = flag.String("neo4j", "neo4j://localhost:7687", "Neo4j bolt URL")
		neo4jUser    = flag.String("neo4j-user", "neo4j", "Neo4j username")
		neo4jPass    = flag.String("neo4j-pass", "password", "Neo4j password")
		qdrantAddr   = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		collection   = flag.String("collection", "trials", "Qdrant collection name")
		metricsPort  = flag.Int("metrics-port", 9091, "metrics HTTP port")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	nc, err := nats.Connect(*natsURL)
	if err != nil {
		log.Error("nats connect failed", "error", err)
		os.Exit(1)
	}
	defer nc.Drain()

	if *file != "" {
		if err := publishFile(ctx, nc, *file); err != nil {
			log.Error("publish failed", "error", err)
			os.Exit(1)
		}
		return
	}

	met.ServeAsync(*metricsPort)

	// Connect Neo4j
	driver, err := neo4j.NewDriverWithContext(*neo4jURL, neo4j.BasicAuth(*neo4jUser, *neo4jPass, ""))
	if err != nil {
		log.Error("neo4j connect failed", "error", err)
		os.Exit(1)
	}
	defer driver.Close(ctx)
	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Error("neo4j verify failed", "error", err)
		os.Exit(1)
	}

	trialStore := index.New(driver)
	if err := trialStore.EnsureSchema(ctx); err != nil {
		log.Error("neo4j ensure schema failed", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Neo4j")

	// Connect Qdrant
	vs, err := semantic.New(*qdrantAddr, *collection)
	if err != nil {
		log.Error("qdrant connect failed", "error", err)
		os.Exit(1)
	}
	defer vs.Close()
	if err := vs.EnsureCollection(ctx, semantic.EmbeddingDims); err != nil {
		log.Error("qdrant ensure collection failed", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Qdrant", "collection", *collection, "dims", semantic.EmbeddingDims)

	provider := gemini.New(gemini.Config{APIKey: *geminiKey, RequestsPerSecond: 2})

	// In-process dedup; restarting the consumer re-checks against the index.
	var mu sync.Mutex
	seen := make(map[string]bool)

	sub, err := ingest.StartConsumer(nc, ingest.Deps{
		Embedder:    provider,
		VectorStore: vs,
		TrialStore:  trialStore,
		SkipF: func(_ context.Context, nctID string) (bool, error) {
			mu.Lock()
			defer mu.Unlock()
			if seen[nctID] {
				mSkipped.Inc()
				return true, nil
			}
			seen[nctID] = true
			mIndexed.Inc()
			return false, nil
		},
		Logger: log,
	})
	if err != nil {
		log.Error("subscribe failed", "error", err)
		os.Exit(1)
	}
	defer sub.Unsubscribe()

	log.Info("consuming", "subject", ingest.IngestSubject)
	<-ctx.Done()
	log.Info("shutting down")
}

// publishFile reads a registry export (a JSON array or a stream of objects)
// and publishes each record onto the ingest subject.
func publishFile(ctx context.Context, nc *nats.Conn, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var trials []ingest.RawTrial
	if err := json.Unmarshal(data, &trials); err != nil {
		// Fall back to newline-delimited objects.
		dec := json.NewDecoder(strings.NewReader(string(data)))
		for {
			var t ingest.RawTrial
			if err := dec.Decode(&t); err != nil {
				break
			}
			trials = append(trials, t)
		}
	}
	if len(trials) == 0 {
		return fmt.Errorf("no trials found in %s", path)
	}

	for _, t := range trials {
		if err := natsutil.Publish(ctx, nc, ingest.IngestSubject, t); err != nil {
			return fmt.Errorf("publish %s: %w", t.NCTID, err)
		}
	}
	slog.Info("published", "trials", len(trials), "subject", ingest.IngestSubject)
	return nc.Flush()
}
