// Package ingest processes registry records through validation,
// normalization, embedding, and storage stages, consuming them from NATS
// with retry and dead-letter support.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/TrialScopeAI/trialscope-mvp/engine/domain"
	"github.com/TrialScopeAI/trialscope-mvp/engine/embed"
	"github.com/TrialScopeAI/trialscope-mvp/engine/index"
	"github.com/TrialScopeAI/trialscope-mvp/engine/semantic"
	"github.com/TrialScopeAI/trialscope-mvp/pkg/fn"
)

const (
	// IngestSubject is the NATS subject for incoming registry records.
	IngestSubject = "engine.trials.ingest"
	// DLQSubject is the dead letter queue subject for failed messages.
	DLQSubject = "engine.trials.ingest.dlq"
	// MaxRetries before sending to DLQ.
	MaxRetries = 3
)

// Deps holds the external dependencies for the ingestion pipeline.
type Deps struct {
	Embedder    embed.Provider
	VectorStore *semantic.VectorStore
	TrialStore  *index.TrialStore
	// SkipF reports whether a trial is already indexed and unchanged.
	SkipF  func(ctx context.Context, nctID string) (bool, error)
	Logger *slog.Logger
	Now    func() time.Time
}

// --- Pipeline Stages ---

// Validate rejects records that cannot be indexed.
var Validate fn.Stage[RawTrial, RawTrial] = func(_ context.Context, raw RawTrial) fn.Result[RawTrial] {
	if err := ValidateRaw(raw); err != nil {
		return fn.Err[RawTrial](err)
	}
	return fn.Ok(raw)
}

// NewTransform creates the normalization stage. now anchors the quality
// score's recency component.
func NewTransform(now func() time.Time) fn.Stage[RawTrial, domain.TrialRecord] {
	if now == nil {
		now = time.Now
	}
	return func(_ context.Context, raw RawTrial) fn.Result[domain.TrialRecord] {
		return fn.Ok(toTrialRecord(raw, now()))
	}
}

// NewEmbed creates the embedding stage. A failed embedding does not fail
// the message: the trial continues without a vector and is indexed
// keyword-only, so provider outages never block ingestion.
func NewEmbed(provider embed.Provider, log *slog.Logger) fn.Stage[domain.TrialRecord, domain.TrialRecord] {
	if log == nil {
		log = slog.Default()
	}
	return func(ctx context.Context, t domain.TrialRecord) fn.Result[domain.TrialRecord] {
		vec, err := provider.Embed(ctx, searchableText(t))
		if err == nil {
			err = embed.Normalize(vec)
		}
		if err != nil {
			log.Warn("embedding failed, indexing keyword-only", "nct_id", t.NCTID, "err", err)
			t.Embedding = nil
			return fn.Ok(t)
		}
		t.Embedding = vec
		return fn.Ok(t)
	}
}

// NewStore creates the storage stage: the trial index first, then the
// vector collection.
func NewStore(ts *index.TrialStore, vs *semantic.VectorStore) fn.Stage[domain.TrialRecord, string] {
	return func(ctx context.Context, t domain.TrialRecord) fn.Result[string] {
		if err := ts.SaveBatch(ctx, []domain.TrialRecord{t}); err != nil {
			return fn.Err[string](fmt.Errorf("index save: %w", err))
		}
		if err := vs.Upsert(ctx, []domain.TrialRecord{t}); err != nil {
			return fn.Err[string](fmt.Errorf("vector upsert: %w", err))
		}
		return fn.Ok(t.NCTID)
	}
}

// LoggedTap returns a stage that logs entry/exit with duration.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(ctx context.Context, t T) fn.Result[T] {
		log.Info("stage.enter", "stage", name)
		start := time.Now()
		defer func() {
			log.Info("stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

// NewPipeline constructs the full ingestion pipeline with all stages wired.
func NewPipeline(deps Deps) fn.Stage[RawTrial, string] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	validated := fn.Then(LoggedTap[RawTrial]("validate", log), Validate)
	transformed := fn.Then(validated, fn.Then(LoggedTap[RawTrial]("transform", log), NewTransform(deps.Now)))
	embedded := fn.Then(transformed, fn.Then(LoggedTap[domain.TrialRecord]("embed", log), NewEmbed(deps.Embedder, log)))
	stored := fn.Then(embedded, fn.Then(LoggedTap[domain.TrialRecord]("store", log), NewStore(deps.TrialStore, deps.VectorStore)))

	return stored
}

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Trial   RawTrial `json:"trial"`
	Error   string   `json:"error"`
	Retries int      `json:"retries"`
}

// StartConsumer subscribes to the ingest subject and runs each record
// through the pipeline with retry and DLQ support.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	pipeline := NewPipeline(deps)
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return nc.Subscribe(IngestSubject, func(msg *nats.Msg) {
		var raw RawTrial
		if err := json.Unmarshal(msg.Data, &raw); err != nil {
			log.Error("ingest: unmarshal failed", "error", err)
			return
		}

		ctx := context.Background()

		if deps.SkipF != nil {
			skip, err := deps.SkipF(ctx, raw.NCTID)
			if err != nil {
				log.Warn("ingest: skip check failed", "error", err)
			} else if skip {
				log.Info("ingest: already indexed", "nct_id", raw.NCTID)
				if msg.Reply != "" {
					_ = msg.Ack()
				}
				return
			}
		}

		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get("X-Retry-Count"); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		result := pipeline(ctx, raw)
		if result.IsErr() {
			_, pipeErr := result.Unwrap()
			retries++
			log.Error("ingest: pipeline failed",
				"error", pipeErr,
				"nct_id", raw.NCTID,
				"retry", retries,
			)

			if retries >= MaxRetries {
				dlq := dlqMessage{Trial: raw, Error: pipeErr.Error(), Retries: retries}
				data, _ := json.Marshal(dlq)
				if err := nc.Publish(DLQSubject, data); err != nil {
					log.Error("ingest: DLQ publish failed", "error", err)
				}
			} else {
				retryMsg := nats.NewMsg(IngestSubject)
				retryMsg.Data = msg.Data
				retryMsg.Header = nats.Header{}
				retryMsg.Header.Set("X-Retry-Count", fmt.Sprintf("%d", retries))
				if err := nc.PublishMsg(retryMsg); err != nil {
					log.Error("ingest: retry publish failed", "error", err)
				}
			}
		} else {
			nctID, _ := result.Unwrap()
			log.Info("ingest: indexed", "nct_id", nctID)
		}

		if msg.Reply != "" {
			_ = msg.Ack()
		}
	})
}
