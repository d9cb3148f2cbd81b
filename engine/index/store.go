// Package index owns the Neo4j trial index: node upserts during ingestion,
// the full-text keyword search the engine retrieves from, and the condition
// graph used for related-trial lookups.
package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/TrialScopeAI/trialscope-mvp/engine/domain"
	"github.com/TrialScopeAI/trialscope-mvp/pkg/repo"
)

// fulltextIndex is the Lucene-backed index over trial text properties.
const fulltextIndex = "trialText"

// Hit is a single keyword match with its raw Lucene score.
type Hit struct {
	Trial domain.TrialRecord
	Score float64
}

// result is the minimal interface needed from a neo4j result.
type result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
}

// runner is the minimal interface needed from a neo4j session.
type runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (result, error)
	Close(ctx context.Context) error
}

type sessionAdapter struct {
	sess neo4j.SessionWithContext
}

func (a *sessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (result, error) {
	return a.sess.Run(ctx, cypher, params)
}

func (a *sessionAdapter) Close(ctx context.Context) error {
	return a.sess.Close(ctx)
}

// TrialStore provides trial index operations on top of the generic Neo4j
// repository.
type TrialStore struct {
	driver     neo4j.DriverWithContext
	trials     *repo.Neo4jRepo[domain.TrialRecord, string]
	newSession func(ctx context.Context) runner // for testing
}

// New creates a TrialStore.
func New(driver neo4j.DriverWithContext) *TrialStore {
	return &TrialStore{
		driver: driver,
		trials: repo.NewNeo4jRepo[domain.TrialRecord, string](
			driver,
			"Trial",
			trialToMap,
			trialFromRecord,
			repo.WithIDKey[domain.TrialRecord, string]("nct_id"),
		),
	}
}

func (s *TrialStore) session(ctx context.Context) runner {
	if s.newSession != nil {
		return s.newSession(ctx)
	}
	return &sessionAdapter{sess: s.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

// EnsureSchema creates the uniqueness constraint and the full-text index.
func (s *TrialStore) EnsureSchema(ctx context.Context) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	stmts := []string{
		`CREATE CONSTRAINT trial_nct_id IF NOT EXISTS
		 FOR (t:Trial) REQUIRE t.nct_id IS UNIQUE`,
		`CREATE CONSTRAINT condition_name IF NOT EXISTS
		 FOR (c:Condition) REQUIRE c.name IS UNIQUE`,
		fmt.Sprintf(
			`CREATE FULLTEXT INDEX %s IF NOT EXISTS
			 FOR (t:Trial) ON EACH [t.title, t.official_title, t.summary, t.description,
			 t.conditions_text, t.interventions_text, t.keywords_text, t.locations_text, t.sponsor]`,
			fulltextIndex),
	}
	for _, stmt := range stmts {
		if _, err := sess.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("index: ensure schema: %w", err)
		}
	}
	return nil
}

// Get returns one trial by registry identifier.
func (s *TrialStore) Get(ctx context.Context, nctID string) (domain.TrialRecord, error) {
	return s.trials.Get(ctx, nctID)
}

// SaveBatch upserts trials and their condition edges in one session.
func (s *TrialStore) SaveBatch(ctx context.Context, trials []domain.TrialRecord) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	for _, t := range trials {
		if _, err := sess.Run(ctx,
			`MERGE (t:Trial {nct_id: $id}) SET t += $props`,
			map[string]any{"id": t.NCTID, "props": trialToMap(t)},
		); err != nil {
			return fmt.Errorf("index: save trial %s: %w", t.NCTID, err)
		}
		if len(t.Conditions) == 0 {
			continue
		}
		if _, err := sess.Run(ctx,
			`MATCH (t:Trial {nct_id: $id})
			 UNWIND $conditions AS name
			 MERGE (c:Condition {name: name})
			 MERGE (t)-[:HAS_CONDITION]->(c)`,
			map[string]any{"id": t.NCTID, "conditions": lowerAll(t.Conditions)},
		); err != nil {
			return fmt.Errorf("index: link conditions for %s: %w", t.NCTID, err)
		}
	}
	return nil
}

// Delete removes a trial node and its relationships.
func (s *TrialStore) Delete(ctx context.Context, nctID string) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.Run(ctx,
		`MATCH (t:Trial {nct_id: $id}) DETACH DELETE t`,
		map[string]any{"id": nctID})
	if err != nil {
		return fmt.Errorf("index: delete trial %s: %w", nctID, err)
	}
	return nil
}

// SearchKeyword runs field-boosted full-text retrieval. Analysis fields that
// resolved become filters on top of the Lucene match; hits come back ordered
// by raw score descending.
func (s *TrialStore) SearchKeyword(ctx context.Context, analysis domain.QueryAnalysis, limit int) ([]Hit, error) {
	lucene := luceneQuery(analysis.Keywords)
	if lucene == "" {
		return nil, nil
	}
	sess := s.session(ctx)
	defer sess.Close(ctx)

	minEnroll, maxEnroll := enrollmentBounds(analysis.Enrollment)
	cypher := fmt.Sprintf(
		`CALL db.index.fulltext.queryNodes('%s', $q) YIELD node, score
		 WHERE ($phase = '' OR node.phase = $phase)
		   AND ($status = '' OR node.status = $status)
		   AND ($sponsor = '' OR toLower(node.sponsor) CONTAINS $sponsor)
		   AND ($location = '' OR toLower(node.locations_text) CONTAINS $location)
		   AND ($minEnroll = 0 OR node.enrollment >= $minEnroll)
		   AND ($maxEnroll = 0 OR node.enrollment <= $maxEnroll)
		 RETURN node AS n, score
		 ORDER BY score DESC
		 LIMIT $limit`, fulltextIndex)

	res, err := sess.Run(ctx, cypher, map[string]any{
		"q":         lucene,
		"phase":     string(analysis.Phase),
		"status":    string(analysis.Status),
		"sponsor":   strings.ToLower(analysis.Sponsor),
		"location":  strings.ToLower(analysis.Location),
		"minEnroll": minEnroll,
		"maxEnroll": maxEnroll,
		"limit":     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("index: keyword search: %w", err)
	}

	var hits []Hit
	for res.Next(ctx) {
		rec := res.Record()
		trial, err := trialFromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("index: keyword search: %w", err)
		}
		score, _ := rec.Get("score")
		f, _ := score.(float64)
		hits = append(hits, Hit{Trial: trial, Score: f})
	}
	return hits, nil
}

// RelatedTrials returns trials linked to any of the given conditions,
// best quality first.
func (s *TrialStore) RelatedTrials(ctx context.Context, conditions []string, limit int) ([]domain.TrialRecord, error) {
	if len(conditions) == 0 || limit <= 0 {
		return nil, nil
	}
	sess := s.session(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx,
		`MATCH (c:Condition)<-[:HAS_CONDITION]-(t:Trial)
		 WHERE c.name IN $conditions
		 RETURN DISTINCT t AS n
		 ORDER BY n.quality_score DESC
		 LIMIT $limit`,
		map[string]any{"conditions": lowerAll(conditions), "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("index: related trials: %w", err)
	}

	var trials []domain.TrialRecord
	for res.Next(ctx) {
		t, err := trialFromRecord(res.Record())
		if err != nil {
			return nil, fmt.Errorf("index: related trials: %w", err)
		}
		trials = append(trials, t)
	}
	return trials, nil
}

// enrollmentBounds maps a size bucket to inclusive enrollment bounds; zero
// means unbounded on that side.
func enrollmentBounds(b domain.EnrollmentBucket) (min, max int) {
	switch b {
	case domain.EnrollmentSmall:
		return 0, 99
	case domain.EnrollmentMedium:
		return 100, 500
	case domain.EnrollmentLarge:
		return 501, 0
	default:
		return 0, 0
	}
}

func lowerAll(vals []string) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = strings.ToLower(v)
	}
	return out
}
