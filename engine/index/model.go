package index

import (
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/TrialScopeAI/trialscope-mvp/engine/domain"
)

// trialToMap flattens a trial into Trial node properties. List fields are
// stored twice: as arrays for exact reads and as joined *_text properties
// for the full-text index, which only covers strings.
func trialToMap(t domain.TrialRecord) map[string]any {
	m := map[string]any{
		"nct_id":         t.NCTID,
		"title":          t.Title,
		"official_title": t.OfficialTitle,
		"summary":        t.Summary,
		"description":    t.Description,
		"phase":          string(t.Phase),
		"status":         string(t.Status),
		"enrollment":     t.Enrollment,
		"sponsor":        t.Sponsor,
		"sponsor_class":  string(t.SponsorClass),
		"conditions":     t.Conditions,
		"interventions":  t.Interventions,
		"locations":      t.Locations,
		"keywords":       t.Keywords,
		"has_dmc":        t.HasDMC,
		"randomized":     t.Randomized,
		"blinded":        t.Blinded,
		"quality_score":  t.QualityScore,

		"conditions_text":    strings.Join(t.Conditions, " "),
		"interventions_text": strings.Join(t.Interventions, " "),
		"locations_text":     strings.Join(t.Locations, " "),
		"keywords_text":      strings.Join(t.Keywords, " "),
	}
	if !t.StartDate.IsZero() {
		m["start_date"] = t.StartDate.Format(time.RFC3339)
	}
	return m
}

// trialFromRecord reads a Trial node returned as "n".
func trialFromRecord(rec *neo4j.Record) (domain.TrialRecord, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return domain.TrialRecord{}, err
	}
	return trialFromProps(node.Props), nil
}

func trialFromProps(props map[string]any) domain.TrialRecord {
	t := domain.TrialRecord{
		NCTID:         strProp(props, "nct_id"),
		Title:         strProp(props, "title"),
		OfficialTitle: strProp(props, "official_title"),
		Summary:       strProp(props, "summary"),
		Description:   strProp(props, "description"),
		Phase:         domain.Phase(strProp(props, "phase")),
		Status:        domain.Status(strProp(props, "status")),
		Enrollment:    intProp(props, "enrollment"),
		Sponsor:       strProp(props, "sponsor"),
		SponsorClass:  domain.SponsorClass(strProp(props, "sponsor_class")),
		Conditions:    listProp(props, "conditions"),
		Interventions: listProp(props, "interventions"),
		Locations:     listProp(props, "locations"),
		Keywords:      listProp(props, "keywords"),
		HasDMC:        boolProp(props, "has_dmc"),
		Randomized:    boolProp(props, "randomized"),
		Blinded:       boolProp(props, "blinded"),
		QualityScore:  floatProp(props, "quality_score"),
	}
	if s := strProp(props, "start_date"); s != "" {
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			t.StartDate = ts
		}
	}
	return t
}

// luceneQuery builds the field-boosted query string for one keyword set.
// Title matches weigh most, then conditions and curated keywords, then the
// summaries. Terms combine with OR so partial matches still rank.
func luceneQuery(keywords []string) string {
	var groups []string
	for _, kw := range keywords {
		term := escapeLucene(strings.TrimSpace(kw))
		if term == "" {
			continue
		}
		if strings.ContainsAny(term, " \t") {
			term = `"` + term + `"`
		}
		groups = append(groups, "("+strings.Join([]string{
			"title:" + term + "^4",
			"conditions_text:" + term + "^3",
			"keywords_text:" + term + "^3",
			"official_title:" + term + "^2",
			"summary:" + term + "^2",
			"interventions_text:" + term + "^2",
			"description:" + term,
			"sponsor:" + term,
			"locations_text:" + term,
		}, " OR ") + ")")
	}
	return strings.Join(groups, " OR ")
}

// escapeLucene neutralises Lucene operator characters in a term.
func escapeLucene(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '+', '-', '&', '|', '!', '(', ')', '{', '}', '[', ']', '^',
			'"', '~', '*', '?', ':', '\\', '/':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func strProp(props map[string]any, key string) string {
	if s, ok := props[key].(string); ok {
		return s
	}
	return ""
}

func intProp(props map[string]any, key string) int {
	switch v := props[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func floatProp(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func boolProp(props map[string]any, key string) bool {
	b, _ := props[key].(bool)
	return b
}

func listProp(props map[string]any, key string) []string {
	raw, ok := props[key].([]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
