package semantic

import (
	"time"

	pb "github.com/qdrant/go-client/qdrant"

	"github.com/TrialScopeAI/trialscope-mvp/engine/domain"
)

// Hit is a single vector search match: the stored trial and its cosine
// similarity to the query.
type Hit struct {
	Trial domain.TrialRecord
	Score float64
}

// trialPayload flattens a trial into a Qdrant point payload. The embedding
// lives in the vector, never the payload.
func trialPayload(t domain.TrialRecord) map[string]*pb.Value {
	p := map[string]*pb.Value{
		"nct_id":        str(t.NCTID),
		"title":         str(t.Title),
		"summary":       str(t.Summary),
		"phase":         str(string(t.Phase)),
		"status":        str(string(t.Status)),
		"enrollment":    num(int64(t.Enrollment)),
		"sponsor":       str(t.Sponsor),
		"sponsor_class": str(string(t.SponsorClass)),
		"conditions":    strList(t.Conditions),
		"interventions": strList(t.Interventions),
		"locations":     strList(t.Locations),
		"quality_score": dbl(t.QualityScore),
	}
	if !t.StartDate.IsZero() {
		p["start_date"] = str(t.StartDate.Format(time.RFC3339))
	}
	return p
}

// trialFromPayload rebuilds the trial projection a search result carries.
func trialFromPayload(p map[string]*pb.Value) domain.TrialRecord {
	t := domain.TrialRecord{
		NCTID:         p["nct_id"].GetStringValue(),
		Title:         p["title"].GetStringValue(),
		Summary:       p["summary"].GetStringValue(),
		Phase:         domain.Phase(p["phase"].GetStringValue()),
		Status:        domain.Status(p["status"].GetStringValue()),
		Enrollment:    int(p["enrollment"].GetIntegerValue()),
		Sponsor:       p["sponsor"].GetStringValue(),
		SponsorClass:  domain.SponsorClass(p["sponsor_class"].GetStringValue()),
		Conditions:    toStrings(p["conditions"]),
		Interventions: toStrings(p["interventions"]),
		Locations:     toStrings(p["locations"]),
		QualityScore:  p["quality_score"].GetDoubleValue(),
	}
	if s := p["start_date"].GetStringValue(); s != "" {
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			t.StartDate = ts
		}
	}
	return t
}

func str(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func num(n int64) *pb.Value {
	return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: n}}
}

func dbl(f float64) *pb.Value {
	return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: f}}
}

func strList(vals []string) *pb.Value {
	list := make([]*pb.Value, len(vals))
	for i, v := range vals {
		list[i] = str(v)
	}
	return &pb.Value{Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: list}}}
}

func toStrings(v *pb.Value) []string {
	list := v.GetListValue().GetValues()
	if len(list) == 0 {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s := item.GetStringValue(); s != "" {
			out = append(out, s)
		}
	}
	return out
}
