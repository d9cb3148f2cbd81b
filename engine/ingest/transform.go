package ingest

import (
	"strings"
	"time"

	"github.com/TrialScopeAI/trialscope-mvp/engine/domain"
)

// startDateFormats covers the date shapes seen in registry exports.
var startDateFormats = []string{
	"2006-01-02",
	"2006-01",
	"January 2, 2006",
	"January 2006",
}

func parseStartDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range startDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// toTrialRecord normalizes a raw record into the domain shape and scores it.
func toTrialRecord(raw RawTrial, now time.Time) domain.TrialRecord {
	t := domain.TrialRecord{
		NCTID:         strings.ToUpper(strings.TrimSpace(raw.NCTID)),
		Title:         strings.TrimSpace(raw.BriefTitle),
		OfficialTitle: strings.TrimSpace(raw.OfficialTitle),
		Summary:       strings.TrimSpace(raw.BriefSummary),
		Description:   strings.TrimSpace(raw.DetailedDescription),
		Phase:         normalizePhase(raw.Phase),
		Status:        normalizeStatus(raw.OverallStatus),
		Enrollment:    raw.Enrollment,
		Sponsor:       strings.TrimSpace(raw.LeadSponsor),
		SponsorClass:  normalizeSponsorClass(raw.SponsorClass),
		Conditions:    cleanList(raw.Conditions),
		Interventions: cleanList(raw.Interventions),
		Locations:     cleanList(raw.Locations),
		Keywords:      cleanList(raw.Keywords),
		StartDate:     parseStartDate(raw.StartDate),
		HasDMC:        raw.HasDMC,
		Randomized:    strings.EqualFold(strings.TrimSpace(raw.Allocation), "RANDOMIZED"),
		Blinded:       isBlinded(raw.Masking),
	}
	t.QualityScore = domain.QualityScore(t, now.Year())
	return t
}

func normalizePhase(s string) domain.Phase {
	switch p := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", "")); p {
	case string(domain.Phase1), string(domain.Phase2), string(domain.Phase3), string(domain.Phase4):
		return domain.Phase(p)
	}
	// Registry exports also spell phases as "Phase 3" or "PHASE2/PHASE3".
	return domain.PhaseFromText(s)
}

func normalizeStatus(s string) domain.Status {
	switch st := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", "_")); st {
	case string(domain.StatusRecruiting), string(domain.StatusNotYetOpen),
		string(domain.StatusActive), string(domain.StatusCompleted),
		string(domain.StatusTerminated), string(domain.StatusSuspended),
		string(domain.StatusWithdrawn):
		return domain.Status(st)
	}
	return domain.StatusFromText(s)
}

func normalizeSponsorClass(s string) domain.SponsorClass {
	switch c := strings.ToUpper(strings.TrimSpace(s)); c {
	case string(domain.SponsorIndustry), string(domain.SponsorNIH),
		string(domain.SponsorFed), string(domain.SponsorOther):
		return domain.SponsorClass(c)
	}
	return domain.SponsorUnspecified
}

func isBlinded(masking string) bool {
	m := strings.ToUpper(strings.TrimSpace(masking))
	return m != "" && m != "NONE" && m != "OPEN_LABEL" && m != "OPEN LABEL"
}

func cleanList(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// searchableText is the document text that gets embedded: the fields a
// clinician would describe the trial by, most salient first.
func searchableText(t domain.TrialRecord) string {
	parts := make([]string, 0, 6)
	add := func(s string) {
		if s != "" {
			parts = append(parts, s)
		}
	}
	add(t.Title)
	add(strings.Join(t.Conditions, ", "))
	add(strings.Join(t.Interventions, ", "))
	add(t.Summary)
	add(strings.Join(t.Keywords, ", "))
	return strings.Join(parts, "\n")
}
