package domain

import "strings"

// Major industry sponsors recognised by name when the sponsor class is
// missing from the source record.
var industrySponsors = []string{
	"pfizer", "novartis", "roche", "merck", "astrazeneca",
	"bristol", "johnson", "abbvie", "gilead", "amgen",
	"sanofi", "gsk", "bayer", "eli lilly", "takeda",
}

// IsIndustrySponsor reports whether a trial is industry-sponsored, using the
// sponsor class when present and the sponsor name otherwise.
func IsIndustrySponsor(t TrialRecord) bool {
	if t.SponsorClass == SponsorIndustry {
		return true
	}
	if t.SponsorClass != SponsorUnspecified {
		return false
	}
	lower := strings.ToLower(t.Sponsor)
	for _, s := range industrySponsors {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// QualityScore rates a trial record 0-100 on completeness, sponsor, study
// design, enrollment size, and recency. startYear is evaluated against
// nowYear so scoring stays reproducible in tests. Computed once at index
// time and stored on the record.
func QualityScore(t TrialRecord, nowYear int) float64 {
	score := 0.0

	// Completeness (40 points).
	required := []bool{
		t.Title != "",
		t.OfficialTitle != "",
		t.Summary != "",
		t.Phase != PhaseNone,
		t.Status != StatusUnspecified,
		t.Enrollment > 0,
		t.Sponsor != "",
	}
	filled := 0
	for _, ok := range required {
		if ok {
			filled++
		}
	}
	score += float64(filled) / float64(len(required)) * 40

	// Detailed description (10 points).
	if t.Description != "" {
		score += 10
	}

	// Sponsor quality (15 points).
	lower := strings.ToLower(t.Sponsor)
	named := false
	for _, s := range industrySponsors {
		if strings.Contains(lower, s) {
			named = true
			break
		}
	}
	switch {
	case named:
		score += 15
	case t.SponsorClass == SponsorIndustry:
		score += 12
	case t.Sponsor != "":
		score += 8
	}

	// Study design (15 points).
	if t.Randomized {
		score += 5
	}
	if t.Blinded {
		score += 5
	}
	if t.HasDMC {
		score += 5
	}

	// Enrollment size (10 points).
	switch {
	case t.Enrollment >= 1000:
		score += 10
	case t.Enrollment >= 500:
		score += 8
	case t.Enrollment >= 100:
		score += 5
	case t.Enrollment >= 50:
		score += 3
	}

	// Recency (10 points).
	if !t.StartDate.IsZero() {
		switch age := nowYear - t.StartDate.Year(); {
		case age <= 0:
			score += 10
		case age == 1:
			score += 8
		case age == 2:
			score += 5
		case age <= 5:
			score += 3
		}
	}

	if score > 100 {
		score = 100
	}
	return score
}
