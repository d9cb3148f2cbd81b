package domain

import (
	"regexp"
	"strings"
)

// phasePattern matches "phase 3", "phase iii", "phase-3" and bare "p3".
var phasePattern = regexp.MustCompile(`(?i)\b(?:phase[\s-]*|p)(1|2|3|4|i{1,3}v?|iv)\b`)

var romanPhases = map[string]Phase{
	"i": Phase1, "ii": Phase2, "iii": Phase3, "iv": Phase4,
	"1": Phase1, "2": Phase2, "3": Phase3, "4": Phase4,
}

// PhaseFromText extracts a trial phase mentioned in free text.
func PhaseFromText(text string) Phase {
	m := phasePattern.FindStringSubmatch(text)
	if m == nil {
		return PhaseNone
	}
	return romanPhases[strings.ToLower(m[1])]
}

// statusAliases maps recruitment-status phrasings to canonical statuses.
// Multi-word aliases are matched first.
var statusAliases = []struct {
	alias  string
	status Status
}{
	{"not yet recruiting", StatusNotYetOpen},
	{"active not recruiting", StatusActive},
	{"no longer recruiting", StatusActive},
	{"recruiting", StatusRecruiting},
	{"enrolling", StatusRecruiting},
	{"accepting patients", StatusRecruiting},
	{"open", StatusRecruiting},
	{"ongoing", StatusRecruiting},
	{"completed", StatusCompleted},
	{"finished", StatusCompleted},
	{"terminated", StatusTerminated},
	{"stopped", StatusTerminated},
	{"halted", StatusTerminated},
	{"suspended", StatusSuspended},
	{"withdrawn", StatusWithdrawn},
}

// StatusFromText extracts a recruitment status mentioned in free text.
func StatusFromText(text string) Status {
	lower := strings.ToLower(text)
	for _, s := range statusAliases {
		if containsWord(lower, s.alias) {
			return s.status
		}
	}
	return StatusUnspecified
}

// conditionAliases normalizes common condition phrasings to a canonical name.
var conditionAliases = map[string]string{
	"diabetes":         "diabetes",
	"type 2 diabetes":  "diabetes",
	"type 1 diabetes":  "diabetes",
	"t2d":              "diabetes",
	"t1d":              "diabetes",
	"diabetic":         "diabetes",
	"cancer":           "cancer",
	"tumor":            "cancer",
	"tumour":           "cancer",
	"carcinoma":        "cancer",
	"oncology":         "cancer",
	"leukemia":         "leukemia",
	"lymphoma":         "lymphoma",
	"melanoma":         "melanoma",
	"breast cancer":    "breast cancer",
	"lung cancer":      "lung cancer",
	"hypertension":     "hypertension",
	"high blood pressure": "hypertension",
	"heart failure":    "heart failure",
	"chf":              "heart failure",
	"alzheimer":        "alzheimer disease",
	"alzheimers":       "alzheimer disease",
	"alzheimer's":      "alzheimer disease",
	"dementia":         "dementia",
	"parkinson":        "parkinson disease",
	"parkinson's":      "parkinson disease",
	"asthma":           "asthma",
	"copd":             "copd",
	"covid":            "covid-19",
	"covid-19":         "covid-19",
	"coronavirus":      "covid-19",
	"depression":       "depression",
	"mdd":              "depression",
	"anxiety":          "anxiety",
	"obesity":          "obesity",
	"overweight":       "obesity",
	"arthritis":        "arthritis",
	"rheumatoid arthritis": "rheumatoid arthritis",
	"ra":               "rheumatoid arthritis",
	"multiple sclerosis": "multiple sclerosis",
	"ms":               "multiple sclerosis",
	"hiv":              "hiv",
	"hepatitis":        "hepatitis",
	"stroke":           "stroke",
	"migraine":         "migraine",
	"epilepsy":         "epilepsy",
	"psoriasis":        "psoriasis",
	"crohn":            "crohn disease",
	"crohn's":          "crohn disease",
}

// ConditionFromText extracts a canonical condition from free text, preferring
// longer (more specific) aliases.
func ConditionFromText(text string) string {
	lower := strings.ToLower(text)
	best := ""
	bestLen := 0
	for alias, canonical := range conditionAliases {
		if len(alias) > bestLen && containsWord(lower, alias) {
			best = canonical
			bestLen = len(alias)
		}
	}
	return best
}

var ageAliases = []struct {
	alias string
	group AgeGroup
}{
	{"children", AgeChild}, {"pediatric", AgeChild}, {"paediatric", AgeChild},
	{"kids", AgeChild}, {"adolescents", AgeChild},
	{"elderly", AgeOlderAdult}, {"older adults", AgeOlderAdult},
	{"seniors", AgeOlderAdult}, {"geriatric", AgeOlderAdult},
	{"adults", AgeAdult},
}

// AgeGroupFromText extracts an age group mentioned in free text.
func AgeGroupFromText(text string) AgeGroup {
	lower := strings.ToLower(text)
	for _, a := range ageAliases {
		if containsWord(lower, a.alias) {
			return a.group
		}
	}
	return AgeUnspecified
}

// EnrollmentFromText extracts a trial-size bucket mentioned in free text.
func EnrollmentFromText(text string) EnrollmentBucket {
	lower := strings.ToLower(text)
	switch {
	case containsWord(lower, "large"):
		return EnrollmentLarge
	case containsWord(lower, "small"):
		return EnrollmentSmall
	default:
		return EnrollmentUnspecified
	}
}

// Stop words filtered out of residual keywords. Includes generic trial
// vocabulary that carries no retrieval signal.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "can": true, "shall": true, "to": true,
	"of": true, "in": true, "for": true, "on": true, "with": true,
	"at": true, "by": true, "from": true, "as": true, "into": true,
	"what": true, "where": true, "when": true, "how": true, "which": true,
	"who": true, "there": true, "this": true, "that": true, "these": true,
	"those": true, "i": true, "me": true, "my": true, "it": true,
	"its": true, "and": true, "but": true, "or": true, "not": true,
	"any": true, "about": true, "near": true, "find": true, "show": true,
	"trial": true, "trials": true, "study": true, "studies": true,
	"clinical": true, "phase": true, "patients": true,
}

// ExtractKeywords returns the residual search keywords from a query after
// stop-word and short-token filtering.
func ExtractKeywords(text string) []string {
	words := strings.Fields(strings.ToLower(text))
	var keywords []string
	seen := make(map[string]bool)
	for _, w := range words {
		w = strings.Trim(w, "?.,!;:'\"()-")
		if len(w) > 2 && !stopWords[w] && !seen[w] {
			seen[w] = true
			keywords = append(keywords, w)
		}
	}
	return keywords
}

// containsWord reports whether phrase occurs in text on word boundaries.
func containsWord(text, phrase string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], phrase)
		if i < 0 {
			return false
		}
		i += idx
		end := i + len(phrase)
		beforeOK := i == 0 || !isWordChar(text[i-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = i + 1
	}
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
