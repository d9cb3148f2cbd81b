package query

import (
	"fmt"
	"strings"
)

func validationPrompt(query string) string {
	return fmt.Sprintf(`You are a gatekeeper for a clinical trial search engine.
Rate how relevant the user's query is to clinical trials, medical research,
diseases, treatments, or drug development on a 0-100 scale.
0 means completely unrelated, 100 means clearly about clinical trials.

Respond with ONLY a JSON object, no prose:
{"score": <0-100>, "reason": "<one short sentence>"}

Query: %q`, query)
}

func analysisPrompt(query string) string {
	return fmt.Sprintf(`Extract clinical trial search filters from the user's query.
Use "" for anything the query does not specify. Allowed values:
phase: PHASE1, PHASE2, PHASE3, PHASE4
status: RECRUITING, NOT_YET_RECRUITING, ACTIVE_NOT_RECRUITING, COMPLETED, TERMINATED, SUSPENDED, WITHDRAWN
age_group: CHILD, ADULT, OLDER_ADULT
enrollment: SMALL, MEDIUM, LARGE

Respond with ONLY a JSON object, no prose:
{"condition": "", "phase": "", "status": "", "location": "", "sponsor": "",
 "intervention": "", "age_group": "", "enrollment": "", "keywords": []}

Query: %q`, query)
}

// Interrogative lead-ins that mark a query as a question even without a
// question mark.
var questionMarkers = []string{
	"what", "which", "who", "where", "when", "why", "how",
	"is ", "are ", "can ", "does ", "do ", "should ", "could ", "will ",
}

// IsQuestion reports whether the query reads as a question and so warrants
// a composed answer on top of the ranked results.
func IsQuestion(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return false
	}
	if strings.HasSuffix(q, "?") {
		return true
	}
	for _, m := range questionMarkers {
		if strings.HasPrefix(q, m) {
			return true
		}
	}
	return false
}
