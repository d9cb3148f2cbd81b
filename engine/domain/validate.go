package domain

import (
	"regexp"
	"strings"
)

// Injection patterns: SQL/NoSQL fragments that should never appear in a user query.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(DROP|DELETE|INSERT|UPDATE|ALTER|EXEC|UNION)\b.*\b(TABLE|FROM|INTO|SELECT|SET)\b`),
	regexp.MustCompile(`(?i)(--|;)\s*(DROP|DELETE|SELECT)`),
	regexp.MustCompile(`(?i)\$\{.*\}`),            // template injection
	regexp.MustCompile(`(?i)\{\s*"\$[a-z]+"\s*:`), // NoSQL operator injection
}

// ValidateQuery performs the cheap local gate on raw query text before any
// provider call is attempted. Domain relevance is judged separately by the
// query classifier; this only blocks input that must never reach a backend.
func ValidateQuery(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrQueryEmpty
	}
	for _, pat := range injectionPatterns {
		if pat.MatchString(text) {
			return ErrQueryInjection
		}
	}
	return nil
}

// NormalizeQuery canonicalizes query text for cache keys and analysis:
// trimmed, whitespace-collapsed, case-folded.
func NormalizeQuery(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}
