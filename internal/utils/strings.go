package utils

import "strings"

// ParseCSV splits a comma-separated string and returns trimmed non-empty
// values. Returns nil for empty/whitespace-only input. Used for watchlist
// symbols and persona id lists supplied via environment variables.
func ParseCSV(s string) []string {
	if s == "" {
		return nil
	}

	var result []string
	for _, v := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return nil
	}

	return result
}

// NormalizeText canonicalizes free text for deduplication and overlap
// matching: lowercase, collapsed whitespace, trailing sentence punctuation
// stripped. Two strings that normalize equal are treated as the same item.
func NormalizeText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimRight(s, ".!?")
}
