// Package strings provides helpers for string-backed identifiers.
package strings

import (
	"strings"
)

// DedupeAndTrim trims every value and drops empty values and repeats,
// keeping first-seen order. It works on any string-backed type, so typed IDs
// keep their type.
//
// Example:
//
//	DedupeAndTrim([]domain.ChallengeID{" walk ", "run", "walk", ""})
//	// Returns: []domain.ChallengeID{"walk", "run"}
func DedupeAndTrim[T ~string](values []T) []T {
	if len(values) == 0 {
		return values
	}

	seen := make(map[T]struct{}, len(values))
	result := make([]T, 0, len(values))
	for _, v := range values {
		trimmed := T(strings.TrimSpace(string(v)))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}
