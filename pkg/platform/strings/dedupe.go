// Package strings holds small slice helpers shared by the services.
package strings

import (
	"strings"
)

// Dedupe maps every value through normalize, drops the ones that normalize
// to "" and keeps the first occurrence of each result. Order is preserved.
// A nil normalize only trims whitespace.
func Dedupe(values []string, normalize func(string) string) []string {
	if len(values) == 0 {
		return values
	}
	if normalize == nil {
		normalize = strings.TrimSpace
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		n := normalize(v)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		result = append(result, n)
	}
	return result
}

// DedupeFold is Dedupe with trim plus lowercase, for case-insensitive keys
// such as email recipients.
func DedupeFold(values []string) []string {
	return Dedupe(values, func(s string) string {
		return strings.ToLower(strings.TrimSpace(s))
	})
}
