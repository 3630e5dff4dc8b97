// Package strings holds list parsing helpers for configuration values.
package strings

import "strings"

// SplitUnique splits raw on sep, trims each element, and drops empty and
// repeated elements. First occurrence wins, so order is preserved.
func SplitUnique(raw, sep string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	seen := map[string]struct{}{}
	for part := range strings.SplitSeq(raw, sep) {
		p := strings.TrimSpace(part)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
