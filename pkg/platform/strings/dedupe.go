// Package strings holds small string helpers shared by the search and
// directory code.
package strings

import (
	"strings"
)

// UniqueFields splits s on whitespace and drops repeated fields, keeping the
// first occurrence of each in order.
//
//	UniqueFields("ann  lee ann") // []string{"ann", "lee"}
func UniqueFields(s string) []string {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return fields
	}
	seen := make(map[string]struct{}, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
