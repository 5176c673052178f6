// Package sanitize strips markup from user supplied free text.
package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Text removes every HTML element from input and trims surrounding space.
func Text(input string) string {
	return strings.TrimSpace(strict.Sanitize(input))
}

// Ptr sanitises an optional value. Blank results become nil.
func Ptr(input *string) *string {
	if input == nil {
		return nil
	}
	out := Text(*input)
	if out == "" {
		return nil
	}
	return &out
}

// Tags sanitises, de-duplicates and drops empty labels, keeping order.
func Tags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		clean := Text(tag)
		if clean == "" {
			continue
		}
		key := strings.ToLower(clean)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, clean)
	}
	return out
}
