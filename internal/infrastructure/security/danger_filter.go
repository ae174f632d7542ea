package security

import (
	"strings"

	"github.com/doeshing/vrelay/internal/ports"
)

// DefaultDenylist holds the substrings that mark a fragment as destructive.
var DefaultDenylist = []string{
	"rm -rf",
	"deltree",
	"format",
	"mkfs",
	"shutdown",
	"reboot",
	"halt",
	":(){ :|:& };:",
}

// DangerFilter implements ports.DangerFilter with a case-insensitive
// substring denylist. It holds no mutable state.
type DangerFilter struct {
	patterns []string
}

// NewDangerFilter returns a filter over DefaultDenylist plus any extra patterns.
func NewDangerFilter(extra ...string) *DangerFilter {
	patterns := make([]string, 0, len(DefaultDenylist)+len(extra))
	for _, p := range append(append([]string{}, DefaultDenylist...), extra...) {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			patterns = append(patterns, p)
		}
	}
	return &DangerFilter{patterns: patterns}
}

// IsDangerous reports whether text contains any denylisted pattern.
func (f *DangerFilter) IsDangerous(text string) bool {
	_, matched := f.Match(text)
	return matched
}

// Match returns the first denylisted pattern found in text.
func (f *DangerFilter) Match(text string) (string, bool) {
	lowered := strings.ToLower(text)
	for _, pattern := range f.patterns {
		if strings.Contains(lowered, pattern) {
			return pattern, true
		}
	}
	return "", false
}

// Patterns returns a copy of the active denylist.
func (f *DangerFilter) Patterns() []string {
	return append([]string(nil), f.patterns...)
}

var _ ports.DangerFilter = (*DangerFilter)(nil)
