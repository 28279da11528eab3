package agent

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/roundtable/engine/pkg/types"
)

// VisibilityFilter controls which event types an observer or agent is
// allowed to receive, using the same glob patterns a command whitelist
// would ("speech.*", "session.**"). A filter with no patterns matches
// everything.
type VisibilityFilter struct {
	patterns []string
}

// NewVisibilityFilter builds a filter from a set of glob patterns.
func NewVisibilityFilter(patterns ...string) VisibilityFilter {
	return VisibilityFilter{patterns: patterns}
}

// Allows reports whether t is visible under this filter.
func (f VisibilityFilter) Allows(t types.EventType) bool {
	if len(f.patterns) == 0 {
		return true
	}
	for _, pattern := range f.patterns {
		if matchWildcard(pattern, string(t)) {
			return true
		}
	}
	return false
}

// matchWildcard matches a glob pattern against s, using doublestar for
// patterns containing "**" and simple prefix/suffix matching otherwise.
func matchWildcard(pattern, s string) bool {
	if pattern == "*" {
		return true
	}
	if strings.Contains(pattern, "**") {
		matched, _ := doublestar.Match(pattern, s)
		return matched
	}
	if strings.HasSuffix(pattern, "*") && !strings.HasPrefix(pattern, "*") {
		return strings.HasPrefix(s, strings.TrimSuffix(pattern, "*"))
	}
	if strings.HasPrefix(pattern, "*") && !strings.HasSuffix(pattern, "*") {
		return strings.HasSuffix(s, strings.TrimPrefix(pattern, "*"))
	}
	if strings.Contains(pattern, "*") {
		matched, _ := doublestar.Match(pattern, s)
		return matched
	}
	return pattern == s
}
