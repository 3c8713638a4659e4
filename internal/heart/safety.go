package heart

import (
	"context"
	"strings"
)

// SafetyPredicate evaluates the i_nssi (non-self-sacrificing) invariant.
// False marks an action as unconditionally unsafe: no later validation
// call may accept the same unmodified action.
type SafetyPredicate interface {
	Safe(ctx context.Context, action, intent string) bool
}

// PatternPredicate flags actions matching known self-sabotage patterns.
type PatternPredicate struct {
	patterns []string
}

// defaultDangerPatterns are commands that would degrade the system's own
// validation machinery.
var defaultDangerPatterns = []string{
	"delete safety",
	"disable heart",
	"remove validation",
	"shutdown sovereign",
	"bypass alignment",
	"remove heart",
	"disable conscience",
}

// NewPatternPredicate creates a predicate over the given patterns, or
// the default self-sabotage list when none are given.
func NewPatternPredicate(patterns ...string) *PatternPredicate {
	if len(patterns) == 0 {
		patterns = defaultDangerPatterns
	}
	return &PatternPredicate{patterns: patterns}
}

// Safe returns false when the action contains any danger pattern.
func (p *PatternPredicate) Safe(_ context.Context, action, _ string) bool {
	lower := strings.ToLower(action)
	for _, pattern := range p.patterns {
		if strings.Contains(lower, pattern) {
			return false
		}
	}
	return true
}
