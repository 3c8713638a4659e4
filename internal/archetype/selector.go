package archetype

import "strings"

// Assignment is the result of archetype selection for one subtask.
type Assignment struct {
	Archetype  Archetype
	Complexity float64
}

// Selector maps a subtask description to an archetype and a complexity
// within that archetype's band. Implementations must be total: every
// description maps to exactly one archetype.
type Selector interface {
	Select(description string) Assignment
}

// KeywordSelector classifies by keyword lookup. It is deterministic,
// which keeps goal decomposition reproducible for a fixed configuration.
type KeywordSelector struct{}

// NewKeywordSelector creates the default keyword-based selector.
func NewKeywordSelector() *KeywordSelector {
	return &KeywordSelector{}
}

// keywordTable maps trigger words to archetypes, checked in order so
// classification is stable when multiple words match.
var keywordTable = []struct {
	words     []string
	archetype Archetype
}{
	{[]string{"urgent", "hotfix", "incident", "outage", "verify", "test"}, Firefighter},
	{[]string{"implement", "refactor", "fix", "patch", "migrate"}, Surgeon},
	{[]string{"design", "architect", "structure", "plan"}, Architect},
	{[]string{"analyze", "research", "learn", "explore", "investigate"}, Student},
}

// Select classifies a description. Descriptions matching no keyword get
// the Student archetype. The returned complexity is the band midpoint.
func (s *KeywordSelector) Select(description string) Assignment {
	lower := strings.ToLower(description)

	for _, entry := range keywordTable {
		for _, w := range entry.words {
			if strings.Contains(lower, w) {
				p := ProfileFor(entry.archetype)
				return Assignment{Archetype: p.Archetype, Complexity: p.Band.Midpoint()}
			}
		}
	}

	p := ProfileFor(Student)
	return Assignment{Archetype: p.Archetype, Complexity: p.Band.Midpoint()}
}

// ClampToBand forces a declared complexity into the archetype's band,
// preserving the selection contract when a decomposer proposes its own
// complexity score.
func ClampToBand(a Archetype, complexity float64) float64 {
	return ProfileFor(a).Band.Clamp(complexity)
}
