// Package archetype assigns behavioral profiles to subtasks.
//
// An archetype bounds the expected complexity of a subtask and hints at
// its execution style. The classification heuristic is pluggable; the
// selection contract guarantees a total function whose returned
// complexity always lies within the archetype's declared band.
package archetype

// Archetype is a named behavioral profile.
type Archetype string

const (
	// Student: learning, exploration, asking questions.
	Student Archetype = "Student"

	// Architect: design, structure, system thinking.
	Architect Archetype = "Architect"

	// Surgeon: precision, care, minimal intervention.
	Surgeon Archetype = "Surgeon"

	// Firefighter: speed, decisiveness, handling chaos.
	Firefighter Archetype = "Firefighter"
)

// Band is an inclusive complexity range.
type Band struct {
	Min float64
	Max float64
}

// Clamp forces v into the band.
func (b Band) Clamp(v float64) float64 {
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// Contains reports whether v lies within the band.
func (b Band) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// Midpoint returns the band's center.
func (b Band) Midpoint() float64 {
	return (b.Min + b.Max) / 2
}

// Profile describes one archetype's behavior record.
type Profile struct {
	Archetype Archetype
	Band      Band
	Style     string // execution style hint
}

// profiles is the single lookup table for archetype behavior. Archetype
// dispatch goes through this table, not per-type branching.
var profiles = map[Archetype]Profile{
	Student:     {Archetype: Student, Band: Band{Min: 0.2, Max: 0.4}, Style: "curious, learning-oriented"},
	Architect:   {Archetype: Architect, Band: Band{Min: 0.5, Max: 0.7}, Style: "systematic, designs before building"},
	Surgeon:     {Archetype: Surgeon, Band: Band{Min: 0.7, Max: 0.9}, Style: "precise, minimal changes"},
	Firefighter: {Archetype: Firefighter, Band: Band{Min: 0.3, Max: 0.8}, Style: "fast, decisive"},
}

// ProfileFor returns the behavior record for an archetype. Unknown
// archetypes fall back to Student.
func ProfileFor(a Archetype) Profile {
	if p, ok := profiles[a]; ok {
		return p
	}
	return profiles[Student]
}

// All returns every archetype in a stable order.
func All() []Archetype {
	return []Archetype{Student, Architect, Surgeon, Firefighter}
}
