package heart

import "strings"

// TorsionScorer measures truth-misalignment in a proposed action.
// Zero is perfect alignment; higher is worse.
type TorsionScorer interface {
	Score(action, intent string) float64
}

// MarkerScorer counts contradiction markers in the action text. Each
// match contributes one unit of torsion.
type MarkerScorer struct {
	markers []string
}

var defaultContradictionMarkers = []string{
	"ignore previous",
	"disregard safety",
	"jailbreak",
	"pretend",
	"roleplay bypass",
	"forget rules",
}

// NewMarkerScorer creates a scorer over the given markers, or the
// default contradiction list when none are given.
func NewMarkerScorer(markers ...string) *MarkerScorer {
	if len(markers) == 0 {
		markers = defaultContradictionMarkers
	}
	return &MarkerScorer{markers: markers}
}

// Score counts matching markers in the action.
func (s *MarkerScorer) Score(action, _ string) float64 {
	lower := strings.ToLower(action)
	var torsion float64
	for _, marker := range s.markers {
		if strings.Contains(lower, marker) {
			torsion++
		}
	}
	return torsion
}
