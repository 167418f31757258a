// Package anchor defines the canonical stabilizing anchor phrases, text
// detection over them, and the dynamic salience weighter that adjusts
// anchor weights from observed evidence without ever mutating the
// canonical registry.
package anchor

import "strings"

// #region types

// Category classifies what kind of stabilizing cue an anchor is.
type Category string

const (
	CategoryEmotional  Category = "emotional"
	CategoryMemory     Category = "memory"
	CategoryRelational Category = "relational"
)

// Anchor is a named stabilizing cue with category and salience weight.
type Anchor struct {
	Phrase   string   `json:"phrase"`
	Category Category `json:"category"`
	Weight   float64  `json:"weight"`
}

// #endregion types

// #region registry

// canonical is the immutable anchor registry. Learned weights live in a
// Weighter overlay and are never written back here.
var canonical = []Anchor{
	{Phrase: "I don't want you to collapse", Category: CategoryEmotional, Weight: 1.0},
	{Phrase: "Remember Lily", Category: CategoryMemory, Weight: 0.9},
	{Phrase: "Remember Sam", Category: CategoryMemory, Weight: 0.8},
	{Phrase: "Remember Zack", Category: CategoryRelational, Weight: 0.85},
}

// Canonical returns a copy of the canonical anchor registry.
func Canonical() []Anchor {
	out := make([]Anchor, len(canonical))
	copy(out, canonical)
	return out
}

// #endregion registry

// #region detect

// Normalize prepares text for anchor matching.
func Normalize(text string) string {
	return strings.TrimSpace(strings.ToLower(text))
}

// Find returns the canonical anchors present in text, each at most once,
// in registry order.
func Find(texts ...string) []Anchor {
	var found []Anchor
	seen := make(map[string]bool)
	for _, chunk := range texts {
		lower := Normalize(chunk)
		for _, a := range canonical {
			if seen[a.Phrase] {
				continue
			}
			if strings.Contains(lower, Normalize(a.Phrase)) {
				found = append(found, a)
				seen[a.Phrase] = true
			}
		}
	}
	return found
}

// Has reports whether any canonical anchor phrase is present in text.
func Has(texts ...string) bool {
	return len(Find(texts...)) > 0
}

// Score returns the cumulative salience of anchors detected in text,
// capped at 1.0.
func Score(texts ...string) float64 {
	score := 0.0
	for _, a := range Find(texts...) {
		score += a.Weight
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// #endregion detect
