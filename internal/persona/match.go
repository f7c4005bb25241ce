package persona

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// closestThreshold is the minimum Jaro-Winkler score for a suggestion.
const closestThreshold = 0.70

// Closest suggests the known persona ID most similar to the given input.
// It is used to enrich rejection diagnostics when the model hallucinates a
// theme name ("eclipze", "amora"). Double Metaphone overlap qualifies a
// candidate outright; otherwise the Jaro-Winkler score must clear the
// threshold. Returns ok=false when nothing plausible is found.
func (r *Registry) Closest(input string) (id string, ok bool) {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return "", false
	}

	inP, inS := matchr.DoubleMetaphone(input)

	var bestID string
	var bestScore float64

	for _, candidate := range r.IDs() {
		if candidate == input {
			return candidate, true
		}
		score := matchr.JaroWinkler(input, candidate, false)

		p, s := matchr.DoubleMetaphone(candidate)
		phonetic := (inP != "" && (inP == p || inP == s)) ||
			(inS != "" && (inS == p || inS == s))

		if phonetic || score >= closestThreshold {
			if score > bestScore {
				bestID = candidate
				bestScore = score
			}
		}
	}

	return bestID, bestID != ""
}
