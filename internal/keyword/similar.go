package keyword

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const similarThreshold = 0.92

// SimilarTo returns entries from existing whose text is phonetically or
// near-textually similar to text, without being an exact (case-insensitive)
// duplicate. Exact duplicates are rejected by [Store.Add] already; this is
// an advisory signal for the list UI so operators notice keywords that will
// compete for the same transcript spans.
//
// The check mirrors the two-stage approach used for transcript correction:
// Double Metaphone codes gate candidates, Jaro-Winkler ranks them. A pure
// Jaro-Winkler score above the threshold also qualifies, which catches
// spelling variants the phonetic encoder normalises away.
func SimilarTo(text string, existing []Keyword) []Keyword {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return nil
	}
	inputCodes := metaphoneCodes(strings.Fields(lower))

	var out []Keyword
	for _, k := range existing {
		other := strings.ToLower(strings.TrimSpace(k.Text))
		if other == "" || other == lower {
			continue
		}

		score := matchr.JaroWinkler(lower, other, false)
		if score >= similarThreshold {
			out = append(out, k)
			continue
		}

		// Phonetic overlap lowers the similarity bar: "colour"/"color"
		// style pairs score below the pure threshold but encode alike.
		otherCodes := metaphoneCodes(strings.Fields(other))
		if codesIntersect(inputCodes, otherCodes) && score >= similarThreshold-0.10 {
			out = append(out, k)
		}
	}
	return out
}

// metaphoneCodes returns the union of Double Metaphone codes for the tokens.
// Empty codes are skipped; the encoder produces none for very short words.
func metaphoneCodes(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesIntersect(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
