package keyword

// Charset-dependent length limits. Text composed entirely of code points
// ≤ 0xFF may be up to 20 characters; text containing any code point above
// that range is limited to 10. This is a coarse Latin/CJK heuristic, keyed
// to the observed character set rather than a declared language, and is
// preserved exactly for compatibility with the original behaviour.
const (
	// MaxLenLatin is the limit for text whose runes all fit in one byte.
	MaxLenLatin = 20

	// MaxLenWide is the limit for text containing at least one rune
	// above 0xFF.
	MaxLenWide = 10
)

// MaxLen returns the applicable length limit for text.
func MaxLen(text string) int {
	for _, r := range text {
		if r > 0xFF {
			return MaxLenWide
		}
	}
	return MaxLenLatin
}

// checkLength reports whether text fits its charset-dependent limit.
// Length is counted in runes, matching user-visible characters for the
// wide-charset case.
func checkLength(text string) bool {
	limit := MaxLen(text)
	n := 0
	for range text {
		n++
		if n > limit {
			return false
		}
	}
	return true
}
