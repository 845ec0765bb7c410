// Package keyword provides the in-memory keyword list for the evaluator.
//
// The store is the source of truth for the user's keyword records and their
// per-transcript match state. All mutations go through validation: list
// capacity, case-insensitive uniqueness, and a charset-dependent length
// limit. Match fields are scoped to a single transcript — editing a
// keyword's text or accepting a new audio source resets them.
//
// All store operations are safe for concurrent use.
package keyword

// Keyword is a single keyword record with its current match state.
type Keyword struct {
	// ID is an opaque unique identifier, immutable once created.
	ID string `json:"id"`

	// Text is the display text. Uniqueness is enforced case-insensitively
	// across the store.
	Text string `json:"text"`

	// TranslatedText is the text used for matching when the transcript is
	// in another language. It is never shown as the primary label. Empty
	// when no translation is in effect.
	TranslatedText string `json:"translated_text,omitempty"`

	// Detected reports whether the current transcript contains an exact
	// occurrence. It is always MatchCount > 0.
	Detected bool `json:"detected"`

	// MatchCount is the number of exact occurrences in the current
	// transcript. The local exact pass caps this at 1 (presence test);
	// the semantic service reports true occurrence counts.
	MatchCount int `json:"match_count"`

	// FuzzyCount is the number of fuzzy (semantic) occurrences.
	FuzzyCount int `json:"fuzzy_count"`

	// FuzzySegments lists the transcript substrings judged fuzzy matches,
	// in transcript order.
	FuzzySegments []string `json:"fuzzy_segments,omitempty"`
}

// SearchText returns the text used for matching: the translation when one is
// set, otherwise the display text.
func (k Keyword) SearchText() string {
	if k.TranslatedText != "" {
		return k.TranslatedText
	}
	return k.Text
}

// MatchUpdate carries new match state for one keyword record, produced by a
// reconciliation run.
type MatchUpdate struct {
	// TranslatedText is the translation used for matching, or empty when
	// matching ran on the original text.
	TranslatedText string

	// MatchCount is the exact occurrence count (0/1 from the local pass,
	// a true count from the semantic service).
	MatchCount int

	// FuzzyCount is the fuzzy occurrence count.
	FuzzyCount int

	// FuzzySegments lists the fuzzy-matched transcript substrings.
	FuzzySegments []string
}

// Stats summarises match state across the whole keyword list.
type Stats struct {
	// Total is the number of keyword records.
	Total int `json:"total"`

	// ExactDetected counts records with at least one exact occurrence.
	ExactDetected int `json:"exact_detected"`

	// FuzzyDetected counts records with at least one fuzzy occurrence.
	FuzzyDetected int `json:"fuzzy_detected"`

	// Combined counts records with any occurrence, exact or fuzzy.
	Combined int `json:"combined"`

	// ExactPercent, FuzzyPercent, and CombinedPercent express the counts
	// above as percentages of Total (0 when the list is empty).
	ExactPercent    float64 `json:"exact_percent"`
	FuzzyPercent    float64 `json:"fuzzy_percent"`
	CombinedPercent float64 `json:"combined_percent"`
}
