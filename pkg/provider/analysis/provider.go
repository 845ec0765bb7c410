// Package analysis defines the Provider interface for the semantic
// keyword-matching service.
//
// Given a transcript and a batch of keyword strings, a provider reports per
// keyword how many exact occurrences and how many fuzzy (semantically
// related) occurrences appear in the transcript, the literal transcript
// substrings judged fuzzy matches, and a single annotated copy of the
// transcript with every matched span wrapped in inline delimiters.
//
// # Marked-transcript contract
//
// Exact spans are wrapped in [ExactOpen]/[ExactClose] («…») and fuzzy spans
// in [FuzzyOpen]/[FuzzyClose] (‹…›). Any provider implementation must emit
// exactly these delimiters; the highlight renderer splits on them verbatim
// and treats the segmentation as authoritative. The guillemet pairs were
// chosen because they are single code points that do not occur in ASR output
// for any supported language.
//
// Implementations must be safe for concurrent use.
package analysis

import "context"

// Marked-transcript span delimiters. See the package comment.
const (
	ExactOpen  = "«"
	ExactClose = "»"
	FuzzyOpen  = "‹"
	FuzzyClose = "›"
)

// Request carries one batched analysis call.
type Request struct {
	// Transcript is the full transcript text to search.
	Transcript string

	// Keywords is the list of keyword search texts. Duplicates are allowed
	// (distinct records may share a translated text); providers report one
	// entry per distinct text.
	Keywords []string
}

// KeywordAnalysis is the per-keyword result. The field names mirror the
// service's wire format.
type KeywordAnalysis struct {
	// Object is the keyword text this entry is about, exactly as submitted.
	Object string `json:"object"`

	// AbsolutePair is the number of exact (verbatim, case-insensitive)
	// occurrences of the keyword in the transcript.
	AbsolutePair int `json:"absolute_pair"`

	// BlurPair is the number of fuzzy (semantically related) occurrences.
	BlurPair int `json:"blur_pair"`

	// FuzzySegments lists the literal transcript substrings judged fuzzy
	// matches, in transcript order. Empty when BlurPair is zero.
	FuzzySegments []string `json:"fuzzy_segments"`
}

// Result is the full response of one analysis call.
type Result struct {
	// Analysis holds one entry per distinct submitted keyword. Providers
	// may omit entries for keywords they could not process; callers must
	// treat a missing entry as "no result", not as zero matches.
	Analysis []KeywordAnalysis `json:"analysis"`

	// MarkedTranscript is a copy of the transcript with exact spans wrapped
	// in «…» and fuzzy spans in ‹…›. Stripping the delimiters yields the
	// original transcript verbatim.
	MarkedTranscript string `json:"marked_transcript"`
}

// Provider is the abstraction over any semantic-matching backend.
//
// Analyze must respect context cancellation. A failed call returns a non-nil
// error and no partial result — callers degrade to their local exact-match
// results in that case.
type Provider interface {
	Analyze(ctx context.Context, req Request) (*Result, error)
}
