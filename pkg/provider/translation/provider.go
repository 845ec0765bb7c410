// Package translation defines the Provider interface for batch text
// translation.
//
// The evaluator only translates keyword texts, and only when the detected
// audio language differs from the keyword list's language, so the interface
// is a single batched call: a list of source strings in, an original→
// translated mapping out.
//
// Implementations must be safe for concurrent use.
package translation

import "context"

// Provider is the abstraction over any translation backend.
type Provider interface {
	// Translate translates each text into targetLanguage (an ISO-639-1
	// code) and returns a map keyed by the original text. Inputs may
	// contain duplicates; the map naturally collapses them.
	//
	// Partial results are valid: a text missing from the map means its
	// translation failed and the caller should use the original. Only a
	// total failure returns a non-nil error, and then the map is empty.
	Translate(ctx context.Context, texts []string, targetLanguage string) (map[string]string, error)
}
