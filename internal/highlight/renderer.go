// Package highlight turns a transcript plus keyword match state into a
// sequence of typed segments for display.
//
// Two mutually exclusive strategies exist. When the semantic analysis
// service returned a marked transcript, its inline delimiters are split
// verbatim and the service's segmentation is authoritative. Otherwise the
// renderer rebuilds highlights client-side from the keyword records using a
// case-insensitive literal alternation.
//
// Both strategies uphold the same invariant: concatenating the segment
// texts reproduces the visible transcript exactly, with no gaps and no
// overlaps.
package highlight

import (
	"regexp"
	"slices"
	"strings"

	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/keyword"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/pkg/provider/analysis"
)

// Kind classifies a [Segment].
type Kind string

const (
	// Plain is unhighlighted transcript text.
	Plain Kind = "plain"

	// Exact marks a verbatim keyword occurrence.
	Exact Kind = "exact"

	// Fuzzy marks a semantically related span.
	Fuzzy Kind = "fuzzy"
)

// Segment is one contiguous run of transcript text with a single style.
type Segment struct {
	Text string `json:"text"`
	Kind Kind   `json:"kind"`
}

// Render produces the segment sequence for transcript. When markedTranscript
// is non-empty it is split on the service's inline delimiters; otherwise the
// highlights are rebuilt from the keyword records. keywords is only
// consulted in the fallback path.
func Render(transcript, markedTranscript string, keywords []keyword.Keyword) []Segment {
	if markedTranscript != "" {
		return renderMarked(markedTranscript)
	}
	return renderFallback(transcript, keywords)
}

// renderMarked splits a service-annotated transcript on the «…» and ‹…›
// delimiter pairs. Span content is taken verbatim; it is never re-matched
// against the keyword list.
func renderMarked(marked string) []Segment {
	var out []Segment
	rest := marked
	for {
		exactAt := strings.Index(rest, analysis.ExactOpen)
		fuzzyAt := strings.Index(rest, analysis.FuzzyOpen)
		if exactAt < 0 && fuzzyAt < 0 {
			break
		}

		at, open, closing, kind := exactAt, analysis.ExactOpen, analysis.ExactClose, Exact
		if exactAt < 0 || (fuzzyAt >= 0 && fuzzyAt < exactAt) {
			at, open, closing, kind = fuzzyAt, analysis.FuzzyOpen, analysis.FuzzyClose, Fuzzy
		}

		end := strings.Index(rest[at+len(open):], closing)
		if end < 0 {
			// Unbalanced delimiter. Treat the remainder as plain rather
			// than dropping text.
			break
		}

		if at > 0 {
			out = append(out, Segment{Text: rest[:at], Kind: Plain})
		}
		span := rest[at+len(open) : at+len(open)+end]
		if span != "" {
			out = append(out, Segment{Text: span, Kind: kind})
		}
		rest = rest[at+len(open)+end+len(closing):]
	}
	if rest != "" {
		out = append(out, Segment{Text: rest, Kind: Plain})
	}
	return out
}

// renderFallback rebuilds highlights from keyword records. Highlight texts
// are the search texts of detected keywords plus every fuzzy segment, sorted
// by descending length so a long span is never split by a shorter one
// contained in it.
func renderFallback(transcript string, keywords []keyword.Keyword) []Segment {
	exactTexts := make(map[string]struct{})
	fuzzyTexts := make(map[string]struct{})
	for _, k := range keywords {
		if k.Detected {
			exactTexts[strings.ToLower(k.SearchText())] = struct{}{}
		}
		for _, seg := range k.FuzzySegments {
			if seg != "" {
				fuzzyTexts[strings.ToLower(seg)] = struct{}{}
			}
		}
	}

	patterns := make([]string, 0, len(exactTexts)+len(fuzzyTexts))
	for t := range exactTexts {
		patterns = append(patterns, t)
	}
	for t := range fuzzyTexts {
		if _, dup := exactTexts[t]; !dup {
			patterns = append(patterns, t)
		}
	}
	if len(patterns) == 0 || transcript == "" {
		if transcript == "" {
			return nil
		}
		return []Segment{{Text: transcript, Kind: Plain}}
	}

	slices.SortFunc(patterns, func(a, b string) int {
		if d := len(b) - len(a); d != 0 {
			return d
		}
		return strings.Compare(a, b)
	})
	for i, p := range patterns {
		patterns[i] = regexp.QuoteMeta(p)
	}
	re := regexp.MustCompile("(?i)" + strings.Join(patterns, "|"))

	var out []Segment
	last := 0
	for _, loc := range re.FindAllStringIndex(transcript, -1) {
		if loc[0] > last {
			out = append(out, Segment{Text: transcript[last:loc[0]], Kind: Plain})
		}
		text := transcript[loc[0]:loc[1]]
		kind := Fuzzy
		if _, ok := exactTexts[strings.ToLower(text)]; ok {
			kind = Exact
		}
		out = append(out, Segment{Text: text, Kind: kind})
		last = loc[1]
	}
	if last < len(transcript) {
		out = append(out, Segment{Text: transcript[last:], Kind: Plain})
	}
	return out
}

// Join concatenates the segment texts. For any Render output this equals
// the visible transcript.
func Join(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.Text)
	}
	return b.String()
}
