// Package llm implements the analysis.Provider interface on top of a chat
// completion model accessed through any-llm-go.
//
// The model receives the transcript and the keyword batch in a single
// request and is instructed (via a strict system prompt) to return a JSON
// object matching the [analysis.Result] wire format, including the
// delimiter-annotated transcript copy. Responses are decoded into typed
// structs with explicit per-field fallbacks; entries for keywords that were
// never submitted are dropped, and a marked transcript that does not strip
// back to the original text is discarded rather than passed downstream.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/ce-ky/AudioKeywordsEvaluator-demo/pkg/provider/analysis"
)

const defaultTemperature = 0.1

// Compile-time assertion that Provider implements analysis.Provider.
var _ analysis.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithTemperature sets the sampling temperature. Lower values produce more
// deterministic span extraction. Default: 0.1.
func WithTemperature(temp float64) Option {
	return func(p *Provider) { p.temperature = temp }
}

// Provider implements analysis.Provider by prompting a chat model.
// It is safe for concurrent use.
type Provider struct {
	backend     anyllmlib.Provider
	model       string
	temperature float64
}

// New returns a Provider that sends analysis requests to the given any-llm-go
// backend using the given model (e.g., "gpt-4o-mini").
func New(backend anyllmlib.Provider, model string, opts ...Option) (*Provider, error) {
	if backend == nil {
		return nil, fmt.Errorf("analysis llm: backend must not be nil")
	}
	if model == "" {
		return nil, fmt.Errorf("analysis llm: model must not be empty")
	}
	p := &Provider{
		backend:     backend,
		model:       model,
		temperature: defaultTemperature,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Analyze implements analysis.Provider.
func (p *Provider) Analyze(ctx context.Context, req analysis.Request) (*analysis.Result, error) {
	if req.Transcript == "" {
		return nil, fmt.Errorf("analysis llm: transcript must not be empty")
	}
	if len(req.Keywords) == 0 {
		return nil, fmt.Errorf("analysis llm: keywords must not be empty")
	}

	temp := p.temperature
	resp, err := p.backend.Completion(ctx, anyllmlib.CompletionParams{
		Model: p.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: systemPrompt},
			{Role: anyllmlib.RoleUser, Content: buildUserMessage(req)},
		},
		Temperature: &temp,
	})
	if err != nil {
		return nil, fmt.Errorf("analysis llm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("analysis llm: empty choices in response")
	}

	result, err := parseResponse(resp.Choices[0].Message.ContentString(), req)
	if err != nil {
		return nil, fmt.Errorf("analysis llm: %w", err)
	}
	return result, nil
}

// parseResponse decodes the model output into an [analysis.Result] and
// sanitises it against the original request.
func parseResponse(content string, req analysis.Request) (*analysis.Result, error) {
	cleaned := stripMarkdown(content)

	var raw analysis.Result
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("parse JSON response: %w", err)
	}

	submitted := make(map[string]bool, len(req.Keywords))
	for _, k := range req.Keywords {
		submitted[k] = true
	}

	out := &analysis.Result{}
	seen := make(map[string]bool, len(raw.Analysis))
	for _, entry := range raw.Analysis {
		// Drop hallucinated entries and duplicates; keep one entry per
		// submitted keyword text.
		if !submitted[entry.Object] || seen[entry.Object] {
			continue
		}
		seen[entry.Object] = true

		if entry.AbsolutePair < 0 {
			entry.AbsolutePair = 0
		}
		if entry.BlurPair < 0 {
			entry.BlurPair = 0
		}
		if entry.FuzzySegments == nil {
			entry.FuzzySegments = []string{}
		}
		out.Analysis = append(out.Analysis, entry)
	}

	// The marked transcript is only usable when stripping the delimiters
	// reproduces the input verbatim; otherwise the renderer falls back to
	// client-side highlighting.
	if stripDelimiters(raw.MarkedTranscript) == req.Transcript {
		out.MarkedTranscript = raw.MarkedTranscript
	}

	return out, nil
}

// stripDelimiters removes all span markers from a marked transcript.
func stripDelimiters(marked string) string {
	r := strings.NewReplacer(
		analysis.ExactOpen, "",
		analysis.ExactClose, "",
		analysis.FuzzyOpen, "",
		analysis.FuzzyClose, "",
	)
	return r.Replace(marked)
}

// stripMarkdown removes optional markdown code fences (```json ... ```)
// that some models wrap around JSON output despite instructions.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimPrefix(s, prefix)
			s = strings.TrimSuffix(strings.TrimSpace(s), "```")
			return strings.TrimSpace(s)
		}
	}
	return s
}
