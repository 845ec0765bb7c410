// Package llm implements the translation.Provider interface on top of a
// chat completion model accessed through any-llm-go.
//
// One request translates the whole keyword batch: the model returns a JSON
// object mapping each source string to its translation. Entries the model
// omits are simply absent from the result, which the caller treats as
// "use the original text".
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/ce-ky/AudioKeywordsEvaluator-demo/pkg/provider/translation"
)

const defaultTemperature = 0.0

// systemPromptFormat instructs the model to translate a batch of short
// phrases. The target language is interpolated at call time.
const systemPromptFormat = `You are a translation service for short phrases and keywords.

Translate every input phrase into the language with ISO-639-1 code %q.
Keep translations short and natural — these are search keywords, not prose.
If a phrase is already in the target language, return it unchanged.

Respond with ONLY a JSON object mapping each original phrase to its
translation (no markdown, no prose):
{"<original>": "<translation>"}`

// Compile-time assertion that Provider implements translation.Provider.
var _ translation.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithTemperature sets the sampling temperature. Default: 0.0.
func WithTemperature(temp float64) Option {
	return func(p *Provider) { p.temperature = temp }
}

// Provider implements translation.Provider by prompting a chat model.
// It is safe for concurrent use.
type Provider struct {
	backend     anyllmlib.Provider
	model       string
	temperature float64
}

// New returns a Provider backed by the given any-llm-go backend and model.
func New(backend anyllmlib.Provider, model string, opts ...Option) (*Provider, error) {
	if backend == nil {
		return nil, fmt.Errorf("translation llm: backend must not be nil")
	}
	if model == "" {
		return nil, fmt.Errorf("translation llm: model must not be empty")
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

// Translate implements translation.Provider.
func (p *Provider) Translate(ctx context.Context, texts []string, targetLanguage string) (map[string]string, error) {
	if len(texts) == 0 {
		return map[string]string{}, nil
	}
	if targetLanguage == "" {
		return map[string]string{}, fmt.Errorf("translation llm: targetLanguage must not be empty")
	}

	var b strings.Builder
	for _, t := range texts {
		fmt.Fprintf(&b, "- %s\n", t)
	}

	temp := p.temperature
	resp, err := p.backend.Completion(ctx, anyllmlib.CompletionParams{
		Model: p.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: fmt.Sprintf(systemPromptFormat, targetLanguage)},
			{Role: anyllmlib.RoleUser, Content: b.String()},
		},
		Temperature: &temp,
	})
	if err != nil {
		return map[string]string{}, fmt.Errorf("translation llm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return map[string]string{}, fmt.Errorf("translation llm: empty choices in response")
	}

	var raw map[string]string
	cleaned := stripMarkdown(resp.Choices[0].Message.ContentString())
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return map[string]string{}, fmt.Errorf("translation llm: parse JSON response: %w", err)
	}

	// Keep only entries for texts that were actually submitted, with
	// non-empty translations. Anything else counts as a partial failure.
	submitted := make(map[string]bool, len(texts))
	for _, t := range texts {
		submitted[t] = true
	}
	out := make(map[string]string, len(raw))
	for original, translated := range raw {
		if submitted[original] && strings.TrimSpace(translated) != "" {
			out[original] = strings.TrimSpace(translated)
		}
	}
	return out, nil
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
