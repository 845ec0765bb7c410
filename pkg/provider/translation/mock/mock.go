// Package mock provides a test double for the translation.Provider
// interface.
package mock

import (
	"context"
	"sync"

	"github.com/ce-ky/AudioKeywordsEvaluator-demo/pkg/provider/translation"
)

// Call records a single invocation of Translate.
type Call struct {
	// Ctx is the context passed to Translate.
	Ctx context.Context
	// Texts is the batch passed to Translate.
	Texts []string
	// TargetLanguage is the target language code passed to Translate.
	TargetLanguage string
}

// Provider is a mock implementation of translation.Provider.
// The zero value returns an empty mapping and nil error for every call.
type Provider struct {
	mu sync.Mutex

	// Translations is returned by Translate (filtered to the submitted
	// texts, mirroring real partial-response semantics).
	Translations map[string]string

	// Err, if non-nil, is returned by Translate with an empty mapping.
	Err error

	// Calls records every invocation in order.
	Calls []Call
}

// Compile-time assertion that Provider satisfies translation.Provider.
var _ translation.Provider = (*Provider)(nil)

// Translate implements translation.Provider.
func (p *Provider) Translate(ctx context.Context, texts []string, targetLanguage string) (map[string]string, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, Call{Ctx: ctx, Texts: append([]string(nil), texts...), TargetLanguage: targetLanguage})
	translations, err := p.Translations, p.Err
	p.mu.Unlock()

	if err != nil {
		return map[string]string{}, err
	}
	out := make(map[string]string, len(texts))
	for _, t := range texts {
		if tr, ok := translations[t]; ok {
			out[t] = tr
		}
	}
	return out, nil
}

// CallCount returns the number of Translate invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
