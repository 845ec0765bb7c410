// Package translate adapts keyword texts to the language of the transcript.
//
// Keywords are entered in the operator's language while the audio may be in
// another. Before matching, the [Bridge] translates every keyword into the
// detected audio language in one batch. Translation is strictly best-effort:
// a keyword without a usable translation is matched by its original text,
// and a failing translation service never blocks the evaluation pass.
package translate

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/observe"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/resilience"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/pkg/provider/translation"
)

// Bridge batches keyword translations through a [translation.Provider],
// guarded by a circuit breaker.
type Bridge struct {
	provider translation.Provider
	breaker  *resilience.Breaker
	logger   *slog.Logger
	metrics  *observe.Metrics
}

// Option is a functional option for configuring a [Bridge].
type Option func(*Bridge)

// WithBreaker sets the circuit breaker guarding the translation service.
func WithBreaker(b *resilience.Breaker) Option {
	return func(br *Bridge) {
		br.breaker = b
	}
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(br *Bridge) {
		br.logger = l
	}
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(br *Bridge) {
		br.metrics = m
	}
}

// NewBridge returns a [Bridge] backed by the given provider.
func NewBridge(provider translation.Provider, opts ...Option) *Bridge {
	b := &Bridge{
		provider: provider,
		breaker:  resilience.New(resilience.Config{Name: "translation"}),
		logger:   slog.Default(),
		metrics:  observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Translate translates texts into targetLanguage and returns a map from
// original text to translation. The result may cover any subset of the
// inputs: a missing key means the caller should match on the original text.
// Duplicate and blank inputs are collapsed before hitting the service.
//
// Errors are logged, never returned. A total service failure yields an
// empty map, which degrades every keyword to original-text matching.
func (b *Bridge) Translate(ctx context.Context, texts []string, targetLanguage string) map[string]string {
	batch := dedup(texts)
	if len(batch) == 0 || targetLanguage == "" {
		return map[string]string{}
	}

	var raw map[string]string
	start := time.Now()
	err := b.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		raw, err = b.provider.Translate(ctx, batch, targetLanguage)
		return err
	})
	b.metrics.TranslationDuration.Record(ctx, time.Since(start).Seconds())

	status := "ok"
	if err != nil {
		status = "error"
		b.metrics.RecordProviderError(ctx, "translation", "translate")
		b.logger.Warn("translation unavailable, matching on original texts",
			"target_language", targetLanguage,
			"keywords", len(batch),
			"error", err)
	}
	b.metrics.RecordProviderRequest(ctx, "translation", "translate", status)

	// Keep only usable entries for submitted texts. An identity translation
	// carries no information, dropping it keeps the stored records clean.
	out := make(map[string]string, len(raw))
	for _, text := range batch {
		translated := strings.TrimSpace(raw[text])
		if translated == "" || strings.EqualFold(translated, text) {
			continue
		}
		out[text] = translated
	}
	return out
}

// CrossLanguage reports whether a transcript in audioLanguage needs keyword
// translation from keywordLanguage. Tags are compared by their primary
// language subtag so that "en-US" and "en" count as the same language.
// Unparseable or empty tags disable translation rather than guessing.
func CrossLanguage(keywordLanguage, audioLanguage string) bool {
	kw, err := language.Parse(keywordLanguage)
	if err != nil {
		return false
	}
	audio, err := language.Parse(audioLanguage)
	if err != nil {
		return false
	}
	kwBase, _ := kw.Base()
	audioBase, _ := audio.Base()
	return kwBase != audioBase
}

func dedup(texts []string) []string {
	seen := make(map[string]struct{}, len(texts))
	out := make([]string, 0, len(texts))
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
