// Package match implements the two-pass keyword matching pipeline.
//
// The [Reconciler] runs an exact substring pass locally, then submits the
// keywords the exact pass missed to the remote semantic analysis service in
// one batch. Results from both passes are merged into per-record updates for
// the keyword store. The remote pass is best-effort: when the service is
// unreachable the reconciler degrades to exact-only results and reports
// [ErrAnalysisUnavailable] alongside them.
package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/keyword"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/observe"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/resilience"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/translate"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/pkg/provider/analysis"
)

// ErrAnalysisUnavailable reports that the semantic analysis call failed and
// the returned result covers the exact pass only. It is non-fatal: the
// result accompanying it is valid and must not be discarded.
var ErrAnalysisUnavailable = errors.New("match: semantic analysis unavailable")

// Result is the outcome of one reconciliation pass.
type Result struct {
	// Updates maps keyword ID to its merged match state.
	Updates map[string]keyword.MatchUpdate

	// MarkedTranscript is the service-annotated transcript, or empty when
	// the remote pass was skipped, failed, or returned an unusable copy.
	// Empty means the caller should highlight client-side.
	MarkedTranscript string
}

// Reconciler coordinates the exact and semantic matching passes.
type Reconciler struct {
	analyzer        analysis.Provider
	bridge          *translate.Bridge
	breaker         *resilience.Breaker
	keywordLanguage string
	logger          *slog.Logger
	metrics         *observe.Metrics
}

// Option is a functional option for configuring a [Reconciler].
type Option func(*Reconciler)

// WithBreaker sets the circuit breaker guarding the analysis service.
func WithBreaker(b *resilience.Breaker) Option {
	return func(r *Reconciler) {
		r.breaker = b
	}
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = l
	}
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

// New returns a [Reconciler]. keywordLanguage is the language keywords are
// entered in; when the transcript's detected language differs by primary
// subtag, keywords are translated through bridge before matching. bridge may
// be nil, which disables translation entirely.
func New(analyzer analysis.Provider, bridge *translate.Bridge, keywordLanguage string, opts ...Option) *Reconciler {
	r := &Reconciler{
		analyzer:        analyzer,
		bridge:          bridge,
		breaker:         resilience.New(resilience.Config{Name: "analysis"}),
		keywordLanguage: keywordLanguage,
		logger:          slog.Default(),
		metrics:         observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Reconcile runs both matching passes over transcript for the given keyword
// records and returns per-record updates.
//
// The exact pass is a case-insensitive substring presence test: its match
// count is 0 or 1, never an occurrence count. Keywords it misses go to the
// semantic service in one batch; a service result fully replaces the exact
// result for its keyword, even when it reports fewer matches. Records are
// tracked by ID throughout, so two records whose search texts collide each
// receive the service result for that text.
//
// On analysis failure the exact-only result is returned together with an
// error wrapping [ErrAnalysisUnavailable]. Translation failures degrade
// silently to matching on the original texts.
func (r *Reconciler) Reconcile(ctx context.Context, transcript string, keywords []keyword.Keyword, audioLanguage string) (Result, error) {
	res := Result{Updates: make(map[string]keyword.MatchUpdate, len(keywords))}
	if len(keywords) == 0 {
		return res, nil
	}

	translations := r.translateIfNeeded(ctx, keywords, audioLanguage)

	// Exact pass. Presence only: this gates which keywords need the
	// expensive remote call, it is not an occurrence count.
	transcriptLower := strings.ToLower(transcript)
	searchTexts := make(map[string]string, len(keywords)) // keyword ID → search text
	var pending []string                                  // search texts for the remote pass, in list order
	pendingSeen := make(map[string]struct{})

	for _, k := range keywords {
		search := k.Text
		if t, ok := translations[k.Text]; ok {
			search = t
		}
		searchTexts[k.ID] = search

		update := keyword.MatchUpdate{TranslatedText: translations[k.Text]}
		if strings.Contains(transcriptLower, strings.ToLower(search)) {
			update.MatchCount = 1
		} else if _, dup := pendingSeen[strings.ToLower(search)]; !dup {
			pendingSeen[strings.ToLower(search)] = struct{}{}
			pending = append(pending, search)
		}
		res.Updates[k.ID] = update
	}

	// Everything matched exactly: skip the remote call and leave the marked
	// transcript empty so highlighting falls back to the local renderer.
	if len(pending) == 0 {
		return res, nil
	}

	serviceResult, err := r.analyze(ctx, transcript, pending)
	if err != nil {
		r.logger.Warn("semantic analysis failed, keeping exact-only results",
			"keywords", len(pending),
			"error", err)
		return res, fmt.Errorf("%w: %w", ErrAnalysisUnavailable, err)
	}

	// Merge. A service record fully replaces the exact result for every
	// keyword that was asked about under that search text.
	byObject := make(map[string]analysis.KeywordAnalysis, len(serviceResult.Analysis))
	for _, a := range serviceResult.Analysis {
		byObject[strings.ToLower(a.Object)] = a
	}
	for _, k := range keywords {
		update := res.Updates[k.ID]
		if update.MatchCount > 0 {
			continue // not submitted to the service
		}
		a, ok := byObject[strings.ToLower(searchTexts[k.ID])]
		if !ok {
			continue // no service result, the exact result stands
		}
		update.MatchCount = a.AbsolutePair
		update.FuzzyCount = a.BlurPair
		update.FuzzySegments = append([]string(nil), a.FuzzySegments...)
		res.Updates[k.ID] = update
	}

	res.MarkedTranscript = serviceResult.MarkedTranscript
	return res, nil
}

// translateIfNeeded returns a map from original keyword text to the search
// text to use instead. The map is empty when translation is disabled, the
// languages share a primary subtag, or the translation service failed.
func (r *Reconciler) translateIfNeeded(ctx context.Context, keywords []keyword.Keyword, audioLanguage string) map[string]string {
	if r.bridge == nil || !translate.CrossLanguage(r.keywordLanguage, audioLanguage) {
		return nil
	}
	texts := make([]string, 0, len(keywords))
	for _, k := range keywords {
		texts = append(texts, k.Text)
	}
	return r.bridge.Translate(ctx, texts, audioLanguage)
}

func (r *Reconciler) analyze(ctx context.Context, transcript string, texts []string) (*analysis.Result, error) {
	var out *analysis.Result
	err := r.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = r.analyzer.Analyze(ctx, analysis.Request{
			Transcript: transcript,
			Keywords:   texts,
		})
		return err
	})

	status := "ok"
	if err != nil {
		status = "error"
		r.metrics.RecordProviderError(ctx, "analysis", "semantic-match")
	}
	r.metrics.RecordProviderRequest(ctx, "analysis", "semantic-match", status)

	if err != nil {
		return nil, err
	}
	return out, nil
}
