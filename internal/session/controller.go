// Package session holds the per-session evaluation state machine.
//
// A session is the ephemeral context around one piece of audio: the
// transcript produced from it, the detected audio language, the optional
// service-marked transcript, and the processing flags the API exposes.
// Accepting new audio replaces the session entirely. Every acceptance
// increments a monotonic token; asynchronous results are applied only when
// their originating token still matches the current one, so responses for
// superseded audio are dropped instead of clobbering fresh state.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/highlight"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/keyword"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/match"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/observe"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/pkg/provider/stt"
)

var (
	// ErrNoTranscript is returned by Analyze when no transcript exists,
	// because no audio was accepted, transcription is still running, or it
	// failed.
	ErrNoTranscript = errors.New("session: no transcript available")

	// ErrBusy is returned by Analyze while another analysis pass is active.
	ErrBusy = errors.New("session: analysis already in progress")

	// ErrTranscriptionFailed is recorded in session state when the
	// transcription provider fails. The next audio acceptance clears it.
	ErrTranscriptionFailed = errors.New("session: transcription failed")
)

const (
	defaultTranscribeTimeout = 2 * time.Minute
	defaultAnalyzeTimeout    = time.Minute
)

// State is a point-in-time snapshot of the session, safe to serialise.
type State struct {
	// Token identifies the currently accepted audio. It increases with
	// every acceptance and every clear, so stale async responses can be
	// recognised by comparing tokens. Zero means nothing happened yet.
	Token uint64 `json:"token"`

	// Transcript is the transcription result, empty until it arrives.
	Transcript string `json:"transcript"`

	// MarkedTranscript is the service-annotated transcript from the last
	// analysis pass, empty when client-side highlighting applies.
	MarkedTranscript string `json:"marked_transcript,omitempty"`

	// AudioLanguage is the detected language of the transcript.
	AudioLanguage string `json:"audio_language,omitempty"`

	// Transcribing is true while a transcription call is in flight.
	Transcribing bool `json:"transcribing"`

	// Processing is true while an analysis pass is in flight.
	Processing bool `json:"processing"`

	// Degraded is true when the last analysis completed with exact-only
	// results because the semantic service was unavailable.
	Degraded bool `json:"degraded"`

	// LastError is a human-readable message for the last failed remote
	// call, empty when the last operation succeeded.
	LastError string `json:"last_error,omitempty"`
}

// Controller drives the session lifecycle. All exported methods are safe
// for concurrent use.
type Controller struct {
	transcriber stt.Provider
	reconciler  *match.Reconciler
	store       keyword.Store
	logger      *slog.Logger
	metrics     *observe.Metrics

	transcribeTimeout time.Duration
	analyzeTimeout    time.Duration

	mu     sync.Mutex
	state  State
	active bool
}

// Option is a functional option for configuring a [Controller].
type Option func(*Controller)

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithTranscribeTimeout overrides the transcription deadline. Default: 2m.
func WithTranscribeTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.transcribeTimeout = d
		}
	}
}

// WithAnalyzeTimeout overrides the analysis deadline. Default: 1m.
func WithAnalyzeTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.analyzeTimeout = d
		}
	}
}

// New creates a [Controller] wired to the given providers and store.
func New(transcriber stt.Provider, reconciler *match.Reconciler, store keyword.Store, opts ...Option) *Controller {
	c := &Controller{
		transcriber:       transcriber,
		reconciler:        reconciler,
		store:             store,
		logger:            slog.Default(),
		transcribeTimeout: defaultTranscribeTimeout,
		analyzeTimeout:    defaultAnalyzeTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// AcceptAudio registers new audio, resets all transcript and match state,
// and starts transcription in the background. It returns the session token
// assigned to this audio. The transcript appears in [Controller.Snapshot]
// when the provider responds; a response arriving after newer audio was
// accepted is discarded.
//
// languageHint may be empty, in which case the provider detects the
// language.
func (c *Controller) AcceptAudio(ctx context.Context, audio []byte, mimeType, languageHint string) (uint64, error) {
	c.mu.Lock()
	wasActive := c.active
	c.active = true
	c.state = State{
		Token:        c.state.Token + 1,
		Transcribing: true,
	}
	token := c.state.Token
	c.mu.Unlock()

	if !wasActive {
		c.metrics.ActiveSessions.Add(ctx, 1)
	}

	// Matches are scoped to one transcript. New audio clears them all.
	if err := c.store.ResetMatches(ctx); err != nil {
		return token, fmt.Errorf("session: reset matches: %w", err)
	}

	c.logger.Info("audio accepted",
		"token", token,
		"mime_type", mimeType,
		"bytes", len(audio))

	go c.transcribe(token, audio, mimeType, languageHint)
	return token, nil
}

// transcribe runs the provider call for one accepted audio and applies the
// result under the stale-token guard. It runs detached from the accepting
// request's context: the audio stays valid after the upload returns.
func (c *Controller) transcribe(token uint64, audio []byte, mimeType, languageHint string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.transcribeTimeout)
	defer cancel()

	start := time.Now()
	result, err := c.transcriber.Transcribe(ctx, stt.Request{
		Audio:        audio,
		MIMEType:     mimeType,
		LanguageHint: languageHint,
	})
	c.metrics.TranscriptionDuration.Record(ctx, time.Since(start).Seconds())
	status := "ok"
	if err != nil {
		status = "error"
		c.metrics.RecordProviderError(ctx, "stt", "transcription")
	}
	c.metrics.RecordProviderRequest(ctx, "stt", "transcription", status)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Token != token {
		c.logger.Info("discarding stale transcription response",
			"token", token,
			"current_token", c.state.Token)
		return
	}

	c.state.Transcribing = false
	if err != nil {
		c.logger.Error("transcription failed", "token", token, "error", err)
		c.state.LastError = ErrTranscriptionFailed.Error()
		return
	}

	c.state.Transcript = result.Text
	c.state.AudioLanguage = result.Language
	c.state.LastError = ""
	c.logger.Info("transcription complete",
		"token", token,
		"language", result.Language,
		"chars", len(result.Text))
}

// Analyze runs one keyword analysis pass over the current transcript and
// applies the merged match results to the store. Only one pass may be
// active at a time; concurrent calls fail with [ErrBusy]. Without a
// transcript it fails with [ErrNoTranscript].
//
// A degraded pass (semantic service unavailable) still applies the exact
// results and returns nil: the degradation is reported through the session
// state, not as a failure.
func (c *Controller) Analyze(ctx context.Context) (State, error) {
	c.mu.Lock()
	if c.state.Processing {
		c.mu.Unlock()
		return State{}, ErrBusy
	}
	if c.state.Transcript == "" {
		c.mu.Unlock()
		return State{}, ErrNoTranscript
	}
	c.state.Processing = true
	token := c.state.Token
	transcript := c.state.Transcript
	audioLanguage := c.state.AudioLanguage
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.state.Processing = false
		c.mu.Unlock()
	}()

	keywords, err := c.store.List(ctx)
	if err != nil {
		return State{}, fmt.Errorf("session: list keywords: %w", err)
	}

	actx, cancel := context.WithTimeout(ctx, c.analyzeTimeout)
	defer cancel()

	start := time.Now()
	result, rerr := c.reconciler.Reconcile(actx, transcript, keywords, audioLanguage)
	c.metrics.AnalysisDuration.Record(ctx, time.Since(start).Seconds())

	degraded := false
	switch {
	case rerr == nil:
	case errors.Is(rerr, match.ErrAnalysisUnavailable):
		degraded = true
		c.metrics.DegradedAnalyses.Add(ctx, 1)
	default:
		return State{}, fmt.Errorf("session: analyze: %w", rerr)
	}

	var exact, fuzzy int64
	for _, u := range result.Updates {
		if u.MatchCount > 0 {
			exact++
		}
		if u.FuzzyCount > 0 {
			fuzzy++
		}
	}

	// The token check and the store write form one critical section. An
	// acceptance or clear bumps the token under the same lock before it
	// resets the store, so an apply that passed the check here cannot land
	// after that reset.
	c.mu.Lock()
	if c.state.Token != token {
		c.mu.Unlock()
		c.logger.Info("discarding stale analysis result", "token", token)
		return c.Snapshot(), nil
	}
	if err := c.store.ApplyMatches(ctx, result.Updates); err != nil {
		c.mu.Unlock()
		return State{}, fmt.Errorf("session: apply matches: %w", err)
	}
	c.state.Processing = false
	c.state.MarkedTranscript = result.MarkedTranscript
	c.state.Degraded = degraded
	if degraded {
		c.state.LastError = "semantic matching unavailable, showing exact matches only"
	} else {
		c.state.LastError = ""
	}
	snap := c.state
	c.mu.Unlock()

	c.metrics.RecordKeywordMatches(ctx, exact, fuzzy)

	c.logger.Info("analysis complete",
		"token", token,
		"keywords", len(keywords),
		"exact", exact,
		"fuzzy", fuzzy,
		"degraded", degraded)
	return snap, nil
}

// Snapshot returns a copy of the current session state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Highlights renders the current transcript as typed segments, preferring
// the service-marked transcript when one exists.
func (c *Controller) Highlights(ctx context.Context) ([]highlight.Segment, error) {
	c.mu.Lock()
	transcript := c.state.Transcript
	marked := c.state.MarkedTranscript
	c.mu.Unlock()

	if transcript == "" && marked == "" {
		return nil, ErrNoTranscript
	}

	keywords, err := c.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: list keywords: %w", err)
	}
	return highlight.Render(transcript, marked, keywords), nil
}

// Clear drops the session entirely: transcript, flags, and all keyword
// match state. The token still advances so that in-flight responses for the
// cleared audio are discarded.
func (c *Controller) Clear(ctx context.Context) error {
	c.mu.Lock()
	wasActive := c.active
	c.active = false
	c.state = State{Token: c.state.Token + 1}
	c.mu.Unlock()

	if wasActive {
		c.metrics.ActiveSessions.Add(ctx, -1)
	}
	if err := c.store.ResetMatches(ctx); err != nil {
		return fmt.Errorf("session: reset matches: %w", err)
	}
	c.logger.Info("session cleared")
	return nil
}
