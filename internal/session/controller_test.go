package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/highlight"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/keyword"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/match"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/session"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/pkg/provider/analysis"
	analysismock "github.com/ce-ky/AudioKeywordsEvaluator-demo/pkg/provider/analysis/mock"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/pkg/provider/stt"
	sttmock "github.com/ce-ky/AudioKeywordsEvaluator-demo/pkg/provider/stt/mock"
)

var errService = errors.New("service down")

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func newController(transcriber stt.Provider, analyzer analysis.Provider, store keyword.Store) *session.Controller {
	reconciler := match.New(analyzer, nil, "en")
	return session.New(transcriber, reconciler, store)
}

func TestAcceptAudio(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("transcribes asynchronously", func(t *testing.T) {
		t.Parallel()
		transcriber := &sttmock.Provider{
			Response: &stt.Transcription{Text: "hello world", Language: "en"},
		}
		c := newController(transcriber, &analysismock.Provider{}, keyword.NewMemStore())

		token, err := c.AcceptAudio(ctx, []byte{1, 2, 3}, "audio/wav", "")
		if err != nil {
			t.Fatalf("AcceptAudio: unexpected error: %v", err)
		}
		if token == 0 {
			t.Fatal("AcceptAudio: expected non-zero token")
		}

		waitFor(t, func() bool { return !c.Snapshot().Transcribing })
		snap := c.Snapshot()
		if snap.Transcript != "hello world" || snap.AudioLanguage != "en" {
			t.Fatalf("Snapshot: unexpected state %+v", snap)
		}
	})

	t.Run("resets keyword matches", func(t *testing.T) {
		t.Parallel()
		store := keyword.NewMemStore()
		k, _ := store.Add(ctx, "urgent")
		store.ApplyMatches(ctx, map[string]keyword.MatchUpdate{k.ID: {MatchCount: 2}})

		c := newController(&sttmock.Provider{}, &analysismock.Provider{}, store)
		if _, err := c.AcceptAudio(ctx, []byte{1}, "audio/wav", ""); err != nil {
			t.Fatalf("AcceptAudio: unexpected error: %v", err)
		}

		list, _ := store.List(ctx)
		if list[0].Detected || list[0].MatchCount != 0 {
			t.Fatalf("AcceptAudio: expected match state reset, got %+v", list[0])
		}
	})

	t.Run("stale transcription is discarded", func(t *testing.T) {
		t.Parallel()
		release := make(chan struct{})
		transcriber := &sttmock.Provider{
			Fn: func(ctx context.Context, req stt.Request) (*stt.Transcription, error) {
				if req.Audio[0] == 1 {
					<-release
					return &stt.Transcription{Text: "old audio", Language: "en"}, nil
				}
				return &stt.Transcription{Text: "new audio", Language: "en"}, nil
			},
		}
		c := newController(transcriber, &analysismock.Provider{}, keyword.NewMemStore())

		if _, err := c.AcceptAudio(ctx, []byte{1}, "audio/wav", ""); err != nil {
			t.Fatalf("AcceptAudio first: unexpected error: %v", err)
		}
		if _, err := c.AcceptAudio(ctx, []byte{2}, "audio/wav", ""); err != nil {
			t.Fatalf("AcceptAudio second: unexpected error: %v", err)
		}

		waitFor(t, func() bool { return c.Snapshot().Transcript == "new audio" })
		close(release)

		// The first response lands after the second audio superseded it.
		// Give the goroutine a moment, then confirm it changed nothing.
		time.Sleep(50 * time.Millisecond)
		if got := c.Snapshot().Transcript; got != "new audio" {
			t.Fatalf("Snapshot: stale transcript applied, got %q", got)
		}
	})

	t.Run("transcription failure is recorded", func(t *testing.T) {
		t.Parallel()
		transcriber := &sttmock.Provider{Err: errService}
		c := newController(transcriber, &analysismock.Provider{}, keyword.NewMemStore())

		if _, err := c.AcceptAudio(ctx, []byte{1}, "audio/wav", ""); err != nil {
			t.Fatalf("AcceptAudio: unexpected error: %v", err)
		}

		waitFor(t, func() bool { return !c.Snapshot().Transcribing })
		snap := c.Snapshot()
		if snap.LastError == "" || snap.Transcript != "" {
			t.Fatalf("Snapshot: expected recorded failure, got %+v", snap)
		}

		// No transcript means analysis is blocked.
		if _, err := c.Analyze(ctx); !errors.Is(err, session.ErrNoTranscript) {
			t.Fatalf("Analyze: expected ErrNoTranscript, got %v", err)
		}
	})

	t.Run("language hint is forwarded", func(t *testing.T) {
		t.Parallel()
		transcriber := &sttmock.Provider{}
		c := newController(transcriber, &analysismock.Provider{}, keyword.NewMemStore())

		c.AcceptAudio(ctx, []byte{1}, "audio/wav", "zh")
		waitFor(t, func() bool { return transcriber.CallCount() == 1 })
		if got := transcriber.Calls[0].Req.LanguageHint; got != "zh" {
			t.Fatalf("AcceptAudio: language hint = %q, want zh", got)
		}
	})
}

func TestAnalyze(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("applies merged results to the store", func(t *testing.T) {
		t.Parallel()
		store := keyword.NewMemStore()
		store.Add(ctx, "fox")
		store.Add(ctx, "deadline")

		transcriber := &sttmock.Provider{
			Response: &stt.Transcription{Text: "the quick brown fox", Language: "en"},
		}
		analyzer := &analysismock.Provider{
			Result: &analysis.Result{
				Analysis: []analysis.KeywordAnalysis{
					{Object: "deadline", BlurPair: 1, FuzzySegments: []string{"due date"}},
				},
				MarkedTranscript: "the quick brown «fox»",
			},
		}
		c := newController(transcriber, analyzer, store)

		c.AcceptAudio(ctx, []byte{1}, "audio/wav", "")
		waitFor(t, func() bool { return !c.Snapshot().Transcribing })

		snap, err := c.Analyze(ctx)
		if err != nil {
			t.Fatalf("Analyze: unexpected error: %v", err)
		}
		if snap.Degraded || snap.Processing {
			t.Fatalf("Analyze: unexpected state %+v", snap)
		}
		if snap.MarkedTranscript != "the quick brown «fox»" {
			t.Fatalf("Analyze: unexpected marked transcript %q", snap.MarkedTranscript)
		}

		list, _ := store.List(ctx)
		byText := map[string]keyword.Keyword{}
		for _, k := range list {
			byText[k.Text] = k
		}
		if got := byText["fox"]; !got.Detected || got.MatchCount != 1 {
			t.Fatalf("Analyze: unexpected fox state %+v", got)
		}
		if got := byText["deadline"]; got.FuzzyCount != 1 {
			t.Fatalf("Analyze: unexpected deadline state %+v", got)
		}
	})

	t.Run("without transcript returns ErrNoTranscript", func(t *testing.T) {
		t.Parallel()
		c := newController(&sttmock.Provider{}, &analysismock.Provider{}, keyword.NewMemStore())
		if _, err := c.Analyze(ctx); !errors.Is(err, session.ErrNoTranscript) {
			t.Fatalf("Analyze: expected ErrNoTranscript, got %v", err)
		}
	})

	t.Run("concurrent analysis returns ErrBusy", func(t *testing.T) {
		t.Parallel()
		store := keyword.NewMemStore()
		store.Add(ctx, "deadline")

		started := make(chan struct{})
		release := make(chan struct{})
		analyzer := &analysismock.Provider{
			Fn: func(ctx context.Context, req analysis.Request) (*analysis.Result, error) {
				close(started)
				<-release
				return &analysis.Result{}, nil
			},
		}
		transcriber := &sttmock.Provider{
			Response: &stt.Transcription{Text: "no match here", Language: "en"},
		}
		c := newController(transcriber, analyzer, store)

		c.AcceptAudio(ctx, []byte{1}, "audio/wav", "")
		waitFor(t, func() bool { return !c.Snapshot().Transcribing })

		done := make(chan error, 1)
		go func() {
			_, err := c.Analyze(ctx)
			done <- err
		}()
		<-started

		if _, err := c.Analyze(ctx); !errors.Is(err, session.ErrBusy) {
			t.Fatalf("Analyze: expected ErrBusy, got %v", err)
		}
		close(release)
		if err := <-done; err != nil {
			t.Fatalf("Analyze: unexpected error: %v", err)
		}
	})

	t.Run("stale analysis leaves the reset store untouched", func(t *testing.T) {
		t.Parallel()
		store := keyword.NewMemStore()
		store.Add(ctx, "deadline")

		started := make(chan struct{})
		release := make(chan struct{})
		analyzer := &analysismock.Provider{
			Fn: func(ctx context.Context, req analysis.Request) (*analysis.Result, error) {
				close(started)
				<-release
				return &analysis.Result{
					Analysis:         []analysis.KeywordAnalysis{{Object: "deadline", BlurPair: 1}},
					MarkedTranscript: "meet the ‹due date›",
				}, nil
			},
		}
		transcriber := &sttmock.Provider{
			Response: &stt.Transcription{Text: "meet the due date", Language: "en"},
		}
		c := newController(transcriber, analyzer, store)

		c.AcceptAudio(ctx, []byte{1}, "audio/wav", "")
		waitFor(t, func() bool { return !c.Snapshot().Transcribing })

		done := make(chan session.State, 1)
		go func() {
			snap, _ := c.Analyze(ctx)
			done <- snap
		}()
		<-started

		// New audio supersedes the running analysis and wipes the store.
		if _, err := c.AcceptAudio(ctx, []byte{2}, "audio/wav", ""); err != nil {
			t.Fatalf("AcceptAudio: unexpected error: %v", err)
		}
		close(release)

		snap := <-done
		if snap.MarkedTranscript != "" || snap.Degraded {
			t.Fatalf("Analyze: stale result applied to state: %+v", snap)
		}

		list, _ := store.List(ctx)
		if list[0].FuzzyCount != 0 || list[0].Detected {
			t.Fatalf("Analyze: stale result applied to store: %+v", list[0])
		}
	})

	t.Run("service failure degrades to exact-only", func(t *testing.T) {
		t.Parallel()
		store := keyword.NewMemStore()
		store.Add(ctx, "fox")
		store.Add(ctx, "deadline")

		transcriber := &sttmock.Provider{
			Response: &stt.Transcription{Text: "the quick brown fox", Language: "en"},
		}
		c := newController(transcriber, &analysismock.Provider{Err: errService}, store)

		c.AcceptAudio(ctx, []byte{1}, "audio/wav", "")
		waitFor(t, func() bool { return !c.Snapshot().Transcribing })

		snap, err := c.Analyze(ctx)
		if err != nil {
			t.Fatalf("Analyze: degradation must not fail, got %v", err)
		}
		if !snap.Degraded || snap.LastError == "" {
			t.Fatalf("Analyze: expected degraded state, got %+v", snap)
		}

		list, _ := store.List(ctx)
		for _, k := range list {
			if k.Text == "fox" && !k.Detected {
				t.Fatalf("Analyze: exact result lost in degradation: %+v", k)
			}
		}
	})
}

func TestHighlights(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("uses the marked transcript when present", func(t *testing.T) {
		t.Parallel()
		store := keyword.NewMemStore()
		store.Add(ctx, "deadline")

		transcriber := &sttmock.Provider{
			Response: &stt.Transcription{Text: "meet the deadlin", Language: "en"},
		}
		analyzer := &analysismock.Provider{
			Result: &analysis.Result{
				Analysis:         []analysis.KeywordAnalysis{{Object: "deadline", BlurPair: 1}},
				MarkedTranscript: "meet the ‹deadlin›",
			},
		}
		c := newController(transcriber, analyzer, store)

		c.AcceptAudio(ctx, []byte{1}, "audio/wav", "")
		waitFor(t, func() bool { return !c.Snapshot().Transcribing })
		if _, err := c.Analyze(ctx); err != nil {
			t.Fatalf("Analyze: unexpected error: %v", err)
		}

		segments, err := c.Highlights(ctx)
		if err != nil {
			t.Fatalf("Highlights: unexpected error: %v", err)
		}
		want := []highlight.Segment{
			{Text: "meet the ", Kind: highlight.Plain},
			{Text: "deadlin", Kind: highlight.Fuzzy},
		}
		if len(segments) != len(want) {
			t.Fatalf("Highlights: segments = %+v, want %+v", segments, want)
		}
		for i := range want {
			if segments[i] != want[i] {
				t.Fatalf("Highlights: segment %d = %+v, want %+v", i, segments[i], want[i])
			}
		}
	})

	t.Run("without any transcript returns ErrNoTranscript", func(t *testing.T) {
		t.Parallel()
		c := newController(&sttmock.Provider{}, &analysismock.Provider{}, keyword.NewMemStore())
		if _, err := c.Highlights(ctx); !errors.Is(err, session.ErrNoTranscript) {
			t.Fatalf("Highlights: expected ErrNoTranscript, got %v", err)
		}
	})
}

func TestClear(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := keyword.NewMemStore()
	k, _ := store.Add(ctx, "urgent")

	transcriber := &sttmock.Provider{
		Response: &stt.Transcription{Text: "urgent call", Language: "en"},
	}
	c := newController(transcriber, &analysismock.Provider{}, store)

	token, _ := c.AcceptAudio(ctx, []byte{1}, "audio/wav", "")
	waitFor(t, func() bool { return !c.Snapshot().Transcribing })
	store.ApplyMatches(ctx, map[string]keyword.MatchUpdate{k.ID: {MatchCount: 1}})

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear: unexpected error: %v", err)
	}

	snap := c.Snapshot()
	if snap.Transcript != "" || snap.Transcribing || snap.Processing {
		t.Fatalf("Clear: expected empty state, got %+v", snap)
	}
	if snap.Token <= token {
		t.Fatalf("Clear: token must advance, got %d after %d", snap.Token, token)
	}

	list, _ := store.List(ctx)
	if list[0].Detected {
		t.Fatalf("Clear: expected match state reset, got %+v", list[0])
	}
}
