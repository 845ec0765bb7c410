package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/health"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/keyword"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/match"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/session"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/pkg/provider/analysis"
	analysismock "github.com/ce-ky/AudioKeywordsEvaluator-demo/pkg/provider/analysis/mock"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/pkg/provider/stt"
	sttmock "github.com/ce-ky/AudioKeywordsEvaluator-demo/pkg/provider/stt/mock"
)

type testEnv struct {
	server     *httptest.Server
	store      keyword.Store
	stt        *sttmock.Provider
	analyzer   *analysismock.Provider
	controller *session.Controller
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	transcriber := &sttmock.Provider{
		Response: &stt.Transcription{Text: "the quick brown fox", Language: "en"},
	}
	analyzer := &analysismock.Provider{}
	store := keyword.NewMemStore()
	reconciler := match.New(analyzer, nil, "en")
	controller := session.New(transcriber, reconciler, store)

	srv := New(controller, store, WithHealth(health.New()))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{
		server:     ts,
		store:      store,
		stt:        transcriber,
		analyzer:   analyzer,
		controller: controller,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	return resp, data
}

// uploadAudio posts a multipart audio blob and waits for the transcription
// to settle.
func (e *testEnv) uploadAudio(t *testing.T) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "clip.wav")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fw.Write([]byte{0x01, 0x02, 0x03})
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, e.server.URL+"/api/audio", &buf)
	if err != nil {
		t.Fatalf("build upload request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("upload audio: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("upload status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		state := e.controller.Snapshot()
		if !state.Transcribing {
			if state.Transcript == "" {
				t.Fatalf("transcription finished without a transcript (last error %q)", state.LastError)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("transcription did not finish in time")
}

func decodeError(t *testing.T, data []byte) (code, message string) {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("decode error body %q: %v", data, err)
	}
	return body.Error.Code, body.Error.Message
}

func TestKeywordEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("AddListEditRemove", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		resp, data := env.do(t, http.MethodPost, "/api/keywords", keywordRequest{Text: "fox"})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("add status = %d, want %d (%s)", resp.StatusCode, http.StatusCreated, data)
		}
		var added struct {
			Keyword keyword.Keyword   `json:"keyword"`
			Similar []keyword.Keyword `json:"similar"`
		}
		if err := json.Unmarshal(data, &added); err != nil {
			t.Fatalf("decode add response: %v", err)
		}
		if added.Keyword.Text != "fox" || added.Keyword.ID == "" {
			t.Fatalf("added keyword = %+v", added.Keyword)
		}

		resp, data = env.do(t, http.MethodPut, "/api/keywords/"+added.Keyword.ID, keywordRequest{Text: "wolf"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("edit status = %d (%s)", resp.StatusCode, data)
		}
		var edited struct {
			Keyword keyword.Keyword `json:"keyword"`
		}
		if err := json.Unmarshal(data, &edited); err != nil {
			t.Fatalf("decode edit response: %v", err)
		}
		if edited.Keyword.Text != "wolf" {
			t.Errorf("edited text = %q, want %q", edited.Keyword.Text, "wolf")
		}

		resp, data = env.do(t, http.MethodGet, "/api/keywords", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("list status = %d", resp.StatusCode)
		}
		var listed struct {
			Keywords []keyword.Keyword `json:"keywords"`
		}
		if err := json.Unmarshal(data, &listed); err != nil {
			t.Fatalf("decode list response: %v", err)
		}
		if len(listed.Keywords) != 1 || listed.Keywords[0].Text != "wolf" {
			t.Fatalf("listed keywords = %+v", listed.Keywords)
		}

		resp, _ = env.do(t, http.MethodDelete, "/api/keywords/"+added.Keyword.ID, nil)
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("remove status = %d, want %d", resp.StatusCode, http.StatusNoContent)
		}
	})

	t.Run("ValidationErrors", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		resp, data := env.do(t, http.MethodPost, "/api/keywords", keywordRequest{Text: "   "})
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Fatalf("empty text status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
		}
		if code, _ := decodeError(t, data); code != "empty_text" {
			t.Errorf("empty text code = %q, want %q", code, "empty_text")
		}

		env.do(t, http.MethodPost, "/api/keywords", keywordRequest{Text: "fox"})
		resp, data = env.do(t, http.MethodPost, "/api/keywords", keywordRequest{Text: "FOX"})
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Fatalf("duplicate status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
		}
		if code, _ := decodeError(t, data); code != "duplicate" {
			t.Errorf("duplicate code = %q, want %q", code, "duplicate")
		}

		resp, data = env.do(t, http.MethodPost, "/api/keywords", keywordRequest{Text: strings.Repeat("a", 21)})
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Fatalf("too long status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
		}
		if code, _ := decodeError(t, data); code != "too_long" {
			t.Errorf("too long code = %q, want %q", code, "too_long")
		}

		resp, data = env.do(t, http.MethodPut, "/api/keywords/nope", keywordRequest{Text: "fox"})
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("unknown id status = %d, want %d", resp.StatusCode, http.StatusNotFound)
		}
		if code, _ := decodeError(t, data); code != "not_found" {
			t.Errorf("unknown id code = %q, want %q", code, "not_found")
		}
	})

	t.Run("CapacityConflict", func(t *testing.T) {
		t.Parallel()

		store := keyword.NewMemStore(keyword.WithCapacity(1))
		controller := session.New(&sttmock.Provider{}, match.New(&analysismock.Provider{}, nil, "en"), store)
		srv := New(controller, store)
		ts := httptest.NewServer(srv.Handler())
		t.Cleanup(ts.Close)
		env := &testEnv{server: ts, store: store, controller: controller}

		env.do(t, http.MethodPost, "/api/keywords", keywordRequest{Text: "first"})
		resp, data := env.do(t, http.MethodPost, "/api/keywords", keywordRequest{Text: "second"})
		if resp.StatusCode != http.StatusConflict {
			t.Fatalf("capacity status = %d, want %d", resp.StatusCode, http.StatusConflict)
		}
		if code, _ := decodeError(t, data); code != "capacity" {
			t.Errorf("capacity code = %q, want %q", code, "capacity")
		}
	})

	t.Run("SimilarAdvisory", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		env.do(t, http.MethodPost, "/api/keywords", keywordRequest{Text: "deadline"})
		resp, data := env.do(t, http.MethodPost, "/api/keywords", keywordRequest{Text: "deadlines"})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("add status = %d (%s)", resp.StatusCode, data)
		}
		var added struct {
			Similar []keyword.Keyword `json:"similar"`
		}
		if err := json.Unmarshal(data, &added); err != nil {
			t.Fatalf("decode add response: %v", err)
		}
		if len(added.Similar) != 1 || added.Similar[0].Text != "deadline" {
			t.Errorf("similar = %+v, want the existing record flagged", added.Similar)
		}
	})

	t.Run("ResetAndStats", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		env.do(t, http.MethodPost, "/api/keywords", keywordRequest{Text: "fox"})
		env.uploadAudio(t)
		if resp, data := env.do(t, http.MethodPost, "/api/analysis", nil); resp.StatusCode != http.StatusOK {
			t.Fatalf("analysis status = %d (%s)", resp.StatusCode, data)
		}

		resp, data := env.do(t, http.MethodGet, "/api/keywords/stats", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("stats status = %d", resp.StatusCode)
		}
		var statsBody struct {
			Stats keyword.Stats `json:"stats"`
		}
		if err := json.Unmarshal(data, &statsBody); err != nil {
			t.Fatalf("decode stats: %v", err)
		}
		if statsBody.Stats.ExactDetected != 1 {
			t.Errorf("exact detected = %d, want 1", statsBody.Stats.ExactDetected)
		}

		if resp, _ := env.do(t, http.MethodDelete, "/api/keywords", nil); resp.StatusCode != http.StatusNoContent {
			t.Fatalf("reset status = %d, want %d", resp.StatusCode, http.StatusNoContent)
		}
		resp, data = env.do(t, http.MethodGet, "/api/keywords/stats", nil)
		if err := json.Unmarshal(data, &statsBody); err != nil {
			t.Fatalf("decode stats after reset: %v", err)
		}
		if statsBody.Stats.ExactDetected != 0 {
			t.Errorf("exact detected after reset = %d, want 0", statsBody.Stats.ExactDetected)
		}
	})
}

func TestAudioAndSession(t *testing.T) {
	t.Parallel()

	t.Run("UploadProducesTranscript", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		env.uploadAudio(t)

		resp, data := env.do(t, http.MethodGet, "/api/session", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("session status = %d", resp.StatusCode)
		}
		var body struct {
			Session session.State `json:"session"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			t.Fatalf("decode session: %v", err)
		}
		if body.Session.Transcript != "the quick brown fox" {
			t.Errorf("transcript = %q", body.Session.Transcript)
		}
		if body.Session.AudioLanguage != "en" {
			t.Errorf("audio language = %q, want %q", body.Session.AudioLanguage, "en")
		}
	})

	t.Run("MissingFileRejected", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		mw.WriteField("language", "en")
		mw.Close()

		req, _ := http.NewRequest(http.MethodPost, env.server.URL+"/api/audio", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		resp, err := env.server.Client().Do(req)
		if err != nil {
			t.Fatalf("upload: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
		}
	})

	t.Run("ClearResetsSession", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		env.uploadAudio(t)

		if resp, _ := env.do(t, http.MethodDelete, "/api/session", nil); resp.StatusCode != http.StatusNoContent {
			t.Fatalf("clear status = %d, want %d", resp.StatusCode, http.StatusNoContent)
		}
		_, data := env.do(t, http.MethodGet, "/api/session", nil)
		var body struct {
			Session session.State `json:"session"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			t.Fatalf("decode session: %v", err)
		}
		if body.Session.Transcript != "" {
			t.Errorf("transcript after clear = %q, want empty", body.Session.Transcript)
		}
	})
}

func TestAnalysisEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("NoTranscriptConflict", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		resp, data := env.do(t, http.MethodPost, "/api/analysis", nil)
		if resp.StatusCode != http.StatusConflict {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
		}
		if code, _ := decodeError(t, data); code != "no_transcript" {
			t.Errorf("code = %q, want %q", code, "no_transcript")
		}
	})

	t.Run("ReturnsKeywordsAndStats", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		env.analyzer.Result = &analysis.Result{
			Analysis: []analysis.KeywordAnalysis{
				{Object: "predator", BlurPair: 1, FuzzySegments: []string{"fox"}},
			},
			MarkedTranscript: "the quick brown ‹fox›",
		}

		env.do(t, http.MethodPost, "/api/keywords", keywordRequest{Text: "predator"})
		env.do(t, http.MethodPost, "/api/keywords", keywordRequest{Text: "quick brown"})
		env.uploadAudio(t)

		resp, data := env.do(t, http.MethodPost, "/api/analysis", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d (%s)", resp.StatusCode, data)
		}
		var body struct {
			Session  session.State     `json:"session"`
			Keywords []keyword.Keyword `json:"keywords"`
			Stats    keyword.Stats     `json:"stats"`
			Degraded bool              `json:"degraded"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			t.Fatalf("decode analysis response: %v", err)
		}
		if body.Degraded {
			t.Error("degraded = true, want false")
		}
		if body.Session.MarkedTranscript != "the quick brown ‹fox›" {
			t.Errorf("marked transcript = %q", body.Session.MarkedTranscript)
		}
		byText := make(map[string]keyword.Keyword)
		for _, k := range body.Keywords {
			byText[k.Text] = k
		}
		if k := byText["quick brown"]; !k.Detected || k.MatchCount != 1 {
			t.Errorf("exact keyword = %+v", k)
		}
		if k := byText["predator"]; k.FuzzyCount != 1 {
			t.Errorf("fuzzy keyword = %+v", k)
		}
		if body.Stats.Combined != 2 {
			t.Errorf("combined = %d, want 2", body.Stats.Combined)
		}
	})

	t.Run("DegradedStillOK", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		env.analyzer.Err = errors.New("model overloaded")

		env.do(t, http.MethodPost, "/api/keywords", keywordRequest{Text: "predator"})
		env.do(t, http.MethodPost, "/api/keywords", keywordRequest{Text: "quick brown"})
		env.uploadAudio(t)

		resp, data := env.do(t, http.MethodPost, "/api/analysis", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d (%s)", resp.StatusCode, data)
		}
		var body struct {
			Session  session.State `json:"session"`
			Degraded bool          `json:"degraded"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			t.Fatalf("decode analysis response: %v", err)
		}
		if !body.Degraded {
			t.Error("degraded = false, want true")
		}
		if body.Session.LastError == "" {
			t.Error("expected a user-facing degradation message")
		}
	})
}

func TestHighlightsEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("NoTranscript", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		resp, data := env.do(t, http.MethodGet, "/api/highlights", nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
		}
		if code, _ := decodeError(t, data); code != "no_transcript" {
			t.Errorf("code = %q, want %q", code, "no_transcript")
		}
	})

	t.Run("RendersSegments", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		env.analyzer.Result = &analysis.Result{
			Analysis: []analysis.KeywordAnalysis{
				{Object: "predator", BlurPair: 1, FuzzySegments: []string{"fox"}},
			},
			MarkedTranscript: "the quick brown ‹fox›",
		}

		env.do(t, http.MethodPost, "/api/keywords", keywordRequest{Text: "predator"})
		env.uploadAudio(t)
		env.do(t, http.MethodPost, "/api/analysis", nil)

		resp, data := env.do(t, http.MethodGet, "/api/highlights", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d (%s)", resp.StatusCode, data)
		}
		var body struct {
			Segments []struct {
				Text string `json:"text"`
				Kind string `json:"kind"`
			} `json:"segments"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			t.Fatalf("decode highlights: %v", err)
		}
		if len(body.Segments) != 2 {
			t.Fatalf("segments = %+v, want 2", body.Segments)
		}
		if body.Segments[1].Text != "fox" || body.Segments[1].Kind != "fuzzy" {
			t.Errorf("fuzzy segment = %+v", body.Segments[1])
		}
	})
}

func TestProbesAndMetrics(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, _ := env.do(t, http.MethodGet, path, nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status = %d, want %d", path, resp.StatusCode, http.StatusOK)
		}
	}
}

func TestCorrelationHeader(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/api/session", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	resp, err := env.server.Client().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Correlation-Id"); got != traceID {
		t.Errorf("X-Correlation-Id = %q, want %q", got, traceID)
	}
}
