// Package whisper provides STT providers backed by whisper.cpp.
//
// Two implementations are available:
//
//   - [Provider] talks to a running whisper-server binary over HTTP
//     (POST /inference with a multipart form upload).
//   - [NativeProvider] loads a whisper.cpp model in-process through the CGO
//     bindings, eliminating the HTTP hop entirely. The whisper.cpp static
//     library (libwhisper.a) and headers must be available at link time.
//
// Both accept a complete audio blob per call. The HTTP server decodes common
// containers itself; the native provider only accepts 16-bit PCM WAV.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/ce-ky/AudioKeywordsEvaluator-demo/pkg/provider/stt"
)

const (
	// defaultLanguage is reported when the server response carries no
	// language field. whisper-server only includes one when started with
	// language detection enabled.
	defaultLanguage = "en"

	defaultTimeout = 2 * time.Minute
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "base", "small"). When empty the server uses whichever model it was
// started with — this is the default.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithDefaultLanguage sets the ISO-639-1 code reported when the server does
// not detect a language. Defaults to "en".
func WithDefaultLanguage(lang string) Option {
	return func(p *Provider) { p.defaultLanguage = lang }
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 2 minutes —
// transcribing a long upload on CPU can be slow.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.httpClient.Timeout = d
		}
	}
}

// Provider implements stt.Provider backed by a whisper.cpp HTTP server.
type Provider struct {
	serverURL       string
	model           string
	defaultLanguage string
	httpClient      *http.Client
}

// New creates a Provider that connects to the whisper.cpp HTTP server at
// serverURL (e.g., "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:       strings.TrimRight(serverURL, "/"),
		defaultLanguage: defaultLanguage,
		httpClient:      &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe implements stt.Provider. The audio blob is submitted as a
// multipart form upload to the server's /inference endpoint. When
// req.LanguageHint is empty the server is asked to auto-detect the language;
// a response without a language field falls back to the configured default.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Transcription, error) {
	if len(req.Audio) == 0 {
		return nil, errors.New("whisper: audio must not be empty")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", filenameFor(req.MIMEType))
	if err != nil {
		return nil, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(req.Audio); err != nil {
		return nil, fmt.Errorf("whisper: write audio data: %w", err)
	}

	lang := req.LanguageHint
	if lang == "" {
		lang = "auto"
	}
	if err := mw.WriteField("language", lang); err != nil {
		return nil, fmt.Errorf("whisper: write language field: %w", err)
	}
	if p.model != "" {
		if err := mw.WriteField("model", p.model); err != nil {
			return nil, fmt.Errorf("whisper: write model field: %w", err)
		}
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return nil, fmt.Errorf("whisper: write response_format field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", &body)
	if err != nil {
		return nil, fmt.Errorf("whisper: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("whisper: read response body: %w", err)
	}

	// Decode into a typed struct with explicit fallbacks rather than
	// trusting the response shape.
	var result struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	detected := result.Language
	if detected == "" || detected == "auto" {
		if req.LanguageHint != "" {
			detected = req.LanguageHint
		} else {
			detected = p.defaultLanguage
		}
	}

	return &stt.Transcription{
		Text:     strings.TrimSpace(result.Text),
		Language: detected,
	}, nil
}

// filenameFor picks a form-file name whose extension matches the MIME type.
// whisper-server sniffs the container from the extension.
func filenameFor(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "webm"):
		return "audio.webm"
	case strings.Contains(mimeType, "ogg"):
		return "audio.ogg"
	case strings.Contains(mimeType, "mpeg"), strings.Contains(mimeType, "mp3"):
		return "audio.mp3"
	case strings.Contains(mimeType, "mp4"), strings.Contains(mimeType, "m4a"):
		return "audio.m4a"
	case strings.Contains(mimeType, "flac"):
		return "audio.flac"
	default:
		return "audio.wav"
	}
}
