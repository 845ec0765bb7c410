// Package openai provides an STT provider backed by the OpenAI audio API.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/ce-ky/AudioKeywordsEvaluator-demo/pkg/provider/stt"
)

// DefaultModel is the default OpenAI transcription model.
const DefaultModel = oai.AudioModelWhisper1

// defaultLanguage is reported when neither the caller nor the API supplies a
// language. The JSON response format of the transcription endpoint does not
// echo the detected language back.
const defaultLanguage = "en"

// Ensure Provider implements the stt.Provider interface.
var _ stt.Provider = (*Provider)(nil)

// Provider implements stt.Provider using the OpenAI audio transcription API.
type Provider struct {
	client          oai.Client
	model           string
	defaultLanguage string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL         string
	organization    string
	timeout         time.Duration
	defaultLanguage string
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithOrganization sets the OpenAI organization ID on all requests.
func WithOrganization(org string) Option {
	return func(c *config) { c.organization = org }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithDefaultLanguage sets the ISO-639-1 code reported when no language hint
// was given. Defaults to "en".
func WithDefaultLanguage(lang string) Option {
	return func(c *config) { c.defaultLanguage = lang }
}

// New constructs a new OpenAI STT Provider.
// If model is empty, DefaultModel (whisper-1) is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai stt: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{defaultLanguage: defaultLanguage}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{
		client:          client,
		model:           model,
		defaultLanguage: cfg.defaultLanguage,
	}, nil
}

// Transcribe implements stt.Provider. The audio blob is uploaded as a
// multipart file; the reported language is the caller's hint when given,
// otherwise the configured default, because the JSON response format does
// not carry the detected language.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Transcription, error) {
	if len(req.Audio) == 0 {
		return nil, fmt.Errorf("openai stt: audio must not be empty")
	}

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(req.Audio), filenameFor(req.MIMEType), req.MIMEType),
		Model: p.model,
	}
	if req.LanguageHint != "" {
		params.Language = param.NewOpt(req.LanguageHint)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai stt: transcribe: %w", err)
	}

	lang := req.LanguageHint
	if lang == "" {
		lang = p.defaultLanguage
	}

	return &stt.Transcription{
		Text:     strings.TrimSpace(resp.Text),
		Language: lang,
	}, nil
}

// filenameFor picks an upload filename whose extension matches the MIME
// type; the API infers the container from it.
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
