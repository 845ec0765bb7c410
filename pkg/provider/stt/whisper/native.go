// This file contains the NativeProvider implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

//go:build cgo

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/ce-ky/AudioKeywordsEvaluator-demo/pkg/provider/stt"
)

// Compile-time assertion that NativeProvider satisfies stt.Provider.
var _ stt.Provider = (*NativeProvider)(nil)

// NativeProvider implements stt.Provider using whisper.cpp Go bindings
// (CGO), eliminating HTTP overhead entirely. The model is loaded once at
// startup and shared across all calls. Only 16-bit PCM WAV input is
// accepted; other containers must go through the HTTP provider or be
// converted by the caller.
type NativeProvider struct {
	model           whisperlib.Model
	defaultLanguage string

	// mu serialises inference. whisper contexts are not thread-safe and
	// concurrent contexts on one model compete for the same threads anyway.
	mu sync.Mutex
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeDefaultLanguage sets the ISO-639-1 code reported when language
// detection yields nothing usable. Defaults to "en".
func WithNativeDefaultLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.defaultLanguage = lang }
}

// NewNative creates a NativeProvider that loads the whisper.cpp model from
// the given file path. The caller must call Close when the provider is no
// longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &NativeProvider{
		model:           model,
		defaultLanguage: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model. Must be called when the provider is no
// longer needed.
func (p *NativeProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe implements stt.Provider. req.Audio must be a 16-bit PCM WAV
// file; it is decoded, down-mixed to mono float32, and run through a fresh
// whisper context. The detected language is taken from the context when the
// model is multilingual and a hint was not given.
func (p *NativeProvider) Transcribe(ctx context.Context, req stt.Request) (*stt.Transcription, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}
	if len(req.Audio) == 0 {
		return nil, errors.New("whisper: audio must not be empty")
	}

	pcm, channels, err := decodeWAV(req.Audio)
	if err != nil {
		return nil, fmt.Errorf("whisper: decode wav: %w", err)
	}
	samples := pcmToFloat32Mono(pcm, channels)

	p.mu.Lock()
	defer p.mu.Unlock()

	// Each context is NOT thread-safe, but the model can be shared.
	wctx, err := p.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}

	lang := req.LanguageHint
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using model default",
			"language", lang, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	detected := req.LanguageHint
	if detected == "" {
		if dl := wctx.DetectedLanguage(); dl != "" && dl != "auto" {
			detected = dl
		} else {
			detected = p.defaultLanguage
		}
	}

	return &stt.Transcription{
		Text:     strings.Join(parts, " "),
		Language: detected,
	}, nil
}
