// Stub counterpart to native.go for builds without CGO. The whisper.cpp
// Go bindings require CGO, so NewNative reports an error at construction
// time instead of being unavailable at compile time.

//go:build !cgo

package whisper

import (
	"context"
	"errors"

	"github.com/ce-ky/AudioKeywordsEvaluator-demo/pkg/provider/stt"
)

// Compile-time assertion that NativeProvider satisfies stt.Provider.
var _ stt.Provider = (*NativeProvider)(nil)

// NativeProvider is unavailable in builds without CGO; see native.go for
// the real implementation backed by the whisper.cpp bindings.
type NativeProvider struct {
	defaultLanguage string
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeDefaultLanguage sets the ISO-639-1 code reported when language
// detection yields nothing usable. Defaults to "en".
func WithNativeDefaultLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.defaultLanguage = lang }
}

// NewNative always fails: the whisper.cpp bindings need CGO, which this
// binary was built without.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	return nil, errors.New("whisper: native provider requires a build with CGO enabled")
}

// Close releases the whisper model. Must be called when the provider is no
// longer needed.
func (p *NativeProvider) Close() error { return nil }

// Transcribe implements stt.Provider.
func (p *NativeProvider) Transcribe(ctx context.Context, req stt.Request) (*stt.Transcription, error) {
	return nil, errors.New("whisper: native provider requires a build with CGO enabled")
}
