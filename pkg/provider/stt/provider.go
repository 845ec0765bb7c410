// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription service (OpenAI's audio API or a
// local whisper.cpp instance) behind a uniform batch interface: the caller
// submits a complete audio blob and receives the transcribed text together
// with the detected language. There is no streaming surface — the evaluator
// works on finished recordings and uploads, so a single request/response
// call per audio source is all the pipeline needs.
//
// Implementations must be safe for concurrent use.
package stt

import "context"

// Request carries one audio blob to transcribe.
type Request struct {
	// Audio is the raw audio file content (e.g. a WAV or WebM container).
	Audio []byte

	// MIMEType describes the audio encoding (e.g. "audio/wav", "audio/webm").
	// Providers that only accept specific containers may reject unsupported
	// types with an error.
	MIMEType string

	// LanguageHint is an optional ISO-639-1 code biasing recognition.
	// Empty lets the provider auto-detect.
	LanguageHint string
}

// Transcription is the result of a successful transcription call.
type Transcription struct {
	// Text is the transcribed speech content.
	Text string

	// Language is the ISO-639-1 code of the detected (or assumed) audio
	// language. Providers that cannot detect the language report their
	// configured default instead of leaving this empty.
	Language string
}

// Provider is the abstraction over any transcription backend.
//
// Transcribe must respect context cancellation and return promptly when ctx
// is done. Implementations must be safe for concurrent use; multiple audio
// sources may be transcribed simultaneously.
type Provider interface {
	Transcribe(ctx context.Context, req Request) (*Transcription, error)
}
