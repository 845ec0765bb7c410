// Package mock provides a test double for the stt.Provider interface.
//
// Use Provider in unit tests to feed controlled transcriptions without a
// live backend and to verify the requests the pipeline sends.
//
// Example:
//
//	p := &mock.Provider{
//	    Response: &stt.Transcription{Text: "hello world", Language: "en"},
//	}
//	tr, err := p.Transcribe(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/ce-ky/AudioKeywordsEvaluator-demo/pkg/provider/stt"
)

// Call records a single invocation of Transcribe.
type Call struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Req is the request passed to Transcribe.
	Req stt.Request
}

// Provider is a mock implementation of stt.Provider.
// Zero values cause Transcribe to return an empty transcription and nil
// error. Set Err to inject a failure.
type Provider struct {
	mu sync.Mutex

	// Response is returned by Transcribe. May be nil (returns an empty
	// transcription).
	Response *stt.Transcription

	// Err, if non-nil, is returned by Transcribe instead of Response.
	Err error

	// Fn, if non-nil, takes precedence over Response/Err entirely.
	Fn func(ctx context.Context, req stt.Request) (*stt.Transcription, error)

	// Calls records every invocation in order.
	Calls []Call
}

// Compile-time assertion that Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Transcription, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, Call{Ctx: ctx, Req: req})
	fn, resp, err := p.Fn, p.Response, p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return &stt.Transcription{}, nil
	}
	out := *resp
	return &out, nil
}

// CallCount returns the number of Transcribe invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
