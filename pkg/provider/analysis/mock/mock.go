// Package mock provides a test double for the analysis.Provider interface.
//
// Use Provider in unit tests to feed controlled semantic-match results
// without a live model and to verify which keyword batches the reconciler
// submits.
package mock

import (
	"context"
	"sync"

	"github.com/ce-ky/AudioKeywordsEvaluator-demo/pkg/provider/analysis"
)

// Call records a single invocation of Analyze.
type Call struct {
	// Ctx is the context passed to Analyze.
	Ctx context.Context
	// Req is the request passed to Analyze.
	Req analysis.Request
}

// Provider is a mock implementation of analysis.Provider.
// Zero values cause Analyze to return an empty result and nil error.
// Set Err to inject a failure.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Analyze. May be nil (returns an empty result).
	Result *analysis.Result

	// Err, if non-nil, is returned by Analyze instead of Result.
	Err error

	// Fn, if non-nil, takes precedence over Result/Err entirely.
	Fn func(ctx context.Context, req analysis.Request) (*analysis.Result, error)

	// Calls records every invocation in order.
	Calls []Call
}

// Compile-time assertion that Provider satisfies analysis.Provider.
var _ analysis.Provider = (*Provider)(nil)

// Analyze implements analysis.Provider.
func (p *Provider) Analyze(ctx context.Context, req analysis.Request) (*analysis.Result, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, Call{Ctx: ctx, Req: req})
	fn, res, err := p.Fn, p.Result, p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		return &analysis.Result{}, nil
	}
	out := *res
	return &out, nil
}

// CallCount returns the number of Analyze invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
