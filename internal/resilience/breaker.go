// Package resilience provides the circuit breaker used to guard calls to the
// remote semantic analysis and translation services.
//
// The [Breaker] is a classic three-state breaker (closed → open → half-open).
// When a service fails repeatedly the breaker opens and callers fail fast
// with [ErrOpen] instead of queueing doomed network calls behind each other.
// The evaluator treats a fast [ErrOpen] the same as any other service
// failure: it degrades to exact-only results.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] when the breaker is open and the
// cooldown has not yet elapsed.
var ErrOpen = errors.New("resilience: breaker is open")

// State is the operating mode of a [Breaker].
type State int

const (
	// Closed is the normal state — calls are forwarded to the service.
	Closed State = iota

	// Open means the service failed too many times in a row. Calls are
	// rejected with [ErrOpen] until the cooldown elapses.
	Open

	// HalfOpen is the probe state after the cooldown. A small number of
	// calls are let through to test whether the service recovered.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds the tuning knobs for a [Breaker].
type Config struct {
	// Name labels the breaker in log output, typically the provider name.
	Name string

	// Threshold is the consecutive-failure count that opens the breaker.
	// Default: 3.
	Threshold int

	// Cooldown is how long the breaker stays open before probing again.
	// Default: 20s.
	Cooldown time.Duration

	// Probes is how many half-open calls must succeed before the breaker
	// closes. Default: 2.
	Probes int
}

// Breaker implements the three-state circuit breaker pattern.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	probes    int

	mu         sync.Mutex
	state      State
	failures   int
	openedAt   time.Time
	probeCalls int
	probeFails int
}

// New creates a [Breaker], replacing zero-value config fields with defaults.
func New(cfg Config) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 20 * time.Second
	}
	if cfg.Probes <= 0 {
		cfg.Probes = 2
	}
	return &Breaker{
		name:      cfg.Name,
		threshold: cfg.Threshold,
		cooldown:  cfg.Cooldown,
		probes:    cfg.Probes,
		state:     Closed,
	}
}

// Do runs fn if the breaker allows it. In the open state fn is not called and
// [ErrOpen] is returned immediately. A cancelled context counts as a failure
// only when fn itself observed it; the pre-call context check does not touch
// breaker accounting.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	switch b.state {
	case Open:
		if time.Since(b.openedAt) < b.cooldown {
			b.mu.Unlock()
			return ErrOpen
		}
		b.state = HalfOpen
		b.probeCalls = 0
		b.probeFails = 0
		slog.Info("breaker probing service", "name", b.name)

	case HalfOpen:
		if b.probeCalls >= b.probes {
			// Probe budget spent, wait for the in-flight probes to settle.
			b.mu.Unlock()
			return ErrOpen
		}
	}

	probing := b.state == HalfOpen
	if probing {
		b.probeCalls++
	}
	b.mu.Unlock()

	err := fn(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.onFailure(probing)
	} else {
		b.onSuccess(probing)
	}
	return err
}

// onFailure must be called with b.mu held.
func (b *Breaker) onFailure(probing bool) {
	b.openedAt = time.Now()

	if probing {
		b.probeFails++
		b.state = Open
		b.failures = b.threshold
		slog.Warn("breaker re-opened, service still failing", "name", b.name)
		return
	}

	b.failures++
	if b.failures >= b.threshold {
		b.state = Open
		slog.Warn("breaker opened",
			"name", b.name,
			"consecutive_failures", b.failures)
	}
}

// onSuccess must be called with b.mu held.
func (b *Breaker) onSuccess(probing bool) {
	if probing {
		if b.probeCalls-b.probeFails >= b.probes {
			b.state = Closed
			b.failures = 0
			b.probeCalls = 0
			b.probeFails = 0
			slog.Info("breaker closed, service recovered", "name", b.name)
		}
		return
	}
	b.failures = 0
}

// State returns the current [State]. An open breaker whose cooldown elapsed
// reports [HalfOpen]; the actual transition happens on the next [Do] call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open && time.Since(b.openedAt) >= b.cooldown {
		return HalfOpen
	}
	return b.state
}

// Reset forces the breaker back to [Closed], clearing all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = Closed
	b.failures = 0
	b.probeCalls = 0
	b.probeFails = 0
}
