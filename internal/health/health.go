// Package health serves the evaluator's liveness and readiness probes.
//
// /healthz answers 200 as long as the process serves HTTP. /readyz runs the
// registered probes concurrently and answers 200 only when all of them
// pass; a failing probe appears in the response body with its error text.
// The server registers probes for the keyword store and for the analysis
// circuit breaker, so a tripped breaker takes the instance out of rotation
// until the semantic service recovers.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// probeTimeout bounds a single readiness probe.
const probeTimeout = 5 * time.Second

// Checker is one named readiness probe. Check returns nil when the probed
// dependency can serve traffic.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler answers the probe endpoints. The probe set is fixed at
// construction.
type Handler struct {
	probes []Checker
}

// New returns a [Handler] evaluating the given probes on every /readyz
// request.
func New(probes ...Checker) *Handler {
	h := &Handler{probes: make([]Checker, len(probes))}
	copy(h.probes, probes)
	return h
}

// Register adds the probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, probeReport{Status: "ok"})
}

// Readyz runs every probe concurrently under a [probeTimeout] deadline and
// reports per-probe outcomes. Any failure turns the response into a 503.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	outcomes := make([]string, len(h.probes))
	var wg sync.WaitGroup
	for i, p := range h.probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Check(ctx); err != nil {
				outcomes[i] = "fail: " + err.Error()
			} else {
				outcomes[i] = "ok"
			}
		}()
	}
	wg.Wait()

	report := probeReport{Status: "ok", Checks: make(map[string]string, len(h.probes))}
	status := http.StatusOK
	for i, p := range h.probes {
		report.Checks[p.Name] = outcomes[i]
		if outcomes[i] != "ok" {
			report.Status = "fail"
			status = http.StatusServiceUnavailable
		}
	}
	respond(w, status, report)
}

type probeReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func respond(w http.ResponseWriter, status int, report probeReport) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(report); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
