// Package health serves the liveness and readiness probes of the session
// core. Liveness is unconditional: a process that answers HTTP is alive.
// Readiness reflects the dependencies a session cannot start without, such
// as the interview store and the configured extraction provider, each probed
// by a registered [Checker].
//
// Both endpoints answer with a JSON object holding a top-level "status"
// ("ok" or "fail") and, for readiness, a "checks" map naming each probe's
// result so operators can see which dependency is unhealthy.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// checkTimeout bounds each individual readiness probe.
const checkTimeout = 5 * time.Second

// Checker is one named readiness probe. Check returns nil while the
// dependency can serve sessions and a descriptive error otherwise.
type Checker struct {
	// Name keys this probe in the JSON response, e.g. "store" or
	// "extraction".
	Name string

	// Check probes the dependency. It must honour ctx cancellation.
	Check func(ctx context.Context) error
}

// report is the JSON response body for both endpoints.
type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler answers /healthz and /readyz. The checker set is fixed at
// construction, so the handler is safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] over the given checkers.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz is the liveness probe. It always answers 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok"})
}

// Readyz runs every checker concurrently, each against its own
// [checkTimeout] deadline derived from the request context, and answers 503
// when any of them fails. Probes run in parallel so one slow dependency
// cannot starve the others of their deadline.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	outcomes := make([]string, len(h.checkers))

	var wg sync.WaitGroup
	for i, c := range h.checkers {
		wg.Add(1)
		go func(i int, c Checker) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()

			if err := c.Check(ctx); err != nil {
				outcomes[i] = "fail: " + err.Error()
				return
			}
			outcomes[i] = "ok"
		}(i, c)
	}
	wg.Wait()

	rep := report{Status: "ok", Checks: make(map[string]string, len(h.checkers))}
	status := http.StatusOK
	for i, c := range h.checkers {
		rep.Checks[c.Name] = outcomes[i]
		if outcomes[i] != "ok" {
			rep.Status = "fail"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, rep)
}

// writeJSON encodes v with the given status, falling back to a plain 500 on
// encoding failure.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
