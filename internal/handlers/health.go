package handlers

import (
	"net/http"
	"time"
)

// HealthHandlers serves the liveness and readiness probes.
type HealthHandlers struct {
	startedAt time.Time
	clock     func() time.Time
	ready     func() error
}

// HealthOption customises the health handlers.
type HealthOption func(*HealthHandlers)

// WithHealthClock overrides the clock used for uptime reporting.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithReadinessCheck wires a probe consulted by /readyz. A nil error means ready.
func WithReadinessCheck(check func() error) HealthOption {
	return func(h *HealthHandlers) {
		h.ready = check
	}
}

// NewHealthHandlers constructs health handlers anchored at the current time.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.startedAt = h.clock()
	return h
}

// Healthz responds with a simple status payload for liveness monitoring.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock()
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    now.Sub(h.startedAt).String(),
		"timestamp": now.UTC().Format(time.RFC3339),
	})
}

// Readyz reports readiness, consulting the configured probe when present.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(); err != nil {
			writeJSONResponse(w, http.StatusServiceUnavailable, map[string]any{
				"status": "unavailable",
				"reason": err.Error(),
			})
			return
		}
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"status": "ok"})
}
