package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Rohith-Pavan/Dare-Exchange/internal/database"
)

type contextKey string

const (
	requestIDContextKey contextKey = "requestID"
	sessionIDContextKey contextKey = "sessionID"
)

const defaultPingTimeout = 2 * time.Second

// Handler serves the service's own endpoints.
type Handler struct {
	db          database.Pinger
	clock       func() time.Time
	pingTimeout time.Duration
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithPingTimeout bounds the database ping done by the health endpoint.
func WithPingTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.pingTimeout = d
		}
	}
}

// NewHandler constructs a Handler. db may be nil, in which case the health
// endpoint does not report on the database.
func NewHandler(db database.Pinger, opts ...HandlerOption) *Handler {
	h := &Handler{
		db: db,
		clock: func() time.Time {
			return time.Now().UTC()
		},
		pingTimeout: defaultPingTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	status := http.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.pingTimeout)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			resp.Status = "unavailable"
			resp.Database = "error"
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "ok"
		}
	}

	writeJSON(w, status, resp)
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// SessionIDFromContext returns the session identifier assigned by the
// session middleware, or "" when it is not installed.
func SessionIDFromContext(ctx context.Context) string {
	if v := ctx.Value(sessionIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type healthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}
