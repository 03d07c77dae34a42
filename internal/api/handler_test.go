package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

type fakePinger struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakePinger) PingContext(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.err
}

func (f *fakePinger) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

var fixedNow = time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC)

func setupTestRouter(t *testing.T, db *fakePinger) http.Handler {
	t.Helper()

	var handler *Handler
	if db == nil {
		handler = NewHandler(nil, WithClock(func() time.Time { return fixedNow }))
	} else {
		handler = NewHandler(db, WithClock(func() time.Time { return fixedNow }))
	}
	router, err := NewRouter(handler, zaptest.NewLogger(t), WithLogging(false))
	if err != nil {
		t.Fatalf("NewRouter returned error: %v", err)
	}
	return router
}

func decodeHealth(t *testing.T, rec *httptest.ResponseRecorder) healthResponse {
	t.Helper()
	var body healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

func TestRequestIDHelpers(t *testing.T) {
	ctx := contextWithRequestID(context.Background(), "abc")
	if got := requestIDFromContext(ctx); got != "abc" {
		t.Fatalf("expected abc, got %s", got)
	}
	if got := requestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty id, got %s", got)
	}
	if got := SessionIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty session id, got %s", got)
	}
}

func TestHealthEndpoint(t *testing.T) {
	db := &fakePinger{}
	router := setupTestRouter(t, db)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}

	body := decodeHealth(t, rec)
	if body.Status != "ok" || body.Database != "ok" {
		t.Fatalf("unexpected health body %+v", body)
	}
	if !body.Timestamp.Equal(fixedNow) {
		t.Fatalf("expected timestamp %s, got %s", fixedNow, body.Timestamp)
	}
	if db.calls != 1 {
		t.Fatalf("expected a single ping, got %d", db.calls)
	}
}

func TestHealthEndpointDatabaseDown(t *testing.T) {
	db := &fakePinger{}
	db.setErr(errors.New("connection refused"))
	router := setupTestRouter(t, db)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
	body := decodeHealth(t, rec)
	if body.Status != "unavailable" || body.Database != "error" {
		t.Fatalf("unexpected health body %+v", body)
	}
}

func TestHealthEndpointWithoutDatabase(t *testing.T) {
	router := setupTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if body := decodeHealth(t, rec); body.Database != "" {
		t.Fatalf("expected database field to be omitted, got %q", body.Database)
	}
}

func TestHealthEndpointRejectsOtherMethods(t *testing.T) {
	router, err := NewRouter(NewHandler(&fakePinger{}), zaptest.NewLogger(t),
		WithLogging(false), WithMiddleware([]string{"request_id"}))
	if err != nil {
		t.Fatalf("NewRouter returned error: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestWithPingTimeoutIgnoresNonPositive(t *testing.T) {
	h := NewHandler(nil, WithPingTimeout(0))
	if h.pingTimeout != defaultPingTimeout {
		t.Fatalf("expected default ping timeout, got %s", h.pingTimeout)
	}
	h = NewHandler(nil, WithPingTimeout(time.Second))
	if h.pingTimeout != time.Second {
		t.Fatalf("expected 1s ping timeout, got %s", h.pingTimeout)
	}
}

func TestWriteErrorIncludesSuggestion(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusBadRequest, "Bad request", "details", "try again")

	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "Bad request" || body.Details != "details" || body.Suggestion != "try again" {
		t.Fatalf("unexpected error body %+v", body)
	}
}
