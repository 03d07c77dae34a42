package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeStatic struct {
	files map[string]string
	paths []string
}

func (f *fakeStatic) Has(name string) bool {
	_, ok := f.files[name]
	return ok
}

func (f *fakeStatic) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.paths = append(f.paths, r.URL.Path)
	_, _ = w.Write([]byte(f.files[r.URL.Path[1:]]))
}

func TestStaticMiddleware(t *testing.T) {
	files := &fakeStatic{files: map[string]string{"css/app.css": "body{}"}}
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := staticMiddleware("/static/", files, next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/css/app.css", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "body{}" {
		t.Fatalf("expected static file, got %d %q", rec.Code, rec.Body.String())
	}
	if len(files.paths) != 1 || files.paths[0] != "/css/app.css" {
		t.Fatalf("expected prefix to be stripped, got %v", files.paths)
	}

	for _, p := range []string{"/static/missing.css", "/api/health", "/static"} {
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, p, nil))
		if rec.Code != http.StatusTeapot {
			t.Fatalf("expected %s to fall through, got %d", p, rec.Code)
		}
	}
}

func TestStaticMiddlewarePrefixWithoutSlash(t *testing.T) {
	files := &fakeStatic{files: map[string]string{"app.js": "x"}}
	handler := staticMiddleware("/assets", files, http.NotFoundHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/app.js", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestStaticMiddlewareDisabled(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	if got := staticMiddleware("/static/", nil, next); got == nil {
		t.Fatalf("expected handler")
	}

	rec := httptest.NewRecorder()
	staticMiddleware("", &fakeStatic{}, next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/x", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected passthrough, got %d", rec.Code)
	}
}
