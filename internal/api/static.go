package api

import (
	"net/http"
	"strings"
)

// StaticFiles serves collected assets. Has reports whether a path relative
// to the static URL prefix exists.
type StaticFiles interface {
	http.Handler
	Has(name string) bool
}

func staticMiddleware(prefix string, files StaticFiles, next http.Handler) http.Handler {
	if prefix == "" || files == nil {
		return next
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	strip := http.StripPrefix(strings.TrimSuffix(prefix, "/"), files)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rel, ok := strings.CutPrefix(r.URL.Path, prefix); ok && files.Has(rel) {
			strip.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
