package staticfiles

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

const (
	immutableCacheControl = "max-age=315360000, public, immutable"
	defaultCacheControl   = "max-age=60, public"
)

// Server serves the files found under a static root when it was created.
// Files added later are not picked up.
type Server struct {
	fs       afero.Fs
	root     string
	files    map[string]struct{}
	manifest *MemoryManifest
}

// NewServer scans root and loads its manifest if present. A missing root
// yields a server that serves nothing.
func NewServer(fs afero.Fs, root string) (*Server, error) {
	s := &Server{
		fs:    fs,
		root:  root,
		files: make(map[string]struct{}),
	}

	manifest, err := LoadManifest(fs, root)
	switch {
	case err == nil:
		s.manifest = manifest
	case errors.Is(err, ErrNoManifest):
		s.manifest = NewMemoryManifest()
	default:
		return nil, err
	}

	err = afero.Walk(fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if name == ManifestName || strings.HasSuffix(name, ".gz") {
			return nil
		}
		s.files[name] = struct{}{}
		return nil
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("scan static root: %w", err)
	}

	return s, nil
}

// Has reports whether name (relative to the root, slash separated) is served.
func (s *Server) Has(name string) bool {
	_, ok := s.files[name]
	return ok
}

// Len returns the number of servable files.
func (s *Server) Len() int {
	return len(s.files)
}

// ServeHTTP serves r.URL.Path relative to the root. Callers strip the URL
// prefix first.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/")
	if !s.Has(name) {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	header := w.Header()
	header.Add("Vary", "Accept-Encoding")
	if s.manifest.IsHashed(name) {
		header.Set("Cache-Control", immutableCacheControl)
	} else {
		header.Set("Cache-Control", defaultCacheControl)
	}
	if ctype := mime.TypeByExtension(path.Ext(name)); ctype != "" {
		header.Set("Content-Type", ctype)
	}

	target := filepath.Join(s.root, filepath.FromSlash(name))
	if acceptsGzip(r) {
		if f, err := s.fs.Open(target + ".gz"); err == nil {
			defer f.Close()
			if info, err := f.Stat(); err == nil {
				header.Set("Content-Encoding", "gzip")
				http.ServeContent(w, r, name, info.ModTime(), f)
				return
			}
		}
	}

	f, err := s.fs.Open(target)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func acceptsGzip(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		enc, params, _ := strings.Cut(part, ";")
		if strings.TrimSpace(enc) != "gzip" {
			continue
		}
		if q, ok := strings.CutPrefix(strings.ReplaceAll(params, " ", ""), "q="); ok {
			v, err := strconv.ParseFloat(q, 64)
			return err == nil && v > 0
		}
		return true
	}
	return false
}
