package staticfiles

import (
	"bytes"
	"compress/gzip"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const hashLength = 12

var compressible = map[string]struct{}{
	".css":  {},
	".js":   {},
	".mjs":  {},
	".map":  {},
	".html": {},
	".htm":  {},
	".json": {},
	".svg":  {},
	".txt":  {},
	".xml":  {},
	".ico":  {},
}

// Result summarises a Collect run.
type Result struct {
	Copied     int
	Compressed int
	Skipped    []string
	Manifest   *MemoryManifest
}

// Collect copies every file under dirs into root. Each asset is written
// under its original name and under a content-hashed name, compressible
// assets get a .gz sibling, and the name mapping is stored in the manifest.
// When two dirs provide the same name the first one wins. Missing dirs are
// reported in Result.Skipped.
func Collect(fs afero.Fs, dirs []string, root string) (Result, error) {
	res := Result{Manifest: NewMemoryManifest()}

	if err := fs.MkdirAll(root, 0o755); err != nil {
		return res, fmt.Errorf("create static root: %w", err)
	}

	for _, dir := range dirs {
		if _, err := fs.Stat(dir); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				res.Skipped = append(res.Skipped, dir)
				continue
			}
			return res, fmt.Errorf("stat %s: %w", dir, err)
		}

		err := afero.Walk(fs, dir, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(dir, p)
			if err != nil {
				return err
			}
			name := filepath.ToSlash(rel)
			if _, seen := res.Manifest.Lookup(name); seen {
				return nil
			}
			return collectFile(fs, p, root, name, &res)
		})
		if err != nil {
			return res, fmt.Errorf("collect %s: %w", dir, err)
		}
	}

	if err := writeManifest(fs, root, res.Manifest); err != nil {
		return res, err
	}
	return res, nil
}

func collectFile(fs afero.Fs, src, root, name string, res *Result) error {
	data, err := afero.ReadFile(fs, src)
	if err != nil {
		return err
	}

	hashed := HashedName(name, data)
	for _, target := range []string{name, hashed} {
		if err := writeAsset(fs, root, target, data); err != nil {
			return err
		}
	}
	res.Manifest.Set(name, hashed)
	res.Copied++

	if !isCompressible(name) {
		return nil
	}
	compressed, err := gzipBytes(data)
	if err != nil {
		return fmt.Errorf("compress %s: %w", name, err)
	}
	if len(compressed) >= len(data) {
		return nil
	}
	for _, target := range []string{name, hashed} {
		if err := writeAsset(fs, root, target+".gz", compressed); err != nil {
			return err
		}
	}
	res.Compressed++
	return nil
}

// HashedName inserts the first 12 hex digits of the content's MD5 before the
// extension: css/app.css becomes css/app.<hash>.css.
func HashedName(name string, content []byte) string {
	sum := md5.Sum(content)
	digest := hex.EncodeToString(sum[:])[:hashLength]
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + "." + digest + ext
}

func writeAsset(fs afero.Fs, root, name string, data []byte) error {
	dst := filepath.Join(root, filepath.FromSlash(name))
	if err := fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(fs, dst, data, 0o644)
}

func isCompressible(name string) bool {
	_, ok := compressible[strings.ToLower(path.Ext(name))]
	return ok
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
