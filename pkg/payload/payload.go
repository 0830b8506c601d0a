// Package payload enumerates and digests the prebuilt application tree
// that gets bundled into an installer.
package payload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/go-kit/kit/log/level"
	"github.com/mp4-to-gif-converter/packager/pkg/contexts/ctxlog"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"golang.org/x/sync/errgroup"
)

// File is a single regular file in the payload.
type File struct {
	Path   string      `json:"path"` // slash separated, relative to the root
	Size   int64       `json:"size"`
	SHA256 string      `json:"sha256"`
	Mode   fs.FileMode `json:"-"`
}

// Set is a payload listing, sorted by path.
type Set struct {
	Root  string `json:"-"`
	Files []File `json:"files"`
}

// Enumerate walks every regular file under root, recursively, and hashes
// it. There is no filtering and no deduplication.
func Enumerate(ctx context.Context, root string) (*Set, error) {
	ctx, span := trace.StartSpan(ctx, "payload.Enumerate")
	defer span.End()

	logger := ctxlog.FromContext(ctx)

	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrapf(err, "missing payload root %s", root)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("payload root (%s) isn't a directory", root)
	}

	var files []File
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, File{
			Path: filepath.ToSlash(rel),
			Size: info.Size(),
			Mode: info.Mode(),
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walking payload root %s", root)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := range files {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sum, err := hashFile(filepath.Join(root, filepath.FromSlash(files[i].Path)))
			if err != nil {
				return errors.Wrapf(err, "hashing %s", files[i].Path)
			}
			files[i].SHA256 = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	level.Debug(logger).Log(
		"msg", "enumerated payload",
		"root", root,
		"files", len(files),
	)

	return &Set{Root: root, Files: files}, nil
}

func hashFile(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Paths returns the relative paths of the payload.
func (s *Set) Paths() []string {
	paths := make([]string, len(s.Files))
	for i, f := range s.Files {
		paths[i] = f.Path
	}
	return paths
}

// Digest rolls the sorted (path, sha256) pairs into one SHA-256. Two
// payloads with the same names and contents have the same digest,
// regardless of where they live or their timestamps.
func (s *Set) Digest() string {
	h := sha256.New()
	for _, f := range s.Files {
		fmt.Fprintf(h, "%s\x00%s\n", f.Path, f.SHA256)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Lookup finds a file by its relative path.
func (s *Set) Lookup(p string) (File, bool) {
	i := sort.Search(len(s.Files), func(i int) bool { return s.Files[i].Path >= p })
	if i < len(s.Files) && s.Files[i].Path == p {
		return s.Files[i], true
	}
	return File{}, false
}
