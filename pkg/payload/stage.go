package payload

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-kit/kit/log/level"
	"github.com/kolide/kit/fsutil"
	"github.com/mp4-to-gif-converter/packager/pkg/contexts/ctxlog"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

// Copy places the payload file Source at Dest. Both are slash separated
// and relative, Source to the payload root, Dest to the staging dir.
type Copy struct {
	Source string
	Dest   string
}

// Stage copies the payload into dest, keeping the relative layout. dest
// is usually a package root in a scratch directory.
func (s *Set) Stage(ctx context.Context, dest string) error {
	copies := make([]Copy, len(s.Files))
	for i, f := range s.Files {
		copies[i] = Copy{Source: f.Path, Dest: f.Path}
	}
	return s.StageAs(ctx, dest, copies)
}

// StageAs copies payload files into dest, rearranged as copies
// describes. Later copies to the same destination win.
func (s *Set) StageAs(ctx context.Context, dest string, copies []Copy) error {
	ctx, span := trace.StartSpan(ctx, "payload.Stage")
	defer span.End()

	logger := ctxlog.FromContext(ctx)

	if err := os.MkdirAll(dest, fsutil.DirMode); err != nil {
		return errors.Wrapf(err, "creating staging dir %s", dest)
	}

	for _, c := range copies {
		if err := ctx.Err(); err != nil {
			return err
		}

		if _, ok := s.Lookup(c.Source); !ok {
			return errors.Errorf("%s is not in the payload", c.Source)
		}

		target := filepath.Join(dest, filepath.FromSlash(c.Dest))
		if err := os.MkdirAll(filepath.Dir(target), fsutil.DirMode); err != nil {
			return errors.Wrapf(err, "creating dir for %s", c.Dest)
		}
		if err := fsutil.CopyFile(filepath.Join(s.Root, filepath.FromSlash(c.Source)), target); err != nil {
			return errors.Wrapf(err, "staging %s", c.Source)
		}
	}

	level.Debug(logger).Log("msg", "staged payload", "dest", dest, "files", len(copies))
	return nil
}
