package installer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mp4-to-gif-converter/packager/pkg/cleanup"
	"github.com/mp4-to-gif-converter/packager/pkg/contexts/ctxlog"
	"github.com/mp4-to-gif-converter/packager/pkg/log/multislogger"
	"github.com/mp4-to-gif-converter/packager/pkg/manifest"
	"go.opencensus.io/trace"
)

type UninstallOptions struct {
	// Force uninstalls even while the product is running.
	Force bool

	// Dir is the install dir. It is only needed when there is no
	// uninstall entry, or no manifest is at hand.
	Dir string

	Env map[string]string
}

// Uninstall removes an installed product: shortcuts, installed files,
// the manifest's uninstall delete targets, the directories the install
// created, and finally the uninstall entry. m may be nil, the manifest
// recorded at install time is used then.
//
// Every step runs even if an earlier one failed. Errors are logged, and
// the first one is returned.
func (e *Engine) Uninstall(ctx context.Context, m *manifest.Manifest, opts UninstallOptions) error {
	ctx, span := trace.StartSpan(ctx, "installer.Uninstall")
	defer span.End()

	ctx = withSpanValues(ctx, span)
	ctx = context.WithValue(ctx, multislogger.OperationKey, "uninstall")
	slogger := ctxlog.FromContextWithSlogger(ctx).With("component", "installer")

	installDir := opts.Dir

	var receipt *Receipt
	if m == nil {
		if installDir == "" {
			return errors.New("need a manifest or an install dir")
		}
		r, err := ReadReceipt(installDir)
		if err != nil {
			return err
		}
		if r.Manifest == nil {
			return fmt.Errorf("receipt in %s has no manifest", installDir)
		}
		receipt, m = r, r.Manifest
	}
	ctx = context.WithValue(ctx, multislogger.ProductKey, m.Product.Name)

	platform, err := e.platformFor(m)
	if err != nil {
		return fmt.Errorf("opening platform: %w", err)
	}

	key := m.Product.UninstallKey()
	entry, err := platform.ReadEntry(key)
	switch {
	case errors.Is(err, ErrNotInstalled) && installDir == "":
		return fmt.Errorf("%s: %w", m.Product.Name, ErrNotInstalled)
	case errors.Is(err, ErrNotInstalled):
	case err != nil:
		return fmt.Errorf("reading uninstall entry: %w", err)
	case installDir == "":
		installDir = entry.InstallLocation
	}
	if installDir == "" {
		return fmt.Errorf("uninstall entry %s has no install location", key)
	}

	pids, err := e.processesUnder(ctx, installDir)
	if err != nil {
		slogger.Log(ctx, slog.LevelWarn,
			"could not check for running processes",
			"err", err,
		)
	}
	if len(pids) > 0 {
		if !opts.Force {
			return fmt.Errorf("%s (pids %v): %w", m.Product.Name, pids, ErrRunning)
		}
		slogger.Log(ctx, slog.LevelWarn,
			"uninstalling while running",
			"pids", pids,
		)
	}

	if receipt == nil {
		receipt, err = ReadReceipt(installDir)
		if err != nil {
			// without a receipt only the manifest's cleanup can run
			slogger.Log(ctx, slog.LevelWarn,
				"no usable receipt",
				"dir", installDir,
				"err", err,
			)
			receipt = &Receipt{InstallDir: installDir}
		}
	}

	var firstErr error
	step := func(msg string, err error) {
		if err == nil {
			return
		}
		slogger.Log(ctx, slog.LevelError, msg, "err", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	for _, link := range receipt.Shortcuts {
		step("removing shortcut", removeFile(link))
	}
	for _, f := range receipt.Files {
		step("removing file", removeFile(f))
	}
	step("removing receipt", removeFile(filepath.Join(installDir, ReceiptFile)))

	r := resolverFor(m.Privileges, opts.Env)
	r.App = installDir
	if group, err := r.Resolve(manifest.Join(manifest.ConstAutoPrograms, m.GroupName)); err == nil {
		r.Group = group
	}
	for _, t := range m.UninstallDelete {
		path, err := r.Resolve(t.Path)
		if err != nil {
			step("resolving cleanup target", err)
			continue
		}
		// a glob can reach the install dir even when the path does not,
		// so the dir itself is kept out of every match
		removed, err := cleanup.RemoveTarget(path, cleanup.Kind(t.Type), installDir)
		step("cleaning up", err)
		if len(removed) > 0 {
			slogger.Log(ctx, slog.LevelDebug, "cleaned up", "removed", removed)
		}
	}

	// directories go only once empty, anything the app or the user put
	// there survives
	for _, d := range deepestFirst(receipt.Dirs) {
		step("removing directory", removeEmptyDir(d))
	}
	step("removing install dir", cleanup.RemoveEmptyDirs(installDir))

	step("deleting uninstall entry", platform.DeleteEntry(key))

	if firstErr != nil {
		return fmt.Errorf("uninstalling %s: %w", m.Product.Name, firstErr)
	}

	slogger.Log(ctx, slog.LevelInfo,
		"uninstalled",
		"dir", installDir,
		"version", receipt.Version,
	)
	return nil
}

func removeFile(p string) error {
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func removeEmptyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}
	if len(entries) > 0 {
		return nil
	}
	return removeFile(dir)
}
