// Package installer installs and uninstalls a manifest natively, without
// an installer engine. It follows the same rules the rendered installers
// do, so the end to end behaviour of a manifest can be checked on a
// scratch profile.
package installer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/kolide/kit/fsutil"
	"github.com/mp4-to-gif-converter/packager/pkg/contexts/ctxlog"
	"github.com/mp4-to-gif-converter/packager/pkg/log/multislogger"
	"github.com/mp4-to-gif-converter/packager/pkg/manifest"
	"github.com/mp4-to-gif-converter/packager/pkg/payload"
	"go.opencensus.io/trace"
)

// Engine installs manifests. The zero value is not usable, see New.
type Engine struct {
	platform         Platform
	processesUnder   func(ctx context.Context, dir string) ([]int32, error)
	launch           func(ctx context.Context, target string, wait bool) error
	uninstallCommand func(installDir string) string
	notify           func(appID, title, message, icon string) error
}

type Option func(*Engine)

// WithPlatform sets where uninstall entries and shortcuts go.
func WithPlatform(p Platform) Option {
	return func(e *Engine) {
		e.platform = p
	}
}

// WithProcessCheck replaces the running process lookup used before
// uninstalling.
func WithProcessCheck(fn func(ctx context.Context, dir string) ([]int32, error)) Option {
	return func(e *Engine) {
		e.processesUnder = fn
	}
}

// WithLauncher replaces how post install actions are started.
func WithLauncher(fn func(ctx context.Context, target string, wait bool) error) Option {
	return func(e *Engine) {
		e.launch = fn
	}
}

// WithUninstallCommand sets the command line written to the uninstall
// entry.
func WithUninstallCommand(fn func(installDir string) string) Option {
	return func(e *Engine) {
		e.uninstallCommand = fn
	}
}

// WithNotifier replaces how the install finished notification is shown.
func WithNotifier(fn func(appID, title, message, icon string) error) Option {
	return func(e *Engine) {
		e.notify = fn
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{
		processesUnder:   processesUnder,
		launch:           launch,
		uninstallCommand: selfUninstallCommand,
		notify:           notify,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type InstallOptions struct {
	Silent bool

	// Tasks selects tasks by name. nil means the manifest defaults, an
	// empty slice selects nothing.
	Tasks []string

	// SkipLaunch is the unchecked launch checkbox on the finish page.
	SkipLaunch bool

	// Dir overrides the install dir. Upgrades default to the dir of the
	// installed version.
	Dir string

	// Notify announces the finished install with a windows toast, for
	// silent installs that have no finish page.
	Notify bool

	// Env replaces the process environment when resolving directory
	// constants. Tests use it to install into a scratch profile.
	Env map[string]string
}

func (e *Engine) platformFor(m *manifest.Manifest) (Platform, error) {
	if e.platform != nil {
		return e.platform, nil
	}
	return DefaultPlatform(m.Privileges)
}

// withSpanValues puts the span ids where the multislogger picks them up.
func withSpanValues(ctx context.Context, span *trace.Span) context.Context {
	sc := span.SpanContext()
	ctx = context.WithValue(ctx, multislogger.TraceIdKey, sc.TraceID.String())
	ctx = context.WithValue(ctx, multislogger.SpanIdKey, sc.SpanID.String())
	return context.WithValue(ctx, multislogger.TraceSampledKey, sc.IsSampled())
}

func resolverFor(privileges manifest.PrivilegeLevel, env map[string]string) *manifest.Resolver {
	if env == nil {
		return manifest.NewResolver(privileges)
	}
	return manifest.EnvResolver(privileges, env)
}

// Install copies the payload into place, creates the shortcuts for the
// selected tasks, records a receipt and the uninstall entry, and then
// runs the post install actions.
func (e *Engine) Install(ctx context.Context, m *manifest.Manifest, payloadRoot string, opts InstallOptions) (*Receipt, error) {
	ctx, span := trace.StartSpan(ctx, "installer.Install")
	defer span.End()

	ctx = withSpanValues(ctx, span)
	ctx = context.WithValue(ctx, multislogger.OperationKey, "install")
	ctx = context.WithValue(ctx, multislogger.ProductKey, m.Product.Name)
	slogger := ctxlog.FromContextWithSlogger(ctx).With("component", "installer")

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("validating manifest: %w", err)
	}

	set, err := payload.Enumerate(ctx, payloadRoot)
	if err != nil {
		return nil, fmt.Errorf("enumerating payload: %w", err)
	}
	if err := m.ValidateAgainstPayload(set.Paths()); err != nil {
		return nil, fmt.Errorf("validating manifest against payload: %w", err)
	}
	placements, err := m.ExpandFiles(set.Paths())
	if err != nil {
		return nil, fmt.Errorf("expanding files: %w", err)
	}

	platform, err := e.platformFor(m)
	if err != nil {
		return nil, fmt.Errorf("opening platform: %w", err)
	}

	key := m.Product.UninstallKey()
	receipt := &Receipt{Version: m.Product.Version, Manifest: m}

	prev, err := platform.ReadEntry(key)
	switch {
	case errors.Is(err, ErrNotInstalled):
	case err != nil:
		return nil, fmt.Errorf("reading uninstall entry: %w", err)
	case m.UpgradePolicy == manifest.UpgradeRefuse:
		return nil, fmt.Errorf("%s %s in %s: %w", m.Product.Name, prev.DisplayVersion, prev.InstallLocation, ErrAlreadyInstalled)
	default:
		receipt.PreviousVersion = prev.DisplayVersion
		if c, err := manifest.CompareVersions(m.Product.Version, prev.DisplayVersion); err == nil && c < 0 {
			slogger.Log(ctx, slog.LevelWarn,
				"installing over a newer version",
				"installed", prev.DisplayVersion,
				"version", m.Product.Version,
			)
		}
	}

	r := resolverFor(m.Privileges, opts.Env)
	receipt.InstallDir = opts.Dir
	if receipt.InstallDir == "" {
		receipt.InstallDir = prev.InstallLocation
	}
	if receipt.InstallDir == "" {
		if receipt.InstallDir, err = r.Resolve(m.DefaultDir); err != nil {
			return nil, fmt.Errorf("resolving install dir: %w", err)
		}
	}
	r.App = receipt.InstallDir
	if r.Group, err = r.Resolve(manifest.Join(manifest.ConstAutoPrograms, m.GroupName)); err != nil {
		return nil, fmt.Errorf("resolving program group: %w", err)
	}

	created, err := mkdirAll(receipt.InstallDir)
	if err != nil {
		return nil, err
	}
	receipt.Dirs = append(receipt.Dirs, created...)

	store, err := openReceipt(filepath.Join(receipt.InstallDir, ReceiptFile))
	if err != nil {
		return nil, err
	}
	defer store.Close()

	// an upgrade keeps the previous receipt, so uninstall also removes
	// what older versions installed
	if err := store.add(dirsBucket, created...); err != nil {
		return nil, err
	}

	var size int64
	for _, pl := range placements {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		f := m.Files[pl.Entry]
		dest, err := r.Resolve(pl.Dest)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", pl.Dest, err)
		}

		if f.Has(manifest.FlagOnlyIfDoesntExist) {
			if _, err := os.Lstat(dest); err == nil {
				slogger.Log(ctx, slog.LevelDebug, "keeping existing file", "path", dest)
				continue
			}
		}

		dirs, err := mkdirAll(filepath.Dir(dest))
		if err != nil {
			return nil, err
		}
		if err := store.add(dirsBucket, dirs...); err != nil {
			return nil, err
		}
		receipt.Dirs = append(receipt.Dirs, dirs...)

		if err := fsutil.CopyFile(filepath.Join(set.Root, filepath.FromSlash(pl.Source)), dest); err != nil {
			return nil, fmt.Errorf("copying %s: %w", pl.Source, err)
		}
		if file, ok := set.Lookup(pl.Source); ok {
			size += file.Size
		}

		if f.Has(manifest.FlagUninsNeverUninstall) {
			continue
		}
		if err := store.add(filesBucket, dest); err != nil {
			return nil, err
		}
		receipt.Files = append(receipt.Files, dest)
	}

	selected := m.DefaultTasks()
	if opts.Tasks != nil {
		selected = make(map[string]bool, len(opts.Tasks))
		for _, t := range opts.Tasks {
			selected[strings.ToLower(t)] = true
		}
	}
	for _, t := range m.Tasks {
		if selected[strings.ToLower(t.Name)] {
			receipt.Tasks = append(receipt.Tasks, t.Name)
		}
	}

	for _, s := range m.Shortcuts {
		if !s.TaskSelected(selected) {
			continue
		}

		link, err := r.Resolve(m.ShortcutPath(s))
		if err != nil {
			return nil, fmt.Errorf("resolving shortcut %s: %w", s.Label, err)
		}
		target, err := r.Resolve(s.Target)
		if err != nil {
			return nil, fmt.Errorf("resolving shortcut target %s: %w", s.Target, err)
		}

		dirs, err := mkdirAll(filepath.Dir(link))
		if err != nil {
			return nil, err
		}
		if err := store.add(dirsBucket, dirs...); err != nil {
			return nil, err
		}
		receipt.Dirs = append(receipt.Dirs, dirs...)

		written, err := platform.CreateShortcut(link, target, filepath.Dir(target))
		if err != nil {
			return nil, err
		}
		if err := store.add(shortcutsBucket, written); err != nil {
			return nil, err
		}
		receipt.Shortcuts = append(receipt.Shortcuts, written)
	}

	if err := store.writeMeta(receipt); err != nil {
		return nil, fmt.Errorf("writing receipt: %w", err)
	}

	entry := Entry{
		Key:             key,
		DisplayName:     fmt.Sprintf("%s version %s", m.Product.Name, m.Product.Version),
		DisplayVersion:  m.Product.Version,
		Publisher:       m.Product.Publisher,
		URLInfoAbout:    m.Product.URL,
		InstallLocation: receipt.InstallDir,
		UninstallString: e.uninstallCommand(receipt.InstallDir),
		EstimatedSize:   uint32(size / 1024),
		NoModify:        true,
		NoRepair:        true,
	}
	if exe := m.MainExecutable(); exe != "" {
		if entry.DisplayIcon, err = r.Resolve(exe); err != nil {
			return nil, fmt.Errorf("resolving %s: %w", exe, err)
		}
	}
	if err := platform.WriteEntry(entry); err != nil {
		return nil, fmt.Errorf("writing uninstall entry: %w", err)
	}

	slogger.Log(ctx, slog.LevelInfo,
		"installed",
		"dir", receipt.InstallDir,
		"version", receipt.Version,
		"files", len(receipt.Files),
		"shortcuts", len(receipt.Shortcuts),
	)

	if opts.Notify {
		err := e.notify(
			m.Product.Name,
			fmt.Sprintf("%s installed", m.Product.Name),
			fmt.Sprintf("Version %s was installed into %s", m.Product.Version, receipt.InstallDir),
			entry.DisplayIcon,
		)
		if err != nil {
			slogger.Log(ctx, slog.LevelWarn, "showing install notification", "err", err)
		}
	}

	for _, a := range m.Run {
		if !a.ShouldRun(opts.Silent, !opts.SkipLaunch) {
			continue
		}
		target, err := r.Resolve(a.Target)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", a.Target, err)
		}
		// the install is done, a failed launch does not undo it
		if err := e.launch(ctx, target, !a.Has(manifest.RunNoWait)); err != nil {
			slogger.Log(ctx, slog.LevelError,
				"running post install action",
				"target", target,
				"err", err,
			)
			continue
		}
		receipt.Launched = append(receipt.Launched, target)
	}

	return receipt, nil
}

// mkdirAll is os.MkdirAll that reports which directories it created,
// outermost first.
func mkdirAll(dir string) ([]string, error) {
	var missing []string
	for d := filepath.Clean(dir); ; d = filepath.Dir(d) {
		if _, err := os.Lstat(d); err == nil {
			break
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("checking %s: %w", d, err)
		}
		missing = append(missing, d)
		if filepath.Dir(d) == d {
			break
		}
	}

	if err := os.MkdirAll(dir, fsutil.DirMode); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}

	for i, j := 0, len(missing)-1; i < j; i, j = i+1, j-1 {
		missing[i], missing[j] = missing[j], missing[i]
	}
	return missing, nil
}

func launch(_ context.Context, target string, wait bool) error {
	// not tied to the context, a launched app outlives the installer
	cmd := exec.Command(target) //nolint:gosec
	cmd.Dir = filepath.Dir(target)
	if wait {
		return cmd.Run()
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

func selfUninstallCommand(installDir string) string {
	self, err := os.Executable()
	if err != nil {
		self = "package-builder"
	}
	return fmt.Sprintf(`"%s" uninstall -dir "%s"`, self, installDir)
}
