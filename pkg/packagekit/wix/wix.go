package wix

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-kit/kit/log/level"
	"github.com/mp4-to-gif-converter/packager/pkg/contexts/ctxlog"
	enginelog "github.com/mp4-to-gif-converter/packager/pkg/log"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

// InstallDirID is the directory heat harvests the payload into. The
// product source must define a Directory with this id.
const InstallDirID = "INSTALLDIR"

// AppFilesGroup is the component group heat emits.
const AppFilesGroup = "AppFiles"

type Tool struct {
	wixPath        string   // Where is wix installed
	packageRoot    string   // What's the root of the packaging files?
	buildDir       string   // The wix tools want to work in a build dir.
	msArch         string   // What's the microsoft archtecture name?
	cultures       string   // light -cultures
	extensions     []string // -ext for candle and light
	suppressICE    []string // light -sice
	required       []string // package root relative files heat must harvest
	dockerImage    string   // If in docker, what image?
	skipValidation bool     // Skip light validation. Seems to be needed for running in 32bit wine environments.
	cleanDirs      []string // directories to rm on cleanup

	execCC func(context.Context, string, ...string) *exec.Cmd // Allows test overrides
}

type Opt func(*Tool)

func As64bit() Opt {
	return func(t *Tool) {
		t.msArch = "x64"
	}
}

func As32bit() Opt {
	return func(t *Tool) {
		t.msArch = "x86"
	}
}

// If you're running this in a virtual win environment, you probably
// need to skip validation. LGHT0216 is a common error.
func SkipValidation() Opt {
	return func(t *Tool) {
		t.skipValidation = true
	}
}

func WithWix(path string) Opt {
	return func(t *Tool) {
		t.wixPath = path
	}
}

func WithBuildDir(path string) Opt {
	return func(t *Tool) {
		t.buildDir = path
	}
}

func WithDocker(image string) Opt {
	return func(t *Tool) {
		t.dockerImage = image
	}
}

// WithCulture selects the localization light binds, such as ja-JP.
func WithCulture(culture string) Opt {
	return func(t *Tool) {
		t.cultures = culture
	}
}

func WithExtension(ext string) Opt {
	return func(t *Tool) {
		t.extensions = append(t.extensions, ext)
	}
}

// SuppressICE skips a single validation rule. Per-user packages need
// ICE38, ICE64 and ICE91 suppressed, heat keys files by path.
func SuppressICE(ice string) Opt {
	return func(t *Tool) {
		t.suppressICE = append(t.suppressICE, ice)
	}
}

// RequireFile fails the build if heat did not harvest path, given
// relative to the package root.
func RequireFile(path string) Opt {
	return func(t *Tool) {
		t.required = append(t.required, path)
	}
}

// New takes a packageRoot of files, and a wxsContent of xml wix
// configs, and will return a struct suitable for builing packages
// with.
func New(packageRoot string, mainWxsContent []byte, opts ...Opt) (*Tool, error) {
	t := &Tool{
		wixPath:     `C:\wix311`,
		packageRoot: packageRoot,
		extensions:  []string{"WixUIExtension", "WixUtilExtension"},

		execCC: exec.CommandContext,
	}

	for _, opt := range opts {
		opt(t)
	}

	var err error
	if t.buildDir == "" {
		t.buildDir, err = os.MkdirTemp("", "wix-build-dir")
		if err != nil {
			return nil, errors.Wrap(err, "making temp wix-build-dir")
		}
		t.cleanDirs = append(t.cleanDirs, t.buildDir)
	}

	if t.msArch == "" {
		switch runtime.GOARCH {
		case "386":
			t.msArch = "x86"
		case "amd64", "arm64":
			t.msArch = "x64"
		default:
			return nil, errors.Errorf("unknown arch for windows %s", runtime.GOARCH)
		}
	}

	mainWxsPath := filepath.Join(t.buildDir, "Installer.wxs")
	if err := os.WriteFile(mainWxsPath, mainWxsContent, 0644); err != nil {
		return nil, errors.Wrapf(err, "writing %s", mainWxsPath)
	}

	return t, nil
}

// Cleanup removes temp directories. Meant to be called in a defer.
func (t *Tool) Cleanup() {
	for _, d := range t.cleanDirs {
		os.RemoveAll(d)
	}
}

func (t *Tool) BuildDir() string {
	return t.buildDir
}

// Package will run through the wix steps to produce a resulting
// package. This package will be written into the provided io.Writer,
// facilitating export to a file, buffer, or other storage backends.
func (t *Tool) Package(ctx context.Context, pkgOutput io.Writer) error {
	ctx, span := trace.StartSpan(ctx, "wix.Package")
	defer span.End()

	if err := t.heat(ctx); err != nil {
		return errors.Wrap(err, "running heat")
	}

	if err := t.checkHarvest(); err != nil {
		return err
	}

	if err := t.candle(ctx); err != nil {
		return errors.Wrap(err, "running candle")
	}

	if err := t.light(ctx); err != nil {
		return errors.Wrap(err, "running light")
	}

	msiFH, err := os.Open(filepath.Join(t.buildDir, "out.msi"))
	if err != nil {
		return errors.Wrap(err, "opening msi output file")
	}
	defer msiFH.Close()

	if _, err := io.Copy(pkgOutput, msiFH); err != nil {
		return errors.Wrap(err, "copying output")
	}

	return nil
}

// heat invokes wix's heat command. This examines a directory and
// "harvests" the files into an xml structure. See
// http://wixtoolset.org/documentation/manual/v3/overview/heat.html
func (t *Tool) heat(ctx context.Context) error {
	_, err := t.execOut(ctx,
		filepath.Join(t.wixPath, "heat.exe"),
		"dir", t.packageRoot,
		"-nologo",
		"-gg", "-g1",
		"-srd",
		"-sfrag",
		"-ke",
		"-cg", AppFilesGroup,
		"-template", "fragment",
		"-dr", InstallDirID,
		"-var", "var.SourceDir",
		"-out", "AppFiles.wxs",
	)
	return err
}

// checkHarvest reads heat's output back and makes sure every required
// file made it in.
func (t *Tool) checkHarvest() error {
	if len(t.required) == 0 {
		return nil
	}

	raw, err := os.ReadFile(filepath.Join(t.buildDir, "AppFiles.wxs"))
	if err != nil {
		return errors.Wrap(err, "reading harvested files")
	}

	var harvest Wix
	if err := xml.Unmarshal(raw, &harvest); err != nil {
		return errors.Wrap(err, "parsing harvested files")
	}

	seen := make(map[string]bool)
	for _, f := range harvest.RetFiles() {
		rel := strings.TrimPrefix(f.Source, `$(var.SourceDir)\`)
		seen[strings.ToLower(rel)] = true
	}

	for _, req := range t.required {
		rel := strings.ToLower(strings.ReplaceAll(req, "/", `\`))
		if !seen[rel] {
			return errors.Errorf("heat did not harvest %s", req)
		}
	}
	return nil
}

func (t *Tool) extArgs() []string {
	args := make([]string, 0, 2*len(t.extensions))
	for _, ext := range t.extensions {
		args = append(args, "-ext", ext)
	}
	return args
}

// candle invokes wix's candle command. This is the wix compiler, It
// preprocesses and compiles WiX source files into object files
// (.wixobj).
func (t *Tool) candle(ctx context.Context) error {
	args := []string{
		"-nologo",
		"-arch", t.msArch,
		"-dSourceDir=" + t.packageRoot,
	}
	args = append(args, t.extArgs()...)
	args = append(args, "Installer.wxs", "AppFiles.wxs")

	_, err := t.execOut(ctx, filepath.Join(t.wixPath, "candle.exe"), args...)
	return err
}

// light invokes wix's light command. This links and binds one or more
// .wixobj files and creates a Windows Installer database (.msi or
// .msm). See http://wixtoolset.org/documentation/manual/v3/overview/light.html for options
func (t *Tool) light(ctx context.Context) error {
	args := []string{
		"-nologo",
		"-dcl:high", // compression level
		"-dSourceDir=" + t.packageRoot,
	}
	args = append(args, t.extArgs()...)
	if t.cultures != "" {
		args = append(args, "-cultures:"+t.cultures)
	}
	for _, ice := range t.suppressICE {
		args = append(args, "-sice:"+ice)
	}
	args = append(args,
		"AppFiles.wixobj",
		"Installer.wixobj",
		"-out", "out.msi",
	)

	if t.skipValidation {
		args = append(args, "-sval")
	}

	_, err := t.execOut(ctx, filepath.Join(t.wixPath, "light.exe"), args...)
	return err
}

func (t *Tool) execOut(ctx context.Context, argv0 string, args ...string) (string, error) {
	logger := ctxlog.FromContext(ctx)
	name := argv0[strings.LastIndexAny(argv0, `/\`)+1:]
	engine := enginelog.WithKeyValue("engine", strings.TrimSuffix(name, ".exe"))
	// stdout and stderr are copied concurrently, so each gets its own adapter
	outLog := enginelog.NewEngineLogAdapter(logger, engine)
	errLog := enginelog.NewEngineLogAdapter(logger, engine, enginelog.WithKeyValue("stream", "stderr"))

	dockerArgs := []string{
		"run",
		"--entrypoint", "",
		"-v", fmt.Sprintf("%s:%s", t.packageRoot, t.packageRoot),
		"-v", fmt.Sprintf("%s:%s", t.buildDir, t.buildDir),
		"-w", t.buildDir,
		t.dockerImage,
		"wine",
		argv0,
	}

	dockerArgs = append(dockerArgs, args...)

	if t.dockerImage != "" {
		argv0 = "docker"
		args = dockerArgs
	}

	cmd := t.execCC(ctx, argv0, args...)

	level.Debug(logger).Log(
		"msg", "execing",
		"cmd", strings.Join(cmd.Args, " "),
	)

	cmd.Dir = t.buildDir
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd.Stdout = io.MultiWriter(stdout, outLog)
	cmd.Stderr = io.MultiWriter(stderr, errLog)
	err := cmd.Run()
	outLog.Flush()
	errLog.Flush()
	if err != nil {
		return "", errors.Wrapf(err, "run command %s %v\nstdout=%s\nstderr=%s", argv0, args, stdout, stderr)
	}
	return strings.TrimSpace(stdout.String()), nil
}
