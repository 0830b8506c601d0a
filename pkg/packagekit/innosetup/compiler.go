package innosetup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/go-kit/kit/log/level"
	"github.com/mp4-to-gif-converter/packager/pkg/contexts/ctxlog"
	enginelog "github.com/mp4-to-gif-converter/packager/pkg/log"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

// Compiler drives ISCC.exe, natively or under wine in a docker
// container.
type Compiler struct {
	isccPath    string
	buildDir    string
	dockerImage string
	cleanDirs   []string

	execCC func(context.Context, string, ...string) *exec.Cmd // Allows test overrides
}

type CompilerOpt func(*Compiler)

// WithISCC sets the path to ISCC.exe. Inside docker, this is the path
// within the container.
func WithISCC(path string) CompilerOpt {
	return func(c *Compiler) {
		c.isccPath = path
	}
}

func WithBuildDir(path string) CompilerOpt {
	return func(c *Compiler) {
		c.buildDir = path
	}
}

func WithDocker(image string) CompilerOpt {
	return func(c *Compiler) {
		c.dockerImage = image
	}
}

func NewCompiler(opts ...CompilerOpt) (*Compiler, error) {
	c := &Compiler{
		isccPath: `C:\Program Files (x86)\Inno Setup 6\ISCC.exe`,
		execCC:   exec.CommandContext,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.buildDir == "" {
		dir, err := os.MkdirTemp("", "iscc-build-dir")
		if err != nil {
			return nil, errors.Wrap(err, "making temp iscc-build-dir")
		}
		c.buildDir = dir
		c.cleanDirs = append(c.cleanDirs, dir)
	}

	return c, nil
}

// Cleanup removes temp directories. Meant to be called in a defer.
func (c *Compiler) Cleanup() {
	for _, d := range c.cleanDirs {
		os.RemoveAll(d)
	}
}

// BuildDir is where the script and the compiled setup are written.
func (c *Compiler) BuildDir() string {
	return c.buildDir
}

// Compile writes script into the build dir, compiles it against the
// payload in sourceDir, and copies the resulting setup executable into
// out. It returns the compiler banner, which names the ISCC version.
func (c *Compiler) Compile(ctx context.Context, script []byte, sourceDir, baseFilename string, out io.Writer) (string, error) {
	ctx, span := trace.StartSpan(ctx, "innosetup.Compile")
	defer span.End()

	scriptPath := filepath.Join(c.buildDir, "setup.iss")
	if err := os.WriteFile(scriptPath, script, 0644); err != nil {
		return "", errors.Wrapf(err, "writing %s", scriptPath)
	}

	stdout, err := c.execOut(ctx, sourceDir,
		c.isccPath,
		"/O"+c.buildDir,
		"/F"+baseFilename,
		fmt.Sprintf("/D%s=%s", SourceDefine, sourceDir),
		scriptPath,
	)
	if err != nil {
		return "", errors.Wrap(err, "running iscc")
	}

	setupPath := filepath.Join(c.buildDir, baseFilename+".exe")
	setupFH, err := os.Open(setupPath)
	if err != nil {
		return "", errors.Wrap(err, "opening setup output file")
	}
	defer setupFH.Close()

	if _, err := io.Copy(out, setupFH); err != nil {
		return "", errors.Wrap(err, "copying output")
	}

	return banner(stdout), nil
}

func banner(stdout string) string {
	line, _, _ := strings.Cut(stdout, "\n")
	return strings.TrimSpace(line)
}

func (c *Compiler) execOut(ctx context.Context, sourceDir string, argv0 string, args ...string) (string, error) {
	logger := ctxlog.FromContext(ctx)
	// stdout and stderr are copied concurrently, so each gets its own adapter
	engine := enginelog.WithKeyValue("engine", "iscc")
	outLog := enginelog.NewEngineLogAdapter(logger, engine)
	errLog := enginelog.NewEngineLogAdapter(logger, engine, enginelog.WithKeyValue("stream", "stderr"))

	dockerArgs := []string{
		"run",
		"--entrypoint", "",
		"-v", fmt.Sprintf("%s:%s", sourceDir, sourceDir),
		"-v", fmt.Sprintf("%s:%s", c.buildDir, c.buildDir),
		"-w", c.buildDir,
		c.dockerImage,
		"wine",
		argv0,
	}

	dockerArgs = append(dockerArgs, args...)

	if c.dockerImage != "" {
		argv0 = "docker"
		args = dockerArgs
	}

	cmd := c.execCC(ctx, argv0, args...)

	level.Debug(logger).Log(
		"msg", "execing",
		"cmd", strings.Join(cmd.Args, " "),
	)

	cmd.Dir = c.buildDir
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
