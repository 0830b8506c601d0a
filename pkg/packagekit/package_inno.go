package packagekit

import (
	"bytes"
	"context"
	"io"

	"github.com/go-kit/kit/log/level"
	"github.com/mp4-to-gif-converter/packager/pkg/contexts/ctxlog"
	"github.com/mp4-to-gif-converter/packager/pkg/packagekit/innosetup"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

// RenderInnoSetup writes the Inno Setup script for the manifest.
func RenderInnoSetup(w io.Writer, po *PackageOptions) error {
	return innosetup.Render(w, po.Manifest)
}

// PackageInnoSetup compiles the manifest into a setup executable,
// written to w.
func PackageInnoSetup(ctx context.Context, w io.Writer, po *PackageOptions) error {
	ctx, span := trace.StartSpan(ctx, "packagekit.PackageInnoSetup")
	defer span.End()

	logger := ctxlog.FromContext(ctx)

	if err := isDirectory(po.Root); err != nil {
		return err
	}

	var script bytes.Buffer
	if err := RenderInnoSetup(&script, po); err != nil {
		return errors.Wrap(err, "rendering setup script")
	}
	SetInContext(ctx, ContextDescriptorDigestKey, digest(script.Bytes()))

	var opts []innosetup.CompilerOpt
	if po.EnginePath != "" {
		opts = append(opts, innosetup.WithISCC(po.EnginePath))
	}
	if po.DockerImage != "" {
		opts = append(opts, innosetup.WithDocker(po.DockerImage))
	}

	compiler, err := innosetup.NewCompiler(opts...)
	if err != nil {
		return errors.Wrap(err, "making iscc compiler")
	}
	if !po.SkipCleanup {
		defer compiler.Cleanup()
	}
	SetInContext(ctx, ContextBuildDirKey, compiler.BuildDir())
	level.Debug(logger).Log("msg", "compiling setup script", "builddir", compiler.BuildDir())

	banner, err := compiler.Compile(ctx, script.Bytes(), po.Root, po.Manifest.Output.BaseFilename, w)
	if err != nil {
		return errors.Wrap(err, "compiling setup script")
	}
	SetInContext(ctx, ContextEngineVersionKey, banner)

	return nil
}
