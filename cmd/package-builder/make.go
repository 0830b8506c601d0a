package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-kit/kit/log/level"
	"github.com/kolide/kit/logutil"
	"github.com/mp4-to-gif-converter/packager/pkg/contexts/ctxlog"
	"github.com/mp4-to-gif-converter/packager/pkg/packaging"
	"github.com/oklog/run"
	"github.com/pkg/errors"
)

func runMake(args []string) error {
	flagset := flag.NewFlagSet("make", flag.ExitOnError)
	var (
		flDebug = flagset.Bool(
			"debug",
			false,
			"enable debug logging",
		)
		flManifest = flagset.String(
			"manifest",
			"",
			"manifest file, yaml or json (default: the built in converter manifest)",
		)
		flSource = flagset.String(
			"source",
			"",
			"payload root, the prebuilt application tree",
		)
		flTargets = flagset.String(
			"targets",
			"windows-iss",
			"comma separated list of targets, see list-targets",
		)
		flOut = flagset.String(
			"out",
			"",
			"output dir (default: the manifest's output dir)",
		)
		flVersion = flagset.String(
			"version",
			"",
			"override the product version",
		)
		flDocker = flagset.String(
			"docker",
			"",
			"run the installer engine under wine in this docker image",
		)
		flEnginePath = flagset.String(
			"engine_path",
			"",
			"path to ISCC.exe, or to the wix bin dir",
		)
		flRenderOnly = flagset.Bool(
			"render_only",
			false,
			"write the descriptor and build report, without running the engine",
		)
		flSkipValidation = flagset.Bool(
			"skip_validation",
			false,
			"skip ICE validation of msi packages",
		)
		flSBOM = flagset.Bool(
			"sbom",
			false,
			"also write a syft sbom of the payload next to the installer",
		)
	)

	flagset.Usage = usageFor(flagset, "package-builder make [flags]")
	if err := parseFlags(flagset, args); err != nil {
		return err
	}

	logger := logutil.NewCLILogger(*flDebug)

	if *flSource == "" {
		return errors.New("-source is required")
	}

	m, err := loadManifest(*flManifest, *flVersion)
	if err != nil {
		return err
	}

	var targets []packaging.Target
	for _, ts := range strings.Split(*flTargets, ",") {
		var t packaging.Target
		if err := t.Parse(strings.TrimSpace(ts)); err != nil {
			return errors.Wrapf(err, "parsing target %s", ts)
		}
		targets = append(targets, t)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = ctxlog.NewContext(ctx, logger)

	var g run.Group

	g.Add(func() error {
		for _, target := range targets {
			po := &packaging.PackageOptions{
				Manifest:       m,
				PayloadRoot:    *flSource,
				OutputDir:      *flOut,
				Target:         target,
				EnginePath:     *flEnginePath,
				DockerImage:    *flDocker,
				SkipValidation: *flSkipValidation,
				RenderOnly:     *flRenderOnly,
				SBOM:           *flSBOM,
			}

			report, err := po.Build(ctx)
			if err != nil {
				return errors.Wrapf(err, "building %s", target.String())
			}

			level.Info(logger).Log(
				"msg", "built target",
				"target", report.Target,
				"descriptor", report.Descriptor,
				"descriptor_sha256", report.DescriptorDigest,
				"artifact", report.Artifact,
			)
		}
		return nil
	}, func(error) {
		cancel()
	})

	// interrupting a build cancels the engine rather than leaving
	// ISCC or light running
	sig := make(chan os.Signal, 1)
	g.Add(func() error {
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		select {
		case s := <-sig:
			return fmt.Errorf("interrupted by %s", s)
		case <-ctx.Done():
			return nil
		}
	}, func(error) {
		signal.Stop(sig)
		cancel()
	})

	return g.Run()
}
