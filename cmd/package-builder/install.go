package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/kolide/kit/env"
	"github.com/mp4-to-gif-converter/packager/pkg/contexts/ctxlog"
	"github.com/mp4-to-gif-converter/packager/pkg/installer"
	"github.com/mp4-to-gif-converter/packager/pkg/log/multislogger"
	"github.com/mp4-to-gif-converter/packager/pkg/manifest"
)

func engineContext(debug bool, logFile string) (context.Context, func(), error) {
	slogger, closer, err := multislogger.NewCLI(os.Stderr, logFile, debug)
	if err != nil {
		return nil, nil, fmt.Errorf("setting up logging: %w", err)
	}
	ctx := ctxlog.NewContextWithMultislogger(context.Background(), slogger)
	return ctx, func() { closer.Close() }, nil
}

func runInstall(args []string) error {
	flagset := flag.NewFlagSet("install", flag.ExitOnError)
	var (
		flDebug = flagset.Bool(
			"debug",
			false,
			"enable debug logging",
		)
		flLogFile = flagset.String(
			"log_file",
			env.String("PACKAGE_BUILDER_LOG_FILE", ""),
			"also log to this file, rotated",
		)
		flManifest = flagset.String(
			"manifest",
			"",
			"manifest file (default: the built in converter manifest)",
		)
		flSource = flagset.String(
			"source",
			"",
			"payload root, the prebuilt application tree",
		)
		flSilent = flagset.Bool(
			"silent",
			false,
			"silent install, post install actions marked skipifsilent do not run",
		)
		flTasks = flagset.String(
			"tasks",
			"",
			"comma separated tasks to select (default: the manifest's checked tasks)",
		)
		flNoLaunch = flagset.Bool(
			"no_launch",
			false,
			"leave the launch checkbox on the finish page unchecked",
		)
		flDir = flagset.String(
			"dir",
			"",
			"install dir (default: the manifest's default dir, or the installed version's)",
		)
		flNotify = flagset.Bool(
			"notify",
			false,
			"show a notification once installed (windows only)",
		)
	)

	flagset.Usage = usageFor(flagset, "package-builder install -source <dir> [flags]")
	if err := parseFlags(flagset, args); err != nil {
		return err
	}

	if *flSource == "" {
		return errors.New("-source is required")
	}

	m, err := loadManifest(*flManifest, "")
	if err != nil {
		return err
	}

	ctx, done, err := engineContext(*flDebug, *flLogFile)
	if err != nil {
		return err
	}
	defer done()

	opts := installer.InstallOptions{
		Silent:     *flSilent,
		SkipLaunch: *flNoLaunch,
		Dir:        *flDir,
		Notify:     *flNotify,
	}
	flagset.Visit(func(f *flag.Flag) {
		if f.Name != "tasks" {
			return
		}
		opts.Tasks = []string{}
		for _, t := range strings.Split(*flTasks, ",") {
			if t = strings.TrimSpace(t); t != "" {
				opts.Tasks = append(opts.Tasks, t)
			}
		}
	})

	receipt, err := installer.New().Install(ctx, m, *flSource, opts)
	if err != nil {
		return err
	}

	fmt.Printf("installed %s %s into %s\n", m.Product.Name, receipt.Version, receipt.InstallDir)
	return nil
}

func runUninstall(args []string) error {
	flagset := flag.NewFlagSet("uninstall", flag.ExitOnError)
	var (
		flDebug = flagset.Bool(
			"debug",
			false,
			"enable debug logging",
		)
		flLogFile = flagset.String(
			"log_file",
			env.String("PACKAGE_BUILDER_LOG_FILE", ""),
			"also log to this file, rotated",
		)
		flManifest = flagset.String(
			"manifest",
			"",
			"manifest file (default: the one recorded in -dir, else the built in converter manifest)",
		)
		flDir = flagset.String(
			"dir",
			"",
			"install dir (default: from the uninstall entry)",
		)
		flForce = flagset.Bool(
			"force",
			false,
			"uninstall even while the app is running",
		)
	)

	flagset.Usage = usageFor(flagset, "package-builder uninstall [flags]")
	if err := parseFlags(flagset, args); err != nil {
		return err
	}

	ctx, done, err := engineContext(*flDebug, *flLogFile)
	if err != nil {
		return err
	}
	defer done()

	m, err := uninstallManifest(*flManifest, *flDir)
	if err != nil {
		return err
	}

	err = installer.New().Uninstall(ctx, m, installer.UninstallOptions{
		Force: *flForce,
		Dir:   *flDir,
	})
	if errors.Is(err, installer.ErrNotInstalled) {
		ctxlog.FromContextWithSlogger(ctx).Log(ctx, slog.LevelInfo, "nothing to uninstall", "err", err)
		return nil
	}
	return err
}

// uninstallManifest picks the manifest to uninstall with. nil means the
// engine uses the one recorded in the install dir.
func uninstallManifest(path, dir string) (*manifest.Manifest, error) {
	if path != "" {
		return loadManifest(path, "")
	}
	if dir != "" {
		return nil, nil
	}
	return manifest.Default(), nil
}
