package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/kolide/kit/env"
	"github.com/kolide/kit/logutil"
	"github.com/mp4-to-gif-converter/packager/pkg/contexts/ctxlog"
	"github.com/mp4-to-gif-converter/packager/pkg/packagekit"
	"github.com/mp4-to-gif-converter/packager/pkg/packaging"
	"github.com/mp4-to-gif-converter/packager/pkg/payload"
	"github.com/pkg/errors"
)

func runValidate(args []string) error {
	flagset := flag.NewFlagSet("validate", flag.ExitOnError)
	var (
		flManifest = flagset.String(
			"manifest",
			env.String("MANIFEST", ""),
			"manifest file (default: the built in converter manifest)",
		)
		flSource = flagset.String(
			"source",
			"",
			"payload root; when set, shortcut and run targets are checked against it",
		)
	)

	flagset.Usage = usageFor(flagset, "package-builder validate [flags]")
	if err := parseFlags(flagset, args); err != nil {
		return err
	}

	m, err := loadManifest(*flManifest, "")
	if err != nil {
		return err
	}

	if *flSource != "" {
		ctx := ctxlog.NewContext(context.Background(), logutil.NewCLILogger(false))
		set, err := payload.Enumerate(ctx, *flSource)
		if err != nil {
			return err
		}
		if err := m.ValidateAgainstPayload(set.Paths()); err != nil {
			return errors.Wrap(err, "manifest does not match the payload")
		}
		fmt.Printf("payload: %d files, sha256 %s\n", len(set.Files), set.Digest())
	}

	fmt.Printf("%s %s: ok\n", m.Product.Name, m.Product.Version)
	return nil
}

func runRender(args []string) error {
	flagset := flag.NewFlagSet("render", flag.ExitOnError)
	var (
		flManifest = flagset.String(
			"manifest",
			env.String("MANIFEST", ""),
			"manifest file (default: the built in converter manifest)",
		)
		flTarget = flagset.String(
			"target",
			"windows-iss",
			"target to render the descriptor for",
		)
		flVersion = flagset.String(
			"version",
			"",
			"override the product version",
		)
	)

	flagset.Usage = usageFor(flagset, "package-builder render [flags]")
	if err := parseFlags(flagset, args); err != nil {
		return err
	}

	var t packaging.Target
	if err := t.Parse(*flTarget); err != nil {
		return err
	}

	m, err := loadManifest(*flManifest, *flVersion)
	if err != nil {
		return err
	}

	po := &packagekit.PackageOptions{Manifest: m}

	var out bytes.Buffer
	switch t.Package {
	case packaging.Iss:
		err = packagekit.RenderInnoSetup(&out, po)
	case packaging.Msi:
		err = packagekit.RenderWix(&out, po)
	default:
		err = errors.Errorf("unsupported package %s", t.Package)
	}
	if err != nil {
		return errors.Wrap(err, "rendering descriptor")
	}

	_, err = os.Stdout.Write(out.Bytes())
	return err
}
