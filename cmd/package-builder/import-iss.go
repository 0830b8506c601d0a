package main

import (
	"flag"
	"os"

	"github.com/mp4-to-gif-converter/packager/pkg/manifest"
	"github.com/mp4-to-gif-converter/packager/pkg/packagekit/innosetup"
	"github.com/pkg/errors"
)

func runImportIss(args []string) error {
	flagset := flag.NewFlagSet("import-iss", flag.ExitOnError)
	var (
		flScript = flagset.String(
			"script",
			"",
			"the Inno Setup script to import",
		)
		flSourcePrefix = flagset.String(
			"source_prefix",
			"",
			"prefix stripped from [Files] sources, usually the build output dir",
		)
		flOut = flagset.String(
			"out",
			"",
			"write the manifest here instead of stdout",
		)
	)

	flagset.Usage = usageFor(flagset, "package-builder import-iss -script setup.iss [flags]")
	if err := parseFlags(flagset, args); err != nil {
		return err
	}

	if *flScript == "" {
		return errors.New("-script is required")
	}

	fh, err := os.Open(*flScript)
	if err != nil {
		return errors.Wrap(err, "opening script")
	}
	defer fh.Close()

	m, err := innosetup.Import(fh, *flSourcePrefix)
	if err != nil {
		return errors.Wrapf(err, "importing %s", *flScript)
	}

	// imported scripts are often sloppier than we allow, write the
	// manifest anyway so it can be fixed up by hand
	validationErr := m.Validate()

	raw, err := manifest.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "encoding manifest")
	}

	if *flOut == "" {
		if _, err := os.Stdout.Write(raw); err != nil {
			return err
		}
	} else if err := os.WriteFile(*flOut, raw, 0644); err != nil {
		return errors.Wrap(err, "writing manifest")
	}

	return errors.Wrap(validationErr, "imported manifest needs fixing")
}
