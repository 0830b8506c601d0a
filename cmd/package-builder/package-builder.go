package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/kolide/kit/version"
	"github.com/mp4-to-gif-converter/packager/pkg/manifest"
	"github.com/peterbourgon/ff/v3"
	"github.com/pkg/errors"
)

const envPrefix = "PACKAGE_BUILDER"

func runVersion(args []string) error {
	version.PrintFull()
	return nil
}

// parseFlags parses a subcommand's flags, which may also come from
// PACKAGE_BUILDER_* env vars or a plain config file given by -config.
func parseFlags(flagset *flag.FlagSet, args []string) error {
	if flagset.Lookup("config") == nil {
		flagset.String("config", "", "config file (optional)")
	}
	return ff.Parse(flagset, args,
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithEnvVarPrefix(envPrefix),
	)
}

// loadManifest reads the manifest at path, or returns the built in
// converter manifest if path is empty. A version override accepts a
// leading v, as in git tags.
func loadManifest(path, versionOverride string) (*manifest.Manifest, error) {
	m := manifest.Default()
	if path != "" {
		var err error
		if m, err = manifest.Load(path); err != nil {
			return nil, err
		}
	}

	if versionOverride != "" {
		m.Product.Version = strings.TrimPrefix(versionOverride, "v")
	}

	if err := m.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid manifest")
	}
	return m, nil
}

func usageFor(fs *flag.FlagSet, short string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "USAGE\n")
		fmt.Fprintf(os.Stderr, "  %s\n", short)
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		w := tabwriter.NewWriter(os.Stderr, 0, 2, 2, ' ', 0)
		fs.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(w, "\t-%s %s\t%s\n", f.Name, f.DefValue, f.Usage)
		})
		w.Flush()
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Flags can also be set with %s_<FLAG> environment variables.\n", envPrefix)
		fmt.Fprintf(os.Stderr, "\n")
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "USAGE\n")
	fmt.Fprintf(os.Stderr, "  %s <mode> --help\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "MODES\n")
	fmt.Fprintf(os.Stderr, "  make          Build the installer for one or more targets\n")
	fmt.Fprintf(os.Stderr, "  validate      Check a manifest, optionally against a payload\n")
	fmt.Fprintf(os.Stderr, "  render        Print the installer descriptor for a target\n")
	fmt.Fprintf(os.Stderr, "  import-iss    Convert an Inno Setup script into a manifest\n")
	fmt.Fprintf(os.Stderr, "  install       Install a payload natively, without an installer engine\n")
	fmt.Fprintf(os.Stderr, "  uninstall     Remove a native install\n")
	fmt.Fprintf(os.Stderr, "  list-targets  List the supported targets\n")
	fmt.Fprintf(os.Stderr, "  version       Print full version information\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "VERSION\n")
	fmt.Fprintf(os.Stderr, "  %s\n", version.Version().Version)
	fmt.Fprintf(os.Stderr, "\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var run func([]string) error
	switch strings.ToLower(os.Args[1]) {
	case "version":
		run = runVersion
	case "make":
		run = runMake
	case "validate":
		run = runValidate
	case "render":
		run = runRender
	case "import-iss":
		run = runImportIss
	case "install":
		run = runInstall
	case "uninstall":
		run = runUninstall
	case "list-targets":
		run = runListTargets
	default:
		usage()
		os.Exit(1)
	}

	if err := run(os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
