package packaging

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Target is the platform being targetted by the build. As "platform"
// has several axis, we use a stuct to convey them.
type Target struct {
	Platform PlatformFlavor
	Package  PackageFlavor
}

type PlatformFlavor string

const (
	Windows PlatformFlavor = "windows"
)

type PackageFlavor string

const (
	Iss PackageFlavor = "iss" // Inno Setup executable
	Msi PackageFlavor = "msi" // WiX windows installer package
)

var knownPlatforms = []PlatformFlavor{Windows}
var knownPackages = []PackageFlavor{Iss, Msi}

// Targets lists every supported combination.
func Targets() []Target {
	var targets []Target
	for _, p := range knownPlatforms {
		for _, pkg := range knownPackages {
			targets = append(targets, Target{Platform: p, Package: pkg})
		}
	}
	return targets
}

func (t *Target) String() string {
	return fmt.Sprintf("%s-%s", t.Platform, t.Package)
}

// Parse parses a string in the form platform-package.
func (t *Target) Parse(s string) error {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return errors.Errorf("unable to parse %s, wrong number of parts", s)
	}

	if err := t.PlatformFromString(parts[0]); err != nil {
		return errors.Wrap(err, "parsing platform")
	}

	if err := t.PackageFromString(parts[1]); err != nil {
		return errors.Wrap(err, "parsing package")
	}

	return nil
}

func (t *Target) PlatformFromString(s string) error {
	for _, p := range knownPlatforms {
		if strings.EqualFold(s, string(p)) {
			t.Platform = p
			return nil
		}
	}
	return errors.Errorf("unknown platform %s", s)
}

func (t *Target) PackageFromString(s string) error {
	for _, p := range knownPackages {
		if strings.EqualFold(s, string(p)) {
			t.Package = p
			return nil
		}
	}
	return errors.Errorf("unknown package %s", s)
}

// PkgExtension returns the extension that the resulting installer
// should have.
func (t *Target) PkgExtension() string {
	if t.Package == Iss {
		return "exe"
	}
	return strings.ToLower(string(t.Package))
}

// DescriptorExtension is the extension of the engine's source file.
func (t *Target) DescriptorExtension() string {
	if t.Package == Msi {
		return "wxs"
	}
	return "iss"
}
