package packaging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlatformFromString(t *testing.T) {
	t.Parallel()

	// Test error case
	target := &Target{}
	err := target.PlatformFromString("does not exist")
	require.Error(t, err)

	for _, in := range []string{"windows", "Windows"} {
		target := &Target{}
		require.NoError(t, target.PlatformFromString(in))
		require.Equal(t, Windows, target.Platform)
	}
}

func TestPackageStrings(t *testing.T) {
	t.Parallel()

	var tests = []struct {
		in        string
		out       PackageFlavor
		ext       string
		sourceExt string
	}{
		{
			in:        "iss",
			out:       Iss,
			ext:       "exe",
			sourceExt: "iss",
		},
		{
			in:        "msi",
			out:       Msi,
			ext:       "msi",
			sourceExt: "wxs",
		},
	}

	// Test error case
	target := &Target{}
	err := target.PackageFromString("deb")
	require.Error(t, err)

	for _, tt := range tests {
		target := &Target{}
		err := target.PackageFromString(tt.in)
		require.NoError(t, err)
		require.Equal(t, tt.out, target.Package)
		require.Equal(t, tt.ext, target.PkgExtension())
		require.Equal(t, tt.sourceExt, target.DescriptorExtension())
	}
}

func TestTargetParse(t *testing.T) {
	t.Parallel()

	var tests = []struct {
		in         string
		out        *Target
		shouldFail bool
	}{
		{
			in:  "windows-iss",
			out: &Target{Platform: Windows, Package: Iss},
		},
		{
			in:  "windows-msi",
			out: &Target{Platform: Windows, Package: Msi},
		},
		{
			in:         "windows-none-msi",
			shouldFail: true,
		},
		{
			in:         "darwin-pkg",
			shouldFail: true,
		},
		{
			in:         "does-not-exist",
			shouldFail: true,
		},
	}

	for _, tt := range tests {
		target := &Target{}
		err := target.Parse(tt.in)
		if tt.shouldFail {
			require.Error(t, err)
		} else {
			require.NoError(t, err)
			require.Equal(t, tt.out.String(), target.String())
		}
	}
}

func TestTargets(t *testing.T) {
	t.Parallel()

	var names []string
	for _, target := range Targets() {
		names = append(names, target.String())
	}
	require.Equal(t, []string{"windows-iss", "windows-msi"}, names)
}
