package packagekit

import (
	"testing"

	"github.com/mp4-to-gif-converter/packager/pkg/manifest"
	"github.com/mp4-to-gif-converter/packager/pkg/packagekit/wix"
	"github.com/stretchr/testify/require"
)

// TestGenerateMicrosoftProductCode pins the codes shipped msi packages
// were built with. Changing them breaks upgrades.
func TestGenerateMicrosoftProductCode(t *testing.T) {
	t.Parallel()

	var tests = []struct {
		ident1 string
		identN []string
		out    string
	}{
		{
			ident1: "mp4-to-gif-converter",
			out:    "5B6BBD93-96D6-8277-899E-58B0408EEA6C",
		},
		{
			ident1: "mp4-to-gif-converter",
			identN: []string{},
			out:    "5B6BBD93-96D6-8277-899E-58B0408EEA6C",
		},
		{
			ident1: "mp4-to-gif-converter",
			identN: []string{"x64compatible", "1.0.0"},
			out:    "FAC67B70-E163-7CDC-DB2C-A52985B626E1",
		},
		{
			ident1: "mp4-to-gif-converter",
			identN: []string{"x64compatible", "1.0.0", "package"},
			out:    "A63E0E34-3EE6-0462-21EC-4F25036B9447",
		},
		{
			ident1: "mp4-to-gif-converter",
			identN: []string{"x64compatible", "1.1.0"},
			out:    "31A79B95-E2A0-C0A7-0652-31041231319F",
		},
	}

	for _, tt := range tests {
		guid := generateMicrosoftProductCode(tt.ident1, tt.identN...)
		require.Equal(t, len("XXXXXXXX-XXXX-XXXX-XXXX-XXXXXXXXXXXX"), len(guid))
		require.Equal(t, tt.out, guid)
	}
}

func TestWixCodes(t *testing.T) {
	t.Parallel()

	m := manifest.Default()
	codes := WixCodes(m)
	require.Equal(t, codes, WixCodes(manifest.Default()))
	require.NotEqual(t, codes.ProductCode, codes.UpgradeCode)
	require.NotEqual(t, codes.ProductCode, codes.PackageCode)

	// A new version keeps the upgrade code, and nothing else.
	m.Product.Version = "1.1.0"
	next := WixCodes(m)
	require.Equal(t, codes.UpgradeCode, next.UpgradeCode)
	require.NotEqual(t, codes.ProductCode, next.ProductCode)
	require.NotEqual(t, codes.PackageCode, next.PackageCode)

	pinned := manifest.Default()
	pinned.Product.AppID = "mp4-to-gif-converter"
	require.Equal(t, wix.Codes{
		UpgradeCode: "5B6BBD93-96D6-8277-899E-58B0408EEA6C",
		ProductCode: "FAC67B70-E163-7CDC-DB2C-A52985B626E1",
		PackageCode: "A63E0E34-3EE6-0462-21EC-4F25036B9447",
	}, WixCodes(pinned))
}
