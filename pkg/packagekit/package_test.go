package packagekit

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/kolide/kit/env"
	"github.com/mp4-to-gif-converter/packager/pkg/manifest"
	"github.com/stretchr/testify/require"
)

func TestPackageTrivial(t *testing.T) {
	t.Parallel()
	// This test won't work in CI. It's got dependencies on docker and
	// the wine based engine images. So, skip it unless we've explicitly
	// asked to run it.
	if !env.Bool("CI_TEST_PACKAGING", false) {
		t.Skip("No packaging tools")
	}

	inputDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(inputDir, "mp4-to-gif-converter.exe"), []byte("MZ"), 0755))

	m := manifest.Default()
	m.Architectures = []string{"x86"} // wine is 32bit

	ctx := InitContext(context.TODO())

	err := PackageInnoSetup(ctx, io.Discard, &PackageOptions{
		Manifest:    m,
		Root:        inputDir,
		EnginePath:  `C:\Program Files\Inno Setup 6\ISCC.exe`,
		DockerImage: "amake/innosetup",
	})
	require.NoError(t, err)

	err = PackageWixMSI(ctx, io.Discard, &PackageOptions{
		Manifest:       m,
		Root:           inputDir,
		EnginePath:     "/opt/wix/bin",
		DockerImage:    "felfert/wix",
		SkipValidation: true,
	})
	require.NoError(t, err)
}

func TestPackageMissingRoot(t *testing.T) {
	t.Parallel()

	po := &PackageOptions{
		Manifest: manifest.Default(),
		Root:     filepath.Join(t.TempDir(), "missing"),
	}

	require.Error(t, PackageInnoSetup(context.TODO(), io.Discard, po))
	require.Error(t, PackageWixMSI(context.TODO(), io.Discard, po))

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	po.Root = file
	err := PackageInnoSetup(context.TODO(), io.Discard, po)
	require.Error(t, err)
	require.Contains(t, err.Error(), "isn't a directory")
}

func TestRenderReproducible(t *testing.T) {
	t.Parallel()

	var tests = []struct {
		name   string
		render func(io.Writer, *PackageOptions) error
	}{
		{name: "iss", render: RenderInnoSetup},
		{name: "wxs", render: RenderWix},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var first, second bytes.Buffer
			require.NoError(t, tt.render(&first, &PackageOptions{Manifest: manifest.Default()}))
			require.NoError(t, tt.render(&second, &PackageOptions{Manifest: manifest.Default()}))
			require.NotZero(t, first.Len())
			require.Equal(t, first.Bytes(), second.Bytes())
			require.Equal(t, digest(first.Bytes()), digest(second.Bytes()))
		})
	}
}
