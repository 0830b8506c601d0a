package packaging

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/kolide/kit/env"
	"github.com/mp4-to-gif-converter/packager/pkg/manifest"
	"github.com/mp4-to-gif-converter/packager/pkg/payload"
	"github.com/stretchr/testify/require"
)

var converterFiles = map[string]string{
	"mp4-to-gif-converter.exe": "MZ converter",
	"bin/ffmpeg.exe":           "MZ ffmpeg",
	"bin/ffprobe.exe":          "MZ ffprobe",
	"resources/app.ico":        "icon",
}

func makePayload(t *testing.T, files map[string]string) string {
	root := t.TempDir()
	for p, contents := range files {
		full := filepath.Join(root, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(contents), 0644))
	}
	return root
}

func renderOnly(t *testing.T, target Target, root string) (string, *BuildReport) {
	outDir := t.TempDir()
	po := &PackageOptions{
		Manifest:    manifest.Default(),
		PayloadRoot: root,
		OutputDir:   outDir,
		Target:      target,
		RenderOnly:  true,
	}
	report, err := po.Build(context.TODO())
	require.NoError(t, err)
	return outDir, report
}

func TestBuildRenderOnly(t *testing.T) {
	t.Parallel()

	var tests = []struct {
		target     Target
		descriptor string
		magic      string
	}{
		{
			target:     Target{Platform: Windows, Package: Iss},
			descriptor: "mp4-to-gif-converter-setup.iss",
			magic:      "\xEF\xBB\xBF",
		},
		{
			target:     Target{Platform: Windows, Package: Msi},
			descriptor: "mp4-to-gif-converter-setup.wxs",
			magic:      "<?xml",
		},
	}

	root := makePayload(t, converterFiles)

	for _, tt := range tests {
		tt := tt
		t.Run(tt.target.String(), func(t *testing.T) {
			t.Parallel()

			outDir, report := renderOnly(t, tt.target, root)
			require.Equal(t, tt.descriptor, report.Descriptor)
			require.Equal(t, 4, report.PayloadFiles)
			require.Empty(t, report.Artifact)

			descriptor, err := os.ReadFile(filepath.Join(outDir, tt.descriptor))
			require.NoError(t, err)
			require.True(t, len(descriptor) > len(tt.magic))
			require.Equal(t, tt.magic, string(descriptor[:len(tt.magic)]))
			require.Equal(t, digest(descriptor), report.DescriptorDigest)

			raw, err := os.ReadFile(filepath.Join(outDir, "mp4-to-gif-converter-setup.build.json"))
			require.NoError(t, err)
			var onDisk BuildReport
			require.NoError(t, json.Unmarshal(raw, &onDisk))
			require.Equal(t, *report, onDisk)

			set, err := payload.Enumerate(context.TODO(), root)
			require.NoError(t, err)
			require.Equal(t, set.Digest(), report.PayloadDigest)
		})
	}
}

func TestBuildReproducible(t *testing.T) {
	t.Parallel()

	target := Target{Platform: Windows, Package: Iss}

	// Same payload contents in two different places.
	firstDir, first := renderOnly(t, target, makePayload(t, converterFiles))
	secondDir, second := renderOnly(t, target, makePayload(t, converterFiles))
	require.Equal(t, first, second)

	for _, name := range []string{"mp4-to-gif-converter-setup.iss", "mp4-to-gif-converter-setup.build.json"} {
		a, err := os.ReadFile(filepath.Join(firstDir, name))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(secondDir, name))
		require.NoError(t, err)
		require.Equal(t, a, b, name)
	}
}

func TestBuildSBOM(t *testing.T) {
	t.Parallel()

	outDir := t.TempDir()
	po := &PackageOptions{
		Manifest:    manifest.Default(),
		PayloadRoot: makePayload(t, converterFiles),
		OutputDir:   outDir,
		Target:      Target{Platform: Windows, Package: Iss},
		RenderOnly:  true,
		SBOM:        true,
	}
	report, err := po.Build(context.TODO())
	require.NoError(t, err)
	require.Equal(t, "mp4-to-gif-converter-setup.sbom.json", report.SBOM)

	raw, err := os.ReadFile(filepath.Join(outDir, report.SBOM))
	require.NoError(t, err)
	require.Equal(t, digest(raw), report.SBOMDigest)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Contains(t, doc, "artifacts")
	require.Contains(t, doc, "source")

	// without the option there is no sbom
	_, plain := renderOnly(t, po.Target, po.PayloadRoot)
	require.Empty(t, plain.SBOM)
	require.Empty(t, plain.SBOMDigest)
}

func TestBuildFailures(t *testing.T) {
	t.Parallel()

	var tests = []struct {
		name   string
		files  map[string]string
		mutate func(*manifest.Manifest)
		err    string
	}{
		{
			name:  "missing executable",
			files: map[string]string{"bin/ffmpeg.exe": "MZ"},
			err:   `main executable "mp4-to-gif-converter.exe" is not in the payload`,
		},
		{
			name:   "invalid manifest",
			files:  converterFiles,
			mutate: func(m *manifest.Manifest) { m.DefaultDir = `{commonpf}\MP4 to GIF Converter` },
			err:    "validating manifest",
		},
		{
			name:  "empty payload",
			files: map[string]string{},
			err:   "no source files match",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := manifest.Default()
			if tt.mutate != nil {
				tt.mutate(m)
			}
			outDir := t.TempDir()
			po := &PackageOptions{
				Manifest:    m,
				PayloadRoot: makePayload(t, tt.files),
				OutputDir:   outDir,
				Target:      Target{Platform: Windows, Package: Iss},
				RenderOnly:  true,
			}
			_, err := po.Build(context.TODO())
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.err)

			// Nothing is written for a build that fails validation.
			entries, err := os.ReadDir(outDir)
			require.NoError(t, err)
			require.Empty(t, entries)
		})
	}
}

func TestBuildMissingPayload(t *testing.T) {
	t.Parallel()

	po := &PackageOptions{
		Manifest:    manifest.Default(),
		PayloadRoot: filepath.Join(t.TempDir(), "missing"),
		OutputDir:   t.TempDir(),
		Target:      Target{Platform: Windows, Package: Iss},
	}
	_, err := po.Build(context.TODO())
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing payload root")
}

func TestStageInstallDir(t *testing.T) {
	t.Parallel()

	root := makePayload(t, converterFiles)
	set, err := payload.Enumerate(context.TODO(), root)
	require.NoError(t, err)

	m := manifest.Default()
	m.Files = []manifest.FileEntry{
		{Source: "mp4-to-gif-converter.exe", DestDir: manifest.ConstApp},
		{Source: "bin", DestDir: `{app}\tools`},
	}

	dest := t.TempDir()
	require.NoError(t, stageInstallDir(context.TODO(), m, set, dest))

	staged, err := payload.Enumerate(context.TODO(), dest)
	require.NoError(t, err)
	require.Equal(t, []string{"mp4-to-gif-converter.exe", "tools/ffmpeg.exe", "tools/ffprobe.exe"}, staged.Paths())

	m.Files = append(m.Files, manifest.FileEntry{Source: "resources/app.ico", DestDir: `{localappdata}\MP4-to-GIF-Converter`})
	err = stageInstallDir(context.TODO(), m, set, t.TempDir())
	require.Error(t, err)
	require.Contains(t, err.Error(), "msi packages only install into {app}")
}

func TestBuildWithEngines(t *testing.T) {
	t.Parallel()

	if !env.Bool("CI_TEST_PACKAGING", false) {
		t.Skip("No packaging tools")
	}

	root := makePayload(t, converterFiles)

	var tests = []struct {
		target Target
		engine string
		image  string
	}{
		{target: Target{Platform: Windows, Package: Iss}, engine: `C:\Program Files\Inno Setup 6\ISCC.exe`, image: "amake/innosetup"},
		{target: Target{Platform: Windows, Package: Msi}, engine: "/opt/wix/bin", image: "felfert/wix"},
	}

	for _, tt := range tests {
		m := manifest.Default()
		m.Architectures = []string{"x86"} // wine is 32bit

		po := &PackageOptions{
			Manifest:       m,
			PayloadRoot:    root,
			OutputDir:      t.TempDir(),
			Target:         tt.target,
			EnginePath:     tt.engine,
			DockerImage:    tt.image,
			SkipValidation: true,
		}
		report, err := po.Build(context.TODO())
		require.NoError(t, err)
		require.NotEmpty(t, report.ArtifactDigest)
		require.FileExists(t, filepath.Join(po.OutputDir, report.Artifact))
	}
}
