package manifest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var converterPayload = []string{
	"bin/ffmpeg.exe",
	"bin/ffprobe.exe",
	"mp4-to-gif-converter.exe",
	"resources/app.ico",
}

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	m := Default()
	require.NoError(t, m.Validate())
	require.NoError(t, m.ValidateAgainstPayload(converterPayload))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	var tests = []struct {
		name    string
		mutate  func(*Manifest)
		problem string
	}{
		{
			name:    "empty publisher",
			mutate:  func(m *Manifest) { m.Product.Publisher = " " },
			problem: "product publisher is empty",
		},
		{
			name:    "bad version",
			mutate:  func(m *Manifest) { m.Product.Version = "one point oh" },
			problem: "product version: version one point oh did not match expected format",
		},
		{
			name:    "per-user dir with admin",
			mutate:  func(m *Manifest) { m.Privileges = PrivilegesAdmin; m.DefaultDir = `{userpf}\App` },
			problem: `default dir "{userpf}\App" is per-user and requires the lowest privilege level`,
		},
		{
			name:    "per-machine dir with lowest",
			mutate:  func(m *Manifest) { m.DefaultDir = `{commonpf}\App` },
			problem: `default dir "{commonpf}\App" is per-machine and is not writable with the lowest privilege level`,
		},
		{
			name:    "dir without constant",
			mutate:  func(m *Manifest) { m.DefaultDir = `C:\App` },
			problem: `default dir "C:\App" must start with a directory constant`,
		},
		{
			name:    "unknown architecture",
			mutate:  func(m *Manifest) { m.Architectures = []string{"sparc"} },
			problem: `unknown architecture "sparc"`,
		},
		{
			name:    "unknown language",
			mutate:  func(m *Manifest) { m.Language = "tlh" },
			problem: `language: no bundled catalog for language "tlh"`,
		},
		{
			name:    "shortcut outside app",
			mutate:  func(m *Manifest) { m.Shortcuts[0].Target = `{localappdata}\x.exe` },
			problem: `shortcut "MP4 to GIF Converter" target "{localappdata}\x.exe" is not inside {app}`,
		},
		{
			name:    "undeclared task",
			mutate:  func(m *Manifest) { m.Shortcuts[1].Tasks = []string{"quicklaunch"} },
			problem: `shortcut "MP4 to GIF Converter" references undeclared task "quicklaunch"`,
		},
		{
			name:    "post install without skipifsilent",
			mutate:  func(m *Manifest) { m.Run[0].Flags = []RunFlag{RunNoWait, RunPostInstall} },
			problem: `post install action "{app}\mp4-to-gif-converter.exe" must also be skipifsilent`,
		},
		{
			name:    "cleanup inside app",
			mutate:  func(m *Manifest) { m.UninstallDelete[0].Path = `{app}\logs` },
			problem: `uninstall delete "{app}\logs" overlaps the install directory`,
		},
		{
			name:    "cleanup containing app",
			mutate:  func(m *Manifest) { m.UninstallDelete[0].Path = `{localappdata}\Programs` },
			problem: `uninstall delete "{localappdata}\Programs" overlaps the install directory`,
		},
		{
			name:    "cleanup glob matching a parent of app",
			mutate:  func(m *Manifest) { m.UninstallDelete[0].Path = `{localappdata}\Prog*` },
			problem: `uninstall delete "{localappdata}\Prog*" overlaps the install directory`,
		},
		{
			name:    "cleanup glob matching everything",
			mutate:  func(m *Manifest) { m.UninstallDelete[0].Path = `{localappdata}\*` },
			problem: `uninstall delete "{localappdata}\*" overlaps the install directory`,
		},
		{
			name:    "cleanup glob matching app",
			mutate:  func(m *Manifest) { m.UninstallDelete[0].Path = `{userpf}\MP4 to ?IF*` },
			problem: `uninstall delete "{userpf}\MP4 to ?IF*" overlaps the install directory`,
		},
		{
			name:    "cleanup ascends",
			mutate:  func(m *Manifest) { m.UninstallDelete[0].Path = `{localappdata}\x\..\..` },
			problem: `uninstall delete "{localappdata}\x\..\.." contains a parent directory segment`,
		},
		{
			name:    "cleanup bare constant",
			mutate:  func(m *Manifest) { m.UninstallDelete[0].Path = `{localappdata}` },
			problem: `uninstall delete "{localappdata}" names a whole directory constant`,
		},
		{
			name:    "base filename with separator",
			mutate:  func(m *Manifest) { m.Output.BaseFilename = `out\setup` },
			problem: `output base filename "out\setup" must not contain path separators`,
		},
		{
			name:    "unknown compression",
			mutate:  func(m *Manifest) { m.Output.Compression = "bzip" },
			problem: `unknown compression "bzip"`,
		},
		{
			name:    "unknown upgrade policy",
			mutate:  func(m *Manifest) { m.UpgradePolicy = "sidebyside" },
			problem: `unknown upgrade policy "sidebyside"`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := Default()
			tt.mutate(m)

			err := m.Validate()
			require.Error(t, err)

			requireProblem(t, err, tt.problem)
		})
	}
}

func TestValidateAgainstPayload(t *testing.T) {
	t.Parallel()

	m := Default()

	err := m.ValidateAgainstPayload([]string{"bin/ffmpeg.exe"})
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Contains(t, ve.Problems, `main executable "mp4-to-gif-converter.exe" is not in the payload`)
	require.Contains(t, ve.Problems, `shortcut "MP4 to GIF Converter" target "{app}\mp4-to-gif-converter.exe" is not in the payload`)
	require.Contains(t, ve.Problems, `run action target "{app}\mp4-to-gif-converter.exe" is not in the payload`)

	err = m.ValidateAgainstPayload(nil)
	require.EqualError(t, err, `invalid manifest: file entry 0: no source files match "*"`)
}

func TestValidationErrorMessage(t *testing.T) {
	t.Parallel()

	ve := &ValidationError{}
	require.NoError(t, ve.orNil())

	ve.addf("a")
	require.EqualError(t, ve, "invalid manifest: a")

	ve.addf("b %d", 2)
	require.EqualError(t, ve, "invalid manifest: 2 problems: a; b 2")
}

func requireProblem(t *testing.T, err error, problem string) {
	t.Helper()

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	for _, p := range ve.Problems {
		if strings.Contains(p, problem) {
			return
		}
	}
	require.Failf(t, "problem not reported", "want %q in %v", problem, ve.Problems)
}
