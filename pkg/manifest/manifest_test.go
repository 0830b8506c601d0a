package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetDefaults(t *testing.T) {
	t.Parallel()

	m := &Manifest{
		Product:         Product{Name: "App", Publisher: "Pub"},
		Shortcuts:       []Shortcut{{Label: "App"}},
		UninstallDelete: []DeleteTarget{{Path: `{localappdata}\App`}},
	}
	m.SetDefaults()

	require.Equal(t, PrivilegesLowest, m.Privileges)
	require.Equal(t, []string{"x64compatible"}, m.Architectures)
	require.Equal(t, "App", m.GroupName)
	require.Equal(t, UpgradeOverwrite, m.UpgradePolicy)
	require.Equal(t, LocationStartMenu, m.Shortcuts[0].Location)
	require.Equal(t, DeleteFilesAndDirs, m.UninstallDelete[0].Type)
	require.Len(t, m.Product.AppID, len("XXXXXXXX-XXXX-XXXX-XXXX-XXXXXXXXXXXX"))

	// Stable, and idempotent
	again := *m
	again.SetDefaults()
	require.Equal(t, m.Product.AppID, again.Product.AppID)

	other := &Manifest{Product: Product{Name: "Other", Publisher: "Pub"}}
	other.SetDefaults()
	require.NotEqual(t, m.Product.AppID, other.Product.AppID)
}

func TestShortcutPath(t *testing.T) {
	t.Parallel()

	m := Default()
	require.Equal(t, `{autoprograms}\MP4 to GIF Converter`, m.ShortcutPath(m.Shortcuts[0]))
	require.Equal(t, `{autodesktop}\MP4 to GIF Converter`, m.ShortcutPath(m.Shortcuts[1]))
	require.Equal(t, `{group}\x`, m.ShortcutPath(Shortcut{Label: "x", Location: LocationGroup}))
}

func TestTaskSelection(t *testing.T) {
	t.Parallel()

	m := Default()
	defaults := m.DefaultTasks()
	require.Empty(t, defaults, "desktop icon is unchecked by default")

	require.True(t, m.Shortcuts[0].TaskSelected(defaults))
	require.False(t, m.Shortcuts[1].TaskSelected(defaults))
	require.True(t, m.Shortcuts[1].TaskSelected(map[string]bool{"desktopicon": true}))
}

func TestShouldRun(t *testing.T) {
	t.Parallel()

	launch := Default().Run[0]

	var tests = []struct {
		silent, checked, out bool
	}{
		{silent: false, checked: true, out: true},
		{silent: false, checked: false, out: false},
		{silent: true, checked: true, out: false},
		{silent: true, checked: false, out: false},
	}

	for _, tt := range tests {
		require.Equal(t, tt.out, launch.ShouldRun(tt.silent, tt.checked), "silent=%v checked=%v", tt.silent, tt.checked)
	}

	plain := RunAction{Target: `{app}\setup-helper.exe`}
	require.True(t, plain.ShouldRun(true, false))
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
product:
  name: MP4 to GIF Converter
  version: 1.2.0
  publisher: Someone
  url: https://example.com
  exe_name: mp4-to-gif-converter.exe
default_dir: '{autopf}\MP4 to GIF Converter'
language: ja
files:
  - source: '*'
    dest_dir: '{app}'
    flags: [ignoreversion, recursesubdirs, createallsubdirs]
shortcuts:
  - label: MP4 to GIF Converter
    target: '{app}\mp4-to-gif-converter.exe'
uninstall_delete:
  - path: '{localappdata}\MP4-to-GIF-Converter'
output:
  base_filename: mp4-to-gif-converter-setup
`), 0644))

	m, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, m.Validate())
	require.Equal(t, "1.2.0", m.Product.Version)
	require.Equal(t, LocationStartMenu, m.Shortcuts[0].Location)
	require.Equal(t, DeleteFilesAndDirs, m.UninstallDelete[0].Type)

	// round trip through the yaml encoder keeps everything
	out, err := Marshal(m)
	require.NoError(t, err)
	m2, err := Parse(out)
	require.NoError(t, err)
	require.Equal(t, m, m2)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestUninstallKey(t *testing.T) {
	t.Parallel()

	p := Product{AppID: "0D597685-1969-5D11-B2D6-600939967590"}
	require.Equal(t, "{0D597685-1969-5D11-B2D6-600939967590}", p.EffectiveAppID())
	require.Equal(t, "{0D597685-1969-5D11-B2D6-600939967590}_is1", p.UninstallKey())

	p = Product{AppID: "MP4ToGif"}
	require.Equal(t, "MP4ToGif_is1", p.UninstallKey())
}
