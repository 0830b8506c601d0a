package innosetup

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mp4-to-gif-converter/packager/pkg/manifest"
	"github.com/stretchr/testify/require"
)

const handWrittenScript = `; Script generated by the Inno Setup Script Wizard.
#define MyAppName "MP4 to GIF Converter"
#define MyAppVersion "1.0"
#define MyAppPublisher "Someone"
#define MyAppURL "https://example.com/"
#define MyAppExeName "mp4-to-gif-converter.exe"

[Setup]
AppId={{6A4B0C2E-93B1-4C55-8F0B-3C0E4A8E7D11}
AppName={#MyAppName}
AppVersion={#MyAppVersion}
AppPublisher={#MyAppPublisher}
AppPublisherURL={#MyAppURL}
DefaultDirName={autopf}\{#MyAppName}
DisableProgramGroupPage=yes
PrivilegesRequired=lowest
OutputBaseFilename=mp4-to-gif-converter-setup
Compression=lzma
SolidCompression=yes
WizardStyle=modern

[Languages]
Name: "japanese"; MessagesFile: "compiler:Languages\Japanese.isl"

[Tasks]
Name: "desktopicon"; Description: "{cm:CreateDesktopIcon}"; GroupDescription: "{cm:AdditionalIcons}"; Flags: unchecked

[Files]
Source: "C:\build\dist\mp4-to-gif-converter\*"; DestDir: "{app}"; Flags: ignoreversion recursesubdirs createallsubdirs
; NOTE: Don't use "Flags: ignoreversion" on any shared system files

[Icons]
Name: "{autoprograms}\{#MyAppName}"; Filename: "{app}\{#MyAppExeName}"
Name: "{autodesktop}\{#MyAppName}"; Filename: "{app}\{#MyAppExeName}"; Tasks: desktopicon

[Run]
Filename: "{app}\{#MyAppExeName}"; Description: "{cm:LaunchProgram,{#StringChange(MyAppName, '&', '&&')}}"; Flags: nowait postinstall skipifsilent

[UninstallDelete]
Type: filesandordirs; Name: "{localappdata}\MP4-to-GIF-Converter"
`

func TestImportHandWritten(t *testing.T) {
	t.Parallel()

	m, err := Import(strings.NewReader(handWrittenScript), `C:\build\dist\mp4-to-gif-converter`)
	require.NoError(t, err)

	require.Equal(t, "MP4 to GIF Converter", m.Product.Name)
	require.Equal(t, "1.0", m.Product.Version)
	require.Equal(t, "https://example.com/", m.Product.URL)
	require.Equal(t, "6A4B0C2E-93B1-4C55-8F0B-3C0E4A8E7D11", m.Product.AppID)
	require.Equal(t, "mp4-to-gif-converter.exe", m.Product.ExeName)
	require.Equal(t, manifest.PrivilegesLowest, m.Privileges)
	require.Equal(t, `{autopf}\MP4 to GIF Converter`, m.DefaultDir)
	require.Equal(t, "ja", m.Language)
	require.Equal(t, "lzma", m.Output.Compression)
	require.True(t, m.Output.DisableProgramGroupPage)

	require.Len(t, m.Files, 1)
	require.Equal(t, "*", m.Files[0].Source)
	require.True(t, m.Files[0].Has(manifest.FlagRecurseSubdirs))

	require.Len(t, m.Shortcuts, 2)
	require.Equal(t, manifest.LocationStartMenu, m.Shortcuts[0].Location)
	require.Equal(t, manifest.LocationDesktop, m.Shortcuts[1].Location)
	require.Equal(t, []string{"desktopicon"}, m.Shortcuts[1].Tasks)
	require.Equal(t, `{app}\mp4-to-gif-converter.exe`, m.Shortcuts[1].Target)

	require.Equal(t, "{cm:LaunchProgram,MP4 to GIF Converter}", m.Run[0].Description)
	require.True(t, m.Run[0].ShouldRun(false, true))
	require.False(t, m.Run[0].ShouldRun(true, true))

	require.Equal(t, []manifest.DeleteTarget{{Type: manifest.DeleteFilesAndDirs, Path: `{localappdata}\MP4-to-GIF-Converter`}}, m.UninstallDelete)

	require.NoError(t, m.Validate())
}

func TestImportRoundTrip(t *testing.T) {
	t.Parallel()

	for _, policy := range []manifest.UpgradePolicy{manifest.UpgradeOverwrite, manifest.UpgradeRefuse} {
		m := converterManifest()
		m.UpgradePolicy = policy

		var first bytes.Buffer
		require.NoError(t, Render(&first, m))

		imported, err := Import(bytes.NewReader(first.Bytes()), "")
		require.NoError(t, err)
		require.Equal(t, policy, imported.UpgradePolicy)

		var second bytes.Buffer
		require.NoError(t, Render(&second, imported))
		require.Equal(t, normalized(first.Bytes()), normalized(second.Bytes()))
	}
}

func TestImportUnescapesBraces(t *testing.T) {
	t.Parallel()

	m := converterManifest()
	m.Product.Name = "GIF {Maker}"
	m.GroupName = "GIF {Maker}"

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, m))

	imported, err := Import(bytes.NewReader(buf.Bytes()), "")
	require.NoError(t, err)
	require.Equal(t, "GIF {Maker}", imported.Product.Name)
	require.Equal(t, "GIF {Maker}", imported.GroupName)
}

func TestImportRequiresAppName(t *testing.T) {
	t.Parallel()

	_, err := Import(strings.NewReader("[Setup]\nAppVersion=1.0\n"), "")
	require.Error(t, err)
}

func TestParseParams(t *testing.T) {
	t.Parallel()

	params := parseParams(`Name: "a; ""b"""; Flags: x y;Tasks:desktopicon`)
	require.Equal(t, map[string]string{
		"name":  `a; "b"`,
		"flags": "x y",
		"tasks": "desktopicon",
	}, params)
}
