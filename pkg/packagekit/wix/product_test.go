package wix

import (
	"bytes"
	"testing"

	"github.com/clbanning/mxj"
	"github.com/mp4-to-gif-converter/packager/pkg/manifest"
	"github.com/stretchr/testify/require"
)

var testCodes = Codes{
	UpgradeCode: "D3A5CE47-7A6E-5B21-8F3B-0C1E2A4B6D8F",
	ProductCode: "5B0B0F62-0A2C-5E8B-9C51-7B6E3F1D2A40",
	PackageCode: "9E4F2C1A-3B5D-5F60-8A7B-1C2D3E4F5061",
}

func renderXML(t *testing.T, m *manifest.Manifest) ([]byte, mxj.Map) {
	var buf bytes.Buffer
	require.NoError(t, RenderProduct(&buf, m, testCodes))

	mv, err := mxj.NewMapXml(buf.Bytes())
	require.NoError(t, err)
	return buf.Bytes(), mv
}

func values(t *testing.T, mv mxj.Map, path string) []interface{} {
	vals, err := mv.ValuesForPath(path)
	require.NoError(t, err)
	return vals
}

func property(p *Product, id string) string {
	for _, prop := range p.Properties {
		if prop.Id == id {
			return prop.Value
		}
	}
	return ""
}

func TestRenderProductConverter(t *testing.T) {
	t.Parallel()

	raw, mv := renderXML(t, manifest.Default())

	require.Equal(t, []interface{}{"perUser"}, values(t, mv, "Wix.Product.Package.-InstallScope"))
	require.Equal(t, []interface{}{"limited"}, values(t, mv, "Wix.Product.Package.-InstallPrivileges"))
	require.Equal(t, []interface{}{"x64"}, values(t, mv, "Wix.Product.Package.-Platform"))
	require.Equal(t, []interface{}{"1041"}, values(t, mv, "Wix.Product.-Language"))
	require.Equal(t, []interface{}{"1.0.0.0"}, values(t, mv, "Wix.Product.-Version"))
	require.Equal(t, []interface{}{testCodes.UpgradeCode}, values(t, mv, "Wix.Product.-UpgradeCode"))

	// TARGETDIR > LocalAppDataFolder > Programs > INSTALLDIR
	require.Equal(t, []interface{}{"LocalAppDataFolder", "ProgramMenuFolder", "DesktopFolder"},
		values(t, mv, "Wix.Product.Directory.Directory.-Id"))
	require.Equal(t, []interface{}{"Programs"}, values(t, mv, "Wix.Product.Directory.Directory.Directory.-Name"))
	require.Equal(t, []interface{}{InstallDirID}, values(t, mv, "Wix.Product.Directory.Directory.Directory.Directory.-Id"))
	require.Equal(t, []interface{}{"MP4 to GIF Converter"}, values(t, mv, "Wix.Product.Directory.Directory.Directory.Directory.-Name"))

	require.Equal(t, []interface{}{"MP4 to GIF Converter", "MP4 to GIF Converter"},
		values(t, mv, "Wix.Product.Component.Shortcut.-Name"))
	require.Equal(t, []interface{}{`[INSTALLDIR]mp4-to-gif-converter.exe`, `[INSTALLDIR]mp4-to-gif-converter.exe`},
		values(t, mv, "Wix.Product.Component.Shortcut.-Target"))
	for _, root := range values(t, mv, "Wix.Product.Component.RegistryValue.-Root") {
		require.Equal(t, "HKCU", root)
	}

	require.Equal(t, []interface{}{"CLEANUPDIR0"}, values(t, mv, "Wix.Product.Component.RemoveFolderEx.-Property"))
	require.Equal(t, []interface{}{`[LocalAppDataFolder]MP4-to-GIF-Converter\`}, values(t, mv, "Wix.Product.SetProperty.-Value"))
	require.Contains(t, string(raw), `xmlns="http://schemas.microsoft.com/wix/UtilExtension"`)

	require.Equal(t, []interface{}{"yes"}, values(t, mv, "Wix.Product.MajorUpgrade.-AllowDowngrades"))
}

func TestNewProductConverter(t *testing.T) {
	t.Parallel()

	p, err := NewProduct(manifest.Default(), testCodes)
	require.NoError(t, err)

	require.Equal(t, testCodes.ProductCode, p.Id)
	require.Equal(t, testCodes.PackageCode, p.Package.Id)

	// The desktop shortcut hangs off the unchecked task.
	require.Len(t, p.Features, 2)
	main, desktop := p.Features[0], p.Features[1]
	require.Equal(t, mainFeatureID, main.Id)
	require.Equal(t, []ComponentGroupRef{{Id: AppFilesGroup}}, main.ComponentGroupRefs)
	require.Equal(t, []ComponentRef{{Id: cleanupID}, {Id: ID("Shortcut0", "MP4 to GIF Converter")}}, main.ComponentRefs)

	require.Equal(t, "TaskDesktopicon", desktop.Id)
	require.Equal(t, "Create a desktop shortcut", desktop.Title)
	require.Equal(t, unselectedLevel, desktop.Level)
	require.Equal(t, []ComponentRef{{Id: ID("Shortcut1", "MP4 to GIF Converter")}}, desktop.ComponentRefs)

	// Launch checkbox, only reachable from the exit dialog.
	require.Equal(t, "Launch MP4 to GIF Converter", property(p, "WIXUI_EXITDIALOGOPTIONALCHECKBOXTEXT"))
	require.Equal(t, `[INSTALLDIR]mp4-to-gif-converter.exe`, property(p, "WixShellExecTarget"))
	require.Equal(t, "https://github.com/mp4-to-gif-converter", property(p, "ARPURLINFOABOUT"))
	require.Len(t, p.CustomActions, 1)
	last := p.UI.Publishes[len(p.UI.Publishes)-1]
	require.Equal(t, "ExitDialog", last.Dialog)
	require.Equal(t, launchActionID, last.Value)

	// Created directories are removed innermost first.
	var cleanup Component
	for _, c := range p.Components {
		if c.Id == cleanupID {
			cleanup = c
		}
	}
	require.Equal(t, []RemoveFolder{
		{Id: "Remove" + InstallDirID, Directory: InstallDirID, On: "uninstall"},
	}, cleanup.RemoveFolders)
}

func TestRenderProductReproducible(t *testing.T) {
	t.Parallel()

	first, _ := renderXML(t, manifest.Default())
	second, _ := renderXML(t, manifest.Default())
	require.Equal(t, first, second)
}

func TestNewProductVariants(t *testing.T) {
	t.Parallel()

	var tests = []struct {
		name   string
		mutate func(*manifest.Manifest)
		check  func(*testing.T, *Product)
	}{
		{
			name:   "refuse upgrades",
			mutate: func(m *manifest.Manifest) { m.UpgradePolicy = manifest.UpgradeRefuse },
			check: func(t *testing.T, p *Product) {
				require.Nil(t, p.MajorUpgrade)
				require.NotNil(t, p.Upgrade)
				require.Equal(t, testCodes.UpgradeCode, p.Upgrade.Id)
				require.Equal(t, "PREVIOUSVERSIONFOUND", p.Upgrade.UpgradeVersions[0].Property)
				require.Equal(t, "NOT PREVIOUSVERSIONFOUND OR Installed", p.Conditions[0].Condition)
			},
		},
		{
			name: "per machine",
			mutate: func(m *manifest.Manifest) {
				m.Privileges = manifest.PrivilegesAdmin
				m.UninstallDelete = []manifest.DeleteTarget{{Type: manifest.DeleteFilesAndDirs, Path: `{commonappdata}\MP4-to-GIF-Converter`}}
			},
			check: func(t *testing.T, p *Product) {
				require.Equal(t, "perMachine", p.Package.InstallScope)
				require.Equal(t, "elevated", p.Package.InstallPrivileges)
				require.Equal(t, "ProgramFiles64Folder", p.Directories[0].Directories[0].Id)
				require.Equal(t, InstallDirID, p.Directories[0].Directories[0].Directories[0].Id)
				require.Equal(t, "HKMU", p.Components[0].RegistryValues[0].Root)
				require.Equal(t, `[CommonAppDataFolder]MP4-to-GIF-Converter\`, p.SetProperties[0].Value)
			},
		},
		{
			name: "32 bit",
			mutate: func(m *manifest.Manifest) {
				m.Architectures = []string{"x86"}
				m.Privileges = manifest.PrivilegesAdmin
			},
			check: func(t *testing.T, p *Product) {
				require.Equal(t, "x86", p.Package.Platform)
				require.Equal(t, "ProgramFilesFolder", p.Directories[0].Directories[0].Id)
			},
		},
		{
			name: "group shortcut",
			mutate: func(m *manifest.Manifest) {
				m.Shortcuts = []manifest.Shortcut{{Label: "Converter", Location: manifest.LocationGroup, Target: `{app}\mp4-to-gif-converter.exe`}}
			},
			check: func(t *testing.T, p *Product) {
				group := p.Directories[0].Directories[1]
				require.Equal(t, "ProgramMenuFolder", group.Id)
				require.Equal(t, groupDirID, group.Directories[0].Id)
				require.Equal(t, "MP4 to GIF Converter", group.Directories[0].Name)

				shortcut := p.Components[1]
				require.Equal(t, groupDirID, shortcut.Directory)
				require.Equal(t, groupDirID, shortcut.RemoveFolders[0].Directory)
			},
		},
		{
			name: "cleanup kinds",
			mutate: func(m *manifest.Manifest) {
				m.UninstallDelete = []manifest.DeleteTarget{
					{Type: manifest.DeleteFiles, Path: `{localappdata}\MP4-to-GIF-Converter\outputs\*.gif`},
					{Type: manifest.DeleteDirIfEmpty, Path: `{localappdata}\MP4-to-GIF-Converter`},
				}
			},
			check: func(t *testing.T, p *Product) {
				cleanup := p.Components[0]
				require.Equal(t, []RemoveFile{{Id: "CleanupTarget0", Name: "*.gif", Property: "CLEANUPDIR0", On: "uninstall"}}, cleanup.RemoveFiles)
				require.Equal(t, `[LocalAppDataFolder]MP4-to-GIF-Converter\outputs\`, p.SetProperties[0].Value)
				require.Equal(t, RemoveFolder{Id: "CleanupTarget1", Property: "CLEANUPDIR1", On: "uninstall"}, cleanup.RemoveFolders[0])
				require.Empty(t, cleanup.RemoveFolderEx)
			},
		},
		{
			name:   "no run action",
			mutate: func(m *manifest.Manifest) { m.Run = nil },
			check: func(t *testing.T, p *Product) {
				require.Empty(t, p.CustomActions)
				require.Empty(t, property(p, "WixShellExecTarget"))
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := manifest.Default()
			tt.mutate(m)
			p, err := NewProduct(m, testCodes)
			require.NoError(t, err)
			tt.check(t, p)
		})
	}
}

func TestNewProductErrors(t *testing.T) {
	t.Parallel()

	var tests = []struct {
		name   string
		mutate func(*manifest.Manifest, *Codes)
		err    string
	}{
		{
			name:   "no upgrade code",
			mutate: func(m *manifest.Manifest, c *Codes) { c.UpgradeCode = "" },
			err:    "an upgrade code is required",
		},
		{
			name:   "bare default dir",
			mutate: func(m *manifest.Manifest, c *Codes) { m.DefaultDir = "{localappdata}" },
			err:    "must name a folder below",
		},
		{
			name: "run without postinstall",
			mutate: func(m *manifest.Manifest, c *Codes) {
				m.Run[0].Flags = []manifest.RunFlag{manifest.RunNoWait}
			},
			err: "only postinstall actions",
		},
		{
			name: "two postinstall actions",
			mutate: func(m *manifest.Manifest, c *Codes) {
				m.Run = append(m.Run, m.Run[0])
			},
			err: "single postinstall action",
		},
		{
			name:   "unknown language",
			mutate: func(m *manifest.Manifest, c *Codes) { m.Language = "tlh" },
			err:    "no bundled catalog",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := manifest.Default()
			codes := testCodes
			tt.mutate(m, &codes)
			_, err := NewProduct(m, codes)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestMessageText(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Create a desktop shortcut", messageText("{cm:CreateDesktopIcon}"))
	require.Equal(t, "Launch Converter", messageText("{cm:LaunchProgram,Converter}"))
	require.Equal(t, "{cm:LaunchProgram}", messageText("{cm:LaunchProgram}"))
	require.Equal(t, "{cm:Unknown}", messageText("{cm:Unknown}"))
	require.Equal(t, "plain", messageText("plain"))
}
