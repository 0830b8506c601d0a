package manifest

// The converter keeps its per-user working data (uploads and rendered
// GIFs) here. It lives outside the install tree and is removed on
// uninstall.
const converterDataDir = `{localappdata}\MP4-to-GIF-Converter`

// Default returns the manifest for the MP4 to GIF converter desktop app.
func Default() *Manifest {
	m := &Manifest{
		Product: Product{
			Name:      "MP4 to GIF Converter",
			Version:   "1.0.0",
			Publisher: "MP4 to GIF Converter Project",
			URL:       "https://github.com/mp4-to-gif-converter",
			ExeName:   "mp4-to-gif-converter.exe",
		},
		Privileges:    PrivilegesLowest,
		Architectures: []string{"x64compatible"},
		DefaultDir:    `{autopf}\MP4 to GIF Converter`,
		Language:      "ja",
		Files: []FileEntry{
			{
				Source:  "*",
				DestDir: ConstApp,
				Flags:   []FileFlag{FlagIgnoreVersion, FlagRecurseSubdirs, FlagCreateAllSubdirs},
			},
		},
		Tasks: []Task{
			{
				Name:             "desktopicon",
				Description:      "{cm:CreateDesktopIcon}",
				GroupDescription: "{cm:AdditionalIcons}",
				Unchecked:        true,
			},
		},
		Shortcuts: []Shortcut{
			{
				Label:    "MP4 to GIF Converter",
				Location: LocationStartMenu,
				Target:   `{app}\mp4-to-gif-converter.exe`,
			},
			{
				Label:    "MP4 to GIF Converter",
				Location: LocationDesktop,
				Target:   `{app}\mp4-to-gif-converter.exe`,
				Tasks:    []string{"desktopicon"},
			},
		},
		Run: []RunAction{
			{
				Target:      `{app}\mp4-to-gif-converter.exe`,
				Description: "{cm:LaunchProgram,MP4 to GIF Converter}",
				Flags:       []RunFlag{RunNoWait, RunPostInstall, RunSkipIfSilent},
			},
		},
		UninstallDelete: []DeleteTarget{
			{Type: DeleteFilesAndDirs, Path: converterDataDir},
		},
		Output: Output{
			Dir:                     "installer",
			BaseFilename:            "mp4-to-gif-converter-setup",
			Compression:             "lzma2",
			SolidCompression:        true,
			WizardStyle:             "modern",
			DisableProgramGroupPage: true,
		},
	}
	m.SetDefaults()
	return m
}
