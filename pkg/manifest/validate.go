package manifest

import (
	"fmt"
	"strings"
)

// ValidationError collects every problem found in a manifest, so a
// build reports them all at once.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid manifest: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid manifest: %d problems: %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

func (e *ValidationError) addf(format string, args ...interface{}) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

func (e *ValidationError) orNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

var validArchitectures = map[string]bool{
	"x86":             true,
	"x64":             true,
	"arm64":           true,
	"x64compatible":   true,
	"x64os":           true,
	"x86compatible":   true,
	"arm64compatible": true,
	"x86os":           true,
	"arm64os":         true,
}

var validFileFlags = map[FileFlag]bool{
	FlagIgnoreVersion:           true,
	FlagRecurseSubdirs:          true,
	FlagCreateAllSubdirs:        true,
	FlagOnlyIfDoesntExist:       true,
	FlagUninsNeverUninstall:     true,
	FlagSkipIfSourceDoesntExist: true,
}

var validRunFlags = map[RunFlag]bool{
	RunNoWait:       true,
	RunPostInstall:  true,
	RunSkipIfSilent: true,
	RunShellExec:    true,
}

var validCompression = map[string]bool{
	"lzma2": true,
	"lzma":  true,
	"zip":   true,
	"none":  true,
}

// Validate checks the structural invariants of a manifest. It does not
// look at the payload, see ValidateAgainstPayload.
func (m *Manifest) Validate() error {
	ve := &ValidationError{}

	m.validateProduct(ve)
	m.validatePolicy(ve)
	m.validateFiles(ve)
	m.validateShortcuts(ve)
	m.validateRun(ve)
	m.validateUninstallDelete(ve)
	m.validateOutput(ve)

	return ve.orNil()
}

func (m *Manifest) validateProduct(ve *ValidationError) {
	for _, field := range []struct{ name, value string }{
		{"name", m.Product.Name},
		{"version", m.Product.Version},
		{"publisher", m.Product.Publisher},
		{"url", m.Product.URL},
	} {
		if strings.TrimSpace(field.value) == "" {
			ve.addf("product %s is empty", field.name)
		}
	}

	if m.Product.Version != "" {
		if _, err := FormatVersion(m.Product.Version); err != nil {
			ve.addf("product version: %v", err)
		}
	}

	if strings.ContainsAny(m.Product.ExeName, `\/`) {
		ve.addf("exe name \"%s\" must be a bare file name", m.Product.ExeName)
	}
}

func (m *Manifest) validatePolicy(ve *ValidationError) {
	switch m.Privileges {
	case PrivilegesLowest, PrivilegesAdmin:
	default:
		ve.addf("unknown privilege level \"%s\"", m.Privileges)
	}

	for _, a := range m.Architectures {
		if !validArchitectures[strings.ToLower(a)] {
			ve.addf("unknown architecture \"%s\"", a)
		}
	}

	switch m.UpgradePolicy {
	case UpgradeOverwrite, UpgradeRefuse:
	default:
		ve.addf("unknown upgrade policy \"%s\"", m.UpgradePolicy)
	}

	if _, err := ResolveLanguage(m.Language); err != nil {
		ve.addf("language: %v", err)
	}

	c, _ := SplitConstant(m.DefaultDir)
	switch {
	case m.DefaultDir == "":
		ve.addf("default dir is empty")
		return
	case !IsKnownConstant(c):
		ve.addf("default dir \"%s\" must start with a directory constant", m.DefaultDir)
		return
	case hasParentSegment(m.DefaultDir):
		ve.addf("default dir \"%s\" contains a parent directory segment", m.DefaultDir)
		return
	}

	switch scopeOf(m.DefaultDir, m.Privileges) {
	case scopeInstall, scopeScratch:
		ve.addf("default dir \"%s\" cannot be based on %s", m.DefaultDir, c)
	case scopeUser:
		if m.Privileges == PrivilegesAdmin {
			ve.addf("default dir \"%s\" is per-user and requires the lowest privilege level", m.DefaultDir)
		}
	case scopeMachine:
		if m.Privileges == PrivilegesLowest {
			ve.addf("default dir \"%s\" is per-machine and is not writable with the lowest privilege level", m.DefaultDir)
		}
	}

	if m.Privileges == PrivilegesLowest && !m.UnderProfile(m.DefaultDir) {
		ve.addf("default dir \"%s\" does not resolve under the user profile", m.DefaultDir)
	}
}

func (m *Manifest) validateFiles(ve *ValidationError) {
	if len(m.Files) == 0 {
		ve.addf("no files to install")
	}

	for i, f := range m.Files {
		if strings.TrimSpace(f.Source) == "" {
			ve.addf("file entry %d has no source", i)
		}
		if hasParentSegment(f.Source) {
			ve.addf("file entry %d source \"%s\" contains a parent directory segment", i, f.Source)
		}
		if c, _ := SplitConstant(f.DestDir); !IsKnownConstant(c) {
			ve.addf("file entry %d destination \"%s\" must start with a directory constant", i, f.DestDir)
		}
		if hasParentSegment(f.DestDir) {
			ve.addf("file entry %d destination \"%s\" contains a parent directory segment", i, f.DestDir)
		}
		for _, fl := range f.Flags {
			if !validFileFlags[fl] {
				ve.addf("file entry %d has unknown flag \"%s\"", i, fl)
			}
		}
	}
}

func (m *Manifest) validateShortcuts(ve *ValidationError) {
	declared := make(map[string]bool, len(m.Tasks))
	for _, t := range m.Tasks {
		name := strings.ToLower(t.Name)
		if name == "" {
			ve.addf("task with empty name")
			continue
		}
		if declared[name] {
			ve.addf("task \"%s\" declared twice", t.Name)
		}
		declared[name] = true
	}

	for _, s := range m.Shortcuts {
		if strings.TrimSpace(s.Label) == "" {
			ve.addf("shortcut with empty label")
		}
		switch s.Location {
		case LocationStartMenu, LocationGroup, LocationDesktop:
		default:
			ve.addf("shortcut \"%s\" has unknown location \"%s\"", s.Label, s.Location)
		}
		if !m.insideApp(s.Target) {
			ve.addf("shortcut \"%s\" target \"%s\" is not inside %s", s.Label, s.Target, ConstApp)
		}
		for _, t := range s.Tasks {
			if !declared[strings.ToLower(t)] {
				ve.addf("shortcut \"%s\" references undeclared task \"%s\"", s.Label, t)
			}
		}
	}
}

func (m *Manifest) validateRun(ve *ValidationError) {
	for _, r := range m.Run {
		if strings.TrimSpace(r.Target) == "" {
			ve.addf("run action with empty target")
			continue
		}
		for _, fl := range r.Flags {
			if !validRunFlags[fl] {
				ve.addf("run action \"%s\" has unknown flag \"%s\"", r.Target, fl)
			}
		}
		if r.Has(RunPostInstall) && !r.Has(RunSkipIfSilent) {
			ve.addf("post install action \"%s\" must also be %s", r.Target, RunSkipIfSilent)
		}
	}
}

func (m *Manifest) validateUninstallDelete(ve *ValidationError) {
	for _, d := range m.UninstallDelete {
		switch d.Type {
		case DeleteFiles, DeleteFilesAndDirs, DeleteDirIfEmpty:
		default:
			ve.addf("uninstall delete \"%s\" has unknown type \"%s\"", d.Path, d.Type)
		}

		c, rest := SplitConstant(d.Path)
		switch {
		case !IsKnownConstant(c):
			ve.addf("uninstall delete \"%s\" must start with a directory constant", d.Path)
			continue
		case rest == "":
			ve.addf("uninstall delete \"%s\" names a whole directory constant", d.Path)
			continue
		case hasParentSegment(d.Path):
			ve.addf("uninstall delete \"%s\" contains a parent directory segment", d.Path)
			continue
		case strings.ContainsAny(dirPart(rest), "*?"):
			ve.addf("uninstall delete \"%s\" may only use wildcards in its last segment", d.Path)
		}

		if m.DefaultDir != "" && (m.Overlaps(d.Path, ConstApp) || m.GlobCoversApp(d.Path)) {
			ve.addf("uninstall delete \"%s\" overlaps the install directory", d.Path)
		}
	}
}

func (m *Manifest) validateOutput(ve *ValidationError) {
	o := m.Output
	switch {
	case strings.TrimSpace(o.BaseFilename) == "":
		ve.addf("output base filename is empty")
	case strings.ContainsAny(o.BaseFilename, `\/:`):
		ve.addf("output base filename \"%s\" must not contain path separators", o.BaseFilename)
	}

	if !validCompression[strings.ToLower(o.Compression)] {
		ve.addf("unknown compression \"%s\"", o.Compression)
	}

	switch o.WizardStyle {
	case "modern", "classic":
	default:
		ve.addf("unknown wizard style \"%s\"", o.WizardStyle)
	}
}

// ValidateAgainstPayload checks that every shortcut and run action
// inside {app} points at a file the payload installs.
func (m *Manifest) ValidateAgainstPayload(payload []string) error {
	ve := &ValidationError{}

	placements, err := m.ExpandFiles(payload)
	if err != nil {
		ve.addf("%v", err)
		return ve
	}
	installed := destinations(placements)

	if exe := m.MainExecutable(); exe != "" && !installed[strings.ToLower(exe)] {
		ve.addf("main executable \"%s\" is not in the payload", m.Product.ExeName)
	}

	for _, s := range m.Shortcuts {
		if !installed[strings.ToLower(Normalize(s.Target))] {
			ve.addf("shortcut \"%s\" target \"%s\" is not in the payload", s.Label, s.Target)
		}
	}

	for _, r := range m.Run {
		if r.Has(RunShellExec) || !m.insideApp(r.Target) {
			continue
		}
		if !installed[strings.ToLower(Normalize(r.Target))] {
			ve.addf("run action target \"%s\" is not in the payload", r.Target)
		}
	}

	return ve.orNil()
}

func (m *Manifest) insideApp(p string) bool {
	c, rest := SplitConstant(p)
	return c == ConstApp && rest != "" && !hasParentSegment(p)
}

func dirPart(rest string) string {
	i := strings.LastIndex(rest, `\`)
	if i < 0 {
		return ""
	}
	return rest[:i]
}
