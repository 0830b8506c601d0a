// Package manifest describes what gets installed, where it goes, and
// what gets cleaned up again on uninstall.
//
// A Manifest is authored once, checked at build time, and rendered into
// a descriptor for an installer engine (see pkg/packagekit). It is never
// mutated by the install itself.
//
// Paths inside a manifest are templates. They are written windows style,
// with backslashes, and start with a directory constant such as {app} or
// {localappdata}. A Resolver turns them into real paths for a given
// privilege level.
package manifest

import (
	"strings"

	"github.com/google/uuid"
)

type PrivilegeLevel string

const (
	PrivilegesLowest PrivilegeLevel = "lowest" // per-user, never elevates
	PrivilegesAdmin  PrivilegeLevel = "admin"  // per-machine
)

type UpgradePolicy string

const (
	UpgradeOverwrite UpgradePolicy = "overwrite"
	UpgradeRefuse    UpgradePolicy = "refuse"
)

type FileFlag string

const (
	FlagIgnoreVersion           FileFlag = "ignoreversion"
	FlagRecurseSubdirs          FileFlag = "recursesubdirs"
	FlagCreateAllSubdirs        FileFlag = "createallsubdirs"
	FlagOnlyIfDoesntExist       FileFlag = "onlyifdoesntexist"
	FlagUninsNeverUninstall     FileFlag = "uninsneveruninstall"
	FlagSkipIfSourceDoesntExist FileFlag = "skipifsourcedoesntexist"
)

type RunFlag string

const (
	RunNoWait       RunFlag = "nowait"
	RunPostInstall  RunFlag = "postinstall"
	RunSkipIfSilent RunFlag = "skipifsilent"
	RunShellExec    RunFlag = "shellexec"
)

type ShortcutLocation string

const (
	LocationStartMenu ShortcutLocation = "startmenu"
	LocationGroup     ShortcutLocation = "group"
	LocationDesktop   ShortcutLocation = "desktop"
)

type DeleteType string

const (
	DeleteFiles        DeleteType = "files"
	DeleteFilesAndDirs DeleteType = "filesandordirs"
	DeleteDirIfEmpty   DeleteType = "dirifempty"
)

// Manifest is the installation manifest for a single product.
type Manifest struct {
	Product         Product        `json:"product"`
	Privileges      PrivilegeLevel `json:"privileges"`
	Architectures   []string       `json:"architectures,omitempty"`
	DefaultDir      string         `json:"default_dir"`
	GroupName       string         `json:"group_name,omitempty"`
	Language        string         `json:"language,omitempty"`
	UpgradePolicy   UpgradePolicy  `json:"upgrade_policy,omitempty"`
	Files           []FileEntry    `json:"files"`
	Tasks           []Task         `json:"tasks,omitempty"`
	Shortcuts       []Shortcut     `json:"shortcuts,omitempty"`
	Run             []RunAction    `json:"run,omitempty"`
	UninstallDelete []DeleteTarget `json:"uninstall_delete,omitempty"`
	Output          Output         `json:"output"`
}

type Product struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Publisher string `json:"publisher"`
	URL       string `json:"url"`
	AppID     string `json:"app_id,omitempty"`
	ExeName   string `json:"exe_name,omitempty"`
}

// FileEntry copies Source (relative to the payload root) into DestDir.
// A trailing wildcard segment selects files by name, as in
// `bin\*.dll`. A bare directory means every file in it.
type FileEntry struct {
	Source  string     `json:"source"`
	DestDir string     `json:"dest_dir"`
	Flags   []FileFlag `json:"flags,omitempty"`
}

// Task is a user selectable option that gates shortcuts.
type Task struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	GroupDescription string `json:"group_description,omitempty"`
	Unchecked        bool   `json:"unchecked,omitempty"`
}

type Shortcut struct {
	Label    string           `json:"label"`
	Location ShortcutLocation `json:"location"`
	Target   string           `json:"target"`
	Tasks    []string         `json:"tasks,omitempty"`
}

type RunAction struct {
	Target      string    `json:"target"`
	Description string    `json:"description,omitempty"`
	Flags       []RunFlag `json:"flags,omitempty"`
}

type DeleteTarget struct {
	Type DeleteType `json:"type"`
	Path string     `json:"path"`
}

type Output struct {
	Dir                     string `json:"dir,omitempty"`
	BaseFilename            string `json:"base_filename"`
	Compression             string `json:"compression,omitempty"`
	SolidCompression        bool   `json:"solid_compression,omitempty"`
	WizardStyle             string `json:"wizard_style,omitempty"`
	SetupIcon               string `json:"setup_icon,omitempty"`
	DisableProgramGroupPage bool   `json:"disable_program_group_page,omitempty"`
}

// appIDNamespace seeds name based AppIDs, so that the same product always
// maps onto the same uninstall entry.
var appIDNamespace = uuid.MustParse("8a6c4d7e-2f1b-5c3a-9e0d-4b7f6a1c2d3e")

// SetDefaults fills in every optional field. It is idempotent.
func (m *Manifest) SetDefaults() {
	if m.Privileges == "" {
		m.Privileges = PrivilegesLowest
	}
	if len(m.Architectures) == 0 {
		m.Architectures = []string{"x64compatible"}
	}
	if m.GroupName == "" {
		m.GroupName = m.Product.Name
	}
	if m.Language == "" {
		m.Language = "en"
	}
	if m.UpgradePolicy == "" {
		m.UpgradePolicy = UpgradeOverwrite
	}
	if m.Product.AppID == "" && m.Product.Name != "" {
		m.Product.AppID = strings.ToUpper(uuid.NewSHA1(appIDNamespace, []byte(m.Product.Publisher+"|"+m.Product.Name)).String())
	}
	if m.Output.Dir == "" {
		m.Output.Dir = "Output"
	}
	if m.Output.Compression == "" {
		m.Output.Compression = "lzma2"
	}
	if m.Output.WizardStyle == "" {
		m.Output.WizardStyle = "modern"
	}
	for i := range m.Shortcuts {
		if m.Shortcuts[i].Location == "" {
			m.Shortcuts[i].Location = LocationStartMenu
		}
	}
	for i := range m.UninstallDelete {
		if m.UninstallDelete[i].Type == "" {
			m.UninstallDelete[i].Type = DeleteFilesAndDirs
		}
	}
}

// MainExecutable returns the {app} relative template of the product
// executable, or "" if none is configured.
func (m *Manifest) MainExecutable() string {
	if m.Product.ExeName == "" {
		return ""
	}
	return Join(ConstApp, m.Product.ExeName)
}

// ShortcutPath returns the link template for a shortcut, without an
// extension.
func (m *Manifest) ShortcutPath(s Shortcut) string {
	switch s.Location {
	case LocationDesktop:
		return Join(ConstAutoDesktop, s.Label)
	case LocationGroup:
		return Join(ConstGroup, s.Label)
	default:
		return Join(ConstAutoPrograms, s.Label)
	}
}

// TaskSelected reports whether a shortcut is enabled for the selected
// tasks. Shortcuts without tasks are always created.
func (s Shortcut) TaskSelected(selected map[string]bool) bool {
	if len(s.Tasks) == 0 {
		return true
	}
	for _, t := range s.Tasks {
		if selected[strings.ToLower(t)] {
			return true
		}
	}
	return false
}

// DefaultTasks returns the tasks that are checked by default.
func (m *Manifest) DefaultTasks() map[string]bool {
	selected := make(map[string]bool, len(m.Tasks))
	for _, t := range m.Tasks {
		if !t.Unchecked {
			selected[strings.ToLower(t.Name)] = true
		}
	}
	return selected
}

func (f FileEntry) Has(flag FileFlag) bool {
	for _, fl := range f.Flags {
		if fl == flag {
			return true
		}
	}
	return false
}

func (r RunAction) Has(flag RunFlag) bool {
	for _, fl := range r.Flags {
		if fl == flag {
			return true
		}
	}
	return false
}

// ShouldRun reports whether a run action fires for an install. Post
// install actions are gated by the launch checkbox, and nothing marked
// skipifsilent runs during a silent install.
func (r RunAction) ShouldRun(silent, launchChecked bool) bool {
	if silent && r.Has(RunSkipIfSilent) {
		return false
	}
	if r.Has(RunPostInstall) {
		return launchChecked && !silent
	}
	return true
}

// EffectiveAppID is the id installers key the product by. A bare UUID
// gets the braces windows expects.
func (p Product) EffectiveAppID() string {
	if _, err := uuid.Parse(p.AppID); err == nil && !strings.HasPrefix(p.AppID, "{") {
		return "{" + p.AppID + "}"
	}
	return p.AppID
}

// UninstallKey is the name of the product's uninstall registry key.
func (p Product) UninstallKey() string {
	return p.EffectiveAppID() + "_is1"
}
