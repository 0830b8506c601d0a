package wix

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/mp4-to-gif-converter/packager/pkg/manifest"
	"github.com/pkg/errors"
)

// Codes are the GUIDs windows installer keys a product by.
type Codes struct {
	UpgradeCode string // stable for the product
	ProductCode string // changes with the version
	PackageCode string // changes with every build
}

const (
	groupDirID     = "ProgramMenuGroup"
	cleanupID      = "Cleanup"
	mainFeatureID  = "Main"
	launchActionID = "LaunchApplication"

	// Features above INSTALLLEVEL are off unless selected, which is how
	// unchecked tasks are expressed.
	unselectedLevel = 1000
)

// RenderProduct writes the main wix source for m. Files are not listed,
// heat harvests them into the AppFiles component group.
func RenderProduct(w io.Writer, m *manifest.Manifest, codes Codes) error {
	product, err := NewProduct(m, codes)
	if err != nil {
		return err
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return errors.Wrap(err, "writing xml header")
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(Wix{Product: product}); err != nil {
		return errors.Wrap(err, "encoding product")
	}

	_, err = io.WriteString(w, "\n")
	return errors.Wrap(err, "writing product")
}

type productBuilder struct {
	m     *manifest.Manifest
	x64   bool
	scope string
	root  *dirNode
	owned []*dirNode // directories the installer creates, removed on uninstall
}

// NewProduct builds the product element for m.
func NewProduct(m *manifest.Manifest, codes Codes) (*Product, error) {
	if codes.UpgradeCode == "" {
		return nil, errors.New("an upgrade code is required")
	}

	version, err := manifest.FormatVersion(m.Product.Version)
	if err != nil {
		return nil, errors.Wrap(err, "formatting product version")
	}

	catalog, err := manifest.ResolveLanguage(m.Language)
	if err != nil {
		return nil, err
	}

	b := &productBuilder{
		m:    m,
		x64:  is64(m.Architectures),
		root: &dirNode{id: "TARGETDIR", name: "SourceDir"},
	}

	p := &Product{
		Id:           orStar(codes.ProductCode),
		Name:         m.Product.Name,
		Language:     catalog.LCID,
		Version:      version,
		Manufacturer: m.Product.Publisher,
		UpgradeCode:  codes.UpgradeCode,
		Package: Package{
			Id:                orStar(codes.PackageCode),
			InstallerVersion:  500,
			Compressed:        Yes,
			InstallScope:      "perUser",
			InstallPrivileges: "limited",
			Platform:          "x86",
			Description:       m.Product.Name,
			Manufacturer:      m.Product.Publisher,
		},
		MediaTemplate: MediaTemplate{EmbedCab: Yes, CompressionLevel: "high"},
	}
	if m.Privileges == manifest.PrivilegesAdmin {
		p.Package.InstallScope = "perMachine"
		p.Package.InstallPrivileges = "elevated"
	}
	if b.x64 {
		p.Package.Platform = "x64"
	}

	b.upgrade(p)

	if err := b.installDir(); err != nil {
		return nil, err
	}

	p.Properties = append(p.Properties,
		Property{Id: "WIXUI_INSTALLDIR", Value: InstallDirID},
		Property{Id: "ARPURLINFOABOUT", Value: m.Product.URL},
	)

	main := Feature{
		Id:                 mainFeatureID,
		Title:              m.Product.Name,
		Level:              1,
		Absent:             "disallow",
		ComponentGroupRefs: []ComponentGroupRef{{Id: AppFilesGroup}},
	}

	shortcuts, err := b.shortcuts()
	if err != nil {
		return nil, err
	}

	cleanup, setProps, err := b.cleanup()
	if err != nil {
		return nil, err
	}
	p.SetProperties = setProps
	p.Components = append(p.Components, cleanup)
	main.ComponentRefs = append(main.ComponentRefs, ComponentRef{Id: cleanup.Id})

	taskFeatures := make([]Feature, len(m.Tasks))
	taskIndex := make(map[string]int, len(m.Tasks))
	for i, t := range m.Tasks {
		taskFeatures[i] = Feature{
			Id:          ID("Task", t.Name),
			Title:       messageText(t.Description),
			Description: messageText(t.GroupDescription),
			Level:       1,
		}
		if t.Unchecked {
			taskFeatures[i].Level = unselectedLevel
		}
		taskIndex[strings.ToLower(t.Name)] = i
	}

	for i, s := range m.Shortcuts {
		c := shortcuts[i]
		p.Components = append(p.Components, c)
		ref := ComponentRef{Id: c.Id}
		if len(s.Tasks) == 0 {
			main.ComponentRefs = append(main.ComponentRefs, ref)
			continue
		}
		// Referenced from every gating task, installed if any of them is.
		for _, t := range s.Tasks {
			idx, ok := taskIndex[strings.ToLower(t)]
			if !ok {
				return nil, errors.Errorf("shortcut %q references unknown task %q", s.Label, t)
			}
			taskFeatures[idx].ComponentRefs = append(taskFeatures[idx].ComponentRefs, ref)
		}
	}

	p.Features = append([]Feature{main}, taskFeatures...)
	p.Directories = []Directory{b.root.directory()}

	p.UI = &UI{
		UIRefs: []UIRef{{Id: "WixUI_InstallDir"}, {Id: "WixUI_ErrorProgressText"}},
		// No license page.
		Publishes: []Publish{
			{Dialog: "WelcomeDlg", Control: "Next", Event: "NewDialog", Value: "InstallDirDlg", Order: 2, Condition: "1"},
			{Dialog: "InstallDirDlg", Control: "Back", Event: "NewDialog", Value: "WelcomeDlg", Order: 2, Condition: "1"},
		},
	}

	if err := b.launch(p); err != nil {
		return nil, err
	}

	return p, nil
}

func (b *productBuilder) upgrade(p *Product) {
	switch b.m.UpgradePolicy {
	case manifest.UpgradeRefuse:
		p.Upgrade = &Upgrade{
			Id: p.UpgradeCode,
			UpgradeVersions: []UpgradeVersion{{
				Minimum:        "0.0.0",
				IncludeMinimum: Yes,
				OnlyDetect:     Yes,
				Property:       "PREVIOUSVERSIONFOUND",
			}},
		}
		p.Conditions = append(p.Conditions, Condition{
			Message:   "[ProductName] is already installed. Uninstall it before installing this version.",
			Condition: "NOT PREVIOUSVERSIONFOUND OR Installed",
		})
	default:
		p.MajorUpgrade = &MajorUpgrade{AllowDowngrades: Yes}
	}
}

// installDir lays out the directories leading to INSTALLDIR.
func (b *productBuilder) installDir() error {
	c, rest := manifest.SplitConstant(manifest.Canonical(b.m.DefaultDir, b.m.Privileges))
	folder, sub, err := b.folder(c)
	if err != nil {
		return errors.Wrap(err, "default dir")
	}

	segs := append(sub, splitRest(rest)...)
	if len(segs) == 0 {
		return errors.Errorf("default dir %s must name a folder below %s", b.m.DefaultDir, c)
	}

	node := b.root.child(folder, "")
	for i, seg := range segs {
		id := ID("Dir", segs[:i+1]...)
		if i == len(segs)-1 {
			id = InstallDirID
		}
		node = node.child(id, seg)
		if i >= len(sub) {
			b.owned = append(b.owned, node)
		}
	}
	return nil
}

// folder maps a canonical directory constant to a standard windows
// installer folder, plus any fixed subfolders below it.
func (b *productBuilder) folder(c string) (string, []string, error) {
	switch c {
	case manifest.ConstUserPF:
		return "LocalAppDataFolder", []string{"Programs"}, nil
	case manifest.ConstCommonPF:
		if b.x64 {
			return "ProgramFiles64Folder", nil, nil
		}
		return "ProgramFilesFolder", nil, nil
	case manifest.ConstLocalAppData:
		return "LocalAppDataFolder", nil, nil
	case manifest.ConstUserAppData:
		return "AppDataFolder", nil, nil
	case manifest.ConstCommonAppData:
		return "CommonAppDataFolder", nil, nil
	case manifest.ConstUserPrograms, manifest.ConstCommonPrograms:
		return "ProgramMenuFolder", nil, nil
	case manifest.ConstUserDesktop, manifest.ConstCommonDesktop:
		return "DesktopFolder", nil, nil
	}
	return "", nil, errors.Errorf("directory constant %q has no windows installer folder", c)
}

// formatted converts a template into a windows installer formatted
// path, such as [INSTALLDIR]app.exe.
func (b *productBuilder) formatted(p string) (string, error) {
	c, rest := manifest.SplitConstant(manifest.Canonical(p, b.m.Privileges))

	var base string
	switch c {
	case manifest.ConstApp:
		base = "[" + InstallDirID + "]"
	case manifest.ConstGroup:
		base = "[" + groupDirID + "]"
	default:
		folder, sub, err := b.folder(c)
		if err != nil {
			return "", err
		}
		base = "[" + folder + "]"
		for _, s := range sub {
			base += s + `\`
		}
	}
	return base + rest, nil
}

func (b *productBuilder) registryRoot() string {
	if b.m.Privileges == manifest.PrivilegesAdmin {
		return "HKMU"
	}
	return "HKCU"
}

// keyPath is the registry value that anchors a component. Per-user
// components cannot use a file as their key path.
func (b *productBuilder) keyPath(name string) RegistryValue {
	return RegistryValue{
		Root:    b.registryRoot(),
		Key:     fmt.Sprintf(`Software\%s\%s`, b.m.Product.Publisher, b.m.Product.Name),
		Name:    name,
		Type:    "integer",
		Value:   "1",
		KeyPath: Yes,
	}
}

func (b *productBuilder) shortcuts() ([]Component, error) {
	components := make([]Component, 0, len(b.m.Shortcuts))
	for i, s := range b.m.Shortcuts {
		id := ID(fmt.Sprintf("Shortcut%d", i), s.Label)

		target, err := b.formatted(s.Target)
		if err != nil {
			return nil, errors.Wrapf(err, "shortcut %q", s.Label)
		}

		c := Component{
			Id:   id,
			Guid: "*",
			Shortcuts: []Shortcut{{
				Id:               "Lnk" + id,
				Name:             s.Label,
				Target:           target,
				WorkingDirectory: InstallDirID,
			}},
			RegistryValues: []RegistryValue{b.keyPath(id)},
		}

		switch s.Location {
		case manifest.LocationDesktop:
			c.Directory = "DesktopFolder"
		case manifest.LocationGroup:
			b.root.child("ProgramMenuFolder", "").child(groupDirID, b.m.GroupName)
			c.Directory = groupDirID
			c.RemoveFolders = []RemoveFolder{{Id: "Remove" + id, Directory: groupDirID, On: "uninstall"}}
		default:
			b.root.child("ProgramMenuFolder", "")
			c.Directory = "ProgramMenuFolder"
		}
		if c.Directory == "DesktopFolder" {
			b.root.child("DesktopFolder", "")
		}

		components = append(components, c)
	}
	return components, nil
}

// cleanup builds the component that removes the uninstall-delete
// targets, and the created install directories once they are empty.
// Targets are handed to the remove actions through properties set
// before AppSearch.
func (b *productBuilder) cleanup() (Component, []SetProperty, error) {
	c := Component{
		Id:             cleanupID,
		Directory:      InstallDirID,
		Guid:           "*",
		RegistryValues: []RegistryValue{b.keyPath(cleanupID)},
	}

	var props []SetProperty
	for i, d := range b.m.UninstallDelete {
		prop := fmt.Sprintf("CLEANUPDIR%d", i)
		id := fmt.Sprintf("CleanupTarget%d", i)

		target := manifest.Normalize(d.Path)
		var name string
		if d.Type == manifest.DeleteFiles {
			target, name = splitLast(target)
		}

		path, err := b.formatted(target)
		if err != nil {
			return Component{}, nil, errors.Wrapf(err, "uninstall delete %s", d.Path)
		}
		props = append(props, SetProperty{
			Id:       prop,
			Value:    strings.TrimSuffix(path, `\`) + `\`,
			Before:   "AppSearch",
			Sequence: "both",
		})

		switch d.Type {
		case manifest.DeleteFiles:
			c.RemoveFiles = append(c.RemoveFiles, RemoveFile{Id: id, Name: name, Property: prop, On: "uninstall"})
		case manifest.DeleteDirIfEmpty:
			c.RemoveFolders = append(c.RemoveFolders, RemoveFolder{Id: id, Property: prop, On: "uninstall"})
		default:
			c.RemoveFolderEx = append(c.RemoveFolderEx, RemoveFolderEx{Id: id, Property: prop, On: "uninstall"})
		}
	}

	// Innermost first, so parents are empty by the time they go.
	for i := len(b.owned) - 1; i >= 0; i-- {
		c.RemoveFolders = append(c.RemoveFolders, RemoveFolder{
			Id:        "Remove" + b.owned[i].id,
			Directory: b.owned[i].id,
			On:        "uninstall",
		})
	}

	return c, props, nil
}

// launch wires the exit dialog checkbox to the post install run
// action. The exit dialog is never shown on a silent install.
func (b *productBuilder) launch(p *Product) error {
	var action *manifest.RunAction
	for i, r := range b.m.Run {
		if !r.Has(manifest.RunPostInstall) {
			return errors.Errorf("run %s: only postinstall actions can be expressed in an msi", r.Target)
		}
		if action != nil {
			return errors.New("an msi supports a single postinstall action")
		}
		action = &b.m.Run[i]
	}
	if action == nil {
		return nil
	}

	target, err := b.formatted(action.Target)
	if err != nil {
		return errors.Wrapf(err, "run %s", action.Target)
	}

	text := messageText(action.Description)
	if text == "" {
		text = "Launch " + b.m.Product.Name
	}

	p.Properties = append(p.Properties,
		Property{Id: "WIXUI_EXITDIALOGOPTIONALCHECKBOXTEXT", Value: text},
		Property{Id: "WIXUI_EXITDIALOGOPTIONALCHECKBOX", Value: "1"},
		Property{Id: "WixShellExecTarget", Value: target},
	)
	p.CustomActions = append(p.CustomActions, CustomAction{
		Id:          launchActionID,
		BinaryKey:   "WixCA",
		DllEntry:    "WixShellExec",
		Impersonate: Yes,
		Return:      "ignore",
	})
	p.UI.Publishes = append(p.UI.Publishes, Publish{
		Dialog:    "ExitDialog",
		Control:   "Finish",
		Event:     "DoAction",
		Value:     launchActionID,
		Condition: "WIXUI_EXITDIALOGOPTIONALCHECKBOX = 1 and NOT Installed",
	})
	return nil
}

// innoMessages are the Inno Setup custom messages manifests commonly
// use for task and run descriptions.
var innoMessages = map[string]string{
	"CreateDesktopIcon": "Create a desktop shortcut",
	"AdditionalIcons":   "Additional shortcuts:",
	"LaunchProgram":     "Launch %s",
}

// messageText expands a {cm:Name,arg} reference into plain text.
// Anything else is returned unchanged.
func messageText(s string) string {
	if !strings.HasPrefix(s, "{cm:") || !strings.HasSuffix(s, "}") {
		return s
	}
	name, arg, hasArg := strings.Cut(s[len("{cm:"):len(s)-1], ",")
	format, ok := innoMessages[name]
	if !ok {
		return s
	}
	if strings.Contains(format, "%s") {
		if !hasArg {
			return s
		}
		return fmt.Sprintf(format, arg)
	}
	return format
}

type dirNode struct {
	id       string
	name     string
	children []*dirNode
}

// child returns the subdirectory with id, adding it if needed.
func (n *dirNode) child(id, name string) *dirNode {
	for _, c := range n.children {
		if c.id == id {
			return c
		}
	}
	c := &dirNode{id: id, name: name}
	n.children = append(n.children, c)
	return c
}

func (n *dirNode) directory() Directory {
	d := Directory{Id: n.id, Name: n.name}
	for _, c := range n.children {
		d.Directories = append(d.Directories, c.directory())
	}
	return d
}

func is64(archs []string) bool {
	for _, a := range archs {
		if strings.HasPrefix(a, "x64") || strings.HasPrefix(a, "arm64") {
			return true
		}
	}
	return false
}

func orStar(code string) string {
	if code == "" {
		return "*"
	}
	return code
}

func splitRest(rest string) []string {
	if rest == "" {
		return nil
	}
	return strings.Split(rest, `\`)
}

func splitLast(p string) (string, string) {
	i := strings.LastIndex(p, `\`)
	if i < 0 {
		return p, ""
	}
	return p[:i], p[i+1:]
}
