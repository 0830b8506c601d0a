//go:build windows
// +build windows

package installer

import (
	"errors"
	"fmt"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
	"github.com/mp4-to-gif-converter/packager/pkg/manifest"
	"github.com/scjalliance/comshim"
	"golang.org/x/sys/windows/registry"
)

// DefaultPlatform writes uninstall entries to the registry hive that
// matches the privilege level.
func DefaultPlatform(privileges manifest.PrivilegeLevel) (Platform, error) {
	root := registry.CURRENT_USER
	if privileges == manifest.PrivilegesAdmin {
		root = registry.LOCAL_MACHINE
	}
	return &registryPlatform{root: root}, nil
}

type registryPlatform struct {
	root registry.Key
}

func (p *registryPlatform) WriteEntry(e Entry) error {
	k, _, err := registry.CreateKey(p.root, UninstallRoot+`\`+e.Key, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("creating uninstall key %s: %w", e.Key, err)
	}
	defer k.Close()

	strs := map[string]string{
		"DisplayName":     e.DisplayName,
		"DisplayVersion":  e.DisplayVersion,
		"Publisher":       e.Publisher,
		"InstallLocation": e.InstallLocation,
		"UninstallString": e.UninstallString,
	}
	if e.URLInfoAbout != "" {
		strs["URLInfoAbout"] = e.URLInfoAbout
	}
	if e.DisplayIcon != "" {
		strs["DisplayIcon"] = e.DisplayIcon
	}
	if e.QuietUninstallString != "" {
		strs["QuietUninstallString"] = e.QuietUninstallString
	}
	for name, v := range strs {
		if err := k.SetStringValue(name, v); err != nil {
			return fmt.Errorf("setting %s: %w", name, err)
		}
	}

	dwords := map[string]uint32{
		"EstimatedSize": e.EstimatedSize,
		"NoModify":      boolDWord(e.NoModify),
		"NoRepair":      boolDWord(e.NoRepair),
	}
	for name, v := range dwords {
		if err := k.SetDWordValue(name, v); err != nil {
			return fmt.Errorf("setting %s: %w", name, err)
		}
	}

	return nil
}

func (p *registryPlatform) ReadEntry(key string) (Entry, error) {
	e := Entry{Key: key}

	k, err := registry.OpenKey(p.root, UninstallRoot+`\`+key, registry.QUERY_VALUE)
	if errors.Is(err, registry.ErrNotExist) {
		return e, ErrNotInstalled
	} else if err != nil {
		return e, fmt.Errorf("opening uninstall key %s: %w", key, err)
	}
	defer k.Close()

	for name, dst := range map[string]*string{
		"DisplayName":          &e.DisplayName,
		"DisplayVersion":       &e.DisplayVersion,
		"Publisher":            &e.Publisher,
		"URLInfoAbout":         &e.URLInfoAbout,
		"InstallLocation":      &e.InstallLocation,
		"DisplayIcon":          &e.DisplayIcon,
		"UninstallString":      &e.UninstallString,
		"QuietUninstallString": &e.QuietUninstallString,
	} {
		v, _, err := k.GetStringValue(name)
		if err != nil && !errors.Is(err, registry.ErrNotExist) {
			return e, fmt.Errorf("reading %s: %w", name, err)
		}
		*dst = v
	}

	if size, _, err := k.GetIntegerValue("EstimatedSize"); err == nil {
		e.EstimatedSize = uint32(size)
	}
	if v, _, err := k.GetIntegerValue("NoModify"); err == nil {
		e.NoModify = v != 0
	}
	if v, _, err := k.GetIntegerValue("NoRepair"); err == nil {
		e.NoRepair = v != 0
	}

	return e, nil
}

func (p *registryPlatform) DeleteEntry(key string) error {
	err := registry.DeleteKey(p.root, UninstallRoot+`\`+key)
	if err != nil && !errors.Is(err, registry.ErrNotExist) {
		return fmt.Errorf("deleting uninstall key %s: %w", key, err)
	}
	return nil
}

// CreateShortcut writes a .lnk through the WScript.Shell COM object.
func (p *registryPlatform) CreateShortcut(link, target, workDir string) (string, error) {
	link += ".lnk"

	comshim.Add(1)
	defer comshim.Done()

	unknown, err := oleutil.CreateObject("WScript.Shell")
	if err != nil {
		return "", fmt.Errorf("creating WScript.Shell: %w", err)
	}
	defer unknown.Release()

	shell, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return "", fmt.Errorf("querying WScript.Shell: %w", err)
	}
	defer shell.Release()

	res, err := oleutil.CallMethod(shell, "CreateShortcut", link)
	if err != nil {
		return "", fmt.Errorf("creating shortcut %s: %w", link, err)
	}
	shortcut := res.ToIDispatch()
	defer shortcut.Release()

	for name, v := range map[string]string{
		"TargetPath":       target,
		"WorkingDirectory": workDir,
		"IconLocation":     target + ",0",
	} {
		if _, err := oleutil.PutProperty(shortcut, name, v); err != nil {
			return "", fmt.Errorf("setting %s on %s: %w", name, link, err)
		}
	}

	if _, err := oleutil.CallMethod(shortcut, "Save"); err != nil {
		return "", fmt.Errorf("saving shortcut %s: %w", link, err)
	}

	return link, nil
}

func boolDWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
