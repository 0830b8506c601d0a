package manifest

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/mp4-to-gif-converter/packager/pkg/cleanup"
)

const (
	ConstApp            = "{app}"
	ConstGroup          = "{group}"
	ConstSrc            = "{src}"
	ConstTmp            = "{tmp}"
	ConstAutoPF         = "{autopf}"
	ConstUserPF         = "{userpf}"
	ConstCommonPF       = "{commonpf}"
	ConstLocalAppData   = "{localappdata}"
	ConstUserAppData    = "{userappdata}"
	ConstCommonAppData  = "{commonappdata}"
	ConstAutoPrograms   = "{autoprograms}"
	ConstUserPrograms   = "{userprograms}"
	ConstCommonPrograms = "{commonprograms}"
	ConstAutoDesktop    = "{autodesktop}"
	ConstUserDesktop    = "{userdesktop}"
	ConstCommonDesktop  = "{commondesktop}"
)

type scope int

const (
	scopeUnknown scope = iota
	scopeUser
	scopeMachine
	scopeAuto
	scopeInstall // {app} and {group}, resolved relative to the install
	scopeScratch // {tmp} and {src}, never an install location
)

var constantScopes = map[string]scope{
	ConstApp:            scopeInstall,
	ConstGroup:          scopeInstall,
	ConstSrc:            scopeScratch,
	ConstTmp:            scopeScratch,
	ConstAutoPF:         scopeAuto,
	ConstUserPF:         scopeUser,
	ConstCommonPF:       scopeMachine,
	ConstLocalAppData:   scopeUser,
	ConstUserAppData:    scopeUser,
	ConstCommonAppData:  scopeMachine,
	ConstAutoPrograms:   scopeAuto,
	ConstUserPrograms:   scopeUser,
	ConstCommonPrograms: scopeMachine,
	ConstAutoDesktop:    scopeAuto,
	ConstUserDesktop:    scopeUser,
	ConstCommonDesktop:  scopeMachine,
}

// autoConstants maps the auto* constants onto their per-user and
// per-machine variants.
var autoConstants = map[string][2]string{
	ConstAutoPF:       {ConstUserPF, ConstCommonPF},
	ConstAutoPrograms: {ConstUserPrograms, ConstCommonPrograms},
	ConstAutoDesktop:  {ConstUserDesktop, ConstCommonDesktop},
}

// Join builds a template path from a constant and relative segments.
func Join(elem ...string) string {
	parts := make([]string, 0, len(elem))
	for _, e := range elem {
		e = strings.Trim(Normalize(e), `\`)
		if e != "" {
			parts = append(parts, e)
		}
	}
	return strings.Join(parts, `\`)
}

// Normalize converts a template to backslashes and drops empty and "."
// segments. It does not collapse "..", validation rejects those.
func Normalize(p string) string {
	p = strings.ReplaceAll(p, "/", `\`)
	segs := strings.Split(p, `\`)
	out := segs[:0]
	for i, s := range segs {
		if s == "" && i != 0 {
			continue
		}
		if s == "." {
			continue
		}
		out = append(out, s)
	}
	return strings.TrimRight(strings.Join(out, `\`), `\`)
}

// SplitConstant splits a template into its leading directory constant and
// the remainder. The constant is lower cased.
func SplitConstant(p string) (string, string) {
	p = Normalize(p)
	if !strings.HasPrefix(p, "{") {
		return "", p
	}
	end := strings.Index(p, "}")
	if end < 0 {
		return "", p
	}
	return strings.ToLower(p[:end+1]), strings.TrimPrefix(p[end+1:], `\`)
}

// IsKnownConstant reports whether c is a directory constant we can
// resolve.
func IsKnownConstant(c string) bool {
	_, ok := constantScopes[strings.ToLower(c)]
	return ok
}

// Canonical rewrites the auto* constants of a template to the concrete
// variant selected by the privilege level.
func Canonical(p string, privileges PrivilegeLevel) string {
	c, rest := SplitConstant(p)
	if variants, ok := autoConstants[c]; ok {
		if privileges == PrivilegesAdmin {
			c = variants[1]
		} else {
			c = variants[0]
		}
	}
	return Join(c, rest)
}

func scopeOf(p string, privileges PrivilegeLevel) scope {
	c, _ := SplitConstant(Canonical(p, privileges))
	return constantScopes[c]
}

// hasParentSegment reports whether a template contains a ".." segment.
func hasParentSegment(p string) bool {
	for _, s := range strings.Split(Normalize(p), `\`) {
		if s == ".." {
			return true
		}
	}
	return false
}

// layout is the windows profile layout used when comparing templates
// symbolically. It mirrors the default Windows folder structure, which is
// what makes {userpf} land inside {localappdata}.
var layout = map[string]string{
	ConstUserPF:         `C:\Users\_\AppData\Local\Programs`,
	ConstCommonPF:       `C:\Program Files`,
	ConstLocalAppData:   `C:\Users\_\AppData\Local`,
	ConstUserAppData:    `C:\Users\_\AppData\Roaming`,
	ConstCommonAppData:  `C:\ProgramData`,
	ConstUserPrograms:   `C:\Users\_\AppData\Roaming\Microsoft\Windows\Start Menu\Programs`,
	ConstCommonPrograms: `C:\ProgramData\Microsoft\Windows\Start Menu\Programs`,
	ConstUserDesktop:    `C:\Users\_\Desktop`,
	ConstCommonDesktop:  `C:\Users\Public\Desktop`,
	ConstTmp:            `C:\Users\_\AppData\Local\Temp\is-0`,
	ConstSrc:            `C:\src`,
}

const symbolicProfile = `C:\Users\_`

// symbolic expands a template against the default layout. {app} and
// {group} expand relative to the manifest's defaults.
func (m *Manifest) symbolic(p string) string {
	c, rest := SplitConstant(Canonical(p, m.Privileges))
	switch c {
	case ConstApp:
		if dc, _ := SplitConstant(m.DefaultDir); dc == ConstApp || dc == ConstGroup {
			return Normalize(p)
		}
		return Join(m.symbolic(m.DefaultDir), rest)
	case ConstGroup:
		return Join(m.symbolic(Join(ConstAutoPrograms, m.GroupName)), rest)
	}
	if base, ok := layout[c]; ok {
		return Join(base, rest)
	}
	return Normalize(p)
}

// Overlaps reports whether two templates name the same tree, or one
// contains the other, once expanded for this manifest.
func (m *Manifest) Overlaps(a, b string) bool {
	return cleanup.Overlaps(m.symbolic(a), m.symbolic(b), '\\', true)
}

// GlobCoversApp reports whether the wildcard in the last segment of p
// matches {app} or one of its parents, once expanded for this manifest.
// A pattern with no wildcard never does, see Overlaps for that.
func (m *Manifest) GlobCoversApp(p string) bool {
	s := strings.ToLower(m.symbolic(p))
	i := strings.LastIndex(s, `\`)
	if i < 0 {
		return false
	}
	dir, pattern := s[:i], s[i+1:]
	if !strings.ContainsAny(pattern, "*?[") {
		return false
	}

	app := strings.ToLower(m.symbolic(ConstApp))
	below, ok := strings.CutPrefix(app, dir+`\`)
	if !ok {
		return false
	}
	seg, _, _ := strings.Cut(below, `\`)

	// a malformed pattern matches nothing at uninstall either
	matched, err := path.Match(pattern, seg)
	return err == nil && matched
}

// UnderProfile reports whether a template lands inside the user profile.
func (m *Manifest) UnderProfile(p string) bool {
	s := m.symbolic(p)
	return cleanup.Overlaps(symbolicProfile, s, '\\', true) && !strings.EqualFold(s, symbolicProfile)
}

// Resolver expands templates into real filesystem paths. Directory
// constants are looked up in the environment, the way windows exposes
// them. App and Group are set once the install directory is known.
type Resolver struct {
	Privileges PrivilegeLevel
	App        string
	Group      string
	Src        string

	// Getenv defaults to os.LookupEnv. Tests inject a fake profile.
	Getenv func(string) (string, bool)
	// Home is the fallback profile directory, used when the windows
	// variables are not set (running on another OS).
	Home string
}

// NewResolver returns a resolver bound to the process environment.
func NewResolver(privileges PrivilegeLevel) *Resolver {
	home, _ := os.UserHomeDir()
	return &Resolver{
		Privileges: privileges,
		Getenv:     os.LookupEnv,
		Home:       home,
	}
}

// EnvResolver returns a resolver that reads from a fixed environment.
func EnvResolver(privileges PrivilegeLevel, env map[string]string) *Resolver {
	return &Resolver{
		Privileges: privileges,
		Getenv: func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		},
		Home: env["USERPROFILE"],
	}
}

func (r *Resolver) env(key string, fallback ...string) string {
	getenv := r.Getenv
	if getenv == nil {
		getenv = os.LookupEnv
	}
	if v, ok := getenv(key); ok && v != "" {
		return v
	}
	if len(fallback) == 0 {
		return ""
	}
	return filepath.Join(fallback...)
}

func (r *Resolver) profile() string {
	return r.env("USERPROFILE", r.Home)
}

func (r *Resolver) localAppData() string {
	return r.env("LOCALAPPDATA", r.profile(), "AppData", "Local")
}

func (r *Resolver) roamingAppData() string {
	return r.env("APPDATA", r.profile(), "AppData", "Roaming")
}

func (r *Resolver) programData() string {
	return r.env("ProgramData", string(filepath.Separator), "ProgramData")
}

func (r *Resolver) base(c string) (string, error) {
	if variants, ok := autoConstants[c]; ok {
		if r.Privileges == PrivilegesAdmin {
			c = variants[1]
		} else {
			c = variants[0]
		}
	}

	startMenu := []string{"Microsoft", "Windows", "Start Menu", "Programs"}

	switch c {
	case ConstApp:
		if r.App == "" {
			return "", fmt.Errorf("%s is not known yet", c)
		}
		return r.App, nil
	case ConstGroup:
		if r.Group == "" {
			return "", fmt.Errorf("%s is not known yet", c)
		}
		return r.Group, nil
	case ConstSrc:
		if r.Src == "" {
			return "", fmt.Errorf("%s is not known yet", c)
		}
		return r.Src, nil
	case ConstTmp:
		return os.TempDir(), nil
	case ConstUserPF:
		return filepath.Join(r.localAppData(), "Programs"), nil
	case ConstCommonPF:
		return r.env("ProgramFiles", string(filepath.Separator), "Program Files"), nil
	case ConstLocalAppData:
		return r.localAppData(), nil
	case ConstUserAppData:
		return r.roamingAppData(), nil
	case ConstCommonAppData:
		return r.programData(), nil
	case ConstUserPrograms:
		return filepath.Join(append([]string{r.roamingAppData()}, startMenu...)...), nil
	case ConstCommonPrograms:
		return filepath.Join(append([]string{r.programData()}, startMenu...)...), nil
	case ConstUserDesktop:
		return filepath.Join(r.profile(), "Desktop"), nil
	case ConstCommonDesktop:
		return r.env("PUBLIC", string(filepath.Separator), "Users", "Public") + string(filepath.Separator) + "Desktop", nil
	}

	return "", fmt.Errorf("unknown directory constant \"%s\"", c)
}

// Resolve expands a template into a native path.
func (r *Resolver) Resolve(p string) (string, error) {
	if hasParentSegment(p) {
		return "", fmt.Errorf("path \"%s\" contains a parent directory segment", p)
	}

	c, rest := SplitConstant(p)
	if c == "" {
		return "", fmt.Errorf("path \"%s\" does not start with a directory constant", p)
	}

	base, err := r.base(c)
	if err != nil {
		return "", err
	}

	if rest == "" {
		return filepath.Clean(base), nil
	}
	return filepath.Join(append([]string{base}, strings.Split(rest, `\`)...)...), nil
}
