package innosetup

import (
	"bufio"
	"bytes"
	"io"
	"regexp"
	"strings"

	"github.com/go-ini/ini"
	"github.com/mp4-to-gif-converter/packager/pkg/manifest"
	"github.com/pkg/errors"
)

var (
	defineRegex = regexp.MustCompile(`^#define\s+(\w+)\s+(.*)$`)
	// {#Name} and {#StringChange(Name, '&', '&&')}
	defineUseRegex = regexp.MustCompile(`\{#(?:StringChange\()?(\w+)[^}]*\}`)
	sectionRegex   = regexp.MustCompile(`^\[(\w+)\]$`)
)

// script is an Inno Setup script split into sections, with the
// preprocessor defines already substituted.
type script struct {
	sections map[string][]string // lower cased section name to lines
	setup    []byte
}

// Import reads an existing Inno Setup script into a manifest. File
// sources starting with sourcePrefix are made relative to it.
func Import(r io.Reader, sourcePrefix string) (*manifest.Manifest, error) {
	s, err := parseScript(r)
	if err != nil {
		return nil, err
	}

	m := &manifest.Manifest{}

	if err := s.importSetup(m); err != nil {
		return nil, err
	}

	for _, entry := range s.entries("languages") {
		if c, ok := manifest.CatalogByInnoName(strings.ToLower(entry["name"])); ok {
			m.Language = c.Tag.String()
			break
		}
	}

	for _, entry := range s.entries("tasks") {
		m.Tasks = append(m.Tasks, manifest.Task{
			Name:             entry["name"],
			Description:      entry["description"],
			GroupDescription: entry["groupdescription"],
			Unchecked:        hasWord(entry["flags"], "unchecked"),
		})
	}

	for _, entry := range s.entries("files") {
		f := manifest.FileEntry{
			Source:  relativeSource(entry["source"], sourcePrefix),
			DestDir: entry["destdir"],
		}
		for _, fl := range strings.Fields(entry["flags"]) {
			f.Flags = append(f.Flags, manifest.FileFlag(strings.ToLower(fl)))
		}
		m.Files = append(m.Files, f)
	}

	for _, entry := range s.entries("icons") {
		c, label := manifest.SplitConstant(entry["name"])
		m.Shortcuts = append(m.Shortcuts, manifest.Shortcut{
			Label:    label,
			Location: iconLocation(c),
			Target:   entry["filename"],
			Tasks:    strings.Fields(entry["tasks"]),
		})
	}

	for _, entry := range s.entries("run") {
		ra := manifest.RunAction{
			Target:      entry["filename"],
			Description: entry["description"],
		}
		for _, fl := range strings.Fields(entry["flags"]) {
			ra.Flags = append(ra.Flags, manifest.RunFlag(strings.ToLower(fl)))
		}
		m.Run = append(m.Run, ra)
	}

	for _, entry := range s.entries("uninstalldelete") {
		m.UninstallDelete = append(m.UninstallDelete, manifest.DeleteTarget{
			Type: manifest.DeleteType(strings.ToLower(entry["type"])),
			Path: entry["name"],
		})
	}

	if s.refusesUpgrade() {
		m.UpgradePolicy = manifest.UpgradeRefuse
	}

	if m.Product.ExeName == "" {
		for _, sc := range m.Shortcuts {
			if c, rest := manifest.SplitConstant(sc.Target); c == manifest.ConstApp && !strings.Contains(rest, `\`) {
				m.Product.ExeName = rest
				break
			}
		}
	}

	m.SetDefaults()
	return m, nil
}

func parseScript(r io.Reader) (*script, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading script")
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	defines := map[string]string{}
	s := &script{sections: map[string][]string{}}
	var current string
	var setup bytes.Buffer

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if m := defineRegex.FindStringSubmatch(line); m != nil {
			defines[m[1]] = strings.Trim(strings.TrimSpace(m[2]), `"`)
			continue
		}
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}

		line = defineUseRegex.ReplaceAllStringFunc(line, func(use string) string {
			name := defineUseRegex.FindStringSubmatch(use)[1]
			if v, ok := defines[name]; ok && name != SourceDefine {
				return v
			}
			return use
		})

		if m := sectionRegex.FindStringSubmatch(line); m != nil {
			current = strings.ToLower(m[1])
			continue
		}

		if current == "setup" {
			setup.WriteString(line)
			setup.WriteByte('\n')
			continue
		}
		if current != "" {
			s.sections[current] = append(s.sections[current], line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning script")
	}

	s.setup = setup.Bytes()
	return s, nil
}

func (s *script) importSetup(m *manifest.Manifest) error {
	cfg, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, s.setup)
	if err != nil {
		return errors.Wrap(err, "parsing [Setup]")
	}

	directives := map[string]string{}
	for _, key := range cfg.Section(ini.DefaultSection).Keys() {
		directives[strings.ToLower(key.Name())] = key.Value()
	}

	if directives["appname"] == "" {
		return errors.New("script has no AppName")
	}

	m.Product = manifest.Product{
		Name:      unescapeLiteral(directives["appname"]),
		Version:   directives["appversion"],
		Publisher: unescapeLiteral(directives["apppublisher"]),
		URL:       unescapeLiteral(directives["apppublisherurl"]),
		AppID:     importAppID(directives["appid"]),
	}
	if c, rest := manifest.SplitConstant(directives["uninstalldisplayicon"]); c == manifest.ConstApp && !strings.Contains(rest, `\`) {
		m.Product.ExeName = rest
	}

	m.Privileges = manifest.PrivilegeLevel(strings.ToLower(directives["privilegesrequired"]))
	if m.Privileges == "" {
		m.Privileges = manifest.PrivilegesAdmin
	}
	m.Architectures = strings.Fields(directives["architecturesallowed"])
	m.DefaultDir = directives["defaultdirname"]
	m.GroupName = unescapeLiteral(directives["defaultgroupname"])

	m.Output = manifest.Output{
		Dir:                     directives["outputdir"],
		BaseFilename:            directives["outputbasefilename"],
		Compression:             strings.ToLower(strings.SplitN(directives["compression"], "/", 2)[0]),
		SolidCompression:        isYes(directives["solidcompression"]),
		WizardStyle:             strings.ToLower(directives["wizardstyle"]),
		SetupIcon:               directives["setupiconfile"],
		DisableProgramGroupPage: isYes(directives["disableprogramgrouppage"]),
	}
	if m.Output.BaseFilename == "" {
		m.Output.BaseFilename = "mysetup"
	}

	return nil
}

// refusesUpgrade spots the [Code] guard Render writes for the refuse
// upgrade policy.
func (s *script) refusesUpgrade() bool {
	var found bool
	for _, line := range s.sections["code"] {
		if strings.Contains(line, "RegKeyExists") && strings.Contains(line, "_is1") {
			found = true
		}
	}
	return found
}

// entries parses the parameter lines of an entry section.
func (s *script) entries(section string) []map[string]string {
	var out []map[string]string
	for _, line := range s.sections[section] {
		out = append(out, parseParams(line))
	}
	return out
}

// parseParams splits `Name: "a; b"; Flags: x y` into lower cased
// parameter names and unquoted values.
func parseParams(line string) map[string]string {
	params := map[string]string{}

	var parts []string
	var cur strings.Builder
	inQuote := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			inQuote = !inQuote
			cur.WriteByte(c)
		case c == ';' && !inQuote:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	parts = append(parts, cur.String())

	for _, p := range parts {
		name, value, ok := strings.Cut(p, ":")
		if !ok {
			continue
		}
		params[strings.ToLower(strings.TrimSpace(name))] = unquote(strings.TrimSpace(value))
	}
	return params
}

func unquote(v string) string {
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		return strings.ReplaceAll(v[1:len(v)-1], `""`, `"`)
	}
	return v
}

func importAppID(v string) string {
	v = strings.TrimPrefix(v, "{{")
	v = strings.TrimPrefix(v, "{")
	return strings.TrimSuffix(v, "}")
}

func relativeSource(src, prefix string) string {
	src = manifest.Normalize(src)
	for _, p := range []string{"{#" + SourceDefine + "}", manifest.Normalize(prefix)} {
		if p == "" {
			continue
		}
		if strings.EqualFold(src, p) {
			return "*"
		}
		if len(src) > len(p) && strings.EqualFold(src[:len(p)+1], p+`\`) {
			return src[len(p)+1:]
		}
	}
	return src
}

func iconLocation(c string) manifest.ShortcutLocation {
	switch c {
	case manifest.ConstGroup:
		return manifest.LocationGroup
	case manifest.ConstAutoDesktop, manifest.ConstUserDesktop, manifest.ConstCommonDesktop:
		return manifest.LocationDesktop
	}
	return manifest.LocationStartMenu
}

func hasWord(s, word string) bool {
	for _, w := range strings.Fields(s) {
		if strings.EqualFold(w, word) {
			return true
		}
	}
	return false
}

func unescapeLiteral(v string) string {
	return strings.ReplaceAll(v, "{{", "{")
}

func isYes(v string) bool {
	switch strings.ToLower(v) {
	case "yes", "true", "1":
		return true
	}
	return false
}
