// Package innosetup renders Inno Setup scripts from an installation
// manifest, imports existing scripts, and drives the ISCC.exe compiler.
package innosetup

import (
	"bytes"
	_ "embed"
	"io"
	"strings"
	"text/template"

	"github.com/mp4-to-gif-converter/packager/pkg/manifest"
	"github.com/pkg/errors"
)

//go:embed assets/setup.iss.tmpl
var setupTemplate string

// utf8BOM makes ISCC read the script as unicode.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// SourceDefine is the preprocessor variable holding the payload root.
// It is set on the ISCC command line, so the script itself never
// carries a machine specific path.
const SourceDefine = "SourceDir"

type icon struct {
	Name     string
	Filename string
	Tasks    []string
}

type templateData struct {
	*manifest.Manifest

	AppIDDirective  string
	UninstallKey    string
	FileVersion     string
	Architectures   string
	Architectures64 string
	DisplayIcon     string
	Catalog         manifest.Catalog
	Icons           []icon
	RefuseUpgrade   bool
}

var funcs = template.FuncMap{
	"quote":   quote,
	"yesno":   yesno,
	"literal": literal,
	"pascal":  func(s string) string { return strings.ReplaceAll(s, "'", "''") },
	"join":    func(s []string) string { return strings.Join(s, " ") },
	"source":  func(s string) string { return manifest.Join("{#"+SourceDefine+"}", s) },
	"flags": func(v interface{}) string {
		switch fl := v.(type) {
		case []manifest.FileFlag:
			out := make([]string, len(fl))
			for i := range fl {
				out[i] = string(fl[i])
			}
			return strings.Join(out, " ")
		case []manifest.RunFlag:
			out := make([]string, len(fl))
			for i := range fl {
				out[i] = string(fl[i])
			}
			return strings.Join(out, " ")
		}
		return ""
	},
}

var scriptTemplate = template.Must(template.New("setup.iss").Funcs(funcs).Parse(setupTemplate))

// Render writes the Inno Setup script for m. The output depends only on
// the manifest, so identical manifests render identical bytes.
func Render(w io.Writer, m *manifest.Manifest) error {
	data, err := newTemplateData(m)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.Write(utf8BOM)
	if err := scriptTemplate.Execute(&buf, data); err != nil {
		return errors.Wrap(err, "executing setup.iss template")
	}

	_, err = w.Write(crlf(buf.Bytes()))
	return errors.Wrap(err, "writing setup script")
}

func newTemplateData(m *manifest.Manifest) (*templateData, error) {
	fileVersion, err := manifest.FormatVersion(m.Product.Version)
	if err != nil {
		return nil, errors.Wrap(err, "formatting file version")
	}

	catalog, err := manifest.ResolveLanguage(m.Language)
	if err != nil {
		return nil, err
	}

	data := &templateData{
		Manifest:       m,
		AppIDDirective: appIDDirective(m.Product.EffectiveAppID()),
		UninstallKey:   m.Product.UninstallKey(),
		FileVersion:    fileVersion,
		Architectures:  strings.Join(m.Architectures, " "),
		DisplayIcon:    m.MainExecutable(),
		Catalog:        catalog,
		RefuseUpgrade:  m.UpgradePolicy == manifest.UpgradeRefuse,
	}

	var arch64 []string
	for _, a := range m.Architectures {
		if strings.HasPrefix(a, "x64") || strings.HasPrefix(a, "arm64") {
			arch64 = append(arch64, a)
		}
	}
	data.Architectures64 = strings.Join(arch64, " ")

	for _, s := range m.Shortcuts {
		data.Icons = append(data.Icons, icon{
			Name:     m.ShortcutPath(s),
			Filename: s.Target,
			Tasks:    s.Tasks,
		})
	}

	return data, nil
}

// appIDDirective escapes the leading brace, ISCC would otherwise read
// the id as a constant.
func appIDDirective(id string) string {
	if strings.HasPrefix(id, "{") {
		return "{" + id
	}
	return id
}

// literal escapes braces in a [Setup] value that is not meant to hold
// constants.
func literal(s string) string {
	return strings.ReplaceAll(s, "{", "{{")
}

// quote wraps a parameter value in double quotes, doubling embedded ones.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func yesno(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func crlf(b []byte) []byte {
	b = bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(b, []byte("\n"), []byte("\r\n"))
}
