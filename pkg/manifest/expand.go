package manifest

import (
	"fmt"
	"path"
	"strings"
)

// Placement is a single payload file and where it lands.
type Placement struct {
	Source string // slash separated, relative to the payload root
	Dest   string // template, e.g. {app}\bin\ffmpeg.exe
	Entry  int    // index into Manifest.Files
}

// ExpandFiles applies the file entries to a payload listing. Entries are
// applied in order and are not deduplicated, a later entry placing the
// same destination simply overwrites the earlier one at install time.
func (m *Manifest) ExpandFiles(payload []string) ([]Placement, error) {
	var placements []Placement

	for i, f := range m.Files {
		dir, pattern := splitSource(f.Source)
		if !strings.ContainsAny(pattern, "*?[") && isPayloadDir(payload, path.Join(dir, pattern)) {
			dir, pattern = path.Join(dir, pattern), "*"
		}
		recurse := f.Has(FlagRecurseSubdirs)

		var matched int
		for _, p := range payload {
			rel, ok := underDir(p, dir)
			if !ok {
				continue
			}

			relDir, base := path.Split(rel)
			if relDir != "" && !recurse {
				continue
			}

			if ok, err := path.Match(strings.ToLower(pattern), strings.ToLower(base)); err != nil {
				return nil, fmt.Errorf("file entry %d: bad source pattern \"%s\": %w", i, f.Source, err)
			} else if !ok {
				continue
			}

			matched++
			placements = append(placements, Placement{
				Source: p,
				Dest:   Join(f.DestDir, strings.ReplaceAll(relDir, "/", `\`), base),
				Entry:  i,
			})
		}

		if matched == 0 && !f.Has(FlagSkipIfSourceDoesntExist) {
			return nil, fmt.Errorf("file entry %d: no source files match \"%s\"", i, f.Source)
		}
	}

	return placements, nil
}

// splitSource splits a source pattern into its directory and the name
// pattern.
func splitSource(src string) (string, string) {
	src = strings.Trim(strings.ReplaceAll(Normalize(src), `\`, "/"), "/")
	if src == "" {
		return "", "*"
	}
	dir, pattern := path.Split(src)
	return strings.TrimSuffix(dir, "/"), pattern
}

func isPayloadDir(payload []string, dir string) bool {
	for _, p := range payload {
		if _, ok := underDir(p, dir); ok {
			return true
		}
	}
	return false
}

func underDir(p, dir string) (string, bool) {
	if dir == "" {
		return p, true
	}
	if len(p) <= len(dir) || !strings.EqualFold(p[:len(dir)], dir) || p[len(dir)] != '/' {
		return "", false
	}
	return p[len(dir)+1:], true
}

// destinations returns the lower cased set of installed file templates.
func destinations(placements []Placement) map[string]bool {
	out := make(map[string]bool, len(placements))
	for _, p := range placements {
		out[strings.ToLower(p.Dest)] = true
	}
	return out
}
