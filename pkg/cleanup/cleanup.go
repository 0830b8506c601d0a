// Package cleanup removes uninstall targets. Every removal is idempotent,
// a path that is already gone is not an error, and nothing outside the
// named path is ever touched.
package cleanup

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

type Kind string

const (
	Files        Kind = "files"
	FilesAndDirs Kind = "filesandordirs"
	DirIfEmpty   Kind = "dirifempty"
)

// RemoveTarget removes what target names. The last path segment may be a
// glob. A match that is, contains, or lies inside one of the keep paths is
// left alone. It returns the paths that were removed.
func RemoveTarget(target string, kind Kind, keep ...string) ([]string, error) {
	if err := checkTarget(target); err != nil {
		return nil, err
	}

	matches, err := filepath.Glob(filepath.Clean(target))
	if err != nil {
		return nil, fmt.Errorf("bad cleanup pattern %s: %w", target, err)
	}

	var removed []string
	for _, m := range matches {
		if overlapsAny(m, keep) {
			continue
		}
		ok, err := removeOne(m, kind)
		if err != nil {
			return removed, err
		}
		if ok {
			removed = append(removed, m)
		}
	}

	return removed, nil
}

func overlapsAny(p string, keep []string) bool {
	fold := filepath.Separator == '\\'
	for _, k := range keep {
		if Overlaps(filepath.Clean(p), filepath.Clean(k), filepath.Separator, fold) {
			return true
		}
	}
	return false
}

func removeOne(p string, kind Kind) (bool, error) {
	// Lstat, so a link is removed as a link and never followed
	info, err := os.Lstat(p)
	if os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("stat %s: %w", p, err)
	}

	switch kind {
	case Files:
		if info.IsDir() {
			return false, nil
		}
		return removeIgnoringMissing(p, os.Remove)
	case FilesAndDirs:
		return removeIgnoringMissing(p, os.RemoveAll)
	case DirIfEmpty:
		if !info.IsDir() {
			return false, nil
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return false, fmt.Errorf("reading %s: %w", p, err)
		}
		if len(entries) > 0 {
			return false, nil
		}
		return removeIgnoringMissing(p, os.Remove)
	}

	return false, fmt.Errorf("unknown cleanup kind %q", kind)
}

func removeIgnoringMissing(p string, remove func(string) error) (bool, error) {
	if err := remove(p); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("removing %s: %w", p, err)
	}
	return true, nil
}

// checkTarget refuses anything that could reach outside the named path.
func checkTarget(target string) error {
	if target == "" {
		return fmt.Errorf("empty cleanup target")
	}
	if !filepath.IsAbs(target) {
		return fmt.Errorf("cleanup target %s is not absolute", target)
	}
	for _, seg := range strings.FieldsFunc(target, isSeparator) {
		if seg == ".." {
			return fmt.Errorf("cleanup target %s contains a parent directory segment", target)
		}
	}

	clean := filepath.Clean(target)
	if filepath.Dir(clean) == clean {
		return fmt.Errorf("refusing to clean up filesystem root %s", target)
	}
	if strings.ContainsAny(filepath.Dir(clean), "*?[") {
		return fmt.Errorf("cleanup target %s may only use wildcards in its last segment", target)
	}

	return nil
}

func isSeparator(r rune) bool {
	return r == '/' || r == '\\' || r == filepath.Separator
}

func isNotEmpty(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}

// RemoveEmptyDirs removes every empty directory below root, deepest
// first, and root itself if it ends up empty.
func RemoveEmptyDirs(root string) error {
	var dirs []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			dirs = append(dirs, p)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking %s: %w", root, err)
	}

	for i := len(dirs) - 1; i >= 0; i-- {
		if isNotEmpty(dirs[i]) {
			continue
		}
		if err := os.Remove(dirs[i]); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", dirs[i], err)
		}
	}
	return nil
}

// Overlaps reports whether a and b are the same path or one contains the
// other. Paths are compared lexically using sep, case insensitively when
// fold is set.
func Overlaps(a, b string, sep rune, fold bool) bool {
	a = strings.TrimRight(a, string(sep))
	b = strings.TrimRight(b, string(sep))
	if a == "" || b == "" {
		return false
	}
	if fold {
		a, b = strings.ToLower(a), strings.ToLower(b)
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	return a == b || strings.HasPrefix(b, a+string(sep))
}
