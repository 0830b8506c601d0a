//go:build !windows
// +build !windows

package installer

import (
	"os"
	"path/filepath"

	"github.com/mp4-to-gif-converter/packager/pkg/manifest"
)

// DefaultPlatform keeps uninstall entries in the user's config dir.
// There is no per-machine store, admin installs share it.
func DefaultPlatform(_ manifest.PrivilegeLevel) (Platform, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, err
	}
	return NewStorePlatform(filepath.Join(dir, "mp4-to-gif-packager")), nil
}
