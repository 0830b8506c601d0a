package packagekit

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/mp4-to-gif-converter/packager/pkg/manifest"
)

// PackageOptions is the superset of all packaging options. Not all
// engines will support all options.
type PackageOptions struct {
	Manifest *manifest.Manifest
	Root     string // payload directory, laid out as the install dir for msi

	EnginePath     string // ISCC.exe, or the wix bin dir
	DockerImage    string // run the engine under wine in this image
	SkipValidation bool   // skip light's ICE validation, needed under wine
	SkipCleanup    bool   // keep the engine's temp dirs
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
