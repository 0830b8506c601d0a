// Package packaging turns a manifest and a payload into an installer.
// It owns the steps around the engines in pkg/packagekit: checking the
// manifest against the payload, staging, writing the descriptor and
// the build report.
package packaging

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/kolide/kit/fsutil"
	"github.com/mp4-to-gif-converter/packager/pkg/contexts/ctxlog"
	"github.com/mp4-to-gif-converter/packager/pkg/manifest"
	"github.com/mp4-to-gif-converter/packager/pkg/packagekit"
	"github.com/mp4-to-gif-converter/packager/pkg/payload"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

// PackageOptions encapsulates the configuration of a single installer
// build.
type PackageOptions struct {
	Manifest    *manifest.Manifest
	PayloadRoot string
	OutputDir   string // defaults to the manifest's output dir
	Target      Target

	EnginePath     string // ISCC.exe, or the wix bin dir
	DockerImage    string // run the engine under wine
	SkipValidation bool   // skip msi ICE validation
	RenderOnly     bool   // stop once the descriptor is written
	SBOM           bool   // also write a syft sbom of the payload
}

// BuildReport is written next to the installer as <base>.build.json. It
// names every input by digest, so two builds can be compared without
// the artifacts at hand.
type BuildReport struct {
	Target           string `json:"target"`
	Product          string `json:"product"`
	Version          string `json:"version"`
	ManifestDigest   string `json:"manifest_sha256"`
	PayloadDigest    string `json:"payload_sha256"`
	PayloadFiles     int    `json:"payload_files"`
	SBOM             string `json:"sbom,omitempty"`
	SBOMDigest       string `json:"sbom_sha256,omitempty"`
	Descriptor       string `json:"descriptor"`
	DescriptorDigest string `json:"descriptor_sha256"`
	Artifact         string `json:"artifact,omitempty"`
	ArtifactDigest   string `json:"artifact_sha256,omitempty"`
	EngineVersion    string `json:"engine_version,omitempty"`
}

// Build validates the manifest against the payload, writes the engine
// descriptor, and unless RenderOnly is set, compiles it. Everything is
// written to the output dir.
func (p *PackageOptions) Build(ctx context.Context) (*BuildReport, error) {
	ctx, span := trace.StartSpan(ctx, "packaging.Build")
	defer span.End()

	ctx = packagekit.InitContext(ctx)
	logger := log.With(ctxlog.FromContext(ctx), "target", p.Target.String())

	m := p.Manifest
	if m == nil {
		return nil, errors.New("no manifest")
	}

	if err := m.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating manifest")
	}

	set, err := payload.Enumerate(ctx, p.PayloadRoot)
	if err != nil {
		return nil, errors.Wrap(err, "enumerating payload")
	}

	if err := m.ValidateAgainstPayload(set.Paths()); err != nil {
		return nil, errors.Wrap(err, "validating manifest against payload")
	}

	manifestBytes, err := manifest.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "encoding manifest")
	}

	report := &BuildReport{
		Target:         p.Target.String(),
		Product:        m.Product.Name,
		Version:        m.Product.Version,
		ManifestDigest: digest(manifestBytes),
		PayloadDigest:  set.Digest(),
		PayloadFiles:   len(set.Files),
	}

	outDir := p.outputDir()
	if err := os.MkdirAll(outDir, fsutil.DirMode); err != nil {
		return nil, errors.Wrapf(err, "creating output dir %s", outDir)
	}

	if p.SBOM {
		raw, err := payloadSBOM(ctx, set.Root)
		if err != nil {
			return nil, err
		}
		report.SBOM = m.Output.BaseFilename + ".sbom.json"
		report.SBOMDigest = digest(raw)
		if err := os.WriteFile(filepath.Join(outDir, report.SBOM), raw, 0644); err != nil {
			return nil, errors.Wrap(err, "writing sbom")
		}
		level.Debug(logger).Log("msg", "wrote sbom", "sbom", report.SBOM)
	}

	po := &packagekit.PackageOptions{
		Manifest:       m,
		Root:           set.Root,
		EnginePath:     p.EnginePath,
		DockerImage:    p.DockerImage,
		SkipValidation: p.SkipValidation,
	}

	var descriptor bytes.Buffer
	switch p.Target.Package {
	case Iss:
		err = packagekit.RenderInnoSetup(&descriptor, po)
	case Msi:
		err = packagekit.RenderWix(&descriptor, po)
	default:
		err = errors.Errorf("unsupported package %s", p.Target.Package)
	}
	if err != nil {
		return nil, errors.Wrap(err, "rendering descriptor")
	}

	report.Descriptor = m.Output.BaseFilename + "." + p.Target.DescriptorExtension()
	report.DescriptorDigest = digest(descriptor.Bytes())
	if err := os.WriteFile(filepath.Join(outDir, report.Descriptor), descriptor.Bytes(), 0644); err != nil {
		return nil, errors.Wrap(err, "writing descriptor")
	}

	level.Debug(logger).Log(
		"msg", "wrote descriptor",
		"descriptor", report.Descriptor,
		"sha256", report.DescriptorDigest,
	)

	if p.RenderOnly {
		return report, p.writeReport(outDir, report)
	}

	if p.Target.Package == Msi {
		stageDir, err := os.MkdirTemp("", "msi-package-root")
		if err != nil {
			return nil, errors.Wrap(err, "making msi package root")
		}
		defer os.RemoveAll(stageDir)

		if err := stageInstallDir(ctx, m, set, stageDir); err != nil {
			return nil, err
		}
		po.Root = stageDir
	}

	report.Artifact = m.Output.BaseFilename + "." + p.Target.PkgExtension()
	artifactPath := filepath.Join(outDir, report.Artifact)
	if err := p.compile(ctx, po, artifactPath); err != nil {
		return nil, err
	}

	report.ArtifactDigest, err = fileDigest(artifactPath)
	if err != nil {
		return nil, err
	}
	report.EngineVersion, _ = packagekit.GetFromContext(ctx, packagekit.ContextEngineVersionKey)

	level.Info(logger).Log(
		"msg", "built installer",
		"artifact", artifactPath,
		"engine", report.EngineVersion,
	)

	return report, p.writeReport(outDir, report)
}

func (p *PackageOptions) compile(ctx context.Context, po *packagekit.PackageOptions, artifactPath string) error {
	fh, err := os.Create(artifactPath)
	if err != nil {
		return errors.Wrapf(err, "creating %s", artifactPath)
	}

	switch p.Target.Package {
	case Iss:
		err = packagekit.PackageInnoSetup(ctx, fh, po)
	case Msi:
		err = packagekit.PackageWixMSI(ctx, fh, po)
	}
	if cerr := fh.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(artifactPath)
		return errors.Wrapf(err, "packaging %s", p.Target.String())
	}
	return nil
}

// outputDir turns the manifest's windows style output dir into a
// native path.
func (p *PackageOptions) outputDir() string {
	if p.OutputDir != "" {
		return p.OutputDir
	}
	return filepath.FromSlash(strings.ReplaceAll(p.Manifest.Output.Dir, `\`, "/"))
}

func (p *PackageOptions) writeReport(outDir string, report *BuildReport) error {
	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding build report")
	}
	raw = append(raw, '\n')

	reportPath := filepath.Join(outDir, p.Manifest.Output.BaseFilename+".build.json")
	return errors.Wrap(os.WriteFile(reportPath, raw, 0644), "writing build report")
}

// stageInstallDir lays the payload out the way it lands in {app}, which
// is what heat harvests. Files placed anywhere else cannot be expressed
// in the msi.
func stageInstallDir(ctx context.Context, m *manifest.Manifest, set *payload.Set, dest string) error {
	placements, err := m.ExpandFiles(set.Paths())
	if err != nil {
		return errors.Wrap(err, "expanding files")
	}

	copies := make([]payload.Copy, 0, len(placements))
	for _, pl := range placements {
		c, rest := manifest.SplitConstant(pl.Dest)
		if c != manifest.ConstApp || rest == "" {
			return errors.Errorf("msi packages only install into %s, %s goes to %s", manifest.ConstApp, pl.Source, pl.Dest)
		}
		copies = append(copies, payload.Copy{Source: pl.Source, Dest: strings.ReplaceAll(rest, `\`, "/")})
	}

	return errors.Wrap(set.StageAs(ctx, dest, copies), "staging msi package root")
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func fileDigest(path string) (string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "opening %s", path)
	}
	defer fh.Close()

	h := sha256.New()
	if _, err := io.Copy(h, fh); err != nil {
		return "", errors.Wrapf(err, "hashing %s", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
