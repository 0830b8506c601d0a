package packagekit

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"strings"

	"github.com/go-kit/kit/log/level"
	"github.com/mp4-to-gif-converter/packager/pkg/contexts/ctxlog"
	"github.com/mp4-to-gif-converter/packager/pkg/manifest"
	"github.com/mp4-to-gif-converter/packager/pkg/packagekit/wix"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

// WixCodes derives the product GUIDs from the manifest. The upgrade
// code only depends on the app id, so every version of the product
// upgrades every other one.
func WixCodes(m *manifest.Manifest) wix.Codes {
	extraGuidIdentifiers := []string{
		strings.Join(m.Architectures, ","),
		m.Product.Version,
	}

	return wix.Codes{
		UpgradeCode: generateMicrosoftProductCode(m.Product.AppID),
		ProductCode: generateMicrosoftProductCode(m.Product.AppID, extraGuidIdentifiers...),
		PackageCode: generateMicrosoftProductCode(m.Product.AppID, append(extraGuidIdentifiers, "package")...),
	}
}

// RenderWix writes the main wix source for the manifest.
func RenderWix(w io.Writer, po *PackageOptions) error {
	return wix.RenderProduct(w, po.Manifest, WixCodes(po.Manifest))
}

// PackageWixMSI builds an msi from the manifest and the payload in
// po.Root, written to w.
func PackageWixMSI(ctx context.Context, w io.Writer, po *PackageOptions) error {
	ctx, span := trace.StartSpan(ctx, "packagekit.PackageWixMSI")
	defer span.End()

	logger := ctxlog.FromContext(ctx)

	if err := isDirectory(po.Root); err != nil {
		return err
	}

	m := po.Manifest

	var installWXS bytes.Buffer
	if err := RenderWix(&installWXS, po); err != nil {
		return errors.Wrap(err, "rendering product wxs")
	}
	SetInContext(ctx, ContextDescriptorDigestKey, digest(installWXS.Bytes()))

	catalog, err := manifest.ResolveLanguage(m.Language)
	if err != nil {
		return err
	}

	wixArgs := []wix.Opt{
		wix.WithCulture(catalog.WixCulture),
		wix.As32bit(),
	}
	for _, a := range m.Architectures {
		if strings.HasPrefix(a, "x64") || strings.HasPrefix(a, "arm64") {
			wixArgs = append(wixArgs, wix.As64bit())
			break
		}
	}
	if m.Privileges == manifest.PrivilegesLowest {
		// Per-user components are keyed by registry values, and heat
		// keys files by path.
		for _, ice := range []string{"ICE38", "ICE64", "ICE91"} {
			wixArgs = append(wixArgs, wix.SuppressICE(ice))
		}
	}
	if exe := m.Product.ExeName; exe != "" {
		wixArgs = append(wixArgs, wix.RequireFile(exe))
	}
	if po.EnginePath != "" {
		wixArgs = append(wixArgs, wix.WithWix(po.EnginePath))
	}
	if po.DockerImage != "" {
		wixArgs = append(wixArgs, wix.WithDocker(po.DockerImage))
	}
	if po.SkipValidation {
		wixArgs = append(wixArgs, wix.SkipValidation())
	}

	wixTool, err := wix.New(po.Root, installWXS.Bytes(), wixArgs...)
	if err != nil {
		return errors.Wrap(err, "making wixTool")
	}
	if !po.SkipCleanup {
		defer wixTool.Cleanup()
	}
	SetInContext(ctx, ContextBuildDirKey, wixTool.BuildDir())
	level.Debug(logger).Log("msg", "building msi", "builddir", wixTool.BuildDir())

	if err := wixTool.Package(ctx, w); err != nil {
		return errors.Wrap(err, "wix packaging")
	}
	SetInContext(ctx, ContextEngineVersionKey, "wix3")

	return nil
}

// generateMicrosoftProductCode is a stable guid that is used to
// identify the product / sub product / package / version, and
// whatnot. We need to either store them, or generate them in a
// predictable fasion based on a set of inputs. See
// https://docs.microsoft.com/en-us/windows/desktop/Msi/productcode
func generateMicrosoftProductCode(ident1 string, identN ...string) string {
	h := md5.New()
	io.WriteString(h, ident1)
	for _, s := range identN {
		io.WriteString(h, s)
	}

	hash := h.Sum(nil)

	return fmt.Sprintf("%X-%X-%X-%X-%X", hash[0:4], hash[4:6], hash[6:8], hash[8:10], hash[10:16])
}
