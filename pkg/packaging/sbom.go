package packaging

import (
	"context"

	"github.com/anchore/syft/syft"
	"github.com/anchore/syft/syft/formats/syftjson"
	"github.com/anchore/syft/syft/pkg/cataloger"
	"github.com/anchore/syft/syft/sbom"
	"github.com/anchore/syft/syft/source"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

// payloadSBOM catalogs what ships in the payload and encodes it as syft
// json.
func payloadSBOM(ctx context.Context, root string) ([]byte, error) {
	_, span := trace.StartSpan(ctx, "packaging.payloadSBOM")
	defer span.End()

	src, err := source.NewFromDirectory(root)
	if err != nil {
		return nil, errors.Wrapf(err, "opening payload %s", root)
	}

	packageCatalog, relationships, linuxDistro, err := syft.CatalogPackages(&src, cataloger.DefaultConfig())
	if err != nil {
		return nil, errors.Wrap(err, "cataloging payload packages")
	}

	s := sbom.SBOM{
		Source: src.Metadata,
		Descriptor: sbom.Descriptor{
			Name: "package-builder",
		},
	}
	s.Artifacts.PackageCatalog = packageCatalog
	s.Relationships = relationships
	s.Artifacts.LinuxDistribution = linuxDistro

	raw, err := syft.Encode(s, syftjson.Format())
	return raw, errors.Wrap(err, "encoding sbom")
}
