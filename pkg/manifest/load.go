package manifest

import (
	"os"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
)

// Load reads a YAML or JSON manifest from disk and applies defaults.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading manifest %s", path)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing manifest %s", path)
	}
	return m, nil
}

// Parse decodes a YAML or JSON manifest and applies defaults.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	m.SetDefaults()
	return &m, nil
}

// Marshal encodes a manifest as YAML.
func Marshal(m *Manifest) ([]byte, error) {
	return yaml.Marshal(m)
}
