package registry

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Manifest is the subset of the package manifest the publish step needs.
type Manifest struct {
	Package struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
	} `toml:"package"`
}

// parseManifest decodes a TOML package manifest.
func parseManifest(data []byte) (*Manifest, error) {
	manifest := &Manifest{}
	if err := toml.Unmarshal(data, manifest); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	if manifest.Package.Name == "" {
		return nil, fmt.Errorf("manifest has no package name")
	}
	if manifest.Package.Version == "" {
		return nil, fmt.Errorf("manifest has no package version")
	}
	return manifest, nil
}

// checkTagVersion verifies the pushed tag and the manifest version agree.
// Tags carry a leading v by convention; the manifest version does not.
func checkTagVersion(tag, version string) error {
	if tag == "" {
		return nil
	}
	expected := strings.TrimPrefix(tag, "v")
	if expected != version {
		return fmt.Errorf("tag %s does not match manifest version %s", tag, version)
	}
	return nil
}
