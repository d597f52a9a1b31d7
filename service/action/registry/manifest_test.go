package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseManifest(t *testing.T) {
	testCases := []struct {
		description string
		data        string
		expectErr   bool
		name        string
		version     string
	}{
		{
			description: "valid manifest",
			data: `
[package]
name = "widgets"
version = "1.2.3"
edition = "2021"

[dependencies]
serde = "1"
`,
			name:    "widgets",
			version: "1.2.3",
		},
		{
			description: "missing version",
			data:        "[package]\nname = \"widgets\"\n",
			expectErr:   true,
		},
		{
			description: "missing package",
			data:        "[dependencies]\nserde = \"1\"\n",
			expectErr:   true,
		},
		{
			description: "malformed toml",
			data:        "[package\n",
			expectErr:   true,
		},
	}
	for _, testCase := range testCases {
		manifest, err := parseManifest([]byte(testCase.data))
		if testCase.expectErr {
			assert.Error(t, err, testCase.description)
			continue
		}
		if !assert.NoError(t, err, testCase.description) {
			continue
		}
		assert.Equal(t, testCase.name, manifest.Package.Name, testCase.description)
		assert.Equal(t, testCase.version, manifest.Package.Version, testCase.description)
	}
}

func TestCheckTagVersion(t *testing.T) {
	assert.NoError(t, checkTagVersion("v1.2.3", "1.2.3"))
	assert.NoError(t, checkTagVersion("1.2.3", "1.2.3"))
	assert.NoError(t, checkTagVersion("", "1.2.3"))
	assert.Error(t, checkTagVersion("v1.2.4", "1.2.3"))
}

func TestIsAlreadyPublished(t *testing.T) {
	assert.True(t, isAlreadyPublished("error: crate version `1.2.3` is already uploaded"))
	assert.True(t, isAlreadyPublished("crate widgets@1.2.3 already exists on crates.io index"))
	assert.False(t, isAlreadyPublished("error: failed to verify package tarball"))
}
