package storage

import (
	"mime"
	"path/filepath"
	"strings"
)

// Extensions the std mime table misses or maps differently; crates are
// gzipped tarballs.
var contentTypes = map[string]string{
	".toml":  "application/toml",
	".yaml":  "application/yaml",
	".yml":   "application/yaml",
	".md":    "text/plain",
	".txt":   "text/plain",
	".crate": "application/gzip",
	".gz":    "application/gzip",
}

// contentType determines a file's content type from its extension.
func contentType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if known, ok := contentTypes[ext]; ok {
		return known
	}
	if detected := mime.TypeByExtension(ext); detected != "" {
		return detected
	}
	return "application/octet-stream"
}
