package utils

import (
	"path/filepath"
	"strings"
)

// SanitizeFilename reduces a client-supplied name to a safe base name
// for headers and staging paths.
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "\"", "")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "/", "_")
	if name == "" || name == "." || name == ".." {
		return "download"
	}
	return name
}
