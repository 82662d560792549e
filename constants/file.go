package constants

import "strings"

// AllowedExtensions holds the allowed file extensions for document submission.
// The feed only carries PDFs; anything else is rejected before extraction.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
