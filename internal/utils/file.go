package utils

import (
	"mime"
	"path/filepath"
	"strings"
)

// extensionMIME maps image extensions to MIME types for platforms where the
// system mime table is missing or incomplete.
var extensionMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// GuessImageMIME guesses the MIME type of a file from its extension, the way
// upload forms do. Returns "" when the extension is unknown.
func GuessImageMIME(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return ""
	}
	if m, ok := extensionMIME[ext]; ok {
		return m
	}
	m := mime.TypeByExtension(ext)
	if m == "" {
		return ""
	}
	// TypeByExtension may append parameters ("text/html; charset=utf-8").
	if base, _, err := mime.ParseMediaType(m); err == nil {
		return base
	}
	return m
}

// IsRemoteRef reports whether an image reference points at a remote HTTP(S)
// resource rather than the local filesystem.
func IsRemoteRef(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}
