package models

import (
	"path/filepath"
	"strings"
)

// DefaultContentType is served for unrecognized extensions.
const DefaultContentType = "application/octet-stream"

var contentTypes = map[string]string{
	".md":       "text/markdown; charset=utf-8",
	".markdown": "text/markdown; charset=utf-8",
	".txt":      "text/plain; charset=utf-8",
	".csv":      "text/csv; charset=utf-8",
	".html":     "text/html; charset=utf-8",
	".css":      "text/css; charset=utf-8",
	".js":       "text/javascript; charset=utf-8",
	".json":     "application/json",
	".yaml":     "application/yaml",
	".yml":      "application/yaml",
	".xml":      "application/xml",
	".pdf":      "application/pdf",
	".zip":      "application/zip",
	".png":      "image/png",
	".jpg":      "image/jpeg",
	".jpeg":     "image/jpeg",
	".gif":      "image/gif",
	".webp":     "image/webp",
	".svg":      "image/svg+xml",
	".ico":      "image/x-icon",
	".bmp":      "image/bmp",
	".avif":     "image/avif",
	".mp4":      "video/mp4",
	".webm":     "video/webm",
	".mp3":      "audio/mpeg",
	".wav":      "audio/wav",
}

// ContentTypeFor guesses a content type from the file extension,
// case-insensitively, falling back to DefaultContentType.
func ContentTypeFor(name string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return DefaultContentType
}
