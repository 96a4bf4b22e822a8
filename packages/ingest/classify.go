package ingest

import (
	"mime"
	"strings"
)

// BinaryTable lists media types whose bodies are downloaded to a file.
// An entry ending in "/*" matches every subtype.
type BinaryTable []string

var DefaultBinaryTypes = BinaryTable{
	"image/*",
	"audio/*",
	"video/*",
	"font/*",
	"application/octet-stream",
	"application/pdf",
	"application/zip",
	"application/gzip",
	"application/x-gzip",
	"application/x-tar",
	"application/x-7z-compressed",
	"application/vnd.ms-excel",
	"application/msword",
	"application/wasm",
}

// Match reports whether contentType belongs to the table.
func (t BinaryTable) Match(contentType string) bool {
	mt := mediaType(contentType)
	if mt == "" {
		return false
	}
	for _, entry := range t {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if prefix, ok := strings.CutSuffix(entry, "/*"); ok {
			if strings.HasPrefix(mt, prefix+"/") {
				return true
			}
			continue
		}
		if mt == entry {
			return true
		}
	}
	return false
}

// Classify decides how a body with the given content type is consumed.
// Event streams win over the binary table. An empty content type is text.
func Classify(contentType string, binary BinaryTable) Category {
	if strings.Contains(strings.ToLower(contentType), "text/event-stream") {
		return CategorySSE
	}
	if binary.Match(contentType) {
		return CategoryBinary
	}
	return CategoryText
}

// mediaType returns the lower-case media type without parameters.
func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

func isImage(contentType string) bool {
	return strings.HasPrefix(mediaType(contentType), "image/")
}
