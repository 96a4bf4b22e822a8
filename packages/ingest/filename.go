package ingest

import (
	"mime"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var extensions = map[string]string{
	"application/json":         ".json",
	"application/xml":          ".xml",
	"text/xml":                 ".xml",
	"text/html":                ".html",
	"text/plain":               ".txt",
	"text/csv":                 ".csv",
	"application/pdf":          ".pdf",
	"application/zip":          ".zip",
	"application/gzip":         ".gz",
	"application/octet-stream": ".bin",
	"image/png":                ".png",
	"image/jpeg":               ".jpg",
	"image/gif":                ".gif",
	"image/webp":               ".webp",
	"image/svg+xml":            ".svg",
	"audio/mpeg":               ".mp3",
	"video/mp4":                ".mp4",
}

// ResolveFilename picks a download name for a body. Sources are tried in
// order: the Content-Disposition header, the last URL path segment, and a
// generated name. An extension derived from contentType is appended when
// the chosen name has none.
func ResolveFilename(disposition, rawURL, contentType string) string {
	name := sanitizeFilename(filenameFromDisposition(disposition))
	if name == "" {
		name = sanitizeFilename(filenameFromURL(rawURL))
	}
	if name == "" {
		name = "download-" + uuid.NewString()
	}
	if filepath.Ext(name) == "" {
		name += extensionFor(contentType)
	}
	return name
}

func filenameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	lower := strings.ToLower(header)

	// RFC 5987: filename*=charset'lang'percent-encoded
	if i := strings.Index(lower, "filename*="); i >= 0 {
		v := header[i+len("filename*="):]
		v, _, _ = strings.Cut(v, ";")
		v = strings.Trim(strings.TrimSpace(v), `"`)
		if _, rest, ok := strings.Cut(v, "'"); ok {
			if _, name, ok := strings.Cut(rest, "'"); ok {
				v = name
			}
		}
		if decoded, err := url.PathUnescape(v); err == nil {
			v = decoded
		}
		if v != "" {
			return v
		}
	}

	if i := strings.Index(lower, "filename="); i >= 0 {
		v := strings.TrimSpace(header[i+len("filename="):])
		if strings.HasPrefix(v, `"`) {
			v = v[1:]
			if end := strings.Index(v, `"`); end >= 0 {
				v = v[:end]
			}
			return v
		}
		v, _, _ = strings.Cut(v, ";")
		return strings.TrimSpace(v)
	}
	return ""
}

func filenameFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	path := raw
	if u, err := url.Parse(raw); err == nil {
		path = u.Path
	} else {
		if i := strings.IndexAny(path, "?#"); i >= 0 {
			path = path[:i]
		}
		if _, rest, ok := strings.Cut(path, "://"); ok {
			_, path, _ = strings.Cut(rest, "/")
		}
	}

	segments := strings.Split(path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		seg := segments[i]
		if j := strings.IndexAny(seg, "!?#"); j >= 0 {
			seg = seg[:j]
		}
		if seg != "" {
			return seg
		}
	}
	return ""
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '*', 0:
			return '_'
		}
		return r
	}, name)
	if name == "." || name == ".." {
		return ""
	}
	return name
}

func extensionFor(contentType string) string {
	mt := mediaType(contentType)
	if ext, ok := extensions[mt]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mt); err == nil && len(exts) > 0 {
		return exts[0]
	}
	if strings.HasPrefix(mt, "text/") {
		return ".txt"
	}
	return ".bin"
}
