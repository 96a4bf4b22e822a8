package ingest

import (
	"mime"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// decodeText converts raw to UTF-8 using the charset parameter of the
// content type. Missing or unknown charsets leave the bytes as they are.
func decodeText(raw []byte, contentType string) string {
	cs := charsetOf(contentType)
	if cs == "" || cs == "utf-8" || cs == "utf8" {
		return string(raw)
	}
	enc, err := htmlindex.Get(cs)
	if err != nil {
		return string(raw)
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

func charsetOf(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(params["charset"]))
}
