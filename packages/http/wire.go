package http

import (
	"io"
	"net/http"
	"strings"
	"time"
)

// Timing is connection metadata collected while the request ran. It is
// passed through to the normalized response untouched.
type Timing struct {
	DNSLookup    time.Duration
	Connect      time.Duration
	TLSHandshake time.Duration
	FirstByte    time.Duration
	RemoteAddr   string
	ReusedConn   bool
}

// WireResponse is a raw response as seen by the transport. Body is a
// single-pass stream owned by whoever consumes it. ContentLength is -1 when
// the server did not declare one and is advisory otherwise.
type WireResponse struct {
	Method        string
	StatusCode    int
	Status        string
	Proto         string
	Header        http.Header
	Body          io.ReadCloser
	ContentLength int64
	URL           string
	Duration      time.Duration
	Timing        *Timing
}

func (w *WireResponse) ContentType() string {
	if w.Header == nil {
		return ""
	}
	return w.Header.Get("Content-Type")
}

// DeclaredLength is the number of body bytes the server promised, or -1 when
// no body can follow: HEAD requests and 1xx, 204 and 304 statuses carry a
// Content-Length that describes some other representation.
func (w *WireResponse) DeclaredLength() int64 {
	if w.Method == http.MethodHead {
		return -1
	}
	switch {
	case w.StatusCode >= 100 && w.StatusCode < 200,
		w.StatusCode == http.StatusNoContent,
		w.StatusCode == http.StatusNotModified:
		return -1
	}
	return w.ContentLength
}

// HeaderBytes approximates the size of the status line and header block on
// the wire.
func (w *WireResponse) HeaderBytes() int64 {
	n := int64(len(w.Proto) + len(w.Status) + 3)
	for k, vs := range w.Header {
		for _, v := range vs {
			n += int64(len(k) + len(v) + 4)
		}
	}
	return n + 2
}

// NewWireResponse builds a WireResponse from a body string. It is mostly
// useful for feeding canned responses to the ingest pipeline.
func NewWireResponse(status int, header http.Header, body string) *WireResponse {
	if header == nil {
		header = http.Header{}
	}
	return &WireResponse{
		StatusCode:    status,
		Status:        http.StatusText(status),
		Proto:         "HTTP/1.1",
		Header:        header,
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
	}
}
