package ingest

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/restbench/packages/http"
)

// Category is the content class that decides how a body is consumed.
type Category int

const (
	CategoryText Category = iota
	CategoryBinary
	CategorySSE
)

func (c Category) String() string {
	switch c {
	case CategoryBinary:
		return "binary"
	case CategorySSE:
		return "sse"
	default:
		return "text"
	}
}

// BodyKind tells where the body of a Response lives.
type BodyKind int

const (
	// BodyInline holds the decoded text in Body.
	BodyInline BodyKind = iota
	// BodyFile stores the payload at FilePath; Body is a placeholder.
	BodyFile
	// BodyStreaming is an event stream that was never buffered.
	BodyStreaming
)

// LimitKind records which size limit, if any, shaped the body.
type LimitKind int

const (
	LimitNone LimitKind = iota
	// LimitInline means the text was too big to show and went to a file.
	LimitInline
	// LimitHard means the body was rejected outright.
	LimitHard
)

const (
	NoticeInlineLimit = "response exceeds display limit"
	NoticeHardLimit   = "response too large"

	StreamingPlaceholder = "Streaming response (text/event-stream) - not displayable inline"
)

type Response struct {
	StatusCode  int
	Status      string
	Proto       string
	Headers     map[string][]string
	ContentType string
	Category    Category

	BodyKind BodyKind
	Body     string
	FilePath string
	FileName string

	HeaderSize int64
	BodySize   int64
	EventCount int

	IsSSE   bool
	IsImage bool

	Limit  LimitKind
	Notice string
	Err    error

	Duration time.Duration
	Timing   *http.Timing
}

// Header returns the first value of the header named key (case-insensitive).
func (r *Response) Header(key string) string {
	if vs := r.HeaderValues(key); len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// HeaderValues returns every value of the header named key.
func (r *Response) HeaderValues(key string) []string {
	for k, vs := range r.Headers {
		if strings.EqualFold(k, key) {
			return vs
		}
	}
	return nil
}

func (r *Response) IsJSON() bool {
	ct := strings.ToLower(r.ContentType)
	return strings.Contains(ct, "application/json") || strings.Contains(ct, "+json")
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

func (r *Response) IsClientError() bool {
	return r.StatusCode >= 400 && r.StatusCode < 500
}

func (r *Response) IsServerError() bool {
	return r.StatusCode >= 500
}

func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}

// Incomplete reports whether the body ended early.
func (r *Response) Incomplete() bool {
	return errors.Is(r.Err, ErrIncompleteResponse)
}

// Cancelled reports whether the body read was cancelled.
func (r *Response) Cancelled() bool {
	return errors.Is(r.Err, ErrDownloadCancelled)
}

// BodyBytes returns the payload. File bodies are read back from disk;
// streaming and rejected bodies have no payload.
func (r *Response) BodyBytes() ([]byte, error) {
	switch {
	case r.BodyKind == BodyFile && r.FilePath != "":
		return os.ReadFile(r.FilePath)
	case r.BodyKind == BodyInline && r.Limit == LimitNone:
		return []byte(r.Body), nil
	default:
		return nil, nil
	}
}
