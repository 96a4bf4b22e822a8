package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/restbench/packages/http"
	"github.com/abdul-hamid-achik/restbench/packages/sse"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultInlineBytes int64 = 1024 * 1024
	DefaultHardBytes   int64 = 100 * 1024 * 1024

	chunkSize = 32 * 1024
)

// Limits bound how much of a body is shown and how much is accepted at all.
// Zero disables a limit.
type Limits struct {
	InlineBytes int64
	HardBytes   int64
}

func DefaultLimits() Limits {
	return Limits{InlineBytes: DefaultInlineBytes, HardBytes: DefaultHardBytes}
}

type Ingestor struct {
	limits  Limits
	binary  BinaryTable
	tempDir string
	prefix  string
	logger  *zap.Logger
}

type IngestorOption func(*Ingestor)

func WithLimits(l Limits) IngestorOption {
	return func(in *Ingestor) {
		in.limits = l
	}
}

func WithBinaryTypes(t BinaryTable) IngestorOption {
	return func(in *Ingestor) {
		if len(t) > 0 {
			in.binary = t
		}
	}
}

func WithTempDir(dir string) IngestorOption {
	return func(in *Ingestor) {
		in.tempDir = dir
	}
}

// WithPrefix overrides the session prefix carried by every temp file.
func WithPrefix(prefix string) IngestorOption {
	return func(in *Ingestor) {
		if prefix != "" {
			in.prefix = prefix
		}
	}
}

func WithLogger(l *zap.Logger) IngestorOption {
	return func(in *Ingestor) {
		if l != nil {
			in.logger = l
		}
	}
}

func NewIngestor(opts ...IngestorOption) *Ingestor {
	in := &Ingestor{
		limits:  DefaultLimits(),
		binary:  DefaultBinaryTypes,
		tempDir: os.TempDir(),
		prefix:  "restbench-" + uuid.NewString()[:8] + "-",
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

func (in *Ingestor) Limits() Limits {
	return in.limits
}

func (in *Ingestor) Prefix() string {
	return in.prefix
}

func (in *Ingestor) TempDir() string {
	return in.tempDir
}

type ingestOptions struct {
	cancel  *CancelFlag
	onEvent sse.Handler
}

type Option func(*ingestOptions)

func WithCancel(f *CancelFlag) Option {
	return func(o *ingestOptions) {
		o.cancel = f
	}
}

// WithEventHandler receives each event of a server-sent event stream.
func WithEventHandler(h sse.Handler) Option {
	return func(o *ingestOptions) {
		o.onEvent = h
	}
}

// Ingest consumes the wire body and returns the normalized response. The
// wire body is always closed. Failures are recorded on the Response.
func (in *Ingestor) Ingest(wire *http.WireResponse, opts ...Option) *Response {
	o := &ingestOptions{}
	for _, opt := range opts {
		opt(o)
	}

	start := time.Now()
	ct := wire.ContentType()
	resp := &Response{
		StatusCode:  wire.StatusCode,
		Status:      wire.Status,
		Proto:       wire.Proto,
		Headers:     cloneHeaders(wire.Header),
		ContentType: ct,
		Category:    Classify(ct, in.binary),
		HeaderSize:  wire.HeaderBytes(),
		IsImage:     isImage(ct),
		Timing:      wire.Timing,
	}

	body := wire.Body
	if body == nil {
		body = io.NopCloser(strings.NewReader(""))
	}
	defer body.Close()

	declared := wire.DeclaredLength()
	if resp.Category != CategorySSE && in.limits.HardBytes > 0 && declared > in.limits.HardBytes {
		in.logger.Info("rejecting response over download limit",
			zap.String("url", wire.URL),
			zap.Int64("declared", declared),
			zap.Int64("limit", in.limits.HardBytes))
		in.rejectTooLarge(resp)
		resp.Duration = wire.Duration + time.Since(start)
		return resp
	}

	switch resp.Category {
	case CategorySSE:
		in.stream(resp, body, o)
	case CategoryBinary:
		in.download(resp, body, wire, o)
	default:
		in.readText(resp, body, wire, o)
	}

	resp.Duration = wire.Duration + time.Since(start)
	return resp
}

func (in *Ingestor) stream(resp *Response, body io.ReadCloser, o *ingestOptions) {
	resp.IsSSE = true
	resp.BodyKind = BodyStreaming
	resp.Body = StreamingPlaceholder

	// Closing the body is the only way to unblock a pending read. Nothing
	// is written to disk, so there is no partial state to protect.
	release := o.cancel.onCancel(func() { _ = body.Close() })
	defer release()

	counter := &countingReader{r: body}
	handler := o.onEvent
	if handler == nil {
		handler = func(sse.Event) {}
	}
	n, err := sse.Read(counter, handler, sse.WithStop(o.cancel.Cancelled))
	resp.EventCount = n
	resp.BodySize = counter.n

	switch {
	case err == nil:
	case errors.Is(err, sse.ErrStopped) || o.cancel.Cancelled():
		resp.Err = ErrDownloadCancelled
	default:
		resp.Err = fmt.Errorf("%w: %v", ErrIncompleteResponse, err)
	}
	in.logger.Debug("event stream finished",
		zap.Int("events", n),
		zap.Int64("bytes", counter.n),
		zap.Error(resp.Err))
}

func (in *Ingestor) download(resp *Response, body io.Reader, wire *http.WireResponse, o *ingestOptions) {
	name := ResolveFilename(wire.Header.Get("Content-Disposition"), wire.URL, resp.ContentType)
	resp.FileName = name

	n, path, err := in.persist(name, body, wire.DeclaredLength(), o.cancel)
	resp.BodySize = n
	if err != nil {
		in.recordFailure(resp, err)
		return
	}

	resp.BodyKind = BodyFile
	resp.FilePath = path
	resp.Body = fmt.Sprintf("Binary response saved to %s (%d bytes)", name, n)
	in.logger.Debug("binary response saved",
		zap.String("path", path),
		zap.Int64("bytes", n))
}

func (in *Ingestor) readText(resp *Response, body io.Reader, wire *http.WireResponse, o *ingestOptions) {
	var buf bytes.Buffer
	n, err := copyChunks(&buf, body, in.limits.HardBytes, wire.DeclaredLength(), o.cancel)
	resp.BodySize = n
	switch {
	case errors.Is(err, errTooLarge), errors.Is(err, ErrDownloadCancelled):
		in.recordFailure(resp, err)
		return
	case err != nil:
		// Keep what arrived so the user can see where the body broke off.
		resp.Err = err
		resp.BodyKind = BodyInline
		resp.Body = decodeText(buf.Bytes(), resp.ContentType)
		in.logger.Warn("text response incomplete", zap.Int64("bytes", n), zap.Error(err))
		return
	}

	if in.limits.InlineBytes <= 0 || n <= in.limits.InlineBytes {
		resp.BodyKind = BodyInline
		resp.Body = decodeText(buf.Bytes(), resp.ContentType)
		return
	}

	name := ResolveFilename(wire.Header.Get("Content-Disposition"), wire.URL, resp.ContentType)
	resp.FileName = name
	_, path, err := in.persist(name, &buf, int64(buf.Len()), nil)
	if err != nil {
		in.recordFailure(resp, err)
		return
	}
	resp.BodyKind = BodyFile
	resp.FilePath = path
	resp.Limit = LimitInline
	resp.Notice = NoticeInlineLimit
	resp.Body = fmt.Sprintf("Response saved to file (exceeds %d KB display limit)", in.limits.InlineBytes/1024)
}

// persist copies src into a fresh temp file. The file is removed unless the
// copy and the close both succeed.
func (in *Ingestor) persist(name string, src io.Reader, declared int64, cancel *CancelFlag) (n int64, path string, err error) {
	if err := os.MkdirAll(in.tempDir, 0o755); err != nil {
		return 0, "", fmt.Errorf("%w: creating temp dir: %v", ErrIncompleteResponse, err)
	}
	f, err := os.CreateTemp(in.tempDir, in.prefix+"*-"+name)
	if err != nil {
		return 0, "", fmt.Errorf("%w: creating temp file: %v", ErrIncompleteResponse, err)
	}
	tmp := f.Name()

	keep := false
	defer func() {
		if keep {
			return
		}
		_ = f.Close()
		if rmErr := os.Remove(tmp); rmErr != nil && !os.IsNotExist(rmErr) {
			in.logger.Warn("failed to remove partial download", zap.String("path", tmp), zap.Error(rmErr))
		}
	}()

	n, err = copyChunks(f, src, in.limits.HardBytes, declared, cancel)
	if err != nil {
		return n, "", err
	}
	if err := f.Close(); err != nil {
		return n, "", fmt.Errorf("%w: closing %s: %v", ErrIncompleteResponse, filepath.Base(tmp), err)
	}
	keep = true
	return n, tmp, nil
}

func (in *Ingestor) recordFailure(resp *Response, err error) {
	resp.FilePath = ""
	switch {
	case errors.Is(err, errTooLarge):
		in.rejectTooLarge(resp)
	case errors.Is(err, ErrDownloadCancelled):
		resp.BodyKind = BodyInline
		resp.Body = ""
		resp.Err = ErrDownloadCancelled
		in.logger.Info("download cancelled", zap.Int64("bytes", resp.BodySize))
	default:
		resp.BodyKind = BodyInline
		resp.Body = ""
		resp.Err = err
		in.logger.Warn("response body incomplete", zap.Error(err))
	}
}

func (in *Ingestor) rejectTooLarge(resp *Response) {
	resp.BodyKind = BodyInline
	resp.FilePath = ""
	resp.Limit = LimitHard
	resp.Notice = NoticeHardLimit
	resp.Body = fmt.Sprintf("Response too large to download (limit: %d KB)", in.limits.HardBytes/1024)
}

// TempFiles lists files in the temp directory carrying the session prefix.
func (in *Ingestor) TempFiles() ([]string, error) {
	return filepath.Glob(filepath.Join(in.tempDir, in.prefix+"*"))
}

// Cleanup removes every temp file created by this ingestor.
func (in *Ingestor) Cleanup() error {
	files, err := in.TempFiles()
	if err != nil {
		return err
	}
	var errs []error
	for _, f := range files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	if len(files) > 0 {
		in.logger.Debug("removed temp files", zap.Int("count", len(files)))
	}
	return errors.Join(errs...)
}

// copyChunks copies src to dst in fixed-size chunks. The cancel flag is
// checked before every chunk, and the running total is held against limit.
// A body shorter than a declared length is incomplete.
func copyChunks(dst io.Writer, src io.Reader, limit, declared int64, cancel *CancelFlag) (int64, error) {
	buf := make([]byte, chunkSize)
	var written int64
	for {
		if cancel.Cancelled() {
			return written, ErrDownloadCancelled
		}
		nr, rerr := src.Read(buf)
		if nr > 0 {
			if limit > 0 && written+int64(nr) > limit {
				return written, errTooLarge
			}
			nw, werr := dst.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, fmt.Errorf("%w: write failed: %v", ErrIncompleteResponse, werr)
			}
			if nw != nr {
				return written, fmt.Errorf("%w: %v", ErrIncompleteResponse, io.ErrShortWrite)
			}
		}
		if rerr == io.EOF {
			if declared >= 0 && written < declared {
				return written, fmt.Errorf("%w: received %d of %d bytes", ErrIncompleteResponse, written, declared)
			}
			return written, nil
		}
		if rerr != nil {
			if cancel.Cancelled() {
				return written, ErrDownloadCancelled
			}
			return written, fmt.Errorf("%w: %w", ErrIncompleteResponse, rerr)
		}
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func cloneHeaders(h map[string][]string) map[string][]string {
	out := make(map[string][]string, len(h))
	for k, vs := range h {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
