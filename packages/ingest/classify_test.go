package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		contentType string
		want        Category
	}{
		{"text/event-stream", CategorySSE},
		{"Text/Event-Stream; charset=utf-8", CategorySSE},
		{"image/png", CategoryBinary},
		{"image/svg+xml", CategoryBinary},
		{"audio/ogg", CategoryBinary},
		{"application/octet-stream", CategoryBinary},
		{"application/pdf; name=x", CategoryBinary},
		{"APPLICATION/ZIP", CategoryBinary},
		{"application/json", CategoryText},
		{"text/html; charset=utf-8", CategoryText},
		{"", CategoryText},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.contentType, DefaultBinaryTypes))
		})
	}
}

func TestBinaryTable_Custom(t *testing.T) {
	table := BinaryTable{"application/x-protobuf", "model/*"}
	assert.True(t, table.Match("application/x-protobuf"))
	assert.True(t, table.Match("model/gltf-binary"))
	assert.False(t, table.Match("image/png"))
	assert.False(t, table.Match(""))
}

func TestResolveFilename(t *testing.T) {
	tests := []struct {
		name        string
		disposition string
		url         string
		contentType string
		want        string
	}{
		{
			name:        "rfc 5987 extended form",
			disposition: `attachment; filename*=UTF-8''quarterly%20report.pdf; size=120`,
			contentType: "application/pdf",
			want:        "quarterly report.pdf",
		},
		{
			name:        "rfc 5987 with language tag",
			disposition: `attachment; filename*=UTF-8'en'report.pdf`,
			want:        "report.pdf",
		},
		{
			name:        "rfc 5987 with language tag and encoding",
			disposition: `attachment; filename*=utf-8'de-DE'Bericht%20Q3.pdf; size=9`,
			want:        "Bericht Q3.pdf",
		},
		{
			name:        "extended form wins over simple form",
			disposition: `attachment; filename="plain.txt"; filename*=UTF-8''fancy.txt`,
			want:        "fancy.txt",
		},
		{
			name:        "quoted filename",
			disposition: `attachment; filename="data; v2.csv"`,
			want:        "data; v2.csv",
		},
		{
			name:        "unquoted filename",
			disposition: `attachment; filename=export.bin; creation-date=today`,
			want:        "export.bin",
		},
		{
			name: "url segment",
			url:  "https://cdn.example.com/files/photo.png?sig=abc#top",
			want: "photo.png",
		},
		{
			name:        "url segment with bang suffix and no extension",
			url:         "https://example.com/dl/archive!v2",
			contentType: "application/zip",
			want:        "archive.zip",
		},
		{
			name:        "trailing slash skips empty segment",
			url:         "https://example.com/reports/weekly/",
			contentType: "text/csv",
			want:        "weekly.csv",
		},
		{
			name:        "path separators are neutralised",
			disposition: `attachment; filename="../../etc/passwd"`,
			want:        ".._.._etc_passwd",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveFilename(tt.disposition, tt.url, tt.contentType))
		})
	}
}

func TestResolveFilename_Generated(t *testing.T) {
	name := ResolveFilename("", "https://example.com/", "image/png")
	assert.True(t, strings.HasPrefix(name, "download-"), name)
	assert.True(t, strings.HasSuffix(name, ".png"), name)

	other := ResolveFilename("", "", "image/png")
	assert.NotEqual(t, name, other)
}

func TestDecodeText(t *testing.T) {
	assert.Equal(t, "café", decodeText([]byte("caf\xe9"), "text/plain; charset=ISO-8859-1"))
	assert.Equal(t, "café", decodeText([]byte("café"), "text/plain; charset=utf-8"))
	assert.Equal(t, "plain", decodeText([]byte("plain"), "text/plain; charset=no-such-charset"))
	assert.Equal(t, "plain", decodeText([]byte("plain"), ""))
}

func TestCancelFlag(t *testing.T) {
	var nilFlag *CancelFlag
	assert.False(t, nilFlag.Cancelled())
	nilFlag.Cancel()

	f := NewCancelFlag()
	calls := 0
	f.onCancel(func() { calls++ })
	release := f.onCancel(func() { calls += 10 })
	release()

	f.Cancel()
	f.Cancel()
	assert.True(t, f.Cancelled())
	assert.Equal(t, 1, calls)

	f.onCancel(func() { calls++ })
	assert.Equal(t, 2, calls)
}
