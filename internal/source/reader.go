package source

// reader.go provides the streaming transforms applied to uploaded and on-disk
// tables before CSV parsing.
//
//   - a byte order mark is stripped; UTF-16 files with a BOM are decoded
//   - invalid UTF-8 sequences are replaced with U+FFFD
//   - bytes read are counted for logging and size limits

import (
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// NewTextReader wraps r so that it yields valid UTF-8 without a BOM.
func NewTextReader(r io.Reader) io.Reader {
	return transform.NewReader(r, transform.Chain(
		unicode.BOMOverride(transform.Nop),
		runes.ReplaceIllFormed(),
	))
}

// CountingReader tracks bytes read from the underlying reader.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
}

// NewCountingReader creates a CountingReader.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{reader: r}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}
