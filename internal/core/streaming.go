package core

// streaming.go prepares the raw download for the CSV reader.
//
// The CMS export is UTF-8, frequently with the byte order mark Excel adds
// ("utf-8-sig"). NewSourceReader handles both through x/text:
//
//   - BOMOverride drops a UTF-8 BOM (and honours a UTF-16 BOM if one appears)
//   - the UTF-8 decoder replaces invalid sequences with U+FFFD
//   - CountingReader tracks bytes consumed for the run log

import (
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CountingReader wraps an io.Reader to track bytes read.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
	Total     int64 // If known (0 if unknown)
}

// NewCountingReader creates a counting reader with optional total size.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{
		reader: r,
		Total:  total,
	}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// Progress returns the read progress as a percentage (0-100).
// Returns 0 if total is unknown.
func (r *CountingReader) Progress() int {
	if r.Total <= 0 {
		return 0
	}
	return int(r.BytesRead * 100 / r.Total)
}

// NewSourceReader decodes BOM-prefixed or plain UTF-8 from r.
//
// Counting wraps the raw bytes, so BytesRead matches the download size.
func NewSourceReader(r io.Reader, totalSize int64) (io.Reader, *CountingReader) {
	counter := NewCountingReader(r, totalSize)
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	return transform.NewReader(counter, decoder), counter
}
