package core

// csvout.go writes the cleaned crosswalk artifact.
//
// The artifact dialect is fixed by the consumers of the format directory:
// comma delimiter, every field quoted, single quote as the quote character
// (embedded quotes doubled) and CRLF line endings. encoding/csv always quotes
// with '"' and only when needed, so the writer is implemented here.

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ArtifactQuote is the quote character of the CSV artifact.
const ArtifactQuote = '\''

// QuotedWriter writes records with every field quoted.
type QuotedWriter struct {
	w       *bufio.Writer
	quote   string
	escaped string
}

// NewQuotedWriter returns a writer quoting with ArtifactQuote.
func NewQuotedWriter(w io.Writer) *QuotedWriter {
	q := string(ArtifactQuote)
	return &QuotedWriter{
		w:       bufio.NewWriter(w),
		quote:   q,
		escaped: q + q,
	}
}

// Write writes one record terminated by CRLF.
func (q *QuotedWriter) Write(record []string) error {
	for i, field := range record {
		if i > 0 {
			if err := q.w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := q.w.WriteString(q.quote + strings.ReplaceAll(field, q.quote, q.escaped) + q.quote); err != nil {
			return err
		}
	}
	_, err := q.w.WriteString("\r\n")
	return err
}

// Flush writes any buffered data to the underlying writer.
func (q *QuotedWriter) Flush() error {
	return q.w.Flush()
}

// WriteArtifact writes the header and the cleaned rows (commas restored) to
// path. The file is written to a temporary name in the same directory and
// renamed into place, so an existing artifact is never left half-written.
// It returns the number of data rows written.
func WriteArtifact(path string, header []string, rows []Row) (int, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("write csv: create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("write csv: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op after a successful rename
		_ = os.Remove(tmpName)
	}()

	if _, err := writeRecords(tmp, header, rows); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("write csv: close: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return 0, fmt.Errorf("write csv: move into place: %w", err)
	}

	return len(rows), nil
}

// writeRecords writes the header and the rows (commas restored) to w. On
// error it returns 0: a partially written artifact holds no usable rows.
func writeRecords(w io.Writer, header []string, rows []Row) (int, error) {
	qw := NewQuotedWriter(w)
	if err := qw.Write(header); err != nil {
		return 0, fmt.Errorf("write csv: header: %w", err)
	}
	for i, row := range rows {
		if err := qw.Write(row.Restore().Strings()); err != nil {
			return 0, fmt.Errorf("write csv: row %d: %w", i+1, err)
		}
	}
	if err := qw.Flush(); err != nil {
		return 0, fmt.Errorf("write csv: flush: %w", err)
	}
	return len(rows), nil
}
