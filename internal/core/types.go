package core

import (
	"context"
	"time"
)

// Sentinel replaces a field that was empty in the source.
const Sentinel = "N/A"

// FormatType is the type flag of every format row (character format).
const FormatType = "C"

// Column positions in a crosswalk record.
const (
	ColSpecialtyCode = iota
	ColSpecialtyDesc
	ColTaxonomyCode
	ColTaxonomyDesc

	NumColumns
)

// Row is one crosswalk record in source column order.
type Row [NumColumns]string

// CleanedRow is the result of cleaning one source record (or one chunk of a
// multi-value record).
//
// Clean holds the emitted values, with Sentinel for empty fields. Filled holds
// the same values with empty fields carried forward from the previous row.
// Both still contain the comma placeholder; use Restore before emitting.
type CleanedRow struct {
	Clean  Row
	Filled Row
	Split  bool // produced by splitting a multi-value taxonomy cell
}

// FormatRow is one entry of a format table.
type FormatRow struct {
	FmtName string
	Start   string
	Label   string
	Type    string
}

// FormatTable is a named, finalized format table.
type FormatTable struct {
	Name  string
	Label string // description of the format, from its FormatDefinition
	Rows  []FormatRow
}

// CleanStats counts what the cleaner did with the source records.
type CleanStats struct {
	Records       int // data records read (header excluded)
	CommentRows   int // skipped: bracketed annotation in the first cell
	WrongWidth    int // skipped: field count other than NumColumns
	Malformed     int // skipped: record the CSV reader could not parse
	MultiValue    int // records whose taxonomy cell held several codes
	EmittedRows   int // cleaned rows written to the CSV artifact
	FilledFields  int // empty fields replaced by Sentinel / carry-forward
	FootnotesSeen int // fields that had footnote markers removed
}

// Skipped returns the number of records dropped by the cleaner.
func (s CleanStats) Skipped() int {
	return s.CommentRows + s.WrongWidth + s.Malformed
}

// RunInfo describes one crosswalk run. Sinks may persist it next to the tables.
type RunInfo struct {
	ID          string
	SourceURL   string
	CSVPath     string
	StartedAt   time.Time
	FinishedAt  time.Time
	BytesRead   int64
	Stats       CleanStats
	TableCounts map[string]int
}

// Sink receives the finalized format tables of a run in one write session.
// Implementations must either store all tables or none.
type Sink interface {
	WriteTables(ctx context.Context, run RunInfo, tables []FormatTable) error
}
