package core

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/JonMunkholm/crosswalk/internal/logging"
	"github.com/google/uuid"
)

// ContextCheckInterval is how often (in records) to check for cancellation.
var ContextCheckInterval = 100

// ProgressLogInterval is how often (in records) to log read progress.
var ProgressLogInterval = 1000

// maxLineBytes bounds a single source line.
const maxLineBytes = 1024 * 1024

// Transformed is the in-memory result of cleaning one source.
type Transformed struct {
	Header    []string
	Rows      []Row // cleaned rows, comma placeholder intact
	Tables    []FormatTable
	RawCounts map[string]int // derived rows per format before Finalize
	Stats     CleanStats
	BytesRead int64
}

// Transform validates the header of r, cleans every record and finalizes the
// format tables. Nothing is written anywhere; a changed header returns an
// error wrapping ErrSchemaChanged.
//
// The source is split into lines first and every line is parsed on its own,
// so an unbalanced quote only affects the line it appears on. Quoted fields
// spanning several lines are not supported.
func Transform(ctx context.Context, r io.Reader, size int64, defs []FormatDefinition) (*Transformed, error) {
	logger := logging.FromContext(ctx)
	decoded, counter := NewSourceReader(r, size)

	scanner := bufio.NewScanner(decoded)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("parse csv: header: %w", err)
		}
		return nil, fmt.Errorf("%w: source is empty", ErrSchemaChanged)
	}
	header, err := parseLine(scanner.Text())
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse csv: header: %w", err)
	}
	if err := ValidateHeader(header); err != nil {
		return nil, err
	}

	cleaner := NewCleaner()
	acc := NewAccumulator(defs)
	var rows []Row

	for line := 2; scanner.Scan(); line++ {
		i := line - 2
		if i%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("transform cancelled after %d records: %w", i, err)
			}
		}
		if i > 0 && i%ProgressLogInterval == 0 {
			logger.Debug("reading source", "records", i, "progress_pct", counter.Progress())
		}

		record, err := parseLine(scanner.Text())
		if errors.Is(err, io.EOF) {
			continue // blank line
		}
		if err != nil {
			logger.Warn("skipping malformed record", "line", line, "error", err)
			cleaner.Reject()
			continue
		}

		for _, cleaned := range cleaner.Clean(record) {
			rows = append(rows, cleaned.Clean)
			acc.Add(cleaned)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	raw := make(map[string]int, len(defs))
	for _, def := range defs {
		raw[def.Name] = len(acc.Raw(def.Name))
	}

	return &Transformed{
		Header:    header,
		Rows:      rows,
		Tables:    acc.Tables(),
		RawCounts: raw,
		Stats:     cleaner.Stats(),
		BytesRead: counter.BytesRead,
	}, nil
}

// parseLine parses one source line as a CSV record. A line rejected by the
// strict parser is retried with lazy quotes and kept only when that yields
// a full record; otherwise the strict *csv.ParseError is returned. A blank
// line returns io.EOF.
func parseLine(line string) ([]string, error) {
	record, err := readRecord(line, false)
	if err == nil || errors.Is(err, io.EOF) {
		return record, err
	}

	var parseErr *csv.ParseError
	if !errors.As(err, &parseErr) {
		return nil, err
	}
	if lazy, lazyErr := readRecord(line, true); lazyErr == nil && len(lazy) == NumColumns {
		return lazy, nil
	}
	return nil, err
}

func readRecord(line string, lazyQuotes bool) ([]string, error) {
	cr := csv.NewReader(strings.NewReader(line))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = lazyQuotes
	return cr.Read()
}

// Pipeline wires one crosswalk run: fetch, transform, write CSV, deliver tables.
type Pipeline struct {
	Source    Source
	Sink      Sink
	SourceURL string
	CSVPath   string
	Formats   []FormatDefinition // defaults to every registered format
}

// Run executes the pipeline once. The returned RunInfo is populated as far as
// the run got, also on error.
func (p *Pipeline) Run(ctx context.Context) (*RunInfo, error) {
	run := &RunInfo{
		ID:        uuid.New().String(),
		SourceURL: p.SourceURL,
		CSVPath:   p.CSVPath,
		StartedAt: time.Now(),
	}
	ctx = logging.ContextWithRunID(ctx, run.ID)
	logger := logging.FromContext(ctx)

	defs := p.Formats
	if len(defs) == 0 {
		defs = Formats()
	}

	logger.Info("crosswalk run started", "source", p.SourceURL, "csv", p.CSVPath, "formats", len(defs))

	body, err := p.Source.Fetch(ctx, p.SourceURL)
	if err != nil {
		return run, err
	}

	out, err := Transform(ctx, bytes.NewReader(body), int64(len(body)), defs)
	if err != nil {
		return run, err
	}
	run.Stats = out.Stats
	run.BytesRead = out.BytesRead

	logger.Info("source cleaned",
		"records", out.Stats.Records,
		"rows", out.Stats.EmittedRows,
		"comment_rows", out.Stats.CommentRows,
		"wrong_width", out.Stats.WrongWidth,
		"malformed", out.Stats.Malformed,
		"multi_value", out.Stats.MultiValue,
		"filled_fields", out.Stats.FilledFields,
	)

	written, err := WriteArtifact(p.CSVPath, out.Header, out.Rows)
	if err != nil {
		return run, err
	}
	logger.Info("csv artifact written", "path", p.CSVPath, "rows", written)

	run.TableCounts = make(map[string]int, len(out.Tables))
	for _, t := range out.Tables {
		run.TableCounts[t.Name] = len(t.Rows)
		logger.Info("format table finalized",
			"table", t.Name,
			"label", t.Label,
			"derived", out.RawCounts[t.Name],
			"rows", len(t.Rows),
		)
	}

	run.FinishedAt = time.Now()
	if err := p.Sink.WriteTables(ctx, *run, out.Tables); err != nil {
		return run, fmt.Errorf("write tables: %w", err)
	}

	logger.Info("crosswalk run complete", "duration_ms", time.Since(run.StartedAt).Milliseconds())
	return run, nil
}
