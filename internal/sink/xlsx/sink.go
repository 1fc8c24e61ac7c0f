// Package xlsx delivers format tables as an Excel workbook, one sheet per
// format plus a "runs" sheet describing the run that produced them.
package xlsx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/JonMunkholm/crosswalk/internal/core"
	"github.com/JonMunkholm/crosswalk/internal/logging"
	"github.com/xuri/excelize/v2"
)

// RunsSheet holds the run metadata.
const RunsSheet = "runs"

// Header is the header row of every format sheet.
var Header = []any{"fmtname", "start", "label", "type"}

// Sink writes a workbook to a fixed path.
type Sink struct {
	path string
}

// New returns a Sink writing to path.
func New(path string) *Sink {
	return &Sink{path: path}
}

// WriteTables implements core.Sink. The workbook is built in memory and
// saved once, so a failed run leaves any previous workbook untouched.
func (s *Sink) WriteTables(ctx context.Context, run core.RunInfo, tables []core.FormatTable) error {
	logger := logging.WithFields(ctx, "sink", "xlsx", "path", s.path)

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("failed to close workbook", "error", err)
		}
	}()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("write workbook: header style: %w", err)
	}

	defaultSheet := f.GetSheetName(0)
	for i, t := range tables {
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, t.Name); err != nil {
				return fmt.Errorf("write workbook: rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(t.Name); err != nil {
			return fmt.Errorf("write workbook: create sheet %s: %w", t.Name, err)
		}

		if err := writeSheet(f, t.Name, Header, tableRows(t), headerStyle); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(RunsSheet); err != nil {
		return fmt.Errorf("write workbook: create sheet %s: %w", RunsSheet, err)
	}
	if err := writeSheet(f, RunsSheet, []any{"field", "value"}, runRows(run), headerStyle); err != nil {
		return err
	}
	if len(tables) == 0 {
		// The runs sheet was added next to the untouched default sheet.
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return fmt.Errorf("write workbook: drop default sheet: %w", err)
		}
	}
	f.SetActiveSheet(0)

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("write workbook: create directory: %w", err)
	}
	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("write workbook: save %s: %w", s.path, err)
	}

	logger.Info("format workbook written", "sheets", len(tables)+1)
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []any, rows [][]any, style int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write workbook: %s header: %w", sheet, err)
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("write workbook: %s header style: %w", sheet, err)
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write workbook: %s row %d: %w", sheet, i+1, err)
		}
	}

	if err := f.SetColWidth(sheet, "A", "D", 18); err != nil {
		return fmt.Errorf("write workbook: %s widths: %w", sheet, err)
	}
	return nil
}

func tableRows(t core.FormatTable) [][]any {
	rows := make([][]any, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = []any{r.FmtName, r.Start, r.Label, r.Type}
	}
	return rows
}

func runRows(run core.RunInfo) [][]any {
	rows := [][]any{
		{"run_id", run.ID},
		{"source_url", run.SourceURL},
		{"csv_path", run.CSVPath},
		{"started_at", run.StartedAt.UTC().Format(time.RFC3339)},
		{"finished_at", run.FinishedAt.UTC().Format(time.RFC3339)},
		{"bytes_read", run.BytesRead},
		{"records", run.Stats.Records},
		{"skipped", run.Stats.Skipped()},
		{"emitted", run.Stats.EmittedRows},
	}

	names := make([]string, 0, len(run.TableCounts))
	for name := range run.TableCounts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rows = append(rows, []any{"rows." + name, run.TableCounts[name]})
	}
	return rows
}
