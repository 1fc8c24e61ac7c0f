package core

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testHeader = "MEDICARE SPECIALTY CODE,MEDICARE PROVIDER/SUPPLIER TYPE DESCRIPTION,PROVIDER TAXONOMY CODE,PROVIDER TAXONOMY DESCRIPTION\n"

// testSource is a small crosswalk export with a BOM and every row quirk.
var testSource = "\xEF\xBB\xBF" + testHeader +
	"01,Physician/General Practice,208D00000X,General Practice\n" +
	",,207Q00000X,Family Medicine[2]\n" +
	"02,Physician/General Surgery,208600000X,Surgery\n" +
	"[1] See note,,,\n" +
	"A0,\"Hospital, Other\",1223D0001X1223G0001X,Dental Public HealthGeneral Practice\n" +
	"03,Bad,row\n"

type fakeSource struct {
	body  string
	err   error
	calls int
}

func (f *fakeSource) Fetch(_ context.Context, _ string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.body), nil
}

type fakeSink struct {
	run    RunInfo
	tables []FormatTable
	calls  int
	err    error
}

func (f *fakeSink) WriteTables(_ context.Context, run RunInfo, tables []FormatTable) error {
	f.calls++
	f.run = run
	f.tables = tables
	return f.err
}

func (f *fakeSink) table(name string) []FormatRow {
	for _, t := range f.tables {
		if t.Name == name {
			return t.Rows
		}
	}
	return nil
}

func newTestPipeline(t *testing.T, body string) (*Pipeline, *fakeSink) {
	t.Helper()
	sink := &fakeSink{}
	return &Pipeline{
		Source:    &fakeSource{body: body},
		Sink:      sink,
		SourceURL: "https://example.test/rows.csv",
		CSVPath:   filepath.Join(t.TempDir(), "cms_rendspec_taxrend_taxtype.csv"),
	}, sink
}

func TestPipeline_Run(t *testing.T) {
	p, sink := newTestPipeline(t, testSource)

	run, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if run.ID == "" {
		t.Error("run ID not set")
	}
	if sink.calls != 1 || sink.run.ID != run.ID {
		t.Fatalf("sink called %d times with run %q", sink.calls, sink.run.ID)
	}

	stats := run.Stats
	if stats.Records != 6 || stats.CommentRows != 1 || stats.WrongWidth != 1 || stats.MultiValue != 1 || stats.EmittedRows != 5 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if run.BytesRead != int64(len(testSource)) {
		t.Errorf("BytesRead = %d, want %d", run.BytesRead, len(testSource))
	}

	checkTable(t, sink.table("rendspec"), [][2]string{
		{"01", "Physician/General Practice"},
		{"02", "Physician/General Surgery"},
		{"A0", "Hospital, Other"},
	})
	checkTable(t, sink.table("taxrend"), [][2]string{
		{"1223D0001X", "A0"},
		{"1223G0001X", "A0"},
		{"207Q00000X", "01"},
		{"208600000X", "02"},
		{"208D00000X", "01"},
	})
	checkTable(t, sink.table("taxtype"), [][2]string{
		{"1223D0001X", "Dental Public Health"},
		{"1223G0001X", "General Practice"},
		{"207Q00000X", "Family Medicine"},
		{"208600000X", "Surgery"},
		{"208D00000X", "General Practice"},
	})
	if run.TableCounts["taxrend"] != 5 {
		t.Errorf("TableCounts = %v", run.TableCounts)
	}

	data, err := os.ReadFile(p.CSVPath)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\r\n"), "\r\n")
	if len(lines) != 6 {
		t.Fatalf("artifact has %d lines, want 6: %q", len(lines), lines)
	}
	if lines[0] != "'MEDICARE SPECIALTY CODE','MEDICARE PROVIDER/SUPPLIER TYPE DESCRIPTION','PROVIDER TAXONOMY CODE','PROVIDER TAXONOMY DESCRIPTION'" {
		t.Errorf("header line = %q", lines[0])
	}
	if lines[2] != "'N/A','N/A','207Q00000X','Family Medicine'" {
		t.Errorf("carry-forward row = %q", lines[2])
	}
	if lines[5] != "'A0','Hospital, Other','1223G0001X','General Practice'" {
		t.Errorf("split row = %q", lines[5])
	}
}

func checkTable(t *testing.T, rows []FormatRow, want [][2]string) {
	t.Helper()
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d: %+v", len(rows), len(want), rows)
	}
	for i, w := range want {
		if rows[i].Start != w[0] || rows[i].Label != w[1] {
			t.Errorf("row %d = (%q, %q), want (%q, %q)", i, rows[i].Start, rows[i].Label, w[0], w[1])
		}
		if rows[i].Type != FormatType {
			t.Errorf("row %d type = %q", i, rows[i].Type)
		}
	}
}

func TestPipeline_SchemaChangeWritesNothing(t *testing.T) {
	body := "SPECIALTY,DESCRIPTION,TAXONOMY,TAXONOMY DESCRIPTION\n01,General Practice,208D00000X,General Practice\n"
	p, sink := newTestPipeline(t, body)

	_, err := p.Run(context.Background())
	if !errors.Is(err, ErrSchemaChanged) {
		t.Fatalf("Run() error = %v, want ErrSchemaChanged", err)
	}
	if sink.calls != 0 {
		t.Error("sink must not be called after a schema change")
	}
	if _, err := os.Stat(p.CSVPath); !os.IsNotExist(err) {
		t.Errorf("csv artifact should not exist, stat err = %v", err)
	}
}

func TestPipeline_EmptySource(t *testing.T) {
	p, sink := newTestPipeline(t, "")

	_, err := p.Run(context.Background())
	if !errors.Is(err, ErrSchemaChanged) {
		t.Fatalf("Run() error = %v, want ErrSchemaChanged", err)
	}
	if sink.calls != 0 {
		t.Error("sink must not be called for an empty source")
	}
}

func TestPipeline_HeaderOnly(t *testing.T) {
	p, sink := newTestPipeline(t, testHeader)

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(sink.tables) != 3 {
		t.Fatalf("expected 3 tables, got %d", len(sink.tables))
	}
	for _, tbl := range sink.tables {
		if len(tbl.Rows) != 0 {
			t.Errorf("table %s has %d rows, want 0", tbl.Name, len(tbl.Rows))
		}
	}
}

func TestPipeline_FetchError(t *testing.T) {
	sink := &fakeSink{}
	p := &Pipeline{
		Source:  &fakeSource{err: errors.New("fetch source: unexpected status 503 Service Unavailable")},
		Sink:    sink,
		CSVPath: filepath.Join(t.TempDir(), "out.csv"),
	}

	if _, err := p.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if sink.calls != 0 {
		t.Error("sink must not be called when the fetch fails")
	}
}

func TestPipeline_SinkError(t *testing.T) {
	p, sink := newTestPipeline(t, testSource)
	sink.err = errors.New("connection reset by peer")

	_, err := p.Run(context.Background())
	if err == nil || !strings.HasPrefix(err.Error(), "write tables:") {
		t.Fatalf("Run() error = %v, want write tables error", err)
	}
	if got := MapError(err).Code; got != "DB005" {
		t.Errorf("MapError code = %q, want DB005", got)
	}
}

func TestTransform_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Transform(ctx, strings.NewReader(testSource), int64(len(testSource)), Formats())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Transform() error = %v, want context.Canceled", err)
	}
}

func TestTransform_SelectedFormats(t *testing.T) {
	var defs []FormatDefinition
	for _, def := range Formats() {
		if def.Name == "taxtype" {
			defs = append(defs, def)
		}
	}

	out, err := Transform(context.Background(), strings.NewReader(testSource), 0, defs)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if len(out.Tables) != 1 || out.Tables[0].Name != "taxtype" {
		t.Errorf("unexpected tables: %+v", out.Tables)
	}
	if out.RawCounts["taxtype"] != 5 {
		t.Errorf("RawCounts = %v", out.RawCounts)
	}
}

func TestTransform_BadQuoteOnlyAffectsItsLine(t *testing.T) {
	body := testHeader +
		"01,\"abc\"def,x,y\n" +
		"02,a,b,c\n" +
		"03,\"a\"\"b\" ,x,y\n" +
		"04,d,e,f\r\n" +
		"05,abc\"def,x,y\n" +
		"\n"

	out, err := Transform(context.Background(), strings.NewReader(body), int64(len(body)), Formats())
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}

	if out.Stats.Malformed != 2 {
		t.Errorf("Malformed = %d, want 2", out.Stats.Malformed)
	}
	if out.Stats.Records != 5 || out.Stats.EmittedRows != 3 {
		t.Errorf("unexpected stats: %+v", out.Stats)
	}

	var codes []string
	for _, row := range out.Rows {
		codes = append(codes, row[ColSpecialtyCode])
	}
	if strings.Join(codes, ",") != "02,04,05" {
		t.Fatalf("kept rows = %v, want [02 04 05]", codes)
	}
	if got := out.Rows[1][ColTaxonomyDesc]; got != "f" {
		t.Errorf("CRLF line desc = %q, want f", got)
	}
	if got := out.Rows[2][ColSpecialtyDesc]; got != `abc"def` {
		t.Errorf("bare quote desc = %q, want abc\"def", got)
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    []string
		wantErr bool
	}{
		{name: "plain", line: "01,a,b,c", want: []string{"01", "a", "b", "c"}},
		{name: "quoted comma", line: `A0,"Hospital, Other",x,y`, want: []string{"A0", "Hospital, Other", "x", "y"}},
		{name: "bare quote", line: `05,abc"def,x,y`, want: []string{"05", `abc"def`, "x", "y"}},
		{name: "text after closing quote", line: `01,"abc"def,x,y`, wantErr: true},
		{name: "short row", line: "01,a", want: []string{"01", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLine(tt.line)
			if tt.wantErr {
				var parseErr *csv.ParseError
				if !errors.As(err, &parseErr) {
					t.Fatalf("parseLine() error = %v, want *csv.ParseError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseLine() error = %v", err)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("parseLine() = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := parseLine(""); !errors.Is(err, io.EOF) {
		t.Errorf("parseLine(\"\") error = %v, want io.EOF", err)
	}
}
