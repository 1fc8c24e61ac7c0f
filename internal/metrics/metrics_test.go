package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/crosswalk/internal/core"
)

func TestRecorder_Success(t *testing.T) {
	r := New()
	r.Observe(&core.RunInfo{
		StartedAt:   time.Now().Add(-2 * time.Second),
		BytesRead:   4096,
		Stats:       core.CleanStats{EmittedRows: 12, CommentRows: 3},
		TableCounts: map[string]int{"rendspec": 5, "taxtype": 9},
	}, nil)

	path := filepath.Join(t.TempDir(), "crosswalk.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)

	for _, want := range []string{
		`crosswalk_table_rows{table="rendspec"} 5`,
		`crosswalk_table_rows{table="taxtype"} 9`,
		`crosswalk_records{outcome="emitted"} 12`,
		`crosswalk_records{outcome="comment"} 3`,
		`crosswalk_source_bytes 4096`,
		`crosswalk_last_success_timestamp_seconds`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("textfile missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "crosswalk_run_failed{") {
		t.Error("successful run should not report a failure")
	}
}

func TestRecorder_Failure(t *testing.T) {
	r := New()
	r.Observe(nil, core.ErrSchemaChanged)

	path := filepath.Join(t.TempDir(), "crosswalk.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)

	if !strings.Contains(out, `crosswalk_run_failed{code="SRC001"} 1`) {
		t.Errorf("textfile missing failure code:\n%s", out)
	}
	if !strings.Contains(out, "crosswalk_last_success_timestamp_seconds 0") {
		t.Errorf("last success should stay unset:\n%s", out)
	}
}

func TestRecorder_WriteError(t *testing.T) {
	err := New().WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"))
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
	var pathErr *os.PathError
	if !errors.As(err, &pathErr) {
		t.Errorf("expected a wrapped *os.PathError, got %T", err)
	}
}
