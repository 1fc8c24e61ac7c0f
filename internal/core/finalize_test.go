package core

import (
	"testing"

	"github.com/brianvoe/gofakeit/v6"
)

func fmtRow(start, label string) FormatRow {
	return FormatRow{FmtName: "taxrend", Start: start, Label: label, Type: FormatType}
}

func TestFinalize(t *testing.T) {
	input := []FormatRow{
		fmtRow("208D00000X", "01"),
		fmtRow("207Q00000X", "08"),
		fmtRow(Sentinel, "01"),
		fmtRow("208D00000X", "99"), // later duplicate, dropped
		fmtRow("1223D0001X", Sentinel),
		fmtRow("1223G0001X", "A0"),
	}

	got := Finalize(input)

	want := []FormatRow{
		fmtRow("1223G0001X", "A0"),
		fmtRow("207Q00000X", "08"),
		fmtRow("208D00000X", "01"),
	}
	if len(got) != len(want) {
		t.Fatalf("Finalize() returned %d rows, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	if input[0].Start != "208D00000X" || input[3].Label != "99" {
		t.Error("Finalize must not modify its input")
	}
}

func TestFinalize_FirstOccurrenceClaimsStart(t *testing.T) {
	// The first row of a start has a Sentinel label and is dropped; the
	// second still follows an equal start in sorted order.
	got := Finalize([]FormatRow{
		fmtRow("207Q00000X", Sentinel),
		fmtRow("207Q00000X", "08"),
	})
	if len(got) != 0 {
		t.Errorf("expected no rows, got %v", got)
	}
}

func TestFinalize_Empty(t *testing.T) {
	if got := Finalize(nil); len(got) != 0 {
		t.Errorf("Finalize(nil) = %v", got)
	}
}

func TestFinalize_Invariants(t *testing.T) {
	faker := gofakeit.New(42)
	codes := []string{"01", "02", "A0", "208D00000X", "207Q00000X", Sentinel}

	var input []FormatRow
	for i := 0; i < 200; i++ {
		label := faker.Word()
		if faker.Number(1, 10) == 1 {
			label = Sentinel
		}
		input = append(input, fmtRow(faker.RandomString(codes), label))
	}

	got := Finalize(input)

	firstLabel := make(map[string]string)
	for _, r := range input {
		if _, ok := firstLabel[r.Start]; !ok {
			firstLabel[r.Start] = r.Label
		}
	}

	seen := make(map[string]bool)
	for i, r := range got {
		if r.Start == Sentinel || r.Label == Sentinel {
			t.Errorf("row %d holds the sentinel: %+v", i, r)
		}
		if seen[r.Start] {
			t.Errorf("duplicate start %q", r.Start)
		}
		seen[r.Start] = true
		if i > 0 && got[i-1].Start > r.Start {
			t.Errorf("rows out of order at %d", i)
		}
		if r.Label != firstLabel[r.Start] {
			t.Errorf("start %q kept label %q, want first occurrence %q", r.Start, r.Label, firstLabel[r.Start])
		}
	}
}
