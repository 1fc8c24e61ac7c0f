package core

import "sort"

// Finalize sorts and deduplicates the rows of one format table.
//
// Rows are stably sorted by start, so the first row of a start value in
// source order wins. A row is dropped when its start or label is Sentinel or
// when its start equals the start of the row before it in sorted order. The
// survivors are then sorted by (start, label).
//
// The input slice is not modified.
func Finalize(rows []FormatRow) []FormatRow {
	sorted := make([]FormatRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	out := make([]FormatRow, 0, len(sorted))
	for i, row := range sorted {
		if row.Start == Sentinel || row.Label == Sentinel {
			continue
		}
		if i > 0 && sorted[i-1].Start == row.Start {
			continue
		}
		out = append(out, row)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].Label < out[j].Label
	})

	return out
}
