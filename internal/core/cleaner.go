package core

// cleaner.go applies the row rules of the CMS crosswalk export.
//
// The export has a few quirks the rules below account for:
//   - annotation rows whose first cell starts with "[" (e.g. "[1] See note")
//   - descriptions containing commas, sometimes wrapped in single quotes
//   - rows listing several taxonomy codes glued together in one cell
//   - footnote markers such as "[12]" inside any field
//   - blank cells meaning "same as the row above"

import (
	"regexp"
	"strings"
)

// commaPlaceholder stands in for literal commas while a row is being cleaned.
// It is a control character that does not occur in the source text, so
// Restore maps it back without touching genuine periods or other punctuation.
const commaPlaceholder = "\u001f"

// footnoteMarker matches bracketed reference numbers like "[1]" or "[12]".
var footnoteMarker = regexp.MustCompile(`\[[0-9]+\]`)

// Cleaner turns source records into cleaned rows. It owns the carry-forward
// state, so one Cleaner must see the records of a source in order.
type Cleaner struct {
	prior Row
	stats CleanStats
}

// NewCleaner returns a Cleaner whose carry-forward state is all Sentinel.
// Blank cells before the first populated row therefore fill to Sentinel and
// are dropped by Finalize.
func NewCleaner() *Cleaner {
	c := &Cleaner{}
	for i := range c.prior {
		c.prior[i] = Sentinel
	}
	return c
}

// Stats returns the counters accumulated so far.
func (c *Cleaner) Stats() CleanStats {
	return c.stats
}

// Reject counts a record the CSV reader could not parse.
func (c *Cleaner) Reject() {
	c.stats.Records++
	c.stats.Malformed++
}

// Clean applies the row rules to one data record. It returns no rows for a
// skipped record, one row for a plain record and one row per code for a
// multi-value record.
func (c *Cleaner) Clean(record []string) []CleanedRow {
	c.stats.Records++

	if len(record) != NumColumns {
		c.stats.WrongWidth++
		return nil
	}
	if isCommentRow(record[ColSpecialtyCode]) {
		c.stats.CommentRows++
		return nil
	}

	var row Row
	for i, field := range record {
		row[i] = protectCommas(field)
	}

	if !isMultiValue(row[ColTaxonomyCode]) {
		return []CleanedRow{c.fill(row, false)}
	}

	c.stats.MultiValue++
	codes := splitCodes(row[ColTaxonomyCode])
	descs := splitDescriptions(row[ColTaxonomyDesc])

	out := make([]CleanedRow, 0, len(codes))
	for i, code := range codes {
		chunk := row
		chunk[ColTaxonomyCode] = code
		chunk[ColTaxonomyDesc] = descriptionFor(descs, i)
		out = append(out, c.fill(chunk, true))
	}
	return out
}

// fill strips footnotes, substitutes Sentinel for empty fields and carries
// the previous filled row forward into the Filled copy.
func (c *Cleaner) fill(row Row, split bool) CleanedRow {
	var clean, filled Row

	for i, v := range row {
		if stripped := stripFootnotes(v); stripped != v {
			c.stats.FootnotesSeen++
			v = stripped
		}

		if strings.TrimSpace(v) == "" {
			c.stats.FilledFields++
			clean[i] = Sentinel
			filled[i] = c.prior[i]
			continue
		}
		clean[i] = v
		filled[i] = v
	}

	c.prior = filled
	c.stats.EmittedRows++
	return CleanedRow{Clean: clean, Filled: filled, Split: split}
}

// stripFootnotes removes footnote markers until none are left, so nested
// markers like "[1[2]]" go away completely.
func stripFootnotes(s string) string {
	for {
		stripped := footnoteMarker.ReplaceAllString(s, "")
		if stripped == s {
			return s
		}
		s = stripped
	}
}

// isCommentRow reports whether the first cell is a bracketed annotation.
func isCommentRow(first string) bool {
	return strings.HasPrefix(strings.TrimSpace(first), "[")
}

// protectCommas replaces commas with the placeholder. Fields carrying a comma
// are sometimes wrapped in single quotes by the export; those are dropped.
func protectCommas(field string) string {
	if !strings.Contains(field, ",") {
		return field
	}
	return strings.ReplaceAll(strings.Trim(field, "'"), ",", commaPlaceholder)
}

// restoreCommas reverses protectCommas.
func restoreCommas(s string) string {
	return strings.ReplaceAll(s, commaPlaceholder, ",")
}

// Restore returns the row with literal commas put back.
func (r Row) Restore() Row {
	var out Row
	for i, v := range r {
		out[i] = restoreCommas(v)
	}
	return out
}

// Strings returns the row as a slice, e.g. for a CSV writer.
func (r Row) Strings() []string {
	return r[:]
}
