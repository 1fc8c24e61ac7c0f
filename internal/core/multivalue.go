package core

import "regexp"

// TaxonomyCodeWidth is the fixed width of a provider taxonomy code.
const TaxonomyCodeWidth = 10

// caseBoundary finds a lowercase letter directly followed by an uppercase one.
// In multi-value cells the descriptions are glued together without a
// separator, so this is where one description ends and the next begins.
var caseBoundary = regexp.MustCompile(`[a-z][A-Z]`)

// isMultiValue reports whether a taxonomy code cell holds several codes.
func isMultiValue(code string) bool {
	n := len([]rune(code))
	return n > TaxonomyCodeWidth && n%TaxonomyCodeWidth == 0
}

// splitCodes cuts a multi-value taxonomy code cell into fixed-width codes.
func splitCodes(code string) []string {
	runes := []rune(code)
	codes := make([]string, 0, len(runes)/TaxonomyCodeWidth)
	for i := 0; i+TaxonomyCodeWidth <= len(runes); i += TaxonomyCodeWidth {
		codes = append(codes, string(runes[i:i+TaxonomyCodeWidth]))
	}
	return codes
}

// splitDescriptions cuts a glued description cell at every case boundary.
// The lowercase letter stays with the left piece. A cell without a boundary
// comes back as a single piece.
func splitDescriptions(desc string) []string {
	var parts []string
	for {
		loc := caseBoundary.FindStringIndex(desc)
		if loc == nil {
			break
		}
		parts = append(parts, desc[:loc[0]+1])
		desc = desc[loc[0]+1:]
	}
	return append(parts, desc)
}

// descriptionFor picks the description of the i-th code. Codes beyond the
// last piece reuse it, so a cell without a boundary applies to every code.
func descriptionFor(parts []string, i int) string {
	return parts[min(i, len(parts)-1)]
}
