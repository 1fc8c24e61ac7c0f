package core

import (
	"errors"
	"fmt"
)

// ErrSchemaChanged is returned when the source header no longer matches
// ExpectedHeader. The run must stop without writing anything.
var ErrSchemaChanged = errors.New("web data structure has changed")

// ExpectedHeader is the exact header row of the CMS crosswalk export.
var ExpectedHeader = []string{
	"MEDICARE SPECIALTY CODE",
	"MEDICARE PROVIDER/SUPPLIER TYPE DESCRIPTION",
	"PROVIDER TAXONOMY CODE",
	"PROVIDER TAXONOMY DESCRIPTION",
}

// ValidateHeader checks that header equals ExpectedHeader exactly, including
// order, case and whitespace.
func ValidateHeader(header []string) error {
	if len(header) != len(ExpectedHeader) {
		return fmt.Errorf("%w: got %d columns, expected %d", ErrSchemaChanged, len(header), len(ExpectedHeader))
	}
	for i, want := range ExpectedHeader {
		if header[i] != want {
			return fmt.Errorf("%w: column %d is %q, expected %q", ErrSchemaChanged, i+1, header[i], want)
		}
	}
	return nil
}
