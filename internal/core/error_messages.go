// # Error Codes Reference
//
// This file maps technical errors to operator messages with codes. A failed
// run logs the coded message next to the technical error.
//
// # Source Errors (SRC001-SRC099)
//
//	SRC001 - Upstream format changed: the crosswalk header differs from the expected columns
//	         Action: Review the new CMS layout before adjusting the cleaning rules
//	         Patterns: "web data structure has changed"
//
//	SRC002 - Download rejected: the CMS endpoint answered with an error status
//	         Action: Check the dataset id or SOURCE_URL and try again later
//	         Patterns: "unexpected status"
//
//	SRC003 - Download too large: the response exceeded SOURCE_MAX_BYTES
//	         Action: Verify the URL points at the crosswalk export, then raise the limit
//	         Patterns: "response too large"
//
//	SRC004 - Download failed: the crosswalk could not be retrieved
//	         Action: Check network access to data.cms.gov
//	         Patterns: "fetch source"
//
//	SRC005 - Unreadable CSV: the download is not parseable CSV
//	         Action: Open the download manually and check its format
//	         Patterns: "parse csv"
//
// # Output Errors (OUT001-OUT099)
//
//	OUT001 - CSV artifact not written
//	         Action: Check that OUTPUT_CSV_PATH is writable
//	         Patterns: "write csv"
//
//	OUT002 - Workbook not written
//	         Action: Check that XLSX_PATH is writable and not open elsewhere
//	         Patterns: "write workbook"
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Permission denied on the format schema
//	DB004 - Connection refused
//	DB005 - Connection reset
//	DB006 - Timeout
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Check the technical error in the log.
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns come first.

package core

import "strings"

// UserMessage provides operator-facing error information with guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Error code for reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Source
	{
		pattern: "web data structure has changed",
		msg: UserMessage{
			Message: "The CMS crosswalk header no longer matches the expected columns",
			Action:  "Review the new CMS layout before adjusting the cleaning rules",
			Code:    "SRC001",
		},
	},
	{
		pattern: "unexpected status",
		msg: UserMessage{
			Message: "The CMS endpoint rejected the download",
			Action:  "Check the dataset id or SOURCE_URL and try again later",
			Code:    "SRC002",
		},
	},
	{
		pattern: "response too large",
		msg: UserMessage{
			Message: "The download exceeded the configured size limit",
			Action:  "Verify the URL points at the crosswalk export, then raise SOURCE_MAX_BYTES",
			Code:    "SRC003",
		},
	},

	// Database, before the generic fetch pattern: a refused connection during
	// the fetch is still reported as a fetch failure below.
	{
		pattern: "permission denied",
		msg: UserMessage{
			Message: "The database user cannot write the format schema",
			Action:  "Grant CREATE and INSERT on DB_SCHEMA to the configured user",
			Code:    "DB001",
		},
	},

	{
		pattern: "fetch source",
		msg: UserMessage{
			Message: "The crosswalk could not be downloaded",
			Action:  "Check network access to data.cms.gov",
			Code:    "SRC004",
		},
	},
	{
		pattern: "parse csv",
		msg: UserMessage{
			Message: "The download is not readable CSV",
			Action:  "Open the download manually and check its format",
			Code:    "SRC005",
		},
	},

	// Output
	{
		pattern: "write csv",
		msg: UserMessage{
			Message: "The CSV artifact could not be written",
			Action:  "Check that OUTPUT_CSV_PATH is writable",
			Code:    "OUT001",
		},
	},
	{
		pattern: "write workbook",
		msg: UserMessage{
			Message: "The format workbook could not be written",
			Action:  "Check that XLSX_PATH is writable and not open in another program",
			Code:    "OUT002",
		},
	},

	// Database connectivity
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Raise DB_WRITE_TIMEOUT or try again later",
			Code:    "DB006",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the log for the technical error",
	Code:    "ERR000",
}

// MapError converts a technical error to an operator message. If no pattern
// matches, the ERR000 fallback is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// UserError pairs a technical error with its operator message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
