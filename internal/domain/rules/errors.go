package rules

import "fmt"

// NotFoundError is returned when a rule source does not exist.
type NotFoundError struct {
	Source string
	Err    error
}

func (e *NotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rule source %s not found: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("rule source %s not found", e.Source)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// FormatError is returned when a rule source exists but cannot be parsed into
// rules. Index is the zero-based record position, or -1 when the document as a
// whole is malformed.
type FormatError struct {
	Source string
	Index  int
	Field  string
	Err    error
}

func (e *FormatError) Error() string {
	switch {
	case e.Index < 0:
		return fmt.Sprintf("rule source %s: malformed document: %v", e.Source, e.Err)
	case e.Field == "":
		return fmt.Sprintf("rule source %s: record %d: %v", e.Source, e.Index, e.Err)
	default:
		return fmt.Sprintf("rule source %s: record %d: field %q: %v", e.Source, e.Index, e.Field, e.Err)
	}
}

func (e *FormatError) Unwrap() error { return e.Err }
