package codec

import "fmt"

// FormatError reports a line or machine sub-record that could not be decoded,
// or a value that cannot be represented in the line format.
type FormatError struct {
	Input  string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("format error: %s: %q: %v", e.Reason, e.Input, e.Err)
	}
	return fmt.Sprintf("format error: %s: %q", e.Reason, e.Input)
}

func (e *FormatError) Unwrap() error { return e.Err }

func formatErr(input, reason string, err error) *FormatError {
	return &FormatError{Input: input, Reason: reason, Err: err}
}
