package datalog

import (
	"errors"
	"fmt"
)

// ErrCorruptLog is matched by every CorruptLogError via errors.Is.
var ErrCorruptLog = errors.New("corrupt telemetry log")

// ErrNotAggregate is returned by Rotate for a sample in raw form.
var ErrNotAggregate = errors.New("rotation needs an aggregate sample")

// CorruptLogError reports a log whose mandatory history line is missing or
// cannot be parsed.
type CorruptLogError struct {
	Path   string
	Reason string
	Err    error
}

func (e *CorruptLogError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt telemetry log %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("corrupt telemetry log %s: %s", e.Path, e.Reason)
}

func (e *CorruptLogError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrCorruptLog) match.
func (e *CorruptLogError) Is(target error) bool { return target == ErrCorruptLog }
