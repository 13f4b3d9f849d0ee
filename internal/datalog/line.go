package datalog

import "strings"

const (
	historyPrefix   = "report_history:"
	aggregatePrefix = "aggregate:"
	commentPrefix   = "#"
)

// LineKind classifies a line of the telemetry log.
type LineKind int

// Line kinds, in the order ReadAll considers them.
const (
	LineComment LineKind = iota
	LineHistory
	LineAggregate
	LineSample
	LineUnknown
)

func (k LineKind) String() string {
	switch k {
	case LineComment:
		return "comment"
	case LineHistory:
		return "history"
	case LineAggregate:
		return "aggregate"
	case LineSample:
		return "sample"
	}
	return "unknown"
}

// Line is a classified log line. Payload is the line with its row prefix and
// surrounding whitespace removed.
type Line struct {
	Kind    LineKind
	Payload string
}

// ClassifyLine decides what a line holds by its prefix alone. Blank lines are
// reported as comments.
func ClassifyLine(raw string) Line {
	line := strings.TrimRight(raw, " \t\r\n")
	switch {
	case strings.TrimSpace(line) == "", strings.HasPrefix(line, commentPrefix):
		return Line{Kind: LineComment}
	case strings.HasPrefix(line, historyPrefix):
		return Line{Kind: LineHistory, Payload: strings.TrimSpace(strings.TrimPrefix(line, historyPrefix))}
	case strings.HasPrefix(line, aggregatePrefix):
		return Line{Kind: LineAggregate, Payload: strings.TrimSpace(strings.TrimPrefix(line, aggregatePrefix))}
	case line[0] >= '0' && line[0] <= '9':
		return Line{Kind: LineSample, Payload: strings.TrimSpace(line)}
	}
	return Line{Kind: LineUnknown, Payload: line}
}
