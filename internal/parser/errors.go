package parser

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedLine          = errors.New("malformed accounting line")
	ErrMalformedDuration      = errors.New("malformed elapsed duration")
	ErrMalformedResourceField = errors.New("malformed resource field")
)

// ParseError describes why a raw accounting line was rejected
type ParseError struct {
	Kind   error  // One of the Err* sentinels
	Field  string // Offending field name, if known
	Value  string // Offending value
	LineNo int    // 1-based line number, 0 if parsed standalone
	Line   string // Raw line
	Reason string
}

func (e *ParseError) Error() string {
	msg := e.Kind.Error()
	if e.Field != "" {
		msg += fmt.Sprintf(" in %s %q", e.Field, e.Value)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.LineNo > 0 {
		msg += fmt.Sprintf(" (line %d: %q)", e.LineNo, e.Line)
	} else if e.Line != "" {
		msg += fmt.Sprintf(" (line %q)", e.Line)
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Kind
}
