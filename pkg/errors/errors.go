// Package errors holds the error types returned when action documents are
// read from disk. Engine-level failures live in the action package instead.
package errors

import (
	"fmt"
)

// ParseError reports a document that could not be read or is not valid YAML/JSON.
type ParseError struct {
	Path string
	Line int
	Err  error
}

// NewParseError constructs a ParseError. A zero line means unknown.
func NewParseError(path string, line int, err error) error {
	return &ParseError{Path: path, Line: line, Err: err}
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse %s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

// Unwrap exposes the underlying error.
func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// DocumentError reports a named action in a document that failed validation.
// Err is usually an *action.Error carrying the field path.
type DocumentError struct {
	Path   string
	Action string
	Line   int
	Err    error
}

// NewDocumentError constructs a DocumentError.
func NewDocumentError(path, actionName string, line int, err error) error {
	return &DocumentError{Path: path, Action: actionName, Line: line, Err: err}
}

func (e *DocumentError) Error() string {
	if e == nil {
		return ""
	}
	location := e.Path
	if e.Line > 0 {
		location = fmt.Sprintf("%s:%d", e.Path, e.Line)
	}
	if e.Action != "" {
		return fmt.Sprintf("%s: action %q: %v", location, e.Action, e.Err)
	}
	return fmt.Sprintf("%s: %v", location, e.Err)
}

// Unwrap exposes the underlying error.
func (e *DocumentError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
