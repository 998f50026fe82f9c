package etl

import (
	"errors"
	"fmt"
)

// ── Errors ─────────────────────────────────────────────────
// None of these are retried. A run that hits one produces no table
// and no output file.

var (
	ErrDuplicateColumn = errors.New("duplicate column name")
	ErrEmptyColumnName = errors.New("empty column name")
	ErrUnknownKind     = errors.New("unknown column kind")
	ErrInvalidPath     = errors.New("invalid path expression")
	ErrNoSource        = errors.New("no source for locator")
)

// ParseError reports a source document that is not well-formed.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "parse document: " + e.Err.Error() }

func (e *ParseError) Unwrap() error { return e.Err }

// SchemaMismatchError reports a column whose path produced a value of a
// different shape than its declared kind.
type SchemaMismatchError struct {
	Column   string
	Declared Kind
	Observed string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("column %q: declared %s but path yielded %s", e.Column, e.Declared, e.Observed)
}

// MissingFieldError reports a column required by a transform or requested
// for output that the table does not have.
type MissingFieldError struct {
	Field string
	Stage string // "transform" | "load"
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: missing field %q", e.Stage, e.Field)
}

// FieldValueError reports a present value that cannot be used as required,
// e.g. a bathroom sub-count that is not numeric.
type FieldValueError struct {
	Field string
	Value string
	Err   error
}

func (e *FieldValueError) Error() string {
	return fmt.Sprintf("field %q: invalid value %q: %v", e.Field, e.Value, e.Err)
}

func (e *FieldValueError) Unwrap() error { return e.Err }
