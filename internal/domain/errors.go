package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the pipeline error taxonomy. Concrete errors below match
// them through errors.Is.
var (
	// ErrInputMissing means a required artifact or input file does not exist.
	ErrInputMissing = errors.New("input missing")
	// ErrSchemaMismatch means a table lacks columns a stage requires.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrMalformedRecord means a single row could not be parsed; the row is dropped.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrInsufficientData means a statistic could not be computed for a population.
	ErrInsufficientData = errors.New("insufficient data")
)

// InputMissingError reports a required file that does not exist.
type InputMissingError struct {
	Path string
}

func (e *InputMissingError) Error() string {
	return fmt.Sprintf("input missing: %s", e.Path)
}

func (e *InputMissingError) Is(target error) bool { return target == ErrInputMissing }

// SchemaError reports the columns a table is missing.
type SchemaError struct {
	Table   string   // logical table name, e.g. "raw" or "monthly"
	Missing []string // missing column names; alternatives are joined with "|"
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s table: missing required columns: %s", e.Table, strings.Join(e.Missing, ", "))
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchemaMismatch }

// MalformedRecordError describes a dropped row.
type MalformedRecordError struct {
	Line   int // 1-based line in the source file, header is line 1
	Column string
	Value  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("line %d: column %q: %s: %q", e.Line, e.Column, e.Reason, e.Value)
}

func (e *MalformedRecordError) Is(target error) bool { return target == ErrMalformedRecord }
