package schema

import (
	"errors"
	"fmt"

	"github.com/roach88/clasql/internal/sqllex"
)

// MalformedSchemaError reports a CREATE TABLE statement whose name or column
// list cannot be recovered.
type MalformedSchemaError struct {
	// Statement is the offending statement text.
	Statement string

	// Reason describes what was missing.
	Reason string

	// Pos is where the statement starts in the input.
	Pos sqllex.Position

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *MalformedSchemaError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("malformed CREATE TABLE at %s: %s", e.Pos, e.Reason)
	}
	return fmt.Sprintf("malformed CREATE TABLE: %s", e.Reason)
}

// Unwrap returns the underlying cause.
func (e *MalformedSchemaError) Unwrap() error {
	return e.Err
}

// IsMalformedSchemaError reports whether err is or wraps a MalformedSchemaError.
func IsMalformedSchemaError(err error) bool {
	var me *MalformedSchemaError
	return errors.As(err, &me)
}
