package queryir

import (
	"errors"
	"fmt"
	"strings"
)

// MalformedQueryError reports a token stream that cannot be decoded, most
// commonly one without a FROM table.
type MalformedQueryError struct {
	Tokens []string
	Reason string
}

// Error implements the error interface.
func (e *MalformedQueryError) Error() string {
	return fmt.Sprintf("malformed query: %s (tokens: %s)", e.Reason, strings.Join(e.Tokens, " "))
}

// InvalidQueryError reports a Query that cannot be rendered or labeled, such
// as one without a FROM table.
type InvalidQueryError struct {
	Reason string
}

// Error implements the error interface.
func (e *InvalidQueryError) Error() string {
	return "invalid query: " + e.Reason
}

// UnknownTableError reports a FROM table that the schema does not define.
type UnknownTableError struct {
	Table     string
	Available []string
}

// Error implements the error interface.
func (e *UnknownTableError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("table %q not found in empty schema", e.Table)
	}
	return fmt.Sprintf("table %q not found in schema (have: %s)", e.Table, strings.Join(e.Available, ", "))
}

// IsMalformedQueryError reports whether err is or wraps a MalformedQueryError.
func IsMalformedQueryError(err error) bool {
	var me *MalformedQueryError
	return errors.As(err, &me)
}

// IsInvalidQueryError reports whether err is or wraps an InvalidQueryError.
func IsInvalidQueryError(err error) bool {
	var ie *InvalidQueryError
	return errors.As(err, &ie)
}

// IsUnknownTableError reports whether err is or wraps an UnknownTableError.
func IsUnknownTableError(err error) bool {
	var ue *UnknownTableError
	return errors.As(err, &ue)
}
