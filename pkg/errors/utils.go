package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// IsLatticeError reports whether err is (or wraps) a lattice Error.
func IsLatticeError(err error) bool {
	var e *Error
	return stderrors.As(err, &e)
}

// GetCode returns the code string of err, or "" for foreign errors.
func GetCode(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code.String()
	}
	return ""
}

// IsCode reports whether err carries the given code, unwrapping as needed.
func IsCode(err error, code Code) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code.Equals(code)
	}
	return false
}

// GetContext returns the context map of err, or nil for foreign errors.
func GetContext(err error) map[string]string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Context
	}
	return nil
}

// AsError converts any error to the lattice Error format. Foreign errors are
// wrapped under CommonInternal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return New(CommonInternal, err.Error(), err)
}

// FormatError renders err with code, context and cause for log output.
func FormatError(err error) string {
	var e *Error
	if !stderrors.As(err, &e) {
		return err.Error()
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("Code: %s", e.Code))
	parts = append(parts, fmt.Sprintf("Message: %s", e.Message))

	if len(e.Context) > 0 {
		parts = append(parts, "Context:")
		for k, v := range e.Context {
			parts = append(parts, fmt.Sprintf("  %s: %v", k, v))
		}
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause: %v", e.Cause))
	}

	return strings.Join(parts, "\n")
}
