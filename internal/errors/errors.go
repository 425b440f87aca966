// Package errors tags failures with a stable code that the CLI maps to exit
// status and the dashboard maps to HTTP status.
package errors

import (
	stderrors "errors"
	"fmt"
)

const (
	CodeConfigInvalid = "CONFIG_INVALID"
	CodeDatabaseError = "DATABASE_ERROR"
	CodeNotFound      = "NOT_FOUND"
	CodeInternalError = "INTERNAL_ERROR"
	CodeInvalidInput  = "INVALID_INPUT"
	CodeStorageError  = "STORAGE_ERROR"

	codeUnknown = "UNKNOWN"
)

// AppError is a coded error. Cause stays reachable through errors.Is and errors.As.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *AppError) Unwrap() error { return e.Cause }

func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap adds context to err. The code of an AppError already in the chain is
// carried over; anything else becomes an internal error.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	code := CodeInternalError
	if c := GetCode(err); c != codeUnknown {
		code = c
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode retags err. A bare *AppError is rewritten in place of being nested.
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{Code: code, Message: appErr.Message, Cause: appErr.Cause}
	}
	return &AppError{Code: code, Message: err.Error(), Cause: err}
}

// GetCode reports the code of the outermost AppError in the chain, or UNKNOWN.
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return codeUnknown
}

func ConfigInvalid(message string) *AppError { return New(CodeConfigInvalid, message) }

func InvalidInput(message string) *AppError { return New(CodeInvalidInput, message) }

func DatabaseError(message string, cause error) *AppError {
	return &AppError{Code: CodeDatabaseError, Message: message, Cause: cause}
}

// StorageError reports a failed read or write of path
func StorageError(path string, cause error) *AppError {
	return &AppError{Code: CodeStorageError, Message: "failed to access " + path, Cause: cause}
}
