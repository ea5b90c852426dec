package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Basic error check functions from standard library
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)

// appError implements the Error interface
type appError struct {
	code    ErrorCode
	message string
	err     error
	data    any
}

// Error renders "message: data: cause", leaving out the parts that are unset.
// The message falls back to the registered text for the code.
func (e *appError) Error() string {
	parts := []string{e.message}
	if e.message == "" {
		parts[0] = GetErrorMessage(e.code)
	}
	if e.data != nil {
		parts = append(parts, fmt.Sprintf("%v", e.data))
	}
	if e.err != nil {
		parts = append(parts, e.err.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *appError) Code() ErrorCode {
	return e.code
}

func (e *appError) clone() *appError {
	c := *e
	return &c
}

func (e *appError) WithMessage(msg string) Error {
	c := e.clone()
	c.message = msg
	return c
}

func (e *appError) WithData(data any) Error {
	c := e.clone()
	c.data = data
	return c
}

func (e *appError) GetData() any {
	return e.data
}

func (e *appError) Unwrap() error {
	return e.err
}

// Is matches any coded error with the same code.
func (e *appError) Is(target error) bool {
	t, ok := target.(Error)
	return ok && t.Code() == e.code
}

type defaultFactory struct{}

func (defaultFactory) New(code ErrorCode) Error {
	return &appError{code: code}
}

func (defaultFactory) Wrap(code ErrorCode, err error) Error {
	return &appError{code: code, err: err}
}

func (defaultFactory) WithMessage(code ErrorCode, msg string) Error {
	return &appError{code: code, message: msg}
}

func (defaultFactory) WithData(code ErrorCode, data any) Error {
	return &appError{code: code, data: data}
}

// New creates a Factory instance for error creation
func New() Factory {
	return defaultFactory{}
}

// CodeOf returns the code of the outermost coded error in err's chain,
// or an empty code when there is none.
func CodeOf(err error) ErrorCode {
	var coded Error
	if errors.As(err, &coded) {
		return coded.Code()
	}

	return ""
}

// HasCode reports whether any error in err's chain carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return errors.Is(err, &appError{code: code})
}

// Recoverable reports whether err is one of the per-frame failures the
// capture pipeline absorbs without ending the session.
func Recoverable(err error) bool {
	switch CodeOf(err) {
	case ErrFrameRead, ErrDetectionFailed, ErrLogWrite, ErrLogSchema:
		return true
	default:
		return false
	}
}
