package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
)

// Error carries a code from the execution error space. Field is set for
// validation failures and names the offending config or request field.
type Error struct {
	Code    ErrorCode
	Message string
	Field   string
	Err     error
	Stack   string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code.Message()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with the code's default message.
func New(code ErrorCode) *Error {
	return &Error{Code: code, Message: code.Message(), Stack: getStack(2)}
}

// Newf creates an Error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Stack: getStack(2)}
}

// Wrap attaches a code to err. An *Error is re-coded in place.
func Wrap(err error, code ErrorCode) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		e.Code = code
		return e
	}
	return &Error{Code: code, Message: err.Error(), Err: err, Stack: getStack(2)}
}

// Wrapf wraps err under code with a formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err, Stack: getStack(2)}
}

func (e *Error) WithMessage(msg string) *Error {
	e.Message = msg
	return e
}

// ValidationError reports a missing or malformed field.
func ValidationError(field, reason string) *Error {
	return &Error{
		Code:    ValidationFailed,
		Message: fmt.Sprintf("%s: %s", field, reason),
		Field:   field,
		Stack:   getStack(2),
	}
}

// GetCode returns the code of the first *Error in err's chain, or
// InternalServerError when there is none.
func GetCode(err error) ErrorCode {
	if err == nil {
		return Success
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return InternalServerError
}

// GetError returns the *Error in err's chain, wrapping plain errors as internal.
func GetError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return Wrap(err, InternalServerError)
}

func Is(err error, code ErrorCode) bool {
	var e *Error
	return err != nil && stderrors.As(err, &e) && e.Code == code
}

func getStack(skip int) string {
	const maxDepth = 10
	var pcs [maxDepth]uintptr
	n := runtime.Callers(skip+1, pcs[:])
	if n == 0 {
		return ""
	}

	var b strings.Builder
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, "runtime.") {
			fmt.Fprintf(&b, "\n\t%s:%d %s", frame.File, frame.Line, frame.Function)
		}
		if !more {
			break
		}
	}
	return b.String()
}
