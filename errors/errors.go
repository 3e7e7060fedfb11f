package errors

import (
	stderrors "errors"
	"fmt"
)

type AppError struct {
	Code Code
	Op   string
	Err  error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		if e.Op == "" {
			return string(e.Code)
		}
		return fmt.Sprintf("[%s] %s", e.Code, e.Op)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Op, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func WrapWithCode(code Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Code: code,
		Op:   op,
		Err:  err,
	}
}

// New builds an AppError from a plain reason.
func New(code Code, op, reason string) error {
	return &AppError{
		Code: code,
		Op:   op,
		Err:  stderrors.New(reason),
	}
}

// CodeOf returns the code of the outermost AppError in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// Public returns the code and the caller-facing message for err.
// Wrapped error text is never part of the message.
func Public(err error) (Code, string) {
	code := CodeOf(err)
	msg, ok := publicMessages[code]
	if !ok {
		return CodeInternal, publicMessages[CodeInternal]
	}
	return code, msg
}
