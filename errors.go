package dynproxy

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes a proxy error
type Kind string

const (
	KindType          Kind = "type_error"
	KindArgumentCount Kind = "argument_count"
	KindOutOfRange    Kind = "out_of_range"
	KindInvocation    Kind = "invocation_failure"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrTypeMismatch  = &Error{Kind: KindType}
	ErrArgumentCount = &Error{Kind: KindArgumentCount}
	ErrOutOfRange    = &Error{Kind: KindOutOfRange}
	ErrInvocation    = &Error{Kind: KindInvocation}
)

// Error is the error type returned by every operation in this package.
// Op names the operation that added context, Detail is the message at that
// level and Cause is the wrapped error (possibly another *Error).
type Error struct {
	Kind   Kind
	Op     string
	Detail string
	Cause  error
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Op != "" {
		b.WriteString(e.Op)
	}
	if e.Detail != "" {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Cause.Error())
	}
	if b.Len() == 0 {
		return string(e.Kind)
	}
	return b.String()
}

// Unwrap returns the wrapped error for errors.Is/As support
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf returns the kind of the outermost *Error in err's chain, or "" if
// there is none.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

func typeError(format string, args ...any) *Error {
	return &Error{Kind: KindType, Detail: fmt.Sprintf(format, args...)}
}

func argumentCountError(format string, args ...any) *Error {
	return &Error{Kind: KindArgumentCount, Detail: fmt.Sprintf(format, args...)}
}

func outOfRange(format string, args ...any) *Error {
	return &Error{Kind: KindOutOfRange, Detail: fmt.Sprintf(format, args...)}
}

// invocationError wraps a failure raised by the wrapped callable itself.
func invocationError(op string, cause error) *Error {
	return &Error{Kind: KindInvocation, Op: op, Cause: cause}
}

// wrap adds context to err. Typed errors keep their kind; anything else is
// reported as an invocation failure.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	kind := KindOf(err)
	if kind == "" {
		kind = KindInvocation
	}
	return &Error{Kind: kind, Op: op, Cause: err}
}

// panicError converts a recovered panic value into an invocation failure.
func panicError(r any) error {
	if err, ok := r.(error); ok {
		return &Error{Kind: KindInvocation, Detail: "panic", Cause: err}
	}
	return &Error{Kind: KindInvocation, Detail: fmt.Sprintf("panic: %v", r)}
}
