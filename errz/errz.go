// Package errz defines the error kinds and structured error type shared by
// the SunScript compiler, virtual machine, and embedding surface.
package errz

import (
	"bytes"
	"fmt"
	"strings"
)

// ErrorKind represents the category of an error.
type ErrorKind int

const (
	// ErrCompile indicates a lexing, parsing, or compilation error.
	ErrCompile ErrorKind = iota
	// ErrTypeCheck indicates a static type-checking error.
	ErrTypeCheck
	// ErrRuntime indicates an error raised while executing bytecode.
	ErrRuntime
	// ErrIo indicates a failure reading or writing a bytecode artifact.
	ErrIo
	// ErrNotFound indicates a failed global or function lookup.
	ErrNotFound
	// ErrInvalidArg indicates misuse of the embedding surface.
	ErrInvalidArg
	// ErrOutOfMemory indicates a resource cap was exceeded.
	ErrOutOfMemory
)

// String returns the string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrCompile:
		return "compile error"
	case ErrTypeCheck:
		return "type check error"
	case ErrRuntime:
		return "runtime error"
	case ErrIo:
		return "io error"
	case ErrNotFound:
		return "not found"
	case ErrInvalidArg:
		return "invalid argument"
	case ErrOutOfMemory:
		return "out of memory"
	default:
		return "error"
	}
}

// SourceLocation identifies a position in a source file.
type SourceLocation struct {
	File   string
	Line   int // 1-based
	Column int // 1-based
	Source string
}

// IsZero reports whether the location carries no position information.
func (l SourceLocation) IsZero() bool {
	return l.Line == 0 && l.Column == 0 && l.File == ""
}

func (l SourceLocation) String() string {
	if l.File == "" {
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// StackFrame describes one call frame in a script stack trace.
type StackFrame struct {
	Function string
	Location SourceLocation
}

// FormatStackTrace renders stack frames innermost-first.
func FormatStackTrace(frames []StackFrame) string {
	var b strings.Builder
	b.WriteString("stack trace:\n")
	for _, f := range frames {
		name := f.Function
		if name == "" {
			name = "<anonymous>"
		}
		b.WriteString(fmt.Sprintf("  at %s (%s)\n", name, f.Location))
	}
	return b.String()
}

// Error is a structured error with a kind, source location, and script
// stack trace. All errors surfaced by the VM and compiler are of this type.
type Error struct {
	Message  string
	Kind     ErrorKind
	Location SourceLocation
	Stack    []StackFrame
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Location.IsZero() {
		return fmt.Sprintf("%s: %s", e.Kind.String(), e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind.String(), e.Message, e.Location)
}

// Unwrap returns the underlying cause of the error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithCause wraps the error with a cause.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// FriendlyErrorMessage returns a human-friendly message with a source
// snippet and stack trace when available.
func (e *Error) FriendlyErrorMessage() string {
	var msg bytes.Buffer
	if e.Location.IsZero() {
		msg.WriteString(fmt.Sprintf("%s: %s\n", e.Kind.String(), e.Message))
	} else {
		msg.WriteString(fmt.Sprintf("%s: %s (%s)\n", e.Kind.String(), e.Message, e.Location))
	}
	if e.Location.Source != "" {
		msg.WriteString(" | ")
		msg.WriteString(e.Location.Source)
		msg.WriteString("\n")
		if e.Location.Column > 0 {
			msg.WriteString(" | ")
			msg.WriteString(strings.Repeat(" ", e.Location.Column-1))
			msg.WriteString("^\n")
		}
	}
	if len(e.Stack) > 0 {
		msg.WriteString("\n")
		msg.WriteString(FormatStackTrace(e.Stack))
	}
	return msg.String()
}

// New creates a new structured error.
func New(kind ErrorKind, message string, loc SourceLocation, stack []StackFrame) *Error {
	return &Error{
		Message:  message,
		Kind:     kind,
		Location: loc,
		Stack:    stack,
	}
}

// Newf creates a new structured error with a formatted message.
func Newf(kind ErrorKind, loc SourceLocation, stack []StackFrame, format string, args ...any) *Error {
	return &Error{
		Message:  fmt.Sprintf(format, args...),
		Kind:     kind,
		Location: loc,
		Stack:    stack,
	}
}

// CompileErrorf creates a compile error with no stack.
func CompileErrorf(loc SourceLocation, format string, args ...any) *Error {
	return Newf(ErrCompile, loc, nil, format, args...)
}
