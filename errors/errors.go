package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the runtime lifecycle the error occurred
type Phase string

const (
	PhaseInit    Phase = "init"    // buffer validation and partitioning
	PhaseEvent   Phase = "event"   // alloc/free/stringid/stack/frame calls
	PhasePump    Phase = "pump"    // queue draining
	PhaseConnect Phase = "connect" // viewer handshake
	PhaseClose   Phase = "close"   // teardown and final drain
)

// Kind categorizes the error
type Kind string

const (
	// Configuration errors: fatal, reported at init, no partial state kept.
	KindInsufficientBuffer Kind = "insufficient_buffer"
	KindMisalignedBuffer   Kind = "misaligned_buffer"
	KindAlreadyInitialized Kind = "already_initialized"
	KindNotInitialized     Kind = "not_initialized"

	// Runtime conditions: never fatal to the host.
	KindProtocolViolation    Kind = "protocol_violation"
	KindCapacityExceeded     Kind = "capacity_exceeded"
	KindTransportUnavailable Kind = "transport_unavailable"
)

// Error is the structured error type used throughout the runtime
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// IsKind reports whether err is an *Error of the given kind, at any phase.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InsufficientBuffer reports a buffer smaller than the computed minimum.
func InsufficientBuffer(have, need uint64) *Error {
	return &Error{
		Phase:  PhaseInit,
		Kind:   KindInsufficientBuffer,
		Detail: fmt.Sprintf("buffer holds %d bytes, need %d", have, need),
	}
}

// MisalignedBuffer reports a buffer whose base pointer violates alignment.
func MisalignedBuffer(align uintptr) *Error {
	return &Error{
		Phase:  PhaseInit,
		Kind:   KindMisalignedBuffer,
		Detail: fmt.Sprintf("buffer base must be %d-byte aligned", align),
	}
}

// AlreadyInitialized reports a second init over a live buffer.
func AlreadyInitialized() *Error {
	return &Error{
		Phase:  PhaseInit,
		Kind:   KindAlreadyInitialized,
		Detail: "buffer already owned by a running instance",
	}
}

// NotInitialized reports an operation on a closed or never-opened runtime.
func NotInitialized(phase Phase) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindNotInitialized,
	}
}

// TransportUnavailable wraps a transport failure; the caller may retry.
func TransportUnavailable(phase Phase, op string, err error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTransportUnavailable,
		Detail: op,
		Cause:  err,
	}
}
