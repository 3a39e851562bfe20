package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorString(t *testing.T) {
	err := New(PhaseInit, KindInsufficientBuffer).
		Detail("buffer holds %d bytes, need %d", 100, 200).
		Build()

	s := err.Error()
	if !strings.Contains(s, "[init]") {
		t.Errorf("missing phase in %q", s)
	}
	if !strings.Contains(s, "insufficient_buffer") {
		t.Errorf("missing kind in %q", s)
	}
	if !strings.Contains(s, "need 200") {
		t.Errorf("missing detail in %q", s)
	}
}

func TestErrorCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := TransportUnavailable(PhaseConnect, "accept", cause)

	if !strings.Contains(err.Error(), "caused by: connection refused") {
		t.Errorf("cause not rendered: %q", err.Error())
	}
	if stderrors.Unwrap(err) != cause {
		t.Error("Unwrap should return the cause")
	}
}

func TestErrorIs(t *testing.T) {
	err := InsufficientBuffer(10, 20)
	target := &Error{Phase: PhaseInit, Kind: KindInsufficientBuffer}

	if !stderrors.Is(err, target) {
		t.Error("errors with same phase and kind should match")
	}

	other := &Error{Phase: PhaseInit, Kind: KindMisalignedBuffer}
	if stderrors.Is(err, other) {
		t.Error("different kinds should not match")
	}
}

func TestIsKind(t *testing.T) {
	inner := AlreadyInitialized()
	wrapped := fmt.Errorf("new runtime: %w", inner)

	if !IsKind(wrapped, KindAlreadyInitialized) {
		t.Error("IsKind should see through wrapping")
	}
	if IsKind(wrapped, KindCapacityExceeded) {
		t.Error("IsKind matched the wrong kind")
	}
	if IsKind(nil, KindAlreadyInitialized) {
		t.Error("IsKind(nil) should be false")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	if e := MisalignedBuffer(8); e.Kind != KindMisalignedBuffer {
		t.Errorf("wrong kind %v", e.Kind)
	}
	if e := NotInitialized(PhaseClose); e.Phase != PhaseClose {
		t.Errorf("wrong phase %v", e.Phase)
	}
}
