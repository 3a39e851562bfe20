// Package errors provides structured error types for the memview runtime.
//
// Errors carry a Phase (where in the runtime lifecycle the failure happened)
// and a Kind (the category), so callers can match on either without string
// comparison:
//
//	if errors.IsKind(err, errors.KindInsufficientBuffer) {
//	    // grow the buffer and retry New
//	}
//
// Use the Builder for errors that need detail or a cause:
//
//	return errors.New(errors.PhaseConnect, errors.KindTransportUnavailable).
//	    Detail("viewer handshake on %s", addr).
//	    Cause(err).
//	    Build()
package errors
