// Package session owns the connection to the viewer.
//
// A session moves through Disconnected, Waiting, Connected, Draining
// and Closed. WaitForConnection blocks until the transport hands over a
// viewer connection, writes the stream header, and enters Connected; a
// failed wait falls back to Disconnected and may be retried. Pump and
// Close drain the outbound queue through the connection.
//
// The transport is a collaborator behind the Transport interface. Its
// writer must honor the non-blocking contract: a Write that cannot make
// progress returns ErrWouldBlock (possibly after a partial write)
// instead of stalling the pump.
package session
