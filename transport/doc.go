// Package transport provides a TCP implementation of the session's
// Transport boundary.
//
// The runtime listens and the viewer dials in. Writes on the accepted
// connection carry a short deadline so the pump never blocks on a slow
// viewer: a deadline hit surfaces as session.ErrWouldBlock and the pump
// retries on a later call.
package transport
