// Package queue buffers encoded frames between the event encoder and
// the transport.
//
// Storage is a byte ring plus a fixed ring of frame descriptors, both
// carved from the runtime's arena. Push never blocks and never
// allocates: when the ring cannot hold a new frame, the oldest frames
// that have not begun draining are discarded and counted, so the
// instrumented allocation path is never stalled by a slow viewer.
//
// Drain writes as much as the destination will accept. A short write
// leaves the frame's cursor in place and a later Drain resumes it, so
// a frame that has started draining is never dropped or reordered.
package queue
