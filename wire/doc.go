// Package wire defines the byte layout of the event stream and provides
// an allocation-free encoder for the runtime and a decoder for viewers.
//
// The stream opens with a fixed header (magic, version) and then carries
// frames. Each frame is a header (payload length, sequence number)
// followed by tagged records. All integers are little-endian.
//
// Records:
//
//	string-define  tag, id u64, len u32, bytes
//	string-ref     tag, id u64
//	stack-define   tag, id u64, len u32, bytes
//	stack-ref      tag, id u64
//	alloc          tag, addr u64, size u64, region u64, stack u64
//	free           tag, addr u64
//	marker         tag, kind u8, value u64
//
// The encoder appends into a fixed buffer carved from the arena and
// never grows it. When a frame's records no longer fit, further records
// are dropped and a single truncation marker closes the frame.
package wire
