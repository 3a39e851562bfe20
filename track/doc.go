// Package track maintains the index of currently-live allocations.
//
// The index is a fixed-capacity open-addressed hash table keyed by
// address, carved from the runtime's arena and sharded for concurrent
// access from allocation hot paths. Each record carries the allocation
// size, the caller's region tag, and the stack context active when the
// allocation was reported.
//
// The host's correctness is not this package's responsibility: a
// double-alloc replaces the stale record, a free of an unknown address
// is a no-op, and running out of capacity evicts the oldest record in
// the affected shard instead of refusing the new one. Every such case
// is reported to the caller so it can be surfaced to the viewer.
package track
