// Package arena partitions one caller-supplied buffer into the fixed
// regions that back all runtime state.
//
// Every region is carved exactly once, during runtime construction. After
// that the arena hands out no more memory: tables and queues built on top
// of it recycle their own slots. This is what keeps the instrumentation
// runtime from allocating on the host's heap and re-entering its own
// event stream.
//
// The first eight bytes of the buffer hold an ownership stamp. A second
// runtime constructed over a live buffer is refused, and releasing the
// arena clears the stamp so the buffer can be reused. Buffers must start
// zeroed (a static array or make([]byte, n) both qualify).
package arena
