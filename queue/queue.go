package queue

import (
	"io"
	"sync"

	"go.uber.org/atomic"

	"github.com/memviewlab/memview/arena"
	"github.com/memviewlab/memview/errors"
	"github.com/memviewlab/memview/wire"
)

// DescBytes is the arena cost of one frame descriptor, used by the
// runtime's sizing math.
const DescBytes = 24

// desc locates one queued frame in the byte ring. sent tracks drain
// progress through the frame, header included.
type desc struct {
	off  uint64
	n    uint64
	sent uint64
}

// Queue is the bounded outbound frame buffer.
type Queue struct {
	mu    sync.Mutex
	buf   []byte
	descs []desc
	head  int // index of oldest queued frame
	count int
	btail uint64 // next free byte offset

	dropped atomic.Uint64
}

// New carves a queue holding up to maxFrames frames in byteCap ring
// bytes. maxFrames must be a power of two.
func New(a *arena.Arena, byteCap uint64, maxFrames int) (*Queue, error) {
	if maxFrames < 2 || maxFrames&(maxFrames-1) != 0 {
		return nil, errors.New(errors.PhaseInit, errors.KindInsufficientBuffer).
			Detail("queue frame count %d must be a power of two >= 2", maxFrames).
			Build()
	}
	buf, err := a.Carve(byteCap)
	if err != nil {
		return nil, err
	}
	descs, err := arena.Slice[desc](a, maxFrames)
	if err != nil {
		return nil, err
	}
	return &Queue{buf: buf, descs: descs}, nil
}

// Push enqueues one frame: header plus payload copied into the ring.
// When space is short, the oldest frames that have not begun draining
// are discarded first; if that is not enough (or the frame exceeds the
// ring outright) the new frame itself is discarded. Either way the
// drop counter grows and Push returns whether the frame was kept.
func (q *Queue) Push(seq uint64, payload []byte) bool {
	total := uint64(wire.FrameHeaderLen + len(payload))
	if total > uint64(len(q.buf)) {
		q.dropped.Inc()
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.count == len(q.descs) {
			if !q.dropOldest() {
				q.dropped.Inc()
				return false
			}
			continue
		}
		off, ok := q.reserve(total)
		if ok {
			d := &q.descs[(q.head+q.count)&(len(q.descs)-1)]
			d.off = off
			d.n = total
			d.sent = 0
			wire.PutFrameHeader(q.buf[off:], uint32(len(payload)), seq)
			copy(q.buf[off+wire.FrameHeaderLen:], payload)
			q.btail = off + total
			q.count++
			return true
		}
		if !q.dropOldest() {
			q.dropped.Inc()
			return false
		}
	}
}

// reserve finds a contiguous span of n bytes at the ring tail, wrapping
// to offset zero when the tail segment is too short.
func (q *Queue) reserve(n uint64) (uint64, bool) {
	if q.count == 0 {
		q.btail = 0
		return 0, true
	}
	bhead := q.descs[q.head].off
	switch {
	case q.btail > bhead:
		// Live bytes sit in the middle; free space is the tail
		// segment and the wrapped prefix before bhead.
		if uint64(len(q.buf))-q.btail >= n {
			return q.btail, true
		}
		if bhead >= n {
			return 0, true
		}
		return 0, false
	case q.btail < bhead:
		// Already wrapped: free space is the gap up to bhead.
		if bhead-q.btail >= n {
			return q.btail, true
		}
		return 0, false
	default:
		// Wrapped and exactly full.
		return 0, false
	}
}

// dropOldest discards the oldest frame, unless it has begun draining.
func (q *Queue) dropOldest() bool {
	if q.count == 0 || q.descs[q.head].sent > 0 {
		return false
	}
	q.head = (q.head + 1) & (len(q.descs) - 1)
	q.count--
	q.dropped.Inc()
	return true
}

// Drain writes queued frames to w until the queue is empty, w errors,
// or w accepts a short write. It returns the bytes written. Queue state
// is preserved across would-block conditions: a partially written frame
// resumes where it stopped.
func (q *Queue) Drain(w io.Writer) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	written := 0
	for q.count > 0 {
		d := &q.descs[q.head]
		seg := q.buf[d.off+d.sent : d.off+d.n]
		n, err := w.Write(seg)
		if n > 0 {
			d.sent += uint64(n)
			written += n
		}
		if d.sent == d.n {
			q.head = (q.head + 1) & (len(q.descs) - 1)
			q.count--
		}
		if err != nil {
			return written, err
		}
		if n < len(seg) {
			return written, nil
		}
	}
	return written, nil
}

// Len reports the number of queued frames.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// TakeDropped returns the drop count accumulated since the last call
// and resets it. The runtime surfaces it as a marker in the next frame.
func (q *Queue) TakeDropped() uint64 {
	return q.dropped.Swap(0)
}

// Dropped reports the drop count without resetting it.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}
