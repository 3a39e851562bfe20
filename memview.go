package memview

import (
	"context"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/memviewlab/memview/arena"
	"github.com/memviewlab/memview/errors"
	"github.com/memviewlab/memview/intern"
	"github.com/memviewlab/memview/queue"
	"github.com/memviewlab/memview/session"
	"github.com/memviewlab/memview/track"
	"github.com/memviewlab/memview/wire"
)

// Config parameterizes a Runtime.
type Config struct {
	// BytesForStacktrace scales the arena regions. The buffer passed
	// to New must hold at least CalcMinRequiredMemory of it.
	BytesForStacktrace uint64

	// Transport hands over the viewer connection. Nil is legal: events
	// accumulate and age out of the queue until a transport exists.
	Transport session.Transport

	// Logger overrides the package logger for this runtime. Logging
	// happens only on control paths, never on the event surface.
	Logger *zap.Logger
}

// Runtime is the instrumentation context. One Runtime owns one buffer
// between New and Close; the host holds it explicitly, there is no
// process-wide instance.
type Runtime struct {
	log     *zap.Logger
	arena   *arena.Arena
	strings *intern.StringTable
	stacks  *intern.StackTable
	live    *track.Index
	q       *queue.Queue
	sess    *session.Session

	// encMu serializes record encoding into the current frame, which
	// is what preserves per-thread event order within a frame.
	encMu sync.Mutex
	enc   *wire.Encoder

	frameSeq atomic.Uint64
	curStack atomic.Uint64
	closed   atomic.Bool

	untrackedFrees  atomic.Uint64
	doubleAllocs    atomic.Uint64
	evictions       atomic.Uint64
	stackMismatches atomic.Uint64
	stringTableFull atomic.Uint64
	stackTableFull  atomic.Uint64
	droppedRecords  atomic.Uint64
	droppedFrames   atomic.Uint64
}

// New partitions buf and returns a ready Runtime. It fails without
// retaining any state when the buffer is smaller than
// CalcMinRequiredMemory(cfg.BytesForStacktrace), when its base pointer
// is misaligned, or when the buffer is already owned by a live runtime.
func New(buf []byte, cfg Config) (*Runtime, error) {
	l := layoutFor(cfg.BytesForStacktrace)
	if need := l.total(); uint64(len(buf)) < need {
		return nil, errors.InsufficientBuffer(uint64(len(buf)), need)
	}

	a, err := arena.New(buf)
	if err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = Logger()
	}

	r := &Runtime{log: log, arena: a}
	if r.strings, err = intern.NewStringTable(a, l.stringEntries); err != nil {
		a.Release()
		return nil, err
	}
	if r.stacks, err = intern.NewStackTable(a, l.stackEntries); err != nil {
		a.Release()
		return nil, err
	}
	if r.live, err = track.New(a, l.liveEntries); err != nil {
		a.Release()
		return nil, err
	}
	frameBuf, err := a.Carve(l.frameBytes)
	if err != nil {
		a.Release()
		return nil, err
	}
	r.enc = wire.NewEncoder(frameBuf)
	if r.q, err = queue.New(a, l.queueBytes, l.queueFrames); err != nil {
		a.Release()
		return nil, err
	}
	r.sess = session.New(cfg.Transport, log)

	log.Info("memview runtime initialized",
		zap.Uint64("buffer_bytes", uint64(len(buf))),
		zap.Uint64("stacktrace_budget", cfg.BytesForStacktrace),
		zap.Int("string_entries", l.stringEntries),
		zap.Int("stack_entries", l.stackEntries),
		zap.Int("live_entries", l.liveEntries))
	return r, nil
}

// WaitForConnection blocks until a viewer attaches. A failed wait
// leaves the runtime usable and retryable; events reported meanwhile
// queue up under the normal drop policy.
func (r *Runtime) WaitForConnection(ctx context.Context) error {
	if r.closed.Load() {
		return errors.NotInitialized(errors.PhaseConnect)
	}
	return r.sess.WaitForConnection(ctx)
}

// Pump drains queued frames to the viewer, best effort, without
// blocking. Call it from the same control thread as Frame.
func (r *Runtime) Pump() error {
	if r.closed.Load() {
		return errors.NotInitialized(errors.PhasePump)
	}
	return r.sess.Pump(r.q)
}

// Frame closes the current frame, hands it to the outbound queue, and
// opens the next one. Frame sequence numbers are monotonic for the life
// of the runtime.
func (r *Runtime) Frame() {
	if r.closed.Load() {
		return
	}
	r.encMu.Lock()
	payload := r.enc.Bytes()
	r.q.Push(r.frameSeq.Inc(), payload)
	r.enc.Reset()
	if n := r.q.TakeDropped(); n > 0 {
		r.droppedFrames.Add(n)
		r.enc.Marker(wire.MarkerDroppedFrames, n)
	}
	r.encMu.Unlock()
}

// StringID interns content and returns its stable identifier. The
// definition travels on the wire only the first time; callers may cache
// the identifier themselves. Returns 0 when the string table is full
// and the content was not admitted.
func (r *Runtime) StringID(content []byte) uint64 {
	if r.closed.Load() {
		return 0
	}
	id, fresh, ok := r.strings.Intern(content)
	if !ok {
		if r.stringTableFull.Inc() == 1 {
			r.encMu.Lock()
			r.enc.Marker(wire.MarkerStringTableFull, 0)
			r.encMu.Unlock()
		}
		return 0
	}
	if fresh {
		r.encMu.Lock()
		if !r.enc.StringDefine(id, content) {
			r.droppedRecords.Inc()
		}
		r.encMu.Unlock()
	}
	return id
}

// Stack reports the stack trace identified by stackID and makes it the
// context for subsequent Alloc calls. First use emits the full
// definition; repeats emit a reference; reuse with different content is
// a protocol violation that is marked and then redefined.
func (r *Runtime) Stack(stackID uint64, content []byte) {
	if r.closed.Load() {
		return
	}
	switch r.stacks.Observe(stackID, content) {
	case intern.StackNew:
		r.encMu.Lock()
		if !r.enc.StackDefine(stackID, content) {
			r.droppedRecords.Inc()
		}
		r.encMu.Unlock()
	case intern.StackSeen:
		r.encMu.Lock()
		if !r.enc.StackRef(stackID) {
			r.droppedRecords.Inc()
		}
		r.encMu.Unlock()
	case intern.StackMismatch:
		r.stackMismatches.Inc()
		r.encMu.Lock()
		r.enc.Marker(wire.MarkerStackMismatch, stackID)
		if !r.enc.StackDefine(stackID, content) {
			r.droppedRecords.Inc()
		}
		r.encMu.Unlock()
	case intern.StackDropped:
		if r.stackTableFull.Inc() == 1 {
			r.encMu.Lock()
			r.enc.Marker(wire.MarkerStackTableFull, 0)
			r.encMu.Unlock()
		}
	}
	r.curStack.Store(stackID)
}

// Alloc records a live allocation at addr, tagged with the caller's
// region and the current stack context. A double-alloc at a live
// address replaces the stale record and marks a protocol violation;
// index pressure evicts the oldest record with a marker. Neither case
// fails the call.
func (r *Runtime) Alloc(addr, size, region uint64) {
	if r.closed.Load() {
		return
	}
	stack := r.curStack.Load()
	res, old := r.live.Insert(track.Record{Addr: addr, Size: size, Region: region, Stack: stack})

	r.encMu.Lock()
	switch res {
	case track.Replaced:
		r.doubleAllocs.Inc()
		r.enc.Marker(wire.MarkerDoubleAlloc, addr)
	case track.Evicted:
		r.evictions.Inc()
		r.enc.Marker(wire.MarkerEviction, old.Addr)
	}
	if !r.enc.Alloc(addr, size, region, stack) {
		r.droppedRecords.Inc()
	}
	r.encMu.Unlock()
}

// Free drops the live record for addr. Freeing an address the runtime
// never saw (allocated before New, already freed, evicted) is a no-op
// beyond a diagnostic counter.
func (r *Runtime) Free(addr uint64) {
	if r.closed.Load() {
		return
	}
	if _, ok := r.live.Remove(addr); !ok {
		r.untrackedFrees.Inc()
		return
	}
	r.encMu.Lock()
	if !r.enc.Free(addr) {
		r.droppedRecords.Inc()
	}
	r.encMu.Unlock()
}

// Close flushes the open frame, drains what the viewer will take,
// closes the session, and returns the buffer to the host untouched
// thereafter. Only the first Close per New succeeds; the host must
// quiesce event calls before invoking it.
func (r *Runtime) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return errors.NotInitialized(errors.PhaseClose)
	}

	r.encMu.Lock()
	payload := r.enc.Bytes()
	if len(payload) > 0 {
		r.q.Push(r.frameSeq.Inc(), payload)
	}
	r.enc.Reset()
	r.encMu.Unlock()

	err := r.sess.Close(r.q)
	r.arena.Release()
	r.log.Info("memview runtime closed",
		zap.Uint64("frames", r.frameSeq.Load()),
		zap.Uint64("dropped_frames", r.droppedFrames.Load()))
	return err
}

// Stats is a point-in-time snapshot of the runtime's diagnostic
// counters.
type Stats struct {
	LiveAllocations int
	InternedStrings int
	DefinedStacks   int
	QueuedFrames    int

	UntrackedFrees  uint64
	DoubleAllocs    uint64
	Evictions       uint64
	StackMismatches uint64
	DroppedFrames   uint64
	DroppedRecords  uint64
}

// Stats snapshots the diagnostic counters. After Close only the
// counters are reported; table sizes read as zero because the buffer is
// no longer the runtime's to touch.
func (r *Runtime) Stats() Stats {
	s := Stats{
		UntrackedFrees:  r.untrackedFrees.Load(),
		DoubleAllocs:    r.doubleAllocs.Load(),
		Evictions:       r.evictions.Load(),
		StackMismatches: r.stackMismatches.Load(),
		DroppedFrames:   r.droppedFrames.Load() + r.q.Dropped(),
		DroppedRecords:  r.droppedRecords.Load(),
	}
	if !r.closed.Load() {
		s.LiveAllocations = r.live.Len()
		s.InternedStrings = r.strings.Len()
		s.DefinedStacks = r.stacks.Len()
		s.QueuedFrames = r.q.Len()
	}
	return s
}
