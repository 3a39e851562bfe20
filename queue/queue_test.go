package queue

import (
	"bytes"
	"io"
	"testing"

	"github.com/memviewlab/memview/arena"
	"github.com/memviewlab/memview/wire"
)

func newQueue(t *testing.T, byteCap uint64, maxFrames int) *Queue {
	t.Helper()
	a, err := arena.New(make([]byte, byteCap+uint64(maxFrames)*32+64))
	if err != nil {
		t.Fatalf("arena.New failed: %v", err)
	}
	q, err := New(a, byteCap, maxFrames)
	if err != nil {
		t.Fatalf("queue.New failed: %v", err)
	}
	return q
}

// capWriter accepts at most cap bytes per Write call, endlessly.
type capWriter struct {
	buf bytes.Buffer
	cap int
}

func (w *capWriter) Write(p []byte) (int, error) {
	if len(p) > w.cap {
		p = p[:w.cap]
	}
	return w.buf.Write(p)
}

func drainSeqs(t *testing.T, data []byte) []uint64 {
	t.Helper()
	dec := wire.NewDecoder(bytes.NewReader(data))
	var seqs []uint64
	for {
		f, err := dec.Next()
		if err == io.EOF {
			return seqs
		}
		if err != nil {
			t.Fatalf("decode drained stream: %v", err)
		}
		seqs = append(seqs, f.Seq)
	}
}

func payload(n int, fill byte) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = fill
	}
	return p
}

func TestPushDrainRoundtrip(t *testing.T) {
	q := newQueue(t, 4096, 16)

	for seq := uint64(1); seq <= 3; seq++ {
		if !q.Push(seq, payload(100, byte(seq))) {
			t.Fatalf("Push %d failed", seq)
		}
	}
	if q.Len() != 3 {
		t.Fatalf("Len = %d, want 3", q.Len())
	}

	var out bytes.Buffer
	n, err := q.Drain(&out)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if want := 3 * (wire.FrameHeaderLen + 100); n != want {
		t.Fatalf("Drain wrote %d bytes, want %d", n, want)
	}
	if q.Len() != 0 {
		t.Fatalf("Len after drain = %d", q.Len())
	}

	seqs := drainSeqs(t, out.Bytes())
	if len(seqs) != 3 || seqs[0] != 1 || seqs[1] != 2 || seqs[2] != 3 {
		t.Fatalf("frame order corrupted: %v", seqs)
	}
}

func TestDrainZeroProgress(t *testing.T) {
	q := newQueue(t, 4096, 16)
	q.Push(1, payload(64, 0xAB))

	w := &capWriter{cap: 0}
	n, err := q.Drain(w)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("Drain wrote %d bytes against a full writer", n)
	}
	if q.Len() != 1 {
		t.Fatal("frame lost on zero-progress drain")
	}

	// The frame is intact once the writer opens up.
	w.cap = 1 << 20
	if _, err := q.Drain(w); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if seqs := drainSeqs(t, w.buf.Bytes()); len(seqs) != 1 || seqs[0] != 1 {
		t.Fatalf("bad frames after resume: %v", seqs)
	}
}

func TestDrainResumesPartialFrame(t *testing.T) {
	q := newQueue(t, 4096, 16)
	q.Push(5, payload(200, 0xCD))

	w := &capWriter{cap: 7}
	total := 0
	for q.Len() > 0 {
		n, err := q.Drain(w)
		if err != nil {
			t.Fatalf("Drain failed: %v", err)
		}
		if n == 0 {
			t.Fatal("no progress with a writer that accepts bytes")
		}
		total += n
	}
	if want := wire.FrameHeaderLen + 200; total != want {
		t.Fatalf("drained %d bytes, want %d", total, want)
	}
	if seqs := drainSeqs(t, w.buf.Bytes()); len(seqs) != 1 || seqs[0] != 5 {
		t.Fatalf("bad frames: %v", seqs)
	}
}

func TestPushDropsOldestWhenFull(t *testing.T) {
	// Each frame occupies 12 + 100 bytes; the ring holds three.
	q := newQueue(t, 360, 16)

	for seq := uint64(1); seq <= 5; seq++ {
		q.Push(seq, payload(100, byte(seq)))
	}
	if got := q.Dropped(); got != 2 {
		t.Fatalf("Dropped = %d, want 2", got)
	}

	var out bytes.Buffer
	if _, err := q.Drain(&out); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	seqs := drainSeqs(t, out.Bytes())
	if len(seqs) != 3 || seqs[0] != 3 || seqs[2] != 5 {
		t.Fatalf("expected frames 3..5 to survive, got %v", seqs)
	}

	if got := q.TakeDropped(); got != 2 {
		t.Fatalf("TakeDropped = %d, want 2", got)
	}
	if q.TakeDropped() != 0 {
		t.Fatal("TakeDropped should reset the counter")
	}
}

func TestPushOversizedFrameDiscarded(t *testing.T) {
	q := newQueue(t, 64, 4)
	if q.Push(1, payload(100, 0xEE)) {
		t.Fatal("frame larger than the ring must be refused")
	}
	if q.Dropped() != 1 {
		t.Fatalf("Dropped = %d, want 1", q.Dropped())
	}
}

func TestPartiallyDrainedFrameSurvivesPressure(t *testing.T) {
	q := newQueue(t, 360, 16)
	q.Push(1, payload(100, 0x01))

	// Start draining frame 1 but stall after a few bytes.
	w := &capWriter{cap: 5}
	if _, err := q.Drain(w); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	// Overflow the ring. Frame 1 has begun draining so it must not be
	// dropped; newer frames take the losses instead.
	for seq := uint64(2); seq <= 6; seq++ {
		q.Push(seq, payload(100, byte(seq)))
	}
	if q.Dropped() == 0 {
		t.Fatal("expected drops under pressure")
	}

	w.cap = 1 << 20
	for q.Len() > 0 {
		if _, err := q.Drain(w); err != nil {
			t.Fatalf("Drain failed: %v", err)
		}
	}
	seqs := drainSeqs(t, w.buf.Bytes())
	if len(seqs) == 0 || seqs[0] != 1 {
		t.Fatalf("partially drained frame lost: %v", seqs)
	}
	for i := 1; i < len(seqs); i++ {
		if seqs[i] <= seqs[i-1] {
			t.Fatalf("frame order corrupted: %v", seqs)
		}
	}
}

// budgetWriter accepts a fixed number of bytes in total, then stalls.
type budgetWriter struct {
	buf    bytes.Buffer
	budget int
}

func (w *budgetWriter) Write(p []byte) (int, error) {
	if len(p) > w.budget {
		p = p[:w.budget]
	}
	w.budget -= len(p)
	return w.buf.Write(p)
}

func TestRingWrapAround(t *testing.T) {
	// Frames are 102 bytes (12 header + 90 payload); the 360-byte ring
	// holds three. Draining exactly one frame per step while pushing
	// forces placement to wrap to offset zero.
	q := newQueue(t, 360, 16)
	w := &budgetWriter{}

	drainOne := func() {
		t.Helper()
		w.budget = 102
		if _, err := q.Drain(w); err != nil {
			t.Fatalf("Drain failed: %v", err)
		}
	}

	for seq := uint64(1); seq <= 3; seq++ {
		if !q.Push(seq, payload(90, byte(seq))) {
			t.Fatalf("Push %d failed", seq)
		}
	}
	for seq := uint64(4); seq <= 8; seq++ {
		drainOne()
		if !q.Push(seq, payload(90, byte(seq))) {
			t.Fatalf("Push %d failed", seq)
		}
	}

	w.budget = 1 << 20
	if _, err := q.Drain(w); err != nil {
		t.Fatalf("final Drain failed: %v", err)
	}

	seqs := drainSeqs(t, w.buf.Bytes())
	if len(seqs) != 8 {
		t.Fatalf("drained %d frames, want 8: %v", len(seqs), seqs)
	}
	for i := range seqs {
		if seqs[i] != uint64(i+1) {
			t.Fatalf("frame order corrupted across wrap: %v", seqs)
		}
	}
	if q.Dropped() != 0 {
		t.Fatalf("unexpected drops: %d", q.Dropped())
	}
}
