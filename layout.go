package memview

import (
	"github.com/memviewlab/memview/arena"
	"github.com/memviewlab/memview/intern"
	"github.com/memviewlab/memview/queue"
	"github.com/memviewlab/memview/track"
)

// Region floors. The stack-trace budget scales every region up from
// here; the floors keep tiny budgets usable.
const (
	minStringEntries = 256
	minStackEntries  = 64
	minLiveEntries   = 512
	minFrameBytes    = 8 * 1024
	minQueueBytes    = 16 * 1024
	queueFrames      = 64
)

// layout fixes the capacity of every arena region for a given
// stack-trace budget. New derives it once and carves accordingly;
// CalcMinRequiredMemory exposes its total.
type layout struct {
	stringEntries int
	stackEntries  int
	liveEntries   int
	frameBytes    uint64
	queueBytes    uint64
	queueFrames   int
}

func layoutFor(bytesForStacktrace uint64) layout {
	b := bytesForStacktrace
	return layout{
		stringEntries: ceilPow2(maxU64(minStringEntries, b/64)),
		stackEntries:  ceilPow2(maxU64(minStackEntries, b/128)),
		liveEntries:   ceilPow2(maxU64(minLiveEntries, b/32)),
		frameBytes:    align8(maxU64(minFrameBytes, b/2)),
		queueBytes:    align8(maxU64(minQueueBytes, 2*b)),
		queueFrames:   queueFrames,
	}
}

// total is the exact number of buffer bytes New will carve. Every term
// is a multiple of the arena alignment, so no padding is lost between
// regions.
func (l layout) total() uint64 {
	return arena.StampBytes +
		uint64(l.stringEntries)*intern.StringEntryBytes +
		uint64(l.stackEntries)*intern.StackEntryBytes +
		uint64(l.liveEntries)*track.EntryBytes +
		l.frameBytes +
		l.queueBytes +
		uint64(l.queueFrames)*queue.DescBytes
}

// CalcMinRequiredMemory reports the smallest buffer New accepts for the
// given stack-trace budget. Pure and monotonic, so hosts can size a
// static buffer at compile or startup time.
func CalcMinRequiredMemory(bytesForStacktrace uint64) uint64 {
	return layoutFor(bytesForStacktrace).total()
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func align8(v uint64) uint64 {
	return (v + 7) &^ 7
}

// ceilPow2 rounds v up to a power of two. Inputs are region capacities,
// far below the overflow range.
func ceilPow2(v uint64) int {
	n := uint64(1)
	for n < v {
		n <<= 1
	}
	return int(n)
}
