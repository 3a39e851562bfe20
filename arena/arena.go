package arena

import (
	"encoding/binary"
	"unsafe"

	"github.com/memviewlab/memview/errors"
)

// Alignment is the required alignment of the buffer base pointer and of
// every carved region.
const Alignment = 8

// StampBytes is the arena's fixed overhead at the head of the buffer.
const StampBytes = 8

// stampMagic marks a buffer as owned by a live runtime instance.
const stampMagic uint64 = 0x314e5552_5756_4d00 // "\0MVWRUN1" little-endian

// Arena carves aligned regions out of a single caller-owned buffer.
// Carving happens only during construction of the structures built on
// top; the arena never grows and never frees individual regions.
type Arena struct {
	buf []byte
	off uint64
}

// New claims buf for a runtime instance. It fails if the buffer is too
// small to hold the ownership stamp, if its base pointer is not
// Alignment-aligned, or if the buffer is already stamped by a live
// instance.
func New(buf []byte) (*Arena, error) {
	if uint64(len(buf)) < StampBytes {
		return nil, errors.InsufficientBuffer(uint64(len(buf)), StampBytes)
	}
	if uintptr(unsafe.Pointer(&buf[0]))%Alignment != 0 {
		return nil, errors.MisalignedBuffer(Alignment)
	}
	if binary.LittleEndian.Uint64(buf) == stampMagic {
		return nil, errors.AlreadyInitialized()
	}
	binary.LittleEndian.PutUint64(buf, stampMagic)
	return &Arena{buf: buf, off: StampBytes}, nil
}

// Carve returns the next n bytes of the buffer, aligned and zeroed.
// The returned slice has capacity n, so appends cannot spill into
// neighboring regions.
func (a *Arena) Carve(n uint64) ([]byte, error) {
	off := (a.off + Alignment - 1) &^ uint64(Alignment-1)
	if off+n < off || off+n > uint64(len(a.buf)) {
		return nil, errors.New(errors.PhaseInit, errors.KindInsufficientBuffer).
			Detail("region of %d bytes exceeds arena (%d of %d used)", n, a.off, len(a.buf)).
			Build()
	}
	s := a.buf[off : off+n : off+n]
	clear(s)
	a.off = off + n
	return s, nil
}

// Remaining reports how many bytes are still available for carving.
func (a *Arena) Remaining() uint64 {
	off := (a.off + Alignment - 1) &^ uint64(Alignment-1)
	if off > uint64(len(a.buf)) {
		return 0
	}
	return uint64(len(a.buf)) - off
}

// Release clears the ownership stamp and detaches from the buffer.
// The buffer is the host's again; the arena must not be used afterwards.
func (a *Arena) Release() {
	if a.buf == nil {
		return
	}
	binary.LittleEndian.PutUint64(a.buf, 0)
	a.buf = nil
	a.off = 0
}

// Slice carves storage for count values of T and reinterprets it as a
// typed slice. T must not contain pointers: the region lives inside the
// caller's byte buffer and is invisible to the garbage collector.
func Slice[T any](a *Arena, count int) ([]T, error) {
	var zero T
	size := uint64(unsafe.Sizeof(zero))
	b, err := a.Carve(size * uint64(count))
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), count), nil
}
