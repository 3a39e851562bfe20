package wire

import "encoding/binary"

// markerLen is the encoded size of a marker record: tag, kind, value.
const markerLen = 1 + 1 + 8

// Encoder appends records to a fixed frame scratch buffer. It never
// allocates: the buffer is carved from the arena once and reused for
// every frame. The last markerLen bytes are reserved for Bytes alone,
// so the closing truncation marker always fits.
type Encoder struct {
	buf     []byte
	n       int
	lost    uint64
	markers int
}

// NewEncoder wraps buf as frame scratch space.
func NewEncoder(buf []byte) *Encoder {
	return &Encoder{buf: buf}
}

// Len reports the encoded payload length of the current frame.
func (e *Encoder) Len() int { return e.n }

// Bytes returns the current frame payload. If records were dropped for
// lack of space, a truncation marker is appended first.
func (e *Encoder) Bytes() []byte {
	if e.lost > 0 {
		v := e.lost
		e.lost = 0
		e.putMarker(MarkerTruncatedFrame, v)
	}
	return e.buf[:e.n]
}

// Reset discards the current frame payload.
func (e *Encoder) Reset() {
	e.n = 0
	e.lost = 0
	e.markers = 0
}

// Truncated reports whether the current frame dropped records.
func (e *Encoder) Truncated() bool { return e.lost > 0 }

// Markers reports how many marker records the current frame carries.
func (e *Encoder) Markers() int { return e.markers }

// StringDefine appends a string definition record.
func (e *Encoder) StringDefine(id uint64, content []byte) bool {
	return e.defineRecord(TagStringDefine, id, content)
}

// StringRef appends a string reference record.
func (e *Encoder) StringRef(id uint64) bool {
	return e.idRecord(TagStringRef, id)
}

// StackDefine appends a stack definition record.
func (e *Encoder) StackDefine(id uint64, content []byte) bool {
	return e.defineRecord(TagStackDefine, id, content)
}

// StackRef appends a stack reference record.
func (e *Encoder) StackRef(id uint64) bool {
	return e.idRecord(TagStackRef, id)
}

// Alloc appends an allocation record.
func (e *Encoder) Alloc(addr, size, region, stack uint64) bool {
	if !e.fits(1 + 4*8) {
		return false
	}
	b := e.buf[e.n:]
	b[0] = byte(TagAlloc)
	binary.LittleEndian.PutUint64(b[1:], addr)
	binary.LittleEndian.PutUint64(b[9:], size)
	binary.LittleEndian.PutUint64(b[17:], region)
	binary.LittleEndian.PutUint64(b[25:], stack)
	e.n += 1 + 4*8
	return true
}

// Free appends a deallocation record.
func (e *Encoder) Free(addr uint64) bool {
	if !e.fits(1 + 8) {
		return false
	}
	b := e.buf[e.n:]
	b[0] = byte(TagFree)
	binary.LittleEndian.PutUint64(b[1:], addr)
	e.n += 1 + 8
	return true
}

// Marker appends a diagnostic marker record. Like every other record
// it honors the reserved tail; a marker that does not fit is counted in
// the truncation marker instead.
func (e *Encoder) Marker(kind MarkerKind, value uint64) bool {
	if !e.fits(markerLen) {
		return false
	}
	e.putMarker(kind, value)
	return true
}

func (e *Encoder) putMarker(kind MarkerKind, value uint64) {
	b := e.buf[e.n:]
	b[0] = byte(TagMarker)
	b[1] = byte(kind)
	binary.LittleEndian.PutUint64(b[2:], value)
	e.n += markerLen
	e.markers++
}

func (e *Encoder) idRecord(tag Tag, id uint64) bool {
	if !e.fits(1 + 8) {
		return false
	}
	b := e.buf[e.n:]
	b[0] = byte(tag)
	binary.LittleEndian.PutUint64(b[1:], id)
	e.n += 1 + 8
	return true
}

func (e *Encoder) defineRecord(tag Tag, id uint64, content []byte) bool {
	need := 1 + 8 + 4 + len(content)
	if !e.fits(need) {
		return false
	}
	b := e.buf[e.n:]
	b[0] = byte(tag)
	binary.LittleEndian.PutUint64(b[1:], id)
	binary.LittleEndian.PutUint32(b[9:], uint32(len(content)))
	copy(b[13:], content)
	e.n += need
	return true
}

// fits checks room for need bytes while honoring the marker reserve.
// Overflow is counted so Bytes can close the frame with a truncation
// marker.
func (e *Encoder) fits(need int) bool {
	if e.n+need+markerLen > len(e.buf) {
		e.lost++
		return false
	}
	return true
}

// PutStreamHeader writes the stream header into dst, which must hold at
// least StreamHeaderLen bytes.
func PutStreamHeader(dst []byte) {
	binary.LittleEndian.PutUint32(dst, Magic)
	binary.LittleEndian.PutUint32(dst[4:], Version)
}

// PutFrameHeader writes a frame header into dst, which must hold at
// least FrameHeaderLen bytes.
func PutFrameHeader(dst []byte, payloadLen uint32, seq uint64) {
	binary.LittleEndian.PutUint32(dst, payloadLen)
	binary.LittleEndian.PutUint64(dst[4:], seq)
}
