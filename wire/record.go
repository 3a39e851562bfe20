package wire

// Stream header: magic then version, both u32 little-endian.
const (
	Magic   uint32 = 0x5357564d // "MVWS"
	Version uint32 = 1

	StreamHeaderLen = 8
	FrameHeaderLen  = 12 // payload length u32 + sequence u64
)

// Tag identifies a record type on the wire.
type Tag uint8

const (
	TagStringDefine Tag = 1 + iota
	TagStringRef
	TagStackDefine
	TagStackRef
	TagAlloc
	TagFree
	TagMarker
)

// MarkerKind identifies a diagnostic condition forwarded to the viewer.
type MarkerKind uint8

const (
	// MarkerDroppedFrames: value holds how many whole frames the
	// outbound queue discarded since the last report.
	MarkerDroppedFrames MarkerKind = 1 + iota
	// MarkerDoubleAlloc: value holds the address allocated twice
	// without an intervening free.
	MarkerDoubleAlloc
	// MarkerStackMismatch: value holds the stack identifier reused
	// with different content.
	MarkerStackMismatch
	// MarkerEviction: value holds the address the live index lost
	// track of when it ran out of capacity.
	MarkerEviction
	// MarkerStringTableFull / MarkerStackTableFull: emitted once when
	// an intern table stops admitting new entries. Value is zero.
	MarkerStringTableFull
	MarkerStackTableFull
	// MarkerTruncatedFrame: value holds how many records the frame
	// scratch buffer could not hold.
	MarkerTruncatedFrame
)

// Record is a decoded wire record. Only the fields relevant to Tag are
// set; Bytes aliases the decoder's buffer only until the next read.
type Record struct {
	Tag    Tag
	ID     uint64
	Addr   uint64
	Size   uint64
	Region uint64
	Stack  uint64
	Marker MarkerKind
	Value  uint64
	Bytes  []byte
}

// Frame is one decoded batch of records.
type Frame struct {
	Seq     uint64
	Records []Record
}
