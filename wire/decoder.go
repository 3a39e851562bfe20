package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Decoder reads a memview event stream. It runs on the viewer side, so
// unlike the encoder it is free to allocate.
type Decoder struct {
	r       *bufio.Reader
	scratch []byte
}

// NewDecoder wraps r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// ReadStreamHeader consumes and validates the stream header, returning
// the stream version.
func (d *Decoder) ReadStreamHeader() (uint32, error) {
	var hdr [StreamHeaderLen]byte
	if _, err := io.ReadFull(d.r, hdr[:]); err != nil {
		return 0, fmt.Errorf("read stream header: %w", err)
	}
	if magic := binary.LittleEndian.Uint32(hdr[:]); magic != Magic {
		return 0, fmt.Errorf("bad stream magic %#x", magic)
	}
	v := binary.LittleEndian.Uint32(hdr[4:])
	if v != Version {
		return 0, fmt.Errorf("unsupported stream version %d", v)
	}
	return v, nil
}

// Next reads one frame. It returns io.EOF at a clean end of stream.
func (d *Decoder) Next() (Frame, error) {
	var hdr [FrameHeaderLen]byte
	if _, err := io.ReadFull(d.r, hdr[:]); err != nil {
		if err == io.EOF {
			return Frame{}, io.EOF
		}
		return Frame{}, fmt.Errorf("read frame header: %w", err)
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	frame := Frame{Seq: binary.LittleEndian.Uint64(hdr[4:])}

	if cap(d.scratch) < int(n) {
		d.scratch = make([]byte, n)
	}
	payload := d.scratch[:n]
	if _, err := io.ReadFull(d.r, payload); err != nil {
		return Frame{}, fmt.Errorf("read frame %d payload: %w", frame.Seq, err)
	}

	for len(payload) > 0 {
		rec, rest, err := decodeRecord(payload)
		if err != nil {
			return Frame{}, fmt.Errorf("frame %d: %w", frame.Seq, err)
		}
		frame.Records = append(frame.Records, rec)
		payload = rest
	}
	return frame, nil
}

func decodeRecord(b []byte) (Record, []byte, error) {
	tag := Tag(b[0])
	b = b[1:]
	rec := Record{Tag: tag}

	switch tag {
	case TagStringDefine, TagStackDefine:
		if len(b) < 12 {
			return rec, nil, fmt.Errorf("short define record")
		}
		rec.ID = binary.LittleEndian.Uint64(b)
		n := binary.LittleEndian.Uint32(b[8:])
		if uint32(len(b)-12) < n {
			return rec, nil, fmt.Errorf("define record content overruns frame")
		}
		rec.Bytes = b[12 : 12+n]
		return rec, b[12+n:], nil

	case TagStringRef, TagStackRef:
		if len(b) < 8 {
			return rec, nil, fmt.Errorf("short reference record")
		}
		rec.ID = binary.LittleEndian.Uint64(b)
		return rec, b[8:], nil

	case TagAlloc:
		if len(b) < 32 {
			return rec, nil, fmt.Errorf("short alloc record")
		}
		rec.Addr = binary.LittleEndian.Uint64(b)
		rec.Size = binary.LittleEndian.Uint64(b[8:])
		rec.Region = binary.LittleEndian.Uint64(b[16:])
		rec.Stack = binary.LittleEndian.Uint64(b[24:])
		return rec, b[32:], nil

	case TagFree:
		if len(b) < 8 {
			return rec, nil, fmt.Errorf("short free record")
		}
		rec.Addr = binary.LittleEndian.Uint64(b)
		return rec, b[8:], nil

	case TagMarker:
		if len(b) < 9 {
			return rec, nil, fmt.Errorf("short marker record")
		}
		rec.Marker = MarkerKind(b[0])
		rec.Value = binary.LittleEndian.Uint64(b[1:])
		return rec, b[9:], nil

	default:
		return rec, nil, fmt.Errorf("unknown record tag %d", tag)
	}
}
