package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/memviewlab/memview/wire"
)

func main() {
	var (
		addr        = flag.String("addr", "127.0.0.1:7421", "Address of the instrumented process")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *interactive {
		if err := runInteractive(*addr); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*addr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	dec := wire.NewDecoder(conn)
	version, err := dec.ReadStreamHeader()
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	fmt.Printf("Connected to %s (stream version %d)\n", addr, version)

	view := newStreamView()
	for {
		frame, err := dec.Next()
		if err == io.EOF {
			fmt.Println("\nStream ended.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("decode: %w", err)
		}
		view.apply(frame)
		printFrame(frame, view)
	}
}

func printFrame(frame wire.Frame, view *streamView) {
	fmt.Printf("frame %d: %d records, %d live, %s in use\n",
		frame.Seq, len(frame.Records), view.liveCount, humanize.IBytes(view.liveBytes))
	for _, rec := range frame.Records {
		switch rec.Tag {
		case wire.TagStringDefine:
			fmt.Printf("  string %d = %q\n", rec.ID, rec.Bytes)
		case wire.TagStackDefine:
			fmt.Printf("  stack %d defined (%d bytes)\n", rec.ID, len(rec.Bytes))
		case wire.TagMarker:
			fmt.Printf("  marker %s value=%d\n", markerName(rec.Marker), rec.Value)
		}
	}
}

func markerName(k wire.MarkerKind) string {
	switch k {
	case wire.MarkerDroppedFrames:
		return "dropped-frames"
	case wire.MarkerDoubleAlloc:
		return "double-alloc"
	case wire.MarkerStackMismatch:
		return "stack-mismatch"
	case wire.MarkerEviction:
		return "eviction"
	case wire.MarkerStringTableFull:
		return "string-table-full"
	case wire.MarkerStackTableFull:
		return "stack-table-full"
	case wire.MarkerTruncatedFrame:
		return "truncated-frame"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// streamView folds frames into per-region live statistics.
type streamView struct {
	liveCount uint64
	liveBytes uint64
	regions   map[uint64]*regionStats
	live      map[uint64]liveAlloc
	frames    uint64
	markers   uint64
}

type regionStats struct {
	liveCount  uint64
	liveBytes  uint64
	totalAlloc uint64
}

type liveAlloc struct {
	size   uint64
	region uint64
}

func newStreamView() *streamView {
	return &streamView{
		regions: map[uint64]*regionStats{},
		live:    map[uint64]liveAlloc{},
	}
}

func (v *streamView) apply(frame wire.Frame) {
	v.frames++
	for _, rec := range frame.Records {
		switch rec.Tag {
		case wire.TagAlloc:
			if old, ok := v.live[rec.Addr]; ok {
				v.drop(rec.Addr, old)
			}
			v.live[rec.Addr] = liveAlloc{size: rec.Size, region: rec.Region}
			r := v.region(rec.Region)
			r.liveCount++
			r.liveBytes += rec.Size
			r.totalAlloc += rec.Size
			v.liveCount++
			v.liveBytes += rec.Size
		case wire.TagFree:
			if old, ok := v.live[rec.Addr]; ok {
				v.drop(rec.Addr, old)
			}
		case wire.TagMarker:
			v.markers++
			if rec.Marker == wire.MarkerEviction {
				if old, ok := v.live[rec.Value]; ok {
					v.drop(rec.Value, old)
				}
			}
		}
	}
}

func (v *streamView) drop(addr uint64, a liveAlloc) {
	delete(v.live, addr)
	r := v.region(a.region)
	r.liveCount--
	r.liveBytes -= a.size
	v.liveCount--
	v.liveBytes -= a.size
}

func (v *streamView) region(id uint64) *regionStats {
	r, ok := v.regions[id]
	if !ok {
		r = &regionStats{}
		v.regions[id] = r
	}
	return r
}
