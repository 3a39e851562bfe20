// Package memview is an in-process memory-allocation instrumentation
// runtime. Linked into a host application, it observes the heap
// allocations and frees the host reports and streams a compact,
// deduplicated event log to an external viewer over a byte stream.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct
// responsibilities:
//
//	memview/          Root package: the Runtime context object and API
//	├── arena/        Fixed-buffer partitioning; all state lives here
//	├── intern/       String and stack dedup tables
//	├── track/        Live allocation index
//	├── wire/         Record encoding and the stream/frame layout
//	├── queue/        Bounded outbound frame ring with drop policy
//	├── session/      Connection lifecycle and pump
//	├── transport/    TCP implementation of the viewer boundary
//	└── errors/       Structured error types
//
// # Quick Start
//
// Size a buffer, create the runtime, wait for the viewer, report events:
//
//	buf := make([]byte, memview.CalcMinRequiredMemory(64*1024))
//	tr, _ := transport.Listen("127.0.0.1:7421")
//	rt, err := memview.New(buf, memview.Config{
//	    BytesForStacktrace: 64 * 1024,
//	    Transport:          tr,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//
//	rt.WaitForConnection(ctx)
//	// per allocation:
//	rt.Alloc(addr, size, regionID)
//	// per tick:
//	rt.Frame()
//	rt.Pump()
//
// # The No-Self-Allocation Rule
//
// Every internal structure is carved out of the caller-supplied buffer
// when New runs. After that, no call on the event surface (Alloc, Free,
// StringID, Stack, Frame) touches the host's allocator: a runtime that
// allocated while observing allocations would recursively feed its own
// event stream. Capacity pressure is answered by dropping and counting,
// never by growing.
//
// # Thread Safety
//
// The event surface is safe for concurrent use from any number of host
// threads and adds only short, sharded critical sections on the hot
// path. Frame and Pump belong to one control thread; they may run
// concurrently with event calls but not with themselves. Close must not
// race in-flight events: the host quiesces instrumentation first.
package memview
