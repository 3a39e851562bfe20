package intern

import (
	"fmt"
	"testing"
)

func TestStackObserveLifecycle(t *testing.T) {
	tbl, err := NewStackTable(newArena(t, 64*1024), 256)
	if err != nil {
		t.Fatalf("NewStackTable failed: %v", err)
	}

	trace := []byte("main;alloc_buffer;malloc")

	if got := tbl.Observe(42, trace); got != StackNew {
		t.Fatalf("first use = %v, want StackNew", got)
	}
	if got := tbl.Observe(42, trace); got != StackSeen {
		t.Fatalf("repeat use = %v, want StackSeen", got)
	}

	// Same identifier, different content: a protocol violation. The
	// table adopts the new content.
	other := []byte("main;resize;realloc")
	if got := tbl.Observe(42, other); got != StackMismatch {
		t.Fatalf("reuse with new content = %v, want StackMismatch", got)
	}
	if got := tbl.Observe(42, other); got != StackSeen {
		t.Fatalf("after adoption = %v, want StackSeen", got)
	}

	if tbl.Len() != 1 {
		t.Fatalf("Len = %d, want 1", tbl.Len())
	}
}

func TestStackObserveZeroIdentifier(t *testing.T) {
	tbl, err := NewStackTable(newArena(t, 64*1024), 256)
	if err != nil {
		t.Fatalf("NewStackTable failed: %v", err)
	}

	if got := tbl.Observe(0, []byte("a")); got != StackNew {
		t.Fatalf("id 0 first use = %v, want StackNew", got)
	}
	if got := tbl.Observe(0, []byte("a")); got != StackSeen {
		t.Fatalf("id 0 repeat = %v, want StackSeen", got)
	}
}

func TestStackObserveTableFull(t *testing.T) {
	tbl, err := NewStackTable(newArena(t, 64*1024), 32)
	if err != nil {
		t.Fatalf("NewStackTable failed: %v", err)
	}

	dropped := 0
	for i := uint64(0); i < 200; i++ {
		if tbl.Observe(i, []byte(fmt.Sprintf("t%d", i))) == StackDropped {
			dropped++
		}
	}
	if dropped == 0 {
		t.Fatal("expected drops once the table filled")
	}

	// Identifier 0 was admitted first; it must still be recognized.
	if got := tbl.Observe(0, []byte("t0")); got != StackSeen {
		t.Fatalf("established identifier = %v, want StackSeen", got)
	}
}
