package arena

import (
	"testing"

	"github.com/memviewlab/memview/errors"
)

func TestNewClaimsAndReleases(t *testing.T) {
	buf := make([]byte, 128)

	a, err := New(buf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// Second claim over the same live buffer must be refused.
	if _, err := New(buf); !errors.IsKind(err, errors.KindAlreadyInitialized) {
		t.Fatalf("expected already_initialized, got %v", err)
	}

	a.Release()

	// After release the buffer is claimable again.
	if _, err := New(buf); err != nil {
		t.Fatalf("New after Release failed: %v", err)
	}
}

func TestNewRejectsTinyBuffer(t *testing.T) {
	if _, err := New(make([]byte, 4)); !errors.IsKind(err, errors.KindInsufficientBuffer) {
		t.Fatalf("expected insufficient_buffer, got %v", err)
	}
}

func TestNewRejectsMisalignedBuffer(t *testing.T) {
	backing := make([]byte, 64)
	// Shift the base by one byte off the 8-byte boundary.
	if _, err := New(backing[1:]); !errors.IsKind(err, errors.KindMisalignedBuffer) {
		t.Fatalf("expected misaligned_buffer, got %v", err)
	}
}

func TestCarveAlignmentAndExhaustion(t *testing.T) {
	a, err := New(make([]byte, 64))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	first, err := a.Carve(3)
	if err != nil {
		t.Fatalf("Carve(3) failed: %v", err)
	}
	if len(first) != 3 || cap(first) != 3 {
		t.Fatalf("Carve(3) returned len=%d cap=%d", len(first), cap(first))
	}

	// Next carve must start on the following 8-byte boundary.
	second, err := a.Carve(8)
	if err != nil {
		t.Fatalf("Carve(8) failed: %v", err)
	}
	_ = second

	// 64 total - 8 stamp - 8 (3 rounded up) - 8 leaves 40.
	if got := a.Remaining(); got != 40 {
		t.Fatalf("Remaining = %d, want 40", got)
	}

	if _, err := a.Carve(48); !errors.IsKind(err, errors.KindInsufficientBuffer) {
		t.Fatalf("oversized carve should fail, got %v", err)
	}
}

func TestCarveZeroesRegion(t *testing.T) {
	buf := make([]byte, 64)
	for i := range buf {
		buf[i] = 0xAA
	}
	buf[0] = 0 // keep the stamp slot clear

	a, err := New(buf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s, err := a.Carve(16)
	if err != nil {
		t.Fatalf("Carve failed: %v", err)
	}
	for i, b := range s {
		if b != 0 {
			t.Fatalf("byte %d not zeroed: %#x", i, b)
		}
	}
}

func TestSliceTyped(t *testing.T) {
	a, err := New(make([]byte, 256))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	type entry struct {
		Key uint64
		Val uint64
	}
	entries, err := Slice[entry](a, 8)
	if err != nil {
		t.Fatalf("Slice failed: %v", err)
	}
	if len(entries) != 8 {
		t.Fatalf("len = %d, want 8", len(entries))
	}

	entries[7] = entry{Key: 1, Val: 2}
	if entries[7].Key != 1 || entries[7].Val != 2 {
		t.Fatal("typed slice does not hold writes")
	}
}
