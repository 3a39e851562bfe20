package intern

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/memviewlab/memview/arena"
	"github.com/memviewlab/memview/errors"
)

// StackOutcome classifies one Observe call.
type StackOutcome int

const (
	// StackNew: first use of the identifier; emit the full definition.
	StackNew StackOutcome = iota
	// StackSeen: identifier already defined with the same content;
	// a reference record is enough.
	StackSeen
	// StackMismatch: identifier reused with different content. The
	// table adopts the new content; the caller reports the violation
	// and re-emits the definition.
	StackMismatch
	// StackDropped: table full, the identifier was not admitted.
	StackDropped
)

// stackEntry is one slot of the stack index. key holds the caller's
// identifier plus one, so 0 can mark an empty slot.
type stackEntry struct {
	key  uint64
	hash uint64
}

type stackShard struct {
	mu      sync.Mutex
	entries []stackEntry
	used    int
}

// StackTable tracks which caller-asserted stack identifiers have been
// defined, and with what content fingerprint.
type StackTable struct {
	shards [NumShards]stackShard
}

// NewStackTable carves a table of the given capacity from a. Capacity
// must be a power of two and at least NumShards.
func NewStackTable(a *arena.Arena, capacity int) (*StackTable, error) {
	if capacity < NumShards || capacity&(capacity-1) != 0 {
		return nil, errors.New(errors.PhaseInit, errors.KindInsufficientBuffer).
			Detail("stack table capacity %d must be a power of two >= %d", capacity, NumShards).
			Build()
	}
	entries, err := arena.Slice[stackEntry](a, capacity)
	if err != nil {
		return nil, err
	}
	t := &StackTable{}
	per := capacity / NumShards
	for i := range t.shards {
		t.shards[i].entries = entries[i*per : (i+1)*per]
	}
	return t, nil
}

// Observe records a use of stackID with the given content and reports
// whether the identifier is new, repeated, repeated with different
// content, or dropped because the table is full.
func (t *StackTable) Observe(stackID uint64, content []byte) StackOutcome {
	key := stackID + 1
	h := xxhash.Sum64(content)
	kh := mix64(stackID)
	s := &t.shards[(kh>>56)&(NumShards-1)]

	s.mu.Lock()
	defer s.mu.Unlock()

	mask := uint64(len(s.entries) - 1)
	idx := kh & mask
	for range s.entries {
		e := &s.entries[idx]
		if e.key == 0 {
			if s.used >= shardMax(len(s.entries)) {
				return StackDropped
			}
			e.key = key
			e.hash = h
			s.used++
			return StackNew
		}
		if e.key == key {
			if e.hash == h {
				return StackSeen
			}
			e.hash = h
			return StackMismatch
		}
		idx = (idx + 1) & mask
	}
	return StackDropped
}

// Len reports the number of defined stack identifiers.
func (t *StackTable) Len() int {
	n := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		n += s.used
		s.mu.Unlock()
	}
	return n
}

// mix64 is the splitmix64 finalizer, used to spread integer keys
// without touching the heap.
func mix64(v uint64) uint64 {
	v ^= v >> 30
	v *= 0xbf58476d1ce4e5b9
	v ^= v >> 27
	v *= 0x94d049bb133111eb
	v ^= v >> 31
	return v
}
