package intern

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/atomic"

	"github.com/memviewlab/memview/arena"
	"github.com/memviewlab/memview/errors"
)

// NumShards is the fixed shard count of both intern tables. Table
// capacities must be a power of two and at least NumShards.
const NumShards = 16

// Arena bytes per table slot, used by the runtime's sizing math.
const (
	StringEntryBytes = 16
	StackEntryBytes  = 16
)

// shardMax caps shard occupancy at 7/8, and always below capacity, so
// probe chains terminate on an empty slot.
func shardMax(n int) int {
	m := n * 7 / 8
	if m >= n {
		m = n - 1
	}
	return m
}

// stringEntry is one slot of the string index. id 0 marks an empty slot;
// assigned identifiers start at 1.
type stringEntry struct {
	hash uint64
	id   uint64
}

type stringShard struct {
	mu      sync.Mutex
	entries []stringEntry
	used    int
}

// StringTable interns byte strings into dense identifiers. Identical
// content always maps to the same identifier for the life of the table.
type StringTable struct {
	shards [NumShards]stringShard
	nextID atomic.Uint64
}

// NewStringTable carves a table of the given capacity from a. Capacity
// must be a power of two and at least NumShards.
func NewStringTable(a *arena.Arena, capacity int) (*StringTable, error) {
	if capacity < NumShards || capacity&(capacity-1) != 0 {
		return nil, errors.New(errors.PhaseInit, errors.KindInsufficientBuffer).
			Detail("string table capacity %d must be a power of two >= %d", capacity, NumShards).
			Build()
	}
	entries, err := arena.Slice[stringEntry](a, capacity)
	if err != nil {
		return nil, err
	}
	t := &StringTable{}
	per := capacity / NumShards
	for i := range t.shards {
		t.shards[i].entries = entries[i*per : (i+1)*per]
	}
	return t, nil
}

// Intern returns the identifier for content. fresh is true when this is
// the first time the content was seen, meaning the caller must emit its
// definition. ok is false when the table is full and the content could
// not be admitted; the returned id is then 0.
func (t *StringTable) Intern(content []byte) (id uint64, fresh, ok bool) {
	h := xxhash.Sum64(content)
	s := &t.shards[(h>>56)&(NumShards-1)]

	s.mu.Lock()
	defer s.mu.Unlock()

	mask := uint64(len(s.entries) - 1)
	idx := h & mask
	for range s.entries {
		e := &s.entries[idx]
		if e.id == 0 {
			if s.used >= shardMax(len(s.entries)) {
				return 0, false, false
			}
			e.hash = h
			e.id = t.nextID.Inc()
			s.used++
			return e.id, true, true
		}
		if e.hash == h {
			return e.id, false, true
		}
		idx = (idx + 1) & mask
	}
	return 0, false, false
}

// Len reports the number of interned strings.
func (t *StringTable) Len() int {
	n := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		n += s.used
		s.mu.Unlock()
	}
	return n
}
