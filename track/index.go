package track

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/memviewlab/memview/arena"
	"github.com/memviewlab/memview/errors"
)

// NumShards is the fixed shard count of the index. Capacity must be a
// power of two and at least NumShards.
const NumShards = 16

// EntryBytes is the arena cost of one index slot, used by the runtime's
// sizing math.
const EntryBytes = 48

// Record describes one live allocation.
type Record struct {
	Addr   uint64
	Size   uint64
	Region uint64
	Stack  uint64
}

// InsertResult classifies one Insert call.
type InsertResult int

const (
	// Inserted: plain insert into a free slot.
	Inserted InsertResult = iota
	// Replaced: the address already had a live record. Double-alloc
	// without an intervening free; the old record was evicted.
	Replaced
	// Evicted: the shard was full and its oldest record was dropped
	// to make room.
	Evicted
)

// Slot states. Tombstones keep probe chains intact across deletes.
const (
	slotEmpty uint64 = iota
	slotLive
	slotTomb
)

type entry struct {
	addr   uint64
	size   uint64
	region uint64
	stack  uint64
	seq    uint64
	state  uint64
}

type shard struct {
	mu      sync.Mutex
	entries []entry
	used    int
}

// Index tracks address -> (size, region, stack) for live allocations.
type Index struct {
	shards [NumShards]shard
	seq    atomic.Uint64
}

// New carves an index of the given capacity from a. Capacity must be a
// power of two and at least NumShards.
func New(a *arena.Arena, capacity int) (*Index, error) {
	if capacity < NumShards || capacity&(capacity-1) != 0 {
		return nil, errors.New(errors.PhaseInit, errors.KindInsufficientBuffer).
			Detail("live index capacity %d must be a power of two >= %d", capacity, NumShards).
			Build()
	}
	entries, err := arena.Slice[entry](a, capacity)
	if err != nil {
		return nil, err
	}
	ix := &Index{}
	per := capacity / NumShards
	for i := range ix.shards {
		ix.shards[i].entries = entries[i*per : (i+1)*per]
	}
	return ix, nil
}

// Insert records a live allocation. When the address is already live the
// previous record is replaced and returned with Replaced. When the shard
// is at capacity its oldest record is dropped and returned with Evicted.
func (ix *Index) Insert(rec Record) (InsertResult, Record) {
	s := ix.shard(rec.Addr)

	s.mu.Lock()
	defer s.mu.Unlock()

	mask := uint64(len(s.entries) - 1)
	idx := mix64(rec.Addr) & mask
	free := -1
	for range s.entries {
		e := &s.entries[idx]
		switch e.state {
		case slotEmpty:
			if free < 0 {
				free = int(idx)
			}
			return ix.place(s, free, rec)
		case slotTomb:
			if free < 0 {
				free = int(idx)
			}
		case slotLive:
			if e.addr == rec.Addr {
				old := recordOf(e)
				e.size = rec.Size
				e.region = rec.Region
				e.stack = rec.Stack
				e.seq = ix.seq.Inc()
				return Replaced, old
			}
		}
		idx = (idx + 1) & mask
	}
	// No empty slot ended the probe: every slot is live or tombstoned.
	return ix.place(s, free, rec)
}

// place fills slot free with rec, evicting the shard's oldest record
// first if the occupancy cap is reached.
func (ix *Index) place(s *shard, free int, rec Record) (InsertResult, Record) {
	res, victim := Inserted, Record{}
	if s.used >= shardMax(len(s.entries)) || free < 0 {
		res = Evicted
		victim = ix.evictOldest(s)
		if free < 0 {
			// Reuse the victim's slot.
			for i := range s.entries {
				if s.entries[i].state == slotTomb && s.entries[i].addr == victim.Addr {
					free = i
					break
				}
			}
		}
	}
	e := &s.entries[free]
	e.addr = rec.Addr
	e.size = rec.Size
	e.region = rec.Region
	e.stack = rec.Stack
	e.seq = ix.seq.Inc()
	e.state = slotLive
	s.used++
	return res, victim
}

// evictOldest tombstones the live entry with the smallest sequence
// number and returns it. Oldest is per shard, not global: shards lock
// independently, so a global minimum would mean taking every lock on
// the insert path. Insertion order is approximated within a factor of
// the shard count.
func (ix *Index) evictOldest(s *shard) Record {
	oldest := -1
	for i := range s.entries {
		e := &s.entries[i]
		if e.state != slotLive {
			continue
		}
		if oldest < 0 || e.seq < s.entries[oldest].seq {
			oldest = i
		}
	}
	if oldest < 0 {
		return Record{}
	}
	victim := recordOf(&s.entries[oldest])
	s.entries[oldest].state = slotTomb
	s.used--
	return victim
}

// Remove drops the live record for addr, if any.
func (ix *Index) Remove(addr uint64) (Record, bool) {
	s := ix.shard(addr)

	s.mu.Lock()
	defer s.mu.Unlock()

	mask := uint64(len(s.entries) - 1)
	idx := mix64(addr) & mask
	for range s.entries {
		e := &s.entries[idx]
		switch e.state {
		case slotEmpty:
			return Record{}, false
		case slotLive:
			if e.addr == addr {
				rec := recordOf(e)
				e.state = slotTomb
				s.used--
				return rec, true
			}
		}
		idx = (idx + 1) & mask
	}
	return Record{}, false
}

// Lookup returns the live record for addr, if any.
func (ix *Index) Lookup(addr uint64) (Record, bool) {
	s := ix.shard(addr)

	s.mu.Lock()
	defer s.mu.Unlock()

	mask := uint64(len(s.entries) - 1)
	idx := mix64(addr) & mask
	for range s.entries {
		e := &s.entries[idx]
		if e.state == slotEmpty {
			return Record{}, false
		}
		if e.state == slotLive && e.addr == addr {
			return recordOf(e), true
		}
		idx = (idx + 1) & mask
	}
	return Record{}, false
}

// Len reports the number of live records.
func (ix *Index) Len() int {
	n := 0
	for i := range ix.shards {
		s := &ix.shards[i]
		s.mu.Lock()
		n += s.used
		s.mu.Unlock()
	}
	return n
}

func (ix *Index) shard(addr uint64) *shard {
	return &ix.shards[(mix64(addr)>>56)&(NumShards-1)]
}

func recordOf(e *entry) Record {
	return Record{Addr: e.addr, Size: e.size, Region: e.region, Stack: e.stack}
}

// shardMax caps shard occupancy at 7/8, and always below capacity, so
// probe chains terminate on an empty slot.
func shardMax(n int) int {
	m := n * 7 / 8
	if m >= n {
		m = n - 1
	}
	return m
}

// mix64 is the splitmix64 finalizer.
func mix64(v uint64) uint64 {
	v ^= v >> 30
	v *= 0xbf58476d1ce4e5b9
	v ^= v >> 27
	v *= 0x94d049bb133111eb
	v ^= v >> 31
	return v
}
