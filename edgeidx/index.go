// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚡ EDGE HASH INDEX
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Persistent Self-Modifying Graph Engine
// Component: (src,dst) → Edge-Position Lookup Table
//
// Description:
//   Open-addressing hash table mapping a packed 64-bit edge key to a position in the
//   persistent edge array. Linear probing with a zero-key empty sentinel, avalanche
//   mixing for slot selection, and growth-by-doubling at 70% load.
//
// Design Principles:
//   - Power-of-2 sizing for mask-based modulo
//   - Resize is checked at the START of insert, never lazily, so occupancy is bounded
//     below 70% and every probe chain terminates at an empty slot
//   - Remove uses backward-shift deletion (no tombstones): the vacated slot is refilled
//     by sliding later chain members back, so an empty slot always proves absence
//   - Rebuildable: the table is derived state; the edge array is the source of truth
//   - Key 0 never occurs because self-loop edges (src==dst==0 included) are rejected
//     before reaching the index
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package edgeidx

import (
	"main/constants"
	"main/utils"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// TYPE DEFINITIONS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Index is the lookup table. Parallel key/position arrays keep probe scans
// on a single cache stream.
//
//go:align 64
type Index struct {
	keys []uint64 // packed (src<<32)|dst keys (0 = empty sentinel)
	pos  []uint32 // edge-array positions (parallel to keys)
	mask uint64   // size mask for fast modulo
	used uint32   // occupied slot count
}

// Key packs an ordered node pair into the table key.
//
//go:nosplit
//go:inline
func Key(src, dst uint32) uint64 {
	return uint64(src)<<32 | uint64(dst)
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// UTILITY FUNCTIONS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// nextPow2 calculates the smallest power of 2 greater than or equal to n.
//
//go:nosplit
//go:inline
func nextPow2(n int) uint64 {
	s := uint64(1)
	for s < uint64(n) {
		s <<= 1
	}
	return s
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CONSTRUCTOR
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// New creates an index sized for the expected entry count with load-factor
// headroom. Sizing doubles the requested capacity and rounds up to a power
// of 2 so the table starts well under the 70% resize trigger.
func New(capacity int) *Index {
	if capacity < 8 {
		capacity = 8
	}
	sz := nextPow2(capacity * 2)
	return &Index{
		keys: make([]uint64, sz),
		pos:  make([]uint32, sz),
		mask: sz - 1,
	}
}

// Len reports the number of live entries.
//
//go:nosplit
//go:inline
func (ix *Index) Len() int { return int(ix.used) }

// Size reports the slot count (for diagnostics and tests).
//
//go:nosplit
//go:inline
func (ix *Index) Size() int { return len(ix.keys) }

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CORE OPERATIONS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Insert records key (src,dst) → p, overwriting a matching key in place
// (idempotent re-insert) or claiming the first empty slot. The load check
// runs before probing so the table never crosses 70% occupancy.
//
//go:nosplit
func (ix *Index) Insert(src, dst, p uint32) {
	key := Key(src, dst)
	if key == 0 {
		return // (0,0) is the empty sentinel; callers reject self-loops first
	}
	if uint64(ix.used+1)*constants.IndexLoadDen >= uint64(len(ix.keys))*constants.IndexLoadNum {
		ix.resize(len(ix.keys) * 2)
	}
	i := utils.Mix64(key) & ix.mask
	for n := 0; n < len(ix.keys); n++ {
		k := ix.keys[i]
		if k == key {
			ix.pos[i] = p
			return
		}
		if k == 0 {
			ix.keys[i], ix.pos[i] = key, p
			ix.used++
			return
		}
		i = (i + 1) & ix.mask
	}
	// Unreachable while the load invariant holds; bounded probe above keeps
	// a violated invariant from spinning forever.
}

// Find returns the edge position for (src,dst). The scan stops at the
// first empty slot: backward-shift removal keeps every surviving chain
// contiguous, so an empty slot proves absence.
//
//go:nosplit
func (ix *Index) Find(src, dst uint32) (uint32, bool) {
	key := Key(src, dst)
	if key == 0 {
		return 0, false
	}
	i := utils.Mix64(key) & ix.mask
	for n := 0; n < len(ix.keys); n++ {
		k := ix.keys[i]
		if k == 0 {
			return 0, false
		}
		if k == key {
			return ix.pos[i], true
		}
		i = (i + 1) & ix.mask
	}
	return 0, false
}

// Remove deletes (src,dst) and backward-shifts the rest of its probe
// chain into the vacated slot. Clearing in place would leave a hole that
// truncates the chain of any key inserted past the victim, making a live
// entry unfindable; the shift keeps chains contiguous without tombstones.
//
//go:nosplit
func (ix *Index) Remove(src, dst uint32) {
	key := Key(src, dst)
	if key == 0 {
		return
	}
	i := utils.Mix64(key) & ix.mask
	for n := 0; n < len(ix.keys); n++ {
		k := ix.keys[i]
		if k == 0 {
			return
		}
		if k == key {
			ix.shiftBack(i)
			ix.used--
			return
		}
		i = (i + 1) & ix.mask
	}
}

// shiftBack refills the hole at slot i from the chain that follows it. An
// entry at slot j may slide into the hole only when its home slot lies
// cyclically at or before i, i.e. its probe path already passes through i;
// entries homed strictly inside (i, j] must stay put. The walk ends at the
// first empty slot, which the sub-70% load bound guarantees exists.
//
//go:nosplit
func (ix *Index) shiftBack(i uint64) {
	j := (i + 1) & ix.mask
	for ix.keys[j] != 0 {
		home := utils.Mix64(ix.keys[j]) & ix.mask
		if (j-home)&ix.mask >= (j-i)&ix.mask {
			ix.keys[i], ix.pos[i] = ix.keys[j], ix.pos[j]
			i = j
		}
		j = (j + 1) & ix.mask
	}
	ix.keys[i] = 0
	ix.pos[i] = 0
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// RESIZE
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// resize rehashes every occupied slot into a fresh table using the STORED
// key, not the backing edge array, so entries pointing at already
// tombstoned edges survive until the next rebuild.
func (ix *Index) resize(newSize int) {
	oldKeys, oldPos := ix.keys, ix.pos
	sz := nextPow2(newSize)
	ix.keys = make([]uint64, sz)
	ix.pos = make([]uint32, sz)
	ix.mask = sz - 1
	ix.used = 0
	for j, k := range oldKeys {
		if k == 0 {
			continue
		}
		i := utils.Mix64(k) & ix.mask
		for ix.keys[i] != 0 {
			i = (i + 1) & ix.mask
		}
		ix.keys[i], ix.pos[i] = k, oldPos[j]
		ix.used++
	}
}
