package state

import "math"

// Index is the 32-bit newtype every packed pool hands back. Invalid is
// never dereferenced by a well-behaved caller, and Pool never returns it:
// on overflow Intern hands back the last valid index instead (§4.5's
// graceful-degradation policy).
type Index uint32

// Invalid is the sentinel index pools never allocate.
const Invalid Index = math.MaxUint32

// MaxPoolCapacity bounds every packed pool at 2^16 entries per frame so
// indices fit the u16 slots GPU draw commands carry.
const MaxPoolCapacity = 1 << 16

// Pool is a frame-local, deduplicating table mapping comparable values to
// compact indices. The same value added N times in one frame yields the
// same index all N times (§8 property 7); Clear resets it for the next
// frame without shrinking its backing storage.
type Pool[T comparable] struct {
	byValue map[T]Index
	values  []T
	overflowLogged bool
	onOverflow     func(kind string, attempted int)
	kind           string
}

// NewPool creates an empty pool. kind names the pool for overflow logging
// (e.g. "shading", "environment"); onOverflow may be nil.
func NewPool[T comparable](kind string, onOverflow func(kind string, attempted int)) *Pool[T] {
	return &Pool[T]{
		byValue:    make(map[T]Index),
		kind:       kind,
		onOverflow: onOverflow,
	}
}

// Intern returns the compact index for v, allocating a new one the first
// time v is seen this frame. On overflow (capacity already at
// MaxPoolCapacity) it logs once per frame and returns the last valid index
// instead of aborting — callers always get back a usable index.
func (p *Pool[T]) Intern(v T) Index {
	if idx, ok := p.byValue[v]; ok {
		return idx
	}
	if len(p.values) >= MaxPoolCapacity {
		if !p.overflowLogged {
			p.overflowLogged = true
			if p.onOverflow != nil {
				p.onOverflow(p.kind, len(p.values)+1)
			}
		}
		return Index(len(p.values) - 1)
	}
	idx := Index(len(p.values))
	p.values = append(p.values, v)
	p.byValue[v] = idx
	return idx
}

// Get returns the value stored at idx. ok is false for Invalid or any
// out-of-range index.
func (p *Pool[T]) Get(idx Index) (T, bool) {
	var zero T
	if idx == Invalid || int(idx) >= len(p.values) {
		return zero, false
	}
	return p.values[idx], true
}

// Len reports how many distinct values are currently interned.
func (p *Pool[T]) Len() int { return len(p.values) }

// Clear empties the pool for the next frame. Backing slices are reused
// (truncated, not reallocated) to keep the rollback hot path allocation-free.
func (p *Pool[T]) Clear() {
	clear(p.byValue)
	p.values = p.values[:0]
	p.overflowLogged = false
}
