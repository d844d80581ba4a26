package state

// RNG is the deterministic pseudo-random source every sandboxed game must
// go through for randomness. Its entire state is a single uint64, which is
// why it lives directly on Model: rollback can save/restore it with the
// same byte-copy as tick_count or elapsed_time, with no extra bookkeeping.
//
// The core never reseeds an RNG's state outside of load_game or an explicit
// LoadState — a game that wants its own reproducible shuffles must call
// rng_next via the host FFI rather than reach for any source outside the
// sandbox, or replays stop matching (§8 determinism properties).
type RNG struct {
	state uint64
}

// NewRNG seeds a generator. seed==0 is remapped to a fixed non-zero
// constant since xorshift64* never advances out of an all-zero state.
func NewRNG(seed uint64) *RNG {
	if seed == 0 {
		seed = 0x9E3779B97F4A7C15
	}
	return &RNG{state: seed}
}

// State returns the raw generator state, for snapshotting.
func (r *RNG) State() uint64 { return r.state }

// SetState overwrites the generator state, for LoadState.
func (r *RNG) SetState(s uint64) {
	if s == 0 {
		s = 0x9E3779B97F4A7C15
	}
	r.state = s
}

// Next advances the generator one step (xorshift64*) and returns the next
// pseudo-random value. Bit-for-bit identical on every platform the sandbox
// runs on, which is the property rollback and replay both depend on.
func (r *RNG) Next() uint64 {
	x := r.state
	x ^= x >> 12
	x ^= x << 25
	x ^= x >> 27
	r.state = x
	return x * 0x2545F4914F6CDD1D
}

// Float64 returns a value in [0, 1) derived from Next, for games that want
// a floating-point draw rather than a raw integer.
func (r *RNG) Float64() float64 {
	return float64(r.Next()>>11) / (1 << 53)
}

// IntN returns a value in [0, n) derived from Next. n must be positive;
// IntN(0) returns 0 rather than panicking, since FFI calls are never
// allowed to crash the host process (see sandbox trap-classification).
func (r *RNG) IntN(n int64) int64 {
	if n <= 0 {
		return 0
	}
	return int64(r.Next() % uint64(n))
}
