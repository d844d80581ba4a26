package state

import "github.com/nczxlabs/nczx-core/console"

// Model is the complete deterministic state of one running game instance.
// It splits cleanly into two halves with very different lifetimes:
//
//   - the persistent half (TickCount, ElapsedTime, RNG, Input) is exactly
//     what a rollback snapshot saves and restores — nothing more, nothing
//     less (§4.5's state-model invariant).
//   - the frame-local half (the packed pools and matrix arrays) exists
//     only to deduplicate what one render() call emits; it is cleared at
//     the start of every frame and never serialized, because re-deriving
//     it from the persistent half plus the sandbox's render export is both
//     cheaper and simpler than snapshotting it.
type Model struct {
	TickCount   uint64
	ElapsedTime float64 // seconds, accumulated in fixed-tick increments
	RNG         *RNG
	Input       History

	Shading     *Pool[ShadingState]
	Environment *Pool[EnvironmentState]
	ModelMats   MatrixArray
	ViewMats    MatrixArray
	ProjMats    MatrixArray
	MVP         *MVPCombiner
}

// New builds a fresh Model seeded for a new game, logging any packed-pool
// overflow warnings through log (which may be console.NopLogger{}).
func New(seed uint64, log console.Logger) *Model {
	onOverflow := func(kind string, attempted int) {
		if log != nil {
			log.Warnf("packed pool %q overflowed capacity %d (attempted entry #%d); reusing last index", kind, MaxPoolCapacity, attempted)
		}
	}
	return &Model{
		RNG:         NewRNG(seed),
		Shading:     NewPool[ShadingState]("shading", onOverflow),
		Environment: NewPool[EnvironmentState]("environment", onOverflow),
		MVP:         NewMVPCombiner(),
	}
}

// ClearFrame resets every frame-local pool and matrix array, ready for the
// sandbox's next render() call. It never touches the persistent half.
func (m *Model) ClearFrame() {
	m.Shading.Clear()
	m.Environment.Clear()
	m.ModelMats.Clear()
	m.ViewMats.Clear()
	m.ProjMats.Clear()
	m.MVP.Clear()
}

// AdvanceTick moves the persistent half forward by one fixed timestep and
// installs next as the current tick's sampled input. Called once per
// simulation tick, before the sandbox's update() export runs.
func (m *Model) AdvanceTick(dt float64, next [MaxPlayers]Input) {
	m.TickCount++
	m.ElapsedTime += dt
	m.Input.Advance(next)
}

// Persistent is the byte-serializable projection of Model that
// snapshot.Manager actually saves and restores. Field order is fixed
// and forms part of the snapshot's checksummed layout (§4.3/§4.5).
type Persistent struct {
	TickCount   uint64
	ElapsedTime float64
	RNGState    uint64
	Input       History
}

// Snapshot captures the persistent half.
func (m *Model) Snapshot() Persistent {
	return Persistent{
		TickCount:   m.TickCount,
		ElapsedTime: m.ElapsedTime,
		RNGState:    m.RNG.State(),
		Input:       m.Input,
	}
}

// Restore installs a previously captured persistent half, as LoadState
// does on a rollback. It intentionally does not touch the frame-local
// pools: those get cleared and rebuilt by the very next render() call
// regardless of which tick the game just rolled back to.
func (m *Model) Restore(p Persistent) {
	m.TickCount = p.TickCount
	m.ElapsedTime = p.ElapsedTime
	m.RNG.SetState(p.RNGState)
	m.Input = p.Input
}
