// Package snapshot implements component C3: saving and restoring the
// complete state of a running sandboxed game — the deterministic state
// model plus the sandbox's raw linear memory — with pooled buffers and a
// non-cryptographic checksum so rollback can detect a desynced restore.
package snapshot

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/nczxlabs/nczx-core/console"
	"github.com/nczxlabs/nczx-core/sandbox"
	"github.com/nczxlabs/nczx-core/state"
)

// saveStateRegion is the size of the scratch region used by the save-state
// convention (see DESIGN.md's Open Question decisions): a module
// that declares save_state/load_state exports writes/reads its extra
// (non-linear-memory) state through the last saveStateRegion bytes of its
// own linear memory. Modules whose memory is too small for the region are
// treated as not supporting save_state at all.
const saveStateRegion = 4096

// Snapshot is one captured instant of a running instance: the persistent
// half of state.Model, a copy of the sandbox's linear memory, and whatever
// bytes the module's optional save_state export produced. Checksum covers
// all three, concatenated in that order, and is what rollback compares
// against a freshly recomputed one to catch a desync (§4.3).
type Snapshot struct {
	Frame      uint64
	Persistent state.Persistent
	Memory     []byte
	Extra      []byte
	Checksum   uint64
}

// StateTooLarge is returned by Save when the sandbox's linear memory plus
// extra save_state bytes exceed the configured RAM limit.
type StateTooLarge struct {
	Limit, Actual int
}

func (e *StateTooLarge) Error() string {
	return fmt.Sprintf("snapshot: state size %d exceeds limit %d", e.Actual, e.Limit)
}

// Manager pools the byte buffers snapshots need so a steady-state rollback
// session (saving and restoring every frame inside its prediction window)
// does no further heap allocation once warmed up. Capacity is sized to the
// session's rollback window plus a small margin; an overflow still
// succeeds, it just allocates fresh and logs once.
type Manager struct {
	mu           sync.Mutex
	free         [][]byte
	capacity     int
	ramLimit     int
	log          console.Logger
	overflowOnce bool
}

// NewManager creates a pool sized for capacity concurrently-live snapshots
// (typically the rollback session's max prediction window plus a small
// margin) and a RAM limit used to reject an oversized save (0 = no limit).
func NewManager(capacity, ramLimit int, log console.Logger) *Manager {
	if log == nil {
		log = console.NopLogger{}
	}
	return &Manager{capacity: capacity, ramLimit: ramLimit, log: log}
}

func (m *Manager) acquire(size int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n := len(m.free); n > 0 {
		buf := m.free[n-1]
		m.free = m.free[:n-1]
		if cap(buf) < size {
			return make([]byte, size)
		}
		return buf[:size]
	}
	return make([]byte, size)
}

// Recycle returns a snapshot's buffers to the pool for reuse by the next
// Save call. Callers must not use the Snapshot's Memory/Extra slices after
// recycling it.
func (m *Manager) Recycle(s *Snapshot) {
	if s == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.free) >= m.capacity {
		if !m.overflowOnce {
			m.overflowOnce = true
			m.log.Warnf("snapshot: buffer pool exceeded capacity %d, allocating fresh buffers", m.capacity)
		}
		return
	}
	m.free = append(m.free, s.Memory[:0])
}

// Save captures frame's complete state from model and inst.
func (m *Manager) Save(frame uint64, model *state.Model, inst *sandbox.Instance) (*Snapshot, error) {
	mem := inst.Memory()
	memSize := mem.Size()
	buf := m.acquire(int(memSize))
	if memSize > 0 {
		if region, ok := mem.ReadBytes(0, memSize); ok {
			copy(buf, region)
		}
	}

	var extra []byte
	if inst.HasSaveState() && memSize > saveStateRegion {
		regionStart := memSize - saveStateRegion
		n, err := inst.SaveState(context.Background(), regionStart, saveStateRegion)
		if err != nil {
			return nil, fmt.Errorf("snapshot: save_state: %w", err)
		}
		if n > 0 {
			if region, ok := mem.ReadBytes(regionStart, n); ok {
				extra = append([]byte(nil), region...)
			}
		}
	}

	if m.ramLimit > 0 && len(buf)+len(extra) > m.ramLimit {
		return nil, &StateTooLarge{Limit: m.ramLimit, Actual: len(buf) + len(extra)}
	}

	persistent := model.Snapshot()
	snap := &Snapshot{
		Frame:      frame,
		Persistent: persistent,
		Memory:     buf,
		Extra:      extra,
	}
	snap.Checksum = checksum(persistent, buf, extra)
	return snap, nil
}

// Load restores a previously captured Snapshot into model and inst.
func (m *Manager) Load(snap *Snapshot, model *state.Model, inst *sandbox.Instance) error {
	if got := checksum(snap.Persistent, snap.Memory, snap.Extra); got != snap.Checksum {
		return fmt.Errorf("snapshot: checksum mismatch restoring frame %d: stored %x, recomputed %x", snap.Frame, snap.Checksum, got)
	}

	model.Restore(snap.Persistent)

	mem := inst.Memory()
	if uint32(len(snap.Memory)) != mem.Size() {
		return fmt.Errorf("snapshot: memory size mismatch restoring frame %d: snapshot has %d bytes, instance has %d", snap.Frame, len(snap.Memory), mem.Size())
	}
	if len(snap.Memory) > 0 && !mem.WriteBytes(0, snap.Memory) {
		return fmt.Errorf("snapshot: failed writing restored memory for frame %d", snap.Frame)
	}

	if len(snap.Extra) > 0 && inst.HasSaveState() && mem.Size() > saveStateRegion {
		regionStart := mem.Size() - saveStateRegion
		if err := inst.LoadState(context.Background(), regionStart, uint32(len(snap.Extra))); err != nil {
			return fmt.Errorf("snapshot: load_state: %w", err)
		}
	}
	return nil
}

func checksum(p state.Persistent, mem, extra []byte) uint64 {
	h := xxhash.New()
	var hdr [8 + 8 + 8]byte
	binary.LittleEndian.PutUint64(hdr[0:8], p.TickCount)
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(int64(p.ElapsedTime*1e9)))
	binary.LittleEndian.PutUint64(hdr[16:24], p.RNGState)
	h.Write(hdr[:])
	for _, in := range p.Input.Prev {
		h.Write(inputBytes(in))
	}
	for _, in := range p.Input.Curr {
		h.Write(inputBytes(in))
	}
	h.Write(mem)
	h.Write(extra)
	return h.Sum64()
}

func inputBytes(in state.Input) []byte {
	var b [12]byte
	binary.LittleEndian.PutUint16(b[0:2], uint16(in.Buttons))
	binary.LittleEndian.PutUint16(b[2:4], uint16(in.StickX))
	binary.LittleEndian.PutUint16(b[4:6], uint16(in.StickY))
	binary.LittleEndian.PutUint16(b[6:8], uint16(in.RightStickX))
	binary.LittleEndian.PutUint16(b[8:10], uint16(in.RightStickY))
	b[10] = in.TriggerL
	b[11] = in.TriggerR
	return b[:]
}
