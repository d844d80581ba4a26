package sandbox

import (
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// Memory wraps a module's linear memory with the bounds-checking policy
// §4.4 requires of every host function that touches sandbox-owned bytes:
// a bad pointer/length never traps the host, it logs once and returns the
// zero value, leaving the game to notice nothing happened.
type Memory struct {
	mem  api.Memory
	warn func(format string, args ...any)
	warned map[string]bool
}

// NewMemory wraps mem. warn may be nil (use a no-op).
func NewMemory(mem api.Memory, warn func(format string, args ...any)) *Memory {
	if warn == nil {
		warn = func(string, ...any) {}
	}
	return &Memory{mem: mem, warn: warn, warned: make(map[string]bool)}
}

func (m *Memory) warnOnce(key, format string, args ...any) {
	if m.warned[key] {
		return
	}
	m.warned[key] = true
	m.warn(format, args...)
}

// Size returns the current linear memory size in bytes.
func (m *Memory) Size() uint32 { return m.mem.Size() }

// ReadBytes returns a copy of length bytes starting at ptr, or nil and
// false if the range falls outside linear memory.
func (m *Memory) ReadBytes(ptr, length uint32) ([]byte, bool) {
	b, ok := m.mem.Read(ptr, length)
	if !ok {
		m.warnOnce(fmt.Sprintf("read:%d:%d", ptr, length), "sandbox: FFI call read out-of-bounds memory [%d, %d)", ptr, uint64(ptr)+uint64(length))
		return nil, false
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, true
}

// ReadString returns the length-prefixed-free string at ptr spanning
// length bytes, decoded as UTF-8 without validation (malformed UTF-8 is a
// game bug, not a host concern).
func (m *Memory) ReadString(ptr, length uint32) (string, bool) {
	b, ok := m.ReadBytes(ptr, length)
	if !ok {
		return "", false
	}
	return string(b), true
}

// WriteBytes writes b at ptr. Returns false (and logs once) if the range
// falls outside linear memory.
func (m *Memory) WriteBytes(ptr uint32, b []byte) bool {
	if ok := m.mem.Write(ptr, b); !ok {
		m.warnOnce(fmt.Sprintf("write:%d:%d", ptr, len(b)), "sandbox: FFI call wrote out-of-bounds memory [%d, %d)", ptr, uint64(ptr)+uint64(len(b)))
		return false
	}
	return true
}

// ReadU32 / WriteU32 are convenience wrappers used by FFI functions that
// exchange small fixed-size values (handles, indices) through a caller-
// supplied out-pointer rather than a wasm multi-return.
func (m *Memory) ReadU32(ptr uint32) (uint32, bool) {
	v, ok := m.mem.ReadUint32Le(ptr)
	if !ok {
		m.warnOnce(fmt.Sprintf("readu32:%d", ptr), "sandbox: FFI call read out-of-bounds u32 at %d", ptr)
	}
	return v, ok
}

func (m *Memory) WriteU32(ptr, v uint32) bool {
	if ok := m.mem.WriteUint32Le(ptr, v); !ok {
		m.warnOnce(fmt.Sprintf("writeu32:%d", ptr), "sandbox: FFI call wrote out-of-bounds u32 at %d", ptr)
		return false
	}
	return true
}

// ClampFloat32 clamps v into [lo, hi], logging the first time a given key
// (identifying the call site / parameter) actually needed clamping. Used
// by FFI functions that accept values with a documented valid range
// (volume, stick magnitude, color channels) rather than trapping on an
// out-of-range value.
func (m *Memory) ClampFloat32(key string, v, lo, hi float32) float32 {
	if v >= lo && v <= hi {
		return v
	}
	clamped := v
	if clamped < lo {
		clamped = lo
	}
	if clamped > hi {
		clamped = hi
	}
	m.warnOnce("clamp:"+key, "sandbox: FFI parameter %q value %v out of range [%v, %v], clamped to %v", key, v, lo, hi, clamped)
	return clamped
}
