package debugreg

import (
	"bytes"
	"fmt"

	"github.com/nczxlabs/nczx-core/sandbox"
)

// Condition is the comparison a Watchpoint evaluates every time it is
// checked.
type Condition int

const (
	// ConditionChanged fires whenever the watched bytes differ from the
	// last Check call, with no reference value needed.
	ConditionChanged Condition = iota
	ConditionEqual
	ConditionNotEqual
	ConditionGreaterThan
	ConditionLessThan
)

// Watchpoint observes size bytes of a sandbox instance's linear memory at
// Ptr and reports whether Cond currently holds, grounded on the register-
// watch primitive the core's debug tooling descends from — rebuilt here
// against wazero memory instead of a bus-mapped register file.
type Watchpoint struct {
	Name string
	Ptr  uint32
	Size uint32
	Cond Condition
	// Target is the comparison value for Equal/NotEqual/GreaterThan/
	// LessThan, as a little-endian byte-for-byte encoding of the same
	// width as Size. Unused for ConditionChanged.
	Target []byte

	last    []byte
	hasLast bool
	Hits    int
}

// Check reads the current bytes at Ptr and evaluates Cond, incrementing
// Hits and returning true if it fires. A read that falls outside the
// instance's current memory bounds is reported as an error rather than a
// silent non-trigger, since a watchpoint on an invalid pointer is a
// cartridge-authoring bug the monitor should surface.
func (w *Watchpoint) Check(mem *sandbox.Memory) (bool, error) {
	current, ok := mem.ReadBytes(w.Ptr, w.Size)
	if !ok {
		return false, fmt.Errorf("debugreg: watchpoint %q reads out-of-bounds memory [%d, %d)", w.Name, w.Ptr, w.Ptr+w.Size)
	}

	fired := false
	switch w.Cond {
	case ConditionChanged:
		fired = w.hasLast && !bytes.Equal(current, w.last)
	case ConditionEqual:
		fired = bytes.Equal(current, w.Target)
	case ConditionNotEqual:
		fired = !bytes.Equal(current, w.Target)
	case ConditionGreaterThan:
		fired = compareLE(current, w.Target) > 0
	case ConditionLessThan:
		fired = compareLE(current, w.Target) < 0
	}

	w.last = append(w.last[:0], current...)
	w.hasLast = true
	if fired {
		w.Hits++
	}
	return fired, nil
}

// compareLE compares a and b as unsigned little-endian integers of the
// same width, returning -1, 0 or +1.
func compareLE(a, b []byte) int {
	for i := len(a) - 1; i >= 0; i-- {
		if i < len(b) && a[i] != b[i] {
			if a[i] > b[i] {
				return 1
			}
			return -1
		}
	}
	return 0
}

// Breakpoint is a simple frame-number trigger, for "stop right before
// frame N" debugging — the typed-value equivalent of a watchpoint, but on
// simulation time instead of memory.
type Breakpoint struct {
	Name    string
	Frame   uint64
	Enabled bool
	Hits    int
}

// Check reports whether currentFrame matches this breakpoint.
func (b *Breakpoint) Check(currentFrame uint64) bool {
	if !b.Enabled || currentFrame != b.Frame {
		return false
	}
	b.Hits++
	return true
}

// Monitor aggregates every active watchpoint and breakpoint for one
// running instance, so the runtime loop has a single call to make each
// tick rather than iterating two separate collections itself.
type Monitor struct {
	Watchpoints []*Watchpoint
	Breakpoints []*Breakpoint
}

// NewMonitor creates an empty debug monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// AddWatchpoint registers w for future Check calls.
func (m *Monitor) AddWatchpoint(w *Watchpoint) { m.Watchpoints = append(m.Watchpoints, w) }

// AddBreakpoint registers b for future Check calls.
func (m *Monitor) AddBreakpoint(b *Breakpoint) { m.Breakpoints = append(m.Breakpoints, b) }

// CheckAll evaluates every watchpoint against mem and every breakpoint
// against currentFrame, returning the names of everything that fired this
// call. A watchpoint read error is logged into the returned slice as a
// synthetic "name: error" entry rather than aborting the whole sweep, so
// one bad pointer doesn't hide every other watchpoint's result.
func (m *Monitor) CheckAll(mem *sandbox.Memory, currentFrame uint64) []string {
	var fired []string
	for _, w := range m.Watchpoints {
		ok, err := w.Check(mem)
		if err != nil {
			fired = append(fired, fmt.Sprintf("%s: %v", w.Name, err))
			continue
		}
		if ok {
			fired = append(fired, w.Name)
		}
	}
	for _, b := range m.Breakpoints {
		if b.Check(currentFrame) {
			fired = append(fired, b.Name)
		}
	}
	return fired
}
