package debugreg

import (
	"context"
	"testing"

	"github.com/nczxlabs/nczx-core/cartridge"
	"github.com/nczxlabs/nczx-core/console"
	"github.com/nczxlabs/nczx-core/sandbox"
	"github.com/nczxlabs/nczx-core/state"
)

var minimalModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
	0x03, 0x03, 0x02, 0x00, 0x00,
	0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x1c, 0x03,
	0x06, 0x75, 0x70, 0x64, 0x61, 0x74, 0x65, 0x00, 0x00,
	0x06, 0x72, 0x65, 0x6e, 0x64, 0x65, 0x72, 0x00, 0x01,
	0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, 0x02, 0x00,
	0x0a, 0x07, 0x02,
	0x02, 0x00, 0x0b,
	0x02, 0x00, 0x0b,
}

func newMemory(t *testing.T) *sandbox.Memory {
	t.Helper()
	ctx := context.Background()
	engine := sandbox.NewEngine(ctx, console.NopLogger{})
	t.Cleanup(func() { engine.Close(ctx) })

	model := state.New(1, console.NopLogger{})
	roms := cartridge.NewHandleRegistry(cartridge.NewAssetTable())
	inst, err := engine.Load(ctx, minimalModule, model, roms, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(func() { inst.Close(ctx) })
	return inst.Memory()
}

func TestWatchpointConditionChanged(t *testing.T) {
	mem := newMemory(t)
	w := &Watchpoint{Name: "hp", Ptr: 0, Size: 4, Cond: ConditionChanged}

	fired, err := w.Check(mem)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if fired {
		t.Fatal("did not expect ConditionChanged to fire on the first check")
	}

	mem.WriteU32(0, 42)
	fired, err = w.Check(mem)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !fired {
		t.Fatal("expected ConditionChanged to fire after a write")
	}
	if w.Hits != 1 {
		t.Fatalf("Hits = %d, want 1", w.Hits)
	}
}

func TestWatchpointConditionGreaterThan(t *testing.T) {
	mem := newMemory(t)
	target := []byte{0, 0, 0, 10}
	w := &Watchpoint{Name: "score", Ptr: 0, Size: 4, Cond: ConditionGreaterThan, Target: target}

	fired, _ := w.Check(mem)
	if fired {
		t.Fatal("zeroed memory should not exceed target")
	}

	mem.WriteBytes(0, []byte{0, 0, 0, 20})
	fired, _ = w.Check(mem)
	if !fired {
		t.Fatal("expected GreaterThan watchpoint to fire")
	}
}

func TestWatchpointOutOfBoundsReportsError(t *testing.T) {
	mem := newMemory(t)
	w := &Watchpoint{Name: "oob", Ptr: 1 << 30, Size: 4, Cond: ConditionChanged}
	if _, err := w.Check(mem); err == nil {
		t.Fatal("expected an error for an out-of-bounds watchpoint")
	}
}

func TestBreakpointFiresOnceAtItsFrame(t *testing.T) {
	b := &Breakpoint{Name: "stage2", Frame: 100, Enabled: true}
	if b.Check(99) {
		t.Fatal("did not expect breakpoint to fire before its frame")
	}
	if !b.Check(100) {
		t.Fatal("expected breakpoint to fire at its frame")
	}
	if b.Hits != 1 {
		t.Fatalf("Hits = %d, want 1", b.Hits)
	}
}

func TestMonitorCheckAllAggregatesBothKinds(t *testing.T) {
	mem := newMemory(t)
	mon := NewMonitor()
	mon.AddWatchpoint(&Watchpoint{Name: "changed", Ptr: 0, Size: 4, Cond: ConditionChanged})
	mon.AddBreakpoint(&Breakpoint{Name: "bp", Frame: 5, Enabled: true})

	mon.CheckAll(mem, 1) // prime the watchpoint's baseline
	mem.WriteU32(0, 99)
	fired := mon.CheckAll(mem, 5)

	if len(fired) != 2 {
		t.Fatalf("expected both watchpoint and breakpoint to fire, got %v", fired)
	}
}
