package snapshot

import (
	"context"
	"testing"

	"github.com/nczxlabs/nczx-core/cartridge"
	"github.com/nczxlabs/nczx-core/console"
	"github.com/nczxlabs/nczx-core/sandbox"
	"github.com/nczxlabs/nczx-core/state"
)

// minimalModule mirrors sandbox's test fixture: a module exporting a
// single memory page plus no-op update/render functions.
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

func newFixture(t *testing.T) (*sandbox.Instance, *state.Model) {
	t.Helper()
	ctx := context.Background()
	engine := sandbox.NewEngine(ctx, console.NopLogger{})
	t.Cleanup(func() { engine.Close(ctx) })

	model := state.New(7, console.NopLogger{})
	roms := cartridge.NewHandleRegistry(cartridge.NewAssetTable())
	inst, err := engine.Load(ctx, minimalModule, model, roms, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(func() { inst.Close(ctx) })
	return inst, model
}

func TestSaveLoadRoundTripsPersistentAndMemory(t *testing.T) {
	inst, model := newFixture(t)
	mgr := NewManager(4, 0, console.NopLogger{})

	model.AdvanceTick(1.0/60, [state.MaxPlayers]state.Input{0: {Buttons: state.ButtonA}})
	mem := inst.Memory()
	mem.WriteBytes(0, []byte{0xDE, 0xAD, 0xBE, 0xEF})

	snap, err := mgr.Save(model.TickCount, model, inst)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	model.AdvanceTick(1.0/60, [state.MaxPlayers]state.Input{0: {Buttons: state.ButtonB}})
	mem.WriteBytes(0, []byte{0x00, 0x00, 0x00, 0x00})

	if err := mgr.Load(snap, model, inst); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if model.TickCount != snap.Persistent.TickCount {
		t.Fatalf("TickCount after Load = %d, want %d", model.TickCount, snap.Persistent.TickCount)
	}
	restored, ok := mem.ReadBytes(0, 4)
	if !ok || restored[0] != 0xDE || restored[3] != 0xEF {
		t.Fatalf("expected restored memory to match snapshot, got %v, %v", restored, ok)
	}
}

func TestLoadRejectsChecksumMismatch(t *testing.T) {
	inst, model := newFixture(t)
	mgr := NewManager(4, 0, console.NopLogger{})

	snap, err := mgr.Save(0, model, inst)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	snap.Checksum ^= 0xFF

	if err := mgr.Load(snap, model, inst); err == nil {
		t.Fatal("expected checksum mismatch error")
	}
}

func TestSaveRejectsOverRAMLimit(t *testing.T) {
	inst, model := newFixture(t)
	mgr := NewManager(4, 10, console.NopLogger{}) // memory is a full page, far over 10 bytes

	if _, err := mgr.Save(0, model, inst); err == nil {
		t.Fatal("expected StateTooLarge error")
	}
}

func TestManagerRecyclesBuffersAndLogsOnOverflow(t *testing.T) {
	var warnings int
	log := warnFunc(func(string, ...any) { warnings++ })
	mgr := NewManager(1, 0, log)

	mgr.Recycle(&Snapshot{Memory: make([]byte, 16)})
	mgr.Recycle(&Snapshot{Memory: make([]byte, 16)}) // over capacity 1

	if warnings != 1 {
		t.Fatalf("expected exactly one overflow warning, got %d", warnings)
	}
}

type warnFunc func(format string, args ...any)

func (f warnFunc) Warnf(format string, args ...any)  { f(format, args...) }
func (f warnFunc) Errorf(format string, args ...any) {}
