package sandbox

import (
	"context"
	"testing"

	"github.com/nczxlabs/nczx-core/cartridge"
	"github.com/nczxlabs/nczx-core/console"
	"github.com/nczxlabs/nczx-core/state"
)

// minimalModule is the hand-assembled wasm bytes for:
//
//	(module
//	  (memory (export "memory") 1)
//	  (func (export "update"))
//	  (func (export "render")))
//
// Built by hand (no wat2wasm available in this environment) so the
// sandbox package's load/init/update/render lifecycle can be exercised
// without any external bytecode asset.
var minimalModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, // magic, version

	0x01, 0x04, 0x01, 0x60, 0x00, 0x00, // type section: () -> ()

	0x03, 0x03, 0x02, 0x00, 0x00, // function section: two funcs, type 0

	0x05, 0x03, 0x01, 0x00, 0x01, // memory section: 1 memory, min 1 page

	0x07, 0x1c, 0x03, // export section, 3 exports
	0x06, 0x75, 0x70, 0x64, 0x61, 0x74, 0x65, 0x00, 0x00, // "update" func 0
	0x06, 0x72, 0x65, 0x6e, 0x64, 0x65, 0x72, 0x00, 0x01, // "render" func 1
	0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, 0x02, 0x00, // "memory" mem 0

	0x0a, 0x07, 0x02, // code section, 2 bodies
	0x02, 0x00, 0x0b, // body: 0 locals, end
	0x02, 0x00, 0x0b, // body: 0 locals, end
}

func newTestInstance(t *testing.T) (*Engine, *Instance, *state.Model) {
	t.Helper()
	ctx := context.Background()
	engine := NewEngine(ctx, console.NopLogger{})
	t.Cleanup(func() { engine.Close(ctx) })

	model := state.New(1, console.NopLogger{})
	roms := cartridge.NewHandleRegistry(cartridge.NewAssetTable())

	inst, err := engine.Load(ctx, minimalModule, model, roms, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(func() { inst.Close(ctx) })
	return engine, inst, model
}

func TestInstanceLifecycle(t *testing.T) {
	ctx := context.Background()
	_, inst, _ := newTestInstance(t)

	if err := inst.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := inst.Init(ctx); err != nil {
		t.Fatalf("second Init must be a no-op, got: %v", err)
	}
	if err := inst.Update(ctx); err != nil {
		t.Fatalf("Update: %v", err)
	}

	inst.BeginFrame()
	out, err := inst.Render(ctx)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(out.Sprites) != 0 || len(out.Meshes) != 0 || len(out.Sounds) != 0 {
		t.Fatalf("expected empty FrameOutput from a no-op render, got %+v", out)
	}
}

func TestInstanceHasSaveStateFalseWithoutExports(t *testing.T) {
	_, inst, _ := newTestInstance(t)
	if inst.HasSaveState() {
		t.Fatal("expected HasSaveState false for a module without save_state/load_state")
	}
}

func TestInstanceRejectsMissingRequiredExports(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(ctx, console.NopLogger{})
	defer engine.Close(ctx)

	// Module declaring only "update", missing the required "render" export.
	bad := []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
		0x03, 0x02, 0x01, 0x00,
		0x07, 0x0a, 0x01, 0x06, 0x75, 0x70, 0x64, 0x61, 0x74, 0x65, 0x00, 0x00,
		0x0a, 0x04, 0x01, 0x02, 0x00, 0x0b,
	}

	model := state.New(1, console.NopLogger{})
	roms := cartridge.NewHandleRegistry(cartridge.NewAssetTable())
	if _, err := engine.Load(ctx, bad, model, roms, nil); err == nil {
		t.Fatal("expected an error loading a module missing the render export")
	}
}

func TestInstanceMemoryIsAccessible(t *testing.T) {
	_, inst, _ := newTestInstance(t)
	mem := inst.Memory()
	if _, ok := mem.ReadBytes(0, 4); !ok {
		t.Fatal("expected the module's declared 1-page memory to be readable at offset 0")
	}
	if _, ok := mem.ReadBytes(1<<20, 4); ok {
		t.Fatal("expected a read far past the single declared page to fail")
	}
}
