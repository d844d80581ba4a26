// Package sandbox runs a cartridge's compiled bytecode inside a wazero
// WebAssembly runtime, bounds-checking every host FFI call and classifying
// guest failures into the trap taxonomy the runtime loop reacts to
// (component C4 of the core).
package sandbox

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"

	"github.com/nczxlabs/nczx-core/cartridge"
	"github.com/nczxlabs/nczx-core/console"
	"github.com/nczxlabs/nczx-core/state"
)

// Engine owns the wazero runtime shared by every instance created from
// it. One Engine per process is normal; tools/tests
// that need isolation create their own.
type Engine struct {
	runtime wazero.Runtime
	log     console.Logger
}

// NewEngine builds a wazero runtime with wazero's default runtime
// configuration plus close-on-context-done; no compilation cache is
// configured. WASI is left unregistered since sandboxed games only ever
// see the namespaces Instance links in (§4.4 — no ambient host access).
func NewEngine(ctx context.Context, log console.Logger) *Engine {
	if log == nil {
		log = console.NopLogger{}
	}
	cfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	return &Engine{runtime: wazero.NewRuntimeWithConfig(ctx, cfg), log: log}
}

// Close releases the runtime and every module compiled through it.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Load compiles bytecode and instantiates it against a fresh host module
// wired to model and roms, producing a ready-to-run Instance. The caller
// owns model and roms for the instance's lifetime; Instance never mutates
// roms and only mutates model through the same calls the runtime loop
// would make directly (AdvanceTick, ClearFrame). debug may be nil — a host
// that doesn't wire up debugreg still gets every debug_* export, they just
// become no-ops. A module that exports only one of save_state/load_state
// is rejected.
func (e *Engine) Load(ctx context.Context, bytecode []byte, model *state.Model, roms *cartridge.HandleRegistry, debug *DebugHooks) (*Instance, error) {
	compiled, err := e.runtime.CompileModule(ctx, bytecode)
	if err != nil {
		return nil, fmt.Errorf("sandbox: compile: %w", &Trap{Kind: TrapInitFailure, Export: "compile", Cause: err})
	}

	h := newHost(model, roms, e.log.Warnf, debug)
	if err := h.linkNamespaces(ctx, e.runtime); err != nil {
		return nil, fmt.Errorf("sandbox: link host namespaces: %w", err)
	}

	modCfg := wazero.NewModuleConfig().WithName("")
	mod, err := e.runtime.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		return nil, fmt.Errorf("sandbox: instantiate: %w", classify("instantiate", err))
	}

	inst := &Instance{
		engine: e,
		module: mod,
		host:   h,
	}
	inst.init = mod.ExportedFunction("init")
	inst.update = mod.ExportedFunction("update")
	inst.render = mod.ExportedFunction("render")
	inst.saveState = mod.ExportedFunction("save_state")
	inst.loadState = mod.ExportedFunction("load_state")

	if inst.update == nil || inst.render == nil {
		return nil, fmt.Errorf("sandbox: cartridge module missing required export(s): update=%v render=%v", inst.update != nil, inst.render != nil)
	}
	if (inst.saveState == nil) != (inst.loadState == nil) {
		return nil, fmt.Errorf("sandbox: cartridge module exports only one of save_state/load_state: save_state=%v load_state=%v", inst.saveState != nil, inst.loadState != nil)
	}
	return inst, nil
}
