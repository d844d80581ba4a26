package sandbox

import (
	"context"

	"github.com/tetratelabs/wazero/api"
)

// Instance is one running sandboxed game: a compiled, instantiated module
// plus the resolved set of its lifecycle exports. init runs exactly once;
// update and render run every tick; save_state/load_state are optional —
// the host snapshots state.Model and the module's full linear memory
// either way, and a module that declares the pair adds its own extra state
// on top (see DESIGN.md's Open Question decision on partial
// save_state/load_state pairs).
type Instance struct {
	engine *Engine
	module api.Module
	host   *host

	init      api.Function
	update    api.Function
	render    api.Function
	saveState api.Function
	loadState api.Function

	initialized bool
}

// Init runs the module's init export, if declared. Only the first call per
// Instance does anything; later calls return nil. The storage-ROM typed resolvers and
// load_sound only accept calls made during this window (§4.4 line 166);
// host.inInit brackets it regardless of whether init itself is declared.
func (i *Instance) Init(ctx context.Context) error {
	if i.initialized {
		return nil
	}
	i.initialized = true
	i.host.inInit = true
	defer func() { i.host.inInit = false }()
	if i.init == nil {
		return nil
	}
	if _, err := i.init.Call(ctx); err != nil {
		return classify("init", err)
	}
	return nil
}

// Update calls the module's update export for the current tick. The host
// is expected to have already advanced state.Model (AdvanceTick) before
// calling Update, so the sandboxed code observes the tick it's running as
// already current.
func (i *Instance) Update(ctx context.Context) error {
	if _, err := i.update.Call(ctx); err != nil {
		return classify("update", err)
	}
	return nil
}

// BeginFrame clears the frame-local packed state and the previous frame's
// accumulated draw/audio output, readying the instance for Render.
func (i *Instance) BeginFrame() {
	i.host.model.ClearFrame()
	i.host.output.reset()
}

// Render calls the module's render export and returns everything it drew
// this frame. The returned FrameOutput is only valid until the next
// BeginFrame call — it is not copied, since render runs once per displayed
// frame and its consumer (video/audio) is expected to finish with it
// before the next one starts.
func (i *Instance) Render(ctx context.Context) (*FrameOutput, error) {
	if _, err := i.render.Call(ctx); err != nil {
		return nil, classify("render", err)
	}
	return i.host.output, nil
}

// HasSaveState reports whether the module declared both halves of the
// optional save/load pair. A module declaring only one is a cartridge
// authoring error that Engine.Load rejects rather than trying to run with
// half the contract (see DESIGN.md Open Question decisions).
func (i *Instance) HasSaveState() bool {
	return i.saveState != nil && i.loadState != nil
}

// SaveState calls the module's optional save_state export, which is
// expected to write its own sandbox-memory-resident state (distinct from
// state.Model, which the host already snapshots independently) into the
// buffer at ptr/length and return the number of bytes written.
func (i *Instance) SaveState(ctx context.Context, ptr, length uint32) (uint32, error) {
	if i.saveState == nil {
		return 0, nil
	}
	res, err := i.saveState.Call(ctx, uint64(ptr), uint64(length))
	if err != nil {
		return 0, classify("save_state", err)
	}
	return uint32(res[0]), nil
}

// LoadState calls the module's optional load_state export with a
// previously captured buffer.
func (i *Instance) LoadState(ctx context.Context, ptr, length uint32) error {
	if i.loadState == nil {
		return nil
	}
	if _, err := i.loadState.Call(ctx, uint64(ptr), uint64(length)); err != nil {
		return classify("load_state", err)
	}
	return nil
}

// Memory exposes the instance's bounds-checked linear memory view, for
// callers (snapshot.Manager, debugreg watchpoints) that need to read
// or write sandbox-owned bytes outside of an FFI call.
func (i *Instance) Memory() *Memory {
	return NewMemory(i.module.Memory(), i.host.warn)
}

// Close releases the module. The Engine it was loaded from remains open.
func (i *Instance) Close(ctx context.Context) error {
	return i.module.Close(ctx)
}
