// Package runtime implements component C1: the fixed-timestep accumulator
// loop that turns wall-clock time into a deterministic number of simulation
// ticks, wiring the cartridge, sandbox, state model, and rollback session
// together into one drivable game instance.
package runtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nczxlabs/nczx-core/cartridge"
	"github.com/nczxlabs/nczx-core/console"
	"github.com/nczxlabs/nczx-core/debugreg"
	"github.com/nczxlabs/nczx-core/rollback"
	"github.com/nczxlabs/nczx-core/sandbox"
	"github.com/nczxlabs/nczx-core/snapshot"
	"github.com/nczxlabs/nczx-core/state"
)

// InputSource supplies the local player's sampled input for an upcoming
// frame. The host implements this against whatever input collaborator it
// uses (keyboard, gamepad, network relay for a replay's recorded stream).
type InputSource interface {
	Sample(frame uint64) state.Input
}

// maxCatchUpTicks bounds how many simulation ticks a single Advance call
// will run to absorb a stall (a debugger pause, a dropped frame), so a long
// wall-clock gap degrades to slow motion rather than a multi-second freeze
// followed by a burst of hundreds of ticks.
const maxCatchUpTicks = 8

// maxFrameDelta is the largest wall-clock delta Advance will accumulate in
// one call; anything beyond this is clamped, the classic fixed-timestep
// "spiral of death" guard.
const maxFrameDelta = 250 * time.Millisecond

// Loop is one running, drivable game instance.
type Loop struct {
	spec    console.Spec
	engine  *sandbox.Engine
	log     console.Logger

	cart    *cartridge.Cartridge
	roms    *cartridge.HandleRegistry
	model   *state.Model
	inst    *sandbox.Instance
	session *rollback.Session
	snapMgr *snapshot.Manager

	registry *debugreg.Registry
	monitor  *debugreg.Monitor
	groupStack []string

	tickRate    int
	timeScale   float64
	paused      bool
	accumulator time.Duration
	lastNow     time.Time
	loaded      bool
}

// New creates a loop bound to spec and engine. Call LoadGame before
// Advance/Render. The loop always owns a debugreg.Registry and Monitor —
// empty until the cartridge's init() export registers something through
// the debug FFI namespace — so a host never has to wire that up itself to
// get SPEC_FULL.md's debug-value/action/watchpoint tooling working.
func New(spec console.Spec, engine *sandbox.Engine, log console.Logger) *Loop {
	if log == nil {
		log = console.NopLogger{}
	}
	return &Loop{
		spec:      spec,
		engine:    engine,
		log:       log,
		tickRate:  int(spec.DefaultTickRate),
		timeScale: 1.0,
		registry:  debugreg.New(),
		monitor:   debugreg.NewMonitor(),
	}
}

// Registry exposes the running game's debug-value/action registry, for a
// monitor UI to list and edit.
func (l *Loop) Registry() *debugreg.Registry { return l.registry }

// Monitor exposes the running game's watchpoint/breakpoint set.
func (l *Loop) Monitor() *debugreg.Monitor { return l.monitor }

// InstanceMemory exposes the running instance's linear memory, for a host's
// debug monitor UI to pass into debugreg.Monitor.CheckAll directly.
func (l *Loop) InstanceMemory() *sandbox.Memory { return l.inst.Memory() }

// CurrentFrame reports the rollback session's current simulated frame.
func (l *Loop) CurrentFrame() uint64 { return l.session.CurrentFrame() }

// SetPaused freezes (or resumes) the fixed-tick accumulator: Advance stops
// consuming wall-clock time into simulation ticks while paused, matching
// debug_is_paused's contract for a cartridge that wants to show a "paused"
// indicator instead of running blind.
func (l *Loop) SetPaused(paused bool) { l.paused = paused }

// Paused reports the current pause state.
func (l *Loop) Paused() bool { return l.paused }

func (l *Loop) groupPrefix() string {
	if len(l.groupStack) == 0 {
		return ""
	}
	return strings.Join(l.groupStack, "/") + "/"
}

// debugHooks builds the closures Engine.Load threads into the sandbox FFI's
// debug namespace, bridging the guest-facing debug_register_*/debug_watch_*
// calls to this loop's registry/monitor without sandbox importing debugreg
// (debugreg already imports sandbox for *Memory, so the dependency can only
// run one way — see sandbox.DebugHooks's doc comment).
func (l *Loop) debugHooks() *sandbox.DebugHooks {
	return &sandbox.DebugHooks{
		RegisterValue: func(name string, kind uint32, ptr uint32, hasRange bool, min, max float64) {
			v := debugreg.Value{Name: l.groupPrefix() + name, Kind: debugreg.ValueKind(kind), Ptr: ptr}
			if hasRange {
				v.Min, v.Max = &min, &max
			}
			l.registry.RegisterValue(v)
		},
		RegisterAction: func(name, function string) {
			l.registry.RegisterAction(debugreg.Action{Name: l.groupPrefix() + name, Function: function})
		},
		ActionParam: func(action, name string, kind uint32, def float64) {
			full := l.groupPrefix() + action
			a, ok := l.registry.Action(full)
			if !ok {
				return
			}
			a.Params = append(a.Params, debugreg.ActionParam{Name: name, Kind: debugreg.ValueKind(kind), Default: def})
			l.registry.RegisterAction(a)
		},
		WatchChanged: func(name string, ptr, size uint32) {
			l.monitor.AddWatchpoint(&debugreg.Watchpoint{Name: l.groupPrefix() + name, Ptr: ptr, Size: size, Cond: debugreg.ConditionChanged})
		},
		WatchCompare: func(name string, ptr, size uint32, cond uint32, target []byte) {
			l.monitor.AddWatchpoint(&debugreg.Watchpoint{
				Name: l.groupPrefix() + name, Ptr: ptr, Size: size,
				Cond: debugreg.Condition(cond), Target: target,
			})
		},
		GroupBegin: func(name string) { l.groupStack = append(l.groupStack, name) },
		GroupEnd: func() {
			if len(l.groupStack) > 0 {
				l.groupStack = l.groupStack[:len(l.groupStack)-1]
			}
		},
		IsPaused:  func() bool { return l.paused },
		TimeScale: func() float64 { return l.timeScale },
	}
}

// LoadGame parses and instantiates cart, replacing any previously loaded
// game. kind/numPlayers/localPlayer/predictionWindow configure the
// rollback session driving it.
func (l *Loop) LoadGame(ctx context.Context, cart *cartridge.Cartridge, kind rollback.Kind, numPlayers, localPlayer, predictionWindow int) error {
	if err := l.spec.Validate(); err != nil {
		return fmt.Errorf("runtime: console spec invalid: %w", err)
	}

	model := state.New(0, l.log)
	roms := cartridge.NewHandleRegistry(cart.Assets)
	l.registry = debugreg.New()
	l.monitor = debugreg.NewMonitor()
	l.groupStack = nil
	inst, err := l.engine.Load(ctx, cart.Bytecode, model, roms, l.debugHooks())
	if err != nil {
		return fmt.Errorf("runtime: load cartridge %q: %w", cart.Metadata.ID, err)
	}
	if err := inst.Init(ctx); err != nil {
		_ = inst.Close(ctx)
		return fmt.Errorf("runtime: init cartridge %q: %w", cart.Metadata.ID, err)
	}

	snapCapacity := predictionWindow + 4
	snapMgr := snapshot.NewManager(snapCapacity, l.spec.Limits.RAM, l.log)

	l.cart = cart
	l.roms = roms
	l.model = model
	l.inst = inst
	l.snapMgr = snapMgr
	l.session = rollback.NewSession(kind, numPlayers, localPlayer, predictionWindow, snapMgr, l.log)
	if kind == rollback.KindPeerToPeer {
		l.timeScale = 1.0
	}

	if tr := int(cart.Metadata.TickRate); tr > 0 {
		if err := l.SetTickRate(tr); err != nil {
			l.log.Warnf("runtime: cartridge requested unsupported tick rate %d, keeping console default %d", tr, l.tickRate)
		}
	}

	l.accumulator = 0
	l.loaded = true
	return nil
}

// SetTickRate changes the fixed timestep. Rejects any rate console.Spec's
// supported set doesn't include.
func (l *Loop) SetTickRate(hz int) error {
	if !console.IsSupportedTickRate(hz) {
		return fmt.Errorf("runtime: unsupported tick rate %d", hz)
	}
	l.tickRate = hz
	l.accumulator = 0
	return nil
}

// TickRate returns the loop's current fixed timestep in Hz.
func (l *Loop) TickRate() int { return l.tickRate }

// SetTimeScale changes the debug-only playback speed multiplier. A
// rollback session running as KindPeerToPeer always runs at 1.0 — a
// networked game's simulation rate can never drift from wall-clock time
// without desyncing every other peer — so SetTimeScale is a no-op for it.
func (l *Loop) SetTimeScale(scale float64) {
	if l.session != nil && l.session.Kind() == rollback.KindPeerToPeer {
		return
	}
	l.timeScale = scale
}

func (l *Loop) dt() time.Duration {
	return time.Second / time.Duration(l.tickRate)
}

// Advance consumes the wall-clock delta since the previous call (or since
// LoadGame, on the first call) and runs as many fixed ticks as that delta
// covers, sampling in from input for each one. It returns how many ticks
// actually ran and an interpolation alpha in [0, 1) for the caller's
// renderer to blend between the last two simulated states.
func (l *Loop) Advance(ctx context.Context, now time.Time, in InputSource) (ticksRun int, alpha float64, err error) {
	if !l.loaded {
		return 0, 0, fmt.Errorf("runtime: Advance called before LoadGame")
	}
	if l.lastNow.IsZero() {
		l.lastNow = now
	}
	delta := now.Sub(l.lastNow)
	l.lastNow = now
	if delta > maxFrameDelta {
		delta = maxFrameDelta
	}
	if delta < 0 {
		delta = 0
	}
	if l.paused {
		return 0, float64(l.accumulator) / float64(l.dt()), nil
	}
	l.accumulator += time.Duration(float64(delta) * l.timeScale)

	step := l.dt()
	for l.accumulator >= step && ticksRun < maxCatchUpTicks {
		frame := l.session.CurrentFrame() + 1
		var sample state.Input
		if in != nil {
			sample = in.Sample(frame)
		}
		if err := l.session.AddLocalInput(frame, sample); err != nil {
			return ticksRun, 0, fmt.Errorf("runtime: add local input frame %d: %w", frame, err)
		}
		tickStart := time.Now()
		reqs := l.session.AdvanceFrame()
		if err := l.session.HandleRequests(ctx, reqs, step.Seconds(), l.model, l.inst); err != nil {
			return ticksRun, 0, fmt.Errorf("runtime: advance frame: %w", err)
		}
		if budget := time.Duration(l.spec.Limits.CPUBudget); budget > 0 {
			if took := time.Since(tickStart); took > budget {
				l.log.Warnf("runtime: frame %d took %v, over the %v CPU budget", frame, took, budget)
			}
		}
		if fired := l.monitor.CheckAll(l.inst.Memory(), l.session.CurrentFrame()); len(fired) > 0 {
			l.log.Warnf("runtime: debug monitor fired at frame %d: %v", l.session.CurrentFrame(), fired)
		}
		l.accumulator -= step
		ticksRun++
	}
	if l.accumulator >= step {
		// Caught the catch-up cap with whole steps still owed — drop
		// them rather than let them balloon across calls, keeping only
		// the fractional part so alpha stays below 1.
		l.accumulator %= step
	}
	alpha = float64(l.accumulator) / float64(step)
	return ticksRun, alpha, nil
}

// Render runs the cartridge's render export for the current frame and
// returns its accumulated draw/audio commands.
func (l *Loop) Render(ctx context.Context) (*sandbox.FrameOutput, error) {
	if !l.loaded {
		return nil, fmt.Errorf("runtime: Render called before LoadGame")
	}
	l.inst.BeginFrame()
	return l.inst.Render(ctx)
}

// PollRemoteClients forwards the rollback session's network-health events
// for the host to react to (reconnect UI, desync logging, and so on).
func (l *Loop) PollRemoteClients() []rollback.Event {
	if l.session == nil {
		return nil
	}
	return l.session.PollRemoteClients()
}

// Stats exposes per-peer connection introspection for the monitor overlay.
func (l *Loop) Stats() []rollback.PeerStats {
	if l.session == nil {
		return nil
	}
	return l.session.Stats()
}

// Close releases the running instance. The Loop can LoadGame again
// afterward.
func (l *Loop) Close(ctx context.Context) error {
	if !l.loaded {
		return nil
	}
	l.loaded = false
	return l.inst.Close(ctx)
}
