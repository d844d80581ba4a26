// Package console defines the capability set every concrete fantasy console
// must provide: resource limits, supported tick rates, resolution, and the
// typed host-state shapes the sandbox and rollback layers are generic over.
package console

import "fmt"

// TickRate enumerates the simulation rates the runtime loop supports.
type TickRate int

const (
	TickRate24  TickRate = 24
	TickRate30  TickRate = 30
	TickRate60  TickRate = 60
	TickRate120 TickRate = 120
)

// SupportedTickRates lists every rate set_tick_rate accepts.
var SupportedTickRates = []TickRate{TickRate24, TickRate30, TickRate60, TickRate120}

// IsSupportedTickRate reports whether hz is one of the fixed rates the
// runtime loop knows how to schedule.
func IsSupportedTickRate(hz int) bool {
	for _, r := range SupportedTickRates {
		if int(r) == hz {
			return true
		}
	}
	return false
}

// Resolution is the native pixel dimensions of a console's video output.
type Resolution struct {
	Width  int
	Height int
}

// Limits bounds the resources a cartridge may consume on this console.
// Every value is a hard ceiling enforced at load time or on the rollback
// hot path; none are advisory except CPUBudget, which is logged on overrun
// rather than enforced (see §5 of the design).
type Limits struct {
	RAM       int // bytes available to sandbox linear memory
	VRAM      int // bytes available to GPU-ready bundled assets
	ROM       int // bytes the bytecode section may occupy
	CPUBudget int // nanoseconds of advisory per-tick CPU time
}

// Spec describes one concrete console: its resource limits, its native
// resolution and tick rate, and the tag identifying it. Hosts construct a
// Spec once and thread it through cartridge loading, the sandbox, and the
// rollback session — nothing in the core keeps package-level mutable state
// per console, so a single process may run several Specs concurrently as
// long as each instance (console.Spec, sandbox.Instance, ...) stays on its
// own goroutine.
type Spec struct {
	Tag             string
	Title           string
	Resolution      Resolution
	DefaultTickRate TickRate
	Limits          Limits
}

// Validate checks that a Spec is internally consistent before it is handed
// to the cartridge loader.
func (s Spec) Validate() error {
	if s.Tag == "" {
		return fmt.Errorf("console: spec has empty tag")
	}
	if !IsSupportedTickRate(int(s.DefaultTickRate)) {
		return fmt.Errorf("console %s: unsupported default tick rate %d", s.Tag, s.DefaultTickRate)
	}
	if s.Resolution.Width <= 0 || s.Resolution.Height <= 0 {
		return fmt.Errorf("console %s: invalid resolution %dx%d", s.Tag, s.Resolution.Width, s.Resolution.Height)
	}
	if s.Limits.RAM <= 0 || s.Limits.ROM <= 0 {
		return fmt.Errorf("console %s: RAM and ROM limits must be positive", s.Tag)
	}
	return nil
}

// Reference is the stock console this module's fixtures and tests target:
// 64KB of linear memory (small enough to make FFI bounds tests exercise
// real overflow paths), 4MB ROM, a 640x480 screen, and a 60Hz default tick
// rate. Hosts are free to define their own Spec values; this one grounds
// the test suite and the cmd/nczxplay reference player.
var Reference = Spec{
	Tag:             "NCZX",
	Title:           "NCZX Reference Console",
	Resolution:      Resolution{Width: 640, Height: 480},
	DefaultTickRate: TickRate60,
	Limits: Limits{
		RAM:       64 * 1024,
		VRAM:      4 * 1024 * 1024,
		ROM:       4 * 1024 * 1024,
		CPUBudget: 4_000_000, // 4ms
	},
}
