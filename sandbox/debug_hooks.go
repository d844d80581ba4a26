package sandbox

// DebugHooks is the closure bundle a caller threads through Engine.Load to
// reach debugreg's registry and watch/breakpoint monitor from inside the
// sandbox FFI, without sandbox importing debugreg back — debugreg already
// imports sandbox (for *Memory in its watchpoint Check), so the dependency
// can only run one way. Every field is independently nilable; a host that
// doesn't care about debug tooling passes a nil *DebugHooks entirely, and
// linkDebug still exports every debug_* function, each a no-op.
type DebugHooks struct {
	RegisterValue  func(name string, kind uint32, ptr uint32, hasRange bool, min, max float64)
	RegisterAction func(name, function string)
	ActionParam    func(action, name string, kind uint32, def float64)
	WatchChanged   func(name string, ptr, size uint32)
	WatchCompare   func(name string, ptr, size uint32, cond uint32, target []byte)
	GroupBegin     func(name string)
	GroupEnd       func()
	IsPaused       func() bool
	TimeScale      func() float64
}
