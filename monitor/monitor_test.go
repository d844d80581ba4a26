package monitor

import (
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/nczxlabs/nczx-core/debugreg"
)

type fakeScreen struct {
	width, height int
	cells         map[[2]int]rune
	shown         int
}

func newFakeScreen(w, h int) *fakeScreen {
	return &fakeScreen{width: w, height: h, cells: make(map[[2]int]rune)}
}

func (f *fakeScreen) Init() error { return nil }
func (f *fakeScreen) Fini()       {}
func (f *fakeScreen) Clear()      { f.cells = make(map[[2]int]rune) }
func (f *fakeScreen) Show()       { f.shown++ }
func (f *fakeScreen) Size() (int, int) { return f.width, f.height }
func (f *fakeScreen) SetContent(x, y int, primary rune, _ []rune, _ tcell.Style) {
	f.cells[[2]int{x, y}] = primary
}
func (f *fakeScreen) PollEvent() tcell.Event { return nil }

type fakeClipboard struct {
	last string
	err  error
}

func (c *fakeClipboard) Write(text string) error {
	c.last = text
	return c.err
}

func TestRenderValuesListsRegisteredValues(t *testing.T) {
	reg := debugreg.New()
	reg.RegisterValue(debugreg.Value{Name: "health", Kind: debugreg.KindInt32, Ptr: 4})
	mon := debugreg.NewMonitor()
	ui := New(reg, mon, nil)
	screen := newFakeScreen(40, 10)
	if err := ui.Attach(screen); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	ui.Render()
	if screen.shown != 1 {
		t.Fatalf("shown = %d, want 1", screen.shown)
	}
	if screen.cells[[2]int{0, 0}] != 'h' {
		t.Fatalf("expected row 0 to start with 'h', got %q", screen.cells[[2]int{0, 0}])
	}
}

func TestFatalOverlayTakesOverRender(t *testing.T) {
	reg := debugreg.New()
	mon := debugreg.NewMonitor()
	ui := New(reg, mon, nil)
	screen := newFakeScreen(40, 10)
	_ = ui.Attach(screen)

	ui.Fatal(FatalReport{Title: "boom", Details: "details here"})
	if _, ok := ui.ActiveFatal(); !ok {
		t.Fatal("expected an active fatal report")
	}
	ui.Render()
	if screen.cells[[2]int{0, 0}] != 'F' {
		t.Fatalf("expected fatal overlay's first char 'F', got %q", screen.cells[[2]int{0, 0}])
	}

	ui.Dismiss()
	if _, ok := ui.ActiveFatal(); ok {
		t.Fatal("expected no active fatal report after Dismiss")
	}
}

func TestCopyFatalDetailsRequiresBoth(t *testing.T) {
	reg := debugreg.New()
	mon := debugreg.NewMonitor()
	ui := New(reg, mon, nil)
	if err := ui.CopyFatalDetails(); err == nil {
		t.Fatal("expected an error with no active fatal report")
	}

	clip := &fakeClipboard{}
	ui2 := New(reg, mon, clip)
	ui2.Fatal(FatalReport{Title: "boom", Details: "oops"})
	if err := ui2.CopyFatalDetails(); err != nil {
		t.Fatalf("CopyFatalDetails: %v", err)
	}
	if clip.last == "" {
		t.Fatal("expected clipboard to receive the fatal report text")
	}
}

func TestTickRecordsFiredWatchpoints(t *testing.T) {
	reg := debugreg.New()
	mon := debugreg.NewMonitor()
	mon.AddBreakpoint(&debugreg.Breakpoint{Name: "stage1", Frame: 3, Enabled: true})
	ui := New(reg, mon, nil)
	ui.Tick(nil, 3)
	if len(ui.lastFired) != 1 || ui.lastFired[0] != "stage1" {
		t.Fatalf("lastFired = %v, want [stage1]", ui.lastFired)
	}
}
