// Package monitor is a terminal debug UI over a running instance's
// debugreg.Registry and debugreg.Monitor: breakpoint/watchpoint status, a
// typed-value inspector, and the fatal-error overlay described in §7.
// Grounded on the teacher's own debug_monitor.go (a stdin/stdout command
// loop) and on andersfylling-rayman-slides' tcell.go, whose screen setup
// and setCell convention this package's full-screen surface follows.
package monitor

import (
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/nczxlabs/nczx-core/debugreg"
	"github.com/nczxlabs/nczx-core/sandbox"
)

// FatalReport is the information the overlay shows for a trap that halted
// the simulation: a short message, optional extended details, and the
// originating trap if the sandbox produced one.
type FatalReport struct {
	Title   string
	Details string
	Trap    *sandbox.Trap
}

// Screen is the terminal surface the UI draws to (tcell.Screen, narrowed
// to what this package uses, so tests can substitute a fake).
type Screen interface {
	Init() error
	Fini()
	Clear()
	Show()
	Size() (int, int)
	SetContent(x, y int, primary rune, combining []rune, style tcell.Style)
	PollEvent() tcell.Event
}

// ClipboardWriter copies text for the overlay's "copy details" action. A
// real UI wires golang.design/x/clipboard.Write; tests use a recording fake.
type ClipboardWriter interface {
	Write(text string) error
}

// UI drives one terminal debug session: a registry of typed values/actions,
// a breakpoint/watchpoint monitor, and at most one active fatal overlay.
type UI struct {
	mu        sync.Mutex
	screen    Screen
	registry  *debugreg.Registry
	mon       *debugreg.Monitor
	clip      ClipboardWriter
	fatal     *FatalReport
	lastFired []string
}

// New builds a UI over registry and mon; it has no screen until Attach.
func New(registry *debugreg.Registry, mon *debugreg.Monitor, clip ClipboardWriter) *UI {
	return &UI{registry: registry, mon: mon, clip: clip}
}

// Attach wires a live terminal screen, initializing it.
func (u *UI) Attach(s Screen) error {
	if err := s.Init(); err != nil {
		return fmt.Errorf("monitor: screen init: %w", err)
	}
	u.mu.Lock()
	u.screen = s
	u.mu.Unlock()
	return nil
}

// Close tears down the attached screen, if any.
func (u *UI) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.screen != nil {
		u.screen.Fini()
		u.screen = nil
	}
}

// Tick checks every watchpoint/breakpoint against mem and currentFrame,
// recording whatever fired for the next Render call.
func (u *UI) Tick(mem *sandbox.Memory, currentFrame uint64) {
	fired := u.mon.CheckAll(mem, currentFrame)
	u.mu.Lock()
	u.lastFired = fired
	u.mu.Unlock()
}

// Fatal records a fatal-error report and holds it until Dismiss is called;
// Render shows the overlay rather than the normal value inspector while one
// is set, matching §7's "halt the simulation and render a full-screen
// overlay" requirement.
func (u *UI) Fatal(report FatalReport) {
	u.mu.Lock()
	u.fatal = &report
	u.mu.Unlock()
}

// Dismiss clears the active fatal overlay (the "Restart" path; the "Quit"
// path is the host process exiting instead).
func (u *UI) Dismiss() {
	u.mu.Lock()
	u.fatal = nil
	u.mu.Unlock()
}

// ActiveFatal reports the currently held fatal report, if any.
func (u *UI) ActiveFatal() (FatalReport, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.fatal == nil {
		return FatalReport{}, false
	}
	return *u.fatal, true
}

// CopyFatalDetails writes the active fatal report's details to the
// clipboard, if both a report and a ClipboardWriter are present.
func (u *UI) CopyFatalDetails() error {
	u.mu.Lock()
	report, clip := u.fatal, u.clip
	u.mu.Unlock()
	if report == nil {
		return fmt.Errorf("monitor: no active fatal report to copy")
	}
	if clip == nil {
		return fmt.Errorf("monitor: no clipboard writer configured")
	}
	text := report.Title + "\n" + report.Details
	if report.Trap != nil {
		text += "\n" + report.Trap.Error()
	}
	return clip.Write(text)
}

// Render draws either the fatal overlay or the normal value/action listing
// plus the last-fired watchpoint/breakpoint names.
func (u *UI) Render() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.screen == nil {
		return
	}
	u.screen.Clear()
	if u.fatal != nil {
		u.renderFatal()
	} else {
		u.renderValues()
	}
	u.screen.Show()
}

func (u *UI) renderFatal() {
	w, _ := u.screen.Size()
	u.writeLine(0, 0, w, styleAlert(), "FATAL: "+u.fatal.Title)
	u.writeLine(0, 1, w, styleNormal(), u.fatal.Details)
	if u.fatal.Trap != nil {
		u.writeLine(0, 2, w, styleNormal(), u.fatal.Trap.Error())
	}
	u.writeLine(0, 4, w, styleNormal(), "[R]estart  [Q]uit  [C]opy details")
}

func (u *UI) renderValues() {
	w, _ := u.screen.Size()
	row := 0
	for _, v := range u.registry.Values() {
		style := styleNormal()
		if v.Kind == debugreg.KindColor {
			style = styleForPackedColor(0)
		}
		u.writeLine(0, row, w, style, fmt.Sprintf("%-16s %-12s @%d", v.Name, v.Kind, v.Ptr))
		row++
	}
	for _, a := range u.registry.Actions() {
		u.writeLine(0, row, w, styleNormal(), fmt.Sprintf("%-16s action -> %s", a.Name, a.Function))
		row++
	}
	row++
	for _, name := range u.lastFired {
		u.writeLine(0, row, w, styleAlert(), "fired: "+name)
		row++
	}
}

func (u *UI) writeLine(x, y, width int, style tcell.Style, text string) {
	for i := 0; i < width; i++ {
		ch := ' '
		if i < len(text) {
			ch = rune(text[i])
		}
		u.screen.SetContent(x+i, y, ch, nil, style)
	}
}

func styleNormal() tcell.Style {
	return tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorBlack)
}

func styleAlert() tcell.Style {
	return tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorRed)
}

// styleForPackedColor renders a packed RGBA uint32 as a colored swatch
// using go-colorful. renderValues does not read a KindColor value's bytes
// from sandbox memory and passes 0, so every color row shows a black
// swatch rather than the value's color.
func styleForPackedColor(packed uint32) tcell.Style {
	r := float64((packed>>24)&0xFF) / 255
	g := float64((packed>>16)&0xFF) / 255
	b := float64((packed>>8)&0xFF) / 255
	c := colorful.Color{R: r, G: g, B: b}
	cr, cg, cb := c.RGB255()
	return tcell.StyleDefault.Background(tcell.NewRGBColor(int32(cr), int32(cg), int32(cb)))
}
