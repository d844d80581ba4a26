// Package video is the graphics collaborator boundary: the DrawCommand
// buffer shape a sandbox FrameOutput is converted into, the Output
// interface every backend implements, and the command-buffer convention the
// runtime loop drives once per frame. Concrete windowing, GPU pipelines, and
// shader work are explicitly out of core scope (§1 Non-goals) — only the
// boundary and a thin Ebiten/headless pair live here.
package video

import (
	"fmt"
	"time"

	"github.com/nczxlabs/nczx-core/sandbox"
)

// Error carries operation context for a failed video call, matching the
// console-wide VideoError convention (Operation/Details/wrapped Err).
type Error struct {
	Operation string
	Details   string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("video %s failed: %s: %v", e.Operation, e.Details, e.Err)
	}
	return fmt.Sprintf("video %s failed: %s", e.Operation, e.Details)
}

func (e *Error) Unwrap() error { return e.Err }

// PixelFormat is the raw layout UpdateFrame's buffer is encoded in.
type PixelFormat int

const (
	PixelFormatRGBA PixelFormat = iota
	PixelFormatRGB565
)

// DisplayConfig is the hardware-independent display configuration a backend
// accepts from a console.Spec's Resolution.
type DisplayConfig struct {
	Width       int
	Height      int
	Scale       int
	RefreshRate int
	PixelFormat PixelFormat
	VSync       bool
	Fullscreen  bool
}

// ClampScale bounds an integer scaling factor to the range a backend window
// can reasonably present.
func ClampScale(s int) int {
	if s < 1 {
		return 1
	}
	if s > 4 {
		return 4
	}
	return s
}

// FrameSnapshot is a point-in-time copy of a backend's current frame buffer,
// returned by a Snapshotter's GetSnapshot.
type FrameSnapshot struct {
	Buffer    []byte
	Width     int
	Height    int
	Format    PixelFormat
	Timestamp time.Time
}

// Output is the minimal interface every video backend implements. It knows
// nothing about sandbox.FrameOutput directly — Compositor does that
// translation — so a backend only ever sees raw RGBA pixels.
type Output interface {
	Start() error
	Stop() error
	Close() error
	IsStarted() bool

	SetDisplayConfig(config DisplayConfig) error
	GetDisplayConfig() DisplayConfig
	UpdateFrame(buffer []byte) error

	WaitForVSync() error
	GetFrameCount() uint64
	GetRefreshRate() int
}

// Snapshotter is implemented by backends that can hand back their current
// frame buffer without blocking on the render goroutine.
type Snapshotter interface {
	GetSnapshot() (FrameSnapshot, error)
}

// TextureSource resolves a sandbox.Sprite2D or Mesh3D handle to a decoded
// RGBA texture, bridging the cartridge's bundled-asset table to a backend
// that wants real pixels instead of flat-color placeholders.
type TextureSource interface {
	Texture(handle uint32) (pixels []byte, width, height int, ok bool)
}

// Backend enumerates the concrete Output implementations this package
// builds.
type Backend int

const (
	BackendEbiten Backend = iota
	BackendHeadless
)

// New constructs the requested backend.
func New(backend Backend) (Output, error) {
	switch backend {
	case BackendEbiten:
		return newEbitenOutput(), nil
	case BackendHeadless:
		return NewHeadlessOutput(), nil
	default:
		return nil, &Error{Operation: "backend creation", Details: fmt.Sprintf("unknown backend %d", backend)}
	}
}

// Compositor turns one sandbox.FrameOutput into a flat RGBA buffer and
// drives it into an Output. It is the only piece of this package that knows
// about sandbox types, kept separate from the backend implementations so
// they stay swappable without touching the draw-command interpretation.
type Compositor struct {
	out   Output
	tex   TextureSource
	scale int
}

// NewCompositor builds a compositor over out, using tex (which may be nil)
// to resolve textured sprites to real pixels; sprites with unresolved
// handles fall back to a flat tint.
func NewCompositor(out Output, tex TextureSource) *Compositor {
	return &Compositor{out: out, tex: tex}
}

// Present rasterizes frame's 2D draw commands (sprites, rects, lines,
// circles, text, viewport clipping, clear color) into the backend's current
// display configuration and hands the buffer to Output.UpdateFrame. Mesh3D
// and Triangles3D commands are intentionally not rasterized here — 3D
// presentation is a collaborator concern per §1 — but are recorded on
// frame for a host to route to its own renderer.
func (c *Compositor) Present(frame *sandbox.FrameOutput) error {
	cfg := c.out.GetDisplayConfig()
	width, height := cfg.Width, cfg.Height
	if width <= 0 || height <= 0 {
		return &Error{Operation: "present", Details: "display not configured"}
	}

	buf := make([]byte, width*height*4)
	c.clear(buf, width, height, frame)

	clip := currentViewport{x0: 0, y0: 0, x1: width, y1: height}
	for _, sp := range frame.Sprites {
		c.drawSprite(buf, width, height, sp)
	}
	for _, vp := range frame.Viewports {
		switch vp.Kind {
		case sandbox.ViewportSet:
			clip = clampViewport(vp, width, height)
		case sandbox.ViewportClear:
			clip = currentViewport{x0: 0, y0: 0, x1: width, y1: height}
		}
	}
	for _, r := range frame.Rects {
		c.drawRect(buf, width, height, clip, r)
	}
	for _, l := range frame.Lines {
		c.drawLine(buf, width, height, clip, l)
	}
	for _, ci := range frame.Circles {
		c.drawCircle(buf, width, height, clip, ci)
	}
	for _, t := range frame.Texts {
		c.drawText(buf, width, height, clip, t)
	}
	return c.out.UpdateFrame(buf)
}

// currentViewport is the active clip rect in pixel space; commands outside
// it are dropped rather than drawn and clamped, matching set_clear_color's
// "last one wins, applies to the whole frame" convention for viewport too.
type currentViewport struct {
	x0, y0, x1, y1 int
}

func (v currentViewport) contains(x, y int) bool {
	return x >= v.x0 && x < v.x1 && y >= v.y0 && y < v.y1
}

func clampViewport(vp sandbox.ViewportCommand, width, height int) currentViewport {
	x0, y0 := int(vp.X), int(vp.Y)
	x1, y1 := x0+int(vp.W), y0+int(vp.H)
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 > width {
		x1 = width
	}
	if y1 > height {
		y1 = height
	}
	return currentViewport{x0: x0, y0: y0, x1: x1, y1: y1}
}

// clear fills buf with the last set_clear_color call's color, or leaves it
// fully transparent black if render() never called set_clear_color.
func (c *Compositor) clear(buf []byte, width, height int, frame *sandbox.FrameOutput) {
	if len(frame.Clears) == 0 {
		return
	}
	last := frame.Clears[len(frame.Clears)-1]
	r, g, b, a := clampColor(last.R), clampColor(last.G), clampColor(last.B), clampColor(last.A)
	for i := 0; i+4 <= len(buf); i += 4 {
		buf[i], buf[i+1], buf[i+2], buf[i+3] = r, g, b, a
	}
}

// drawRect paints a filled or single-pixel-outline rectangle, clipped to
// both the frame buffer and the active viewport.
func (c *Compositor) drawRect(buf []byte, width, height int, clip currentViewport, r sandbox.Rect2D) {
	cr, cg, cb, ca := clampColor(r.R), clampColor(r.G), clampColor(r.B), clampColor(r.A)
	x0, y0 := int(r.X), int(r.Y)
	x1, y1 := x0+int(r.W), y0+int(r.H)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			if !r.Filled && x != x0 && x != x1-1 && y != y0 && y != y1-1 {
				continue
			}
			c.setPixel(buf, width, height, clip, x, y, cr, cg, cb, ca)
		}
	}
}

// drawLine rasterizes a straight segment with Bresenham's algorithm, the
// same integer-only technique andersfylling-rayman-slides' tcell backend
// uses for its ASCII line primitives.
func (c *Compositor) drawLine(buf []byte, width, height int, clip currentViewport, l sandbox.Line2D) {
	cr, cg, cb, ca := clampColor(l.R), clampColor(l.G), clampColor(l.B), clampColor(l.A)
	x0, y0, x1, y1 := int(l.X0), int(l.Y0), int(l.X1), int(l.Y1)
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := sign(x1-x0), sign(y1-y0)
	err := dx + dy
	for {
		c.setPixel(buf, width, height, clip, x0, y0, cr, cg, cb, ca)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// drawCircle paints a filled disc or a single-pixel outline using a midpoint
// circle scan, clipped the same way as every other 2D primitive.
func (c *Compositor) drawCircle(buf []byte, width, height int, clip currentViewport, ci sandbox.Circle2D) {
	cr, cg, cb, ca := clampColor(ci.R), clampColor(ci.G), clampColor(ci.B), clampColor(ci.A)
	cx, cy, radius := int(ci.X), int(ci.Y), int(ci.Radius)
	if radius <= 0 {
		return
	}
	r2 := radius * radius
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			d2 := x*x + y*y
			if ci.Filled {
				if d2 > r2 {
					continue
				}
			} else if d2 < (radius-1)*(radius-1) || d2 > r2 {
				continue
			}
			c.setPixel(buf, width, height, clip, cx+x, cy+y, cr, cg, cb, ca)
		}
	}
}

// drawText paints one placeholder glyph cell per rune — real glyph
// rasterization is out of core scope per §1, same as textured sprites
// without a TextureSource — so text shows up as a solid run of cells a host
// can visually confirm positioning and color against, not rendered prose.
func (c *Compositor) drawText(buf []byte, width, height int, clip currentViewport, t sandbox.Text2D) {
	cr, cg, cb, ca := clampColor(t.R), clampColor(t.G), clampColor(t.B), clampColor(t.A)
	x0, y0 := int(t.X), int(t.Y)
	for i := range t.Text {
		gx := x0 + i*6
		for dy := 0; dy < 8; dy++ {
			for dx := 0; dx < 5; dx++ {
				c.setPixel(buf, width, height, clip, gx+dx, y0+dy, cr, cg, cb, ca)
			}
		}
	}
}

func (c *Compositor) setPixel(buf []byte, width, height int, clip currentViewport, x, y int, r, g, b, a byte) {
	if x < 0 || x >= width || y < 0 || y >= height || !clip.contains(x, y) {
		return
	}
	i := (y*width + x) * 4
	buf[i], buf[i+1], buf[i+2], buf[i+3] = r, g, b, a
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	if v < 0 {
		return -1
	}
	if v > 0 {
		return 1
	}
	return 0
}

// drawSprite paints a single-color (or textured) axis-aligned box centered
// on sp's position, clipped to the frame buffer — a placeholder rasterizer
// good enough to exercise the command-buffer contract without pulling in a
// full 2D rendering pipeline (out of scope per §1).
func (c *Compositor) drawSprite(buf []byte, width, height int, sp sandbox.Sprite2D) {
	w := int(8 * clampPositive(sp.ScaleX))
	h := int(8 * clampPositive(sp.ScaleY))
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}

	r, g, b, a := clampColor(sp.TintR), clampColor(sp.TintG), clampColor(sp.TintB), clampColor(sp.TintA)
	if c.tex != nil {
		if pixels, tw, th, ok := c.tex.Texture(sp.Handle); ok {
			c.blit(buf, width, height, int(sp.X), int(sp.Y), pixels, tw, th)
			return
		}
	}

	x0, y0 := int(sp.X)-w/2, int(sp.Y)-h/2
	for y := y0; y < y0+h; y++ {
		if y < 0 || y >= height {
			continue
		}
		for x := x0; x < x0+w; x++ {
			if x < 0 || x >= width {
				continue
			}
			i := (y*width + x) * 4
			buf[i], buf[i+1], buf[i+2], buf[i+3] = r, g, b, a
		}
	}
}

func (c *Compositor) blit(dst []byte, dstW, dstH, x0, y0 int, src []byte, srcW, srcH int) {
	for y := 0; y < srcH; y++ {
		dy := y0 + y
		if dy < 0 || dy >= dstH {
			continue
		}
		for x := 0; x < srcW; x++ {
			dx := x0 + x
			if dx < 0 || dx >= dstW {
				continue
			}
			si := (y*srcW + x) * 4
			di := (dy*dstW + dx) * 4
			if si+4 > len(src) {
				continue
			}
			copy(dst[di:di+4], src[si:si+4])
		}
	}
}

func clampColor(v float32) byte {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return byte(v * 255)
}

func clampPositive(v float32) float32 {
	if v <= 0 {
		return 1
	}
	return v
}
