//go:build !headless

package video

import (
	"fmt"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

// ebitenOutput is the pure-Go windowed backend, grounded on the teacher's
// EbitenOutput (video_backend_ebiten.go): an Ebiten *ebiten.Image fed by an
// RGBA byte buffer under a mutex, with Draw/Layout implementing
// ebiten.Game so ebiten.RunGame can drive it on its own goroutine.
type ebitenOutput struct {
	running     bool
	window      *ebiten.Image
	width       int
	height      int
	format      PixelFormat
	fullscreen  bool
	scale       int
	windowedW   int
	windowedH   int
	frameBuffer []byte
	mu          sync.RWMutex
	frameCount  uint64
	refreshRate int
	vsyncChan   chan struct{}
}

func newEbitenOutput() Output {
	return &ebitenOutput{
		width:       640,
		height:      480,
		format:      PixelFormatRGBA,
		scale:       1,
		windowedW:   640,
		windowedH:   480,
		frameBuffer: make([]byte, 640*480*4),
		refreshRate: 60,
		vsyncChan:   make(chan struct{}, 1),
	}
}

func (eo *ebitenOutput) Start() error {
	if eo.running {
		return nil
	}
	eo.running = true
	ebiten.SetWindowSize(eo.windowedW, eo.windowedH)
	ebiten.SetWindowTitle("NCZX")
	ebiten.SetWindowResizable(true)
	ebiten.SetRunnableOnUnfocused(true)
	ebiten.SetVsyncEnabled(true)
	if eo.fullscreen {
		ebiten.SetFullscreen(true)
	}

	go func() {
		if err := ebiten.RunGame(eo); err != nil {
			_ = err // the run loop exiting is normal window-close behavior
		}
	}()

	<-eo.vsyncChan
	return nil
}

func (eo *ebitenOutput) Stop() error {
	eo.running = false
	return nil
}

func (eo *ebitenOutput) Close() error {
	return eo.Stop()
}

func (eo *ebitenOutput) UpdateFrame(data []byte) error {
	eo.mu.Lock()
	defer eo.mu.Unlock()
	if len(data) != len(eo.frameBuffer) {
		return &Error{Operation: "update frame", Details: fmt.Sprintf("buffer size %d does not match configured %d", len(data), len(eo.frameBuffer))}
	}
	copy(eo.frameBuffer, data)
	return nil
}

func (eo *ebitenOutput) SetDisplayConfig(config DisplayConfig) error {
	eo.mu.Lock()
	defer eo.mu.Unlock()

	width, height := config.Width, config.Height
	if width <= 0 {
		width = 640
	}
	if height <= 0 {
		height = 480
	}
	eo.width, eo.height = width, height
	eo.format = config.PixelFormat
	eo.scale = ClampScale(config.Scale)

	newSize := width * height * 4
	if len(eo.frameBuffer) != newSize {
		eo.frameBuffer = make([]byte, newSize)
	}

	eo.windowedW = width * eo.scale
	eo.windowedH = height * eo.scale
	eo.fullscreen = config.Fullscreen
	if eo.running {
		ebiten.SetFullscreen(eo.fullscreen)
		if !eo.fullscreen {
			ebiten.SetWindowSize(eo.windowedW, eo.windowedH)
		}
	}
	if eo.window != nil {
		eo.window.Dispose()
		eo.window = nil
	}
	return nil
}

func (eo *ebitenOutput) GetDisplayConfig() DisplayConfig {
	eo.mu.RLock()
	defer eo.mu.RUnlock()
	return DisplayConfig{
		Width:       eo.width,
		Height:      eo.height,
		Scale:       eo.scale,
		PixelFormat: eo.format,
		RefreshRate: eo.refreshRate,
		VSync:       true,
		Fullscreen:  eo.fullscreen,
	}
}

func (eo *ebitenOutput) WaitForVSync() error {
	<-eo.vsyncChan
	return nil
}

func (eo *ebitenOutput) GetFrameCount() uint64 {
	eo.mu.RLock()
	defer eo.mu.RUnlock()
	return eo.frameCount
}

func (eo *ebitenOutput) GetRefreshRate() int {
	return eo.refreshRate
}

func (eo *ebitenOutput) IsStarted() bool {
	eo.mu.RLock()
	defer eo.mu.RUnlock()
	return eo.running
}

func (eo *ebitenOutput) GetSnapshot() (FrameSnapshot, error) {
	eo.mu.RLock()
	defer eo.mu.RUnlock()
	snap := FrameSnapshot{
		Buffer:    make([]byte, len(eo.frameBuffer)),
		Width:     eo.width,
		Height:    eo.height,
		Format:    eo.format,
		Timestamp: time.Now(),
	}
	copy(snap.Buffer, eo.frameBuffer)
	return snap, nil
}

func (eo *ebitenOutput) Update() error {
	if !eo.running {
		return ebiten.Termination
	}
	return nil
}

func (eo *ebitenOutput) Draw(screen *ebiten.Image) {
	if eo.window == nil {
		eo.window = ebiten.NewImage(eo.width, eo.height)
	}

	eo.mu.Lock()
	eo.window.WritePixels(eo.frameBuffer)
	eo.frameCount++
	eo.mu.Unlock()
	screen.DrawImage(eo.window, nil)

	select {
	case eo.vsyncChan <- struct{}{}:
	default:
	}
}

func (eo *ebitenOutput) Layout(_, _ int) (int, int) {
	eo.mu.RLock()
	defer eo.mu.RUnlock()
	return eo.width, eo.height
}
