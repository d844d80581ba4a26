package video

import "sync/atomic"

// HeadlessOutput is a no-window backend for tests and for hosts that run
// the simulation without presenting pixels (server-authoritative rollback
// peers, replay verification). Grounded on the teacher's
// HeadlessVideoOutput (video_backend_headless.go).
type HeadlessOutput struct {
	started     bool
	config      DisplayConfig
	frameCount  uint64
	refreshRate int
	lastFrame   []byte
}

// NewHeadlessOutput returns a ready-to-use headless backend.
func NewHeadlessOutput() *HeadlessOutput {
	return &HeadlessOutput{refreshRate: 60}
}

func (h *HeadlessOutput) Start() error { h.started = true; return nil }
func (h *HeadlessOutput) Stop() error  { h.started = false; return nil }
func (h *HeadlessOutput) Close() error { h.started = false; return nil }
func (h *HeadlessOutput) IsStarted() bool { return h.started }

func (h *HeadlessOutput) SetDisplayConfig(config DisplayConfig) error {
	h.config = config
	return nil
}

func (h *HeadlessOutput) GetDisplayConfig() DisplayConfig { return h.config }

func (h *HeadlessOutput) UpdateFrame(buffer []byte) error {
	atomic.AddUint64(&h.frameCount, 1)
	h.lastFrame = buffer
	return nil
}

func (h *HeadlessOutput) WaitForVSync() error { return nil }

func (h *HeadlessOutput) GetFrameCount() uint64 { return atomic.LoadUint64(&h.frameCount) }

func (h *HeadlessOutput) GetRefreshRate() int {
	if h.refreshRate == 0 {
		return 60
	}
	return h.refreshRate
}

// LastFrame returns the most recently presented buffer, for test assertions.
func (h *HeadlessOutput) LastFrame() []byte { return h.lastFrame }
