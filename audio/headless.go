package audio

// HeadlessPlayer is a no-output backend for tests and for hosts that run
// without sound (server-authoritative rollback peers). Grounded on the
// teacher's headless OtoPlayer (audio_backend_headless.go), adapted to
// drain a Mixer instead of a SoundChip so ActiveVoices bookkeeping stays
// observable even with no real output device.
type HeadlessPlayer struct {
	mixer   *Mixer
	started bool
	scratch [256]float32
}

// NewHeadlessPlayer returns a ready-to-use headless backend over mixer.
func NewHeadlessPlayer(mixer *Mixer) *HeadlessPlayer {
	return &HeadlessPlayer{mixer: mixer}
}

func (hp *HeadlessPlayer) Start() error {
	hp.started = true
	return nil
}

func (hp *HeadlessPlayer) Stop() error {
	hp.started = false
	return nil
}

func (hp *HeadlessPlayer) Close() error {
	hp.started = false
	return nil
}

func (hp *HeadlessPlayer) IsStarted() bool { return hp.started }

// Pump renders and discards one scratch buffer's worth of mixer output,
// letting tests exercise voice retirement without a real audio clock.
func (hp *HeadlessPlayer) Pump() {
	if hp.mixer != nil {
		hp.mixer.Render(hp.scratch[:])
	}
}
