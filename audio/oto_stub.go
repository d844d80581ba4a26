//go:build headless

package audio

// newOtoPlayer falls back to the headless backend in headless builds,
// matching the teacher's audio_backend_headless.go, which keeps the same
// NewOtoPlayer constructor name available under both build tags.
func newOtoPlayer(sampleRate int, mixer *Mixer) (Player, error) {
	return NewHeadlessPlayer(mixer), nil
}
