// Package audio is the audio collaborator boundary: the channel/command
// model a sandbox.SoundCommand is turned into, the Player interface every
// backend implements, and an Oto-backed and a headless implementation.
// Concrete mixing, DSP, and sample decoding are out of core scope (§1
// Non-goals) — this package defines the boundary and a minimal mixer good
// enough to drive a real backend.
package audio

import (
	"fmt"
	"sync"

	"github.com/nczxlabs/nczx-core/sandbox"
)

// Error carries operation context for a failed audio call, matching the
// console-wide *Error convention used by video and cartridge.
type Error struct {
	Operation string
	Details   string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("audio %s failed: %s: %v", e.Operation, e.Details, e.Err)
	}
	return fmt.Sprintf("audio %s failed: %s", e.Operation, e.Details)
}

func (e *Error) Unwrap() error { return e.Err }

// MaxVoices bounds how many concurrent SoundCommand voices the mixer plays
// at once; a cartridge that exceeds this drops its newest command rather
// than let unbounded voices degrade every other channel's volume.
const MaxVoices = 16

// SampleSource resolves a sandbox.SoundCommand's Handle to raw mono PCM
// samples in [-1, 1], bridging the cartridge's bundled-asset table to the
// mixer.
type SampleSource interface {
	Samples(handle uint32) (samples []float32, ok bool)
}

// Player is the minimal interface every audio backend implements.
type Player interface {
	Start() error
	Stop() error
	Close() error
	IsStarted() bool
}

// Backend enumerates the concrete Player implementations this package
// builds.
type Backend int

const (
	BackendOto Backend = iota
	BackendHeadless
)

// New constructs the requested backend at sampleRate, wired to mixer as its
// sample source.
func New(backend Backend, sampleRate int, mixer *Mixer) (Player, error) {
	switch backend {
	case BackendOto:
		return newOtoPlayer(sampleRate, mixer)
	case BackendHeadless:
		return NewHeadlessPlayer(mixer), nil
	default:
		return nil, &Error{Operation: "backend creation", Details: fmt.Sprintf("unknown backend %d", backend)}
	}
}

// voice is one actively-playing SoundCommand.
type voice struct {
	samples []float32
	pos     int
	volume  float32
	pan     float32
	loop    bool
}

// Mixer accumulates the SoundCommands one sandbox frame produced into a set
// of active voices and renders them down to an interleaved mono float32
// stream a Player.Read pulls from — the audio equivalent of video's
// Compositor, kept backend-agnostic. Besides the anonymous one-shot voices
// play_sound spawns, it tracks addressable channels (channel_play/set/stop),
// a single dedicated music voice (music_play/stop/set_volume), and tracker
// module playback (tracker_play/stop/set_row) — each its own namespace so a
// channel_stop never touches the music voice or another channel.
type Mixer struct {
	mu       sync.Mutex
	src      SampleSource
	voices   []*voice
	channels map[uint32]*voice
	music    *voice
	trackers map[uint32]*voice
}

// NewMixer builds a mixer resolving handles through src, which may be nil
// (every SoundCommand is then silently dropped — exercised by tests that
// only care about voice bookkeeping).
func NewMixer(src SampleSource) *Mixer {
	return &Mixer{
		src:      src,
		channels: make(map[uint32]*voice),
		trackers: make(map[uint32]*voice),
	}
}

// Submit starts a new voice for each command in frame's Sounds, dropping
// anything beyond MaxVoices so one frame spawning an excessive sound burst
// cannot silently degrade every other playing voice's buffer budget, and
// applies frame's Channels/Music/Trackers commands to their own persistent
// voices.
func (m *Mixer) Submit(frame *sandbox.FrameOutput) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cmd := range frame.Sounds {
		if len(m.voices) >= MaxVoices {
			break
		}
		if v := m.newVoice(cmd.Handle, cmd.Volume, cmd.Pan, cmd.Loop); v != nil {
			m.voices = append(m.voices, v)
		}
	}
	for _, cmd := range frame.Channels {
		switch cmd.Kind {
		case sandbox.ChannelPlay:
			if v := m.newVoice(cmd.Handle, cmd.Volume, cmd.Pan, cmd.Loop); v != nil {
				m.channels[cmd.Channel] = v
			}
		case sandbox.ChannelSet:
			if v := m.channels[cmd.Channel]; v != nil {
				v.volume = clampUnit(cmd.Volume)
				v.pan = clampPan(cmd.Pan)
			}
		case sandbox.ChannelStop:
			delete(m.channels, cmd.Channel)
		}
	}
	for _, cmd := range frame.Music {
		switch cmd.Kind {
		case sandbox.MusicPlay:
			m.music = m.newVoice(cmd.Handle, cmd.Volume, 0, cmd.Loop)
		case sandbox.MusicStop:
			m.music = nil
		case sandbox.MusicSetVolume:
			if m.music != nil {
				m.music.volume = clampUnit(cmd.Volume)
			}
		}
	}
	for _, cmd := range frame.Trackers {
		switch cmd.Kind {
		case sandbox.TrackerPlay:
			if v := m.newVoice(cmd.Handle, cmd.Volume, 0, true); v != nil {
				m.trackers[cmd.Handle] = v
			}
		case sandbox.TrackerStop:
			delete(m.trackers, cmd.Handle)
		case sandbox.TrackerSetRow:
			// Row-accurate seeking needs pattern metadata this mixer's flat
			// PCM SampleSource doesn't carry; restart from the top so a
			// seek at least re-triggers rather than silently doing nothing.
			if v := m.trackers[cmd.Handle]; v != nil {
				v.pos = 0
			}
		}
	}
}

// newVoice resolves handle through src and builds a voice, or returns nil if
// src is unset or the handle doesn't resolve to any samples.
func (m *Mixer) newVoice(handle uint32, volume, pan float32, loop bool) *voice {
	if m.src == nil {
		return nil
	}
	samples, ok := m.src.Samples(handle)
	if !ok || samples == nil {
		return nil
	}
	return &voice{samples: samples, volume: clampUnit(volume), pan: clampPan(pan), loop: loop}
}

// ActiveVoices reports how many one-shot voices are currently playing, for
// tests and monitor telemetry. Channels, music, and tracker voices are
// tracked separately since they persist until explicitly stopped.
func (m *Mixer) ActiveVoices() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

// Render fills all len(out) samples of out with mixed mono output, advancing every
// voice and retiring non-looping voices that have run out of samples.
func (m *Mixer) Render(out []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range out {
		out[i] = 0
	}

	live := m.voices[:0]
	for _, v := range m.voices {
		if mixVoice(out, v) {
			live = append(live, v)
		}
	}
	m.voices = live

	for ch, v := range m.channels {
		if !mixVoice(out, v) {
			delete(m.channels, ch)
		}
	}
	if m.music != nil && !mixVoice(out, m.music) {
		m.music = nil
	}
	for handle, v := range m.trackers {
		if !mixVoice(out, v) {
			delete(m.trackers, handle)
		}
	}

	for i := range out {
		if out[i] > 1 {
			out[i] = 1
		} else if out[i] < -1 {
			out[i] = -1
		}
	}
}

// mixVoice advances v by len(out) samples, accumulating into out, and
// reports whether v is still live (should stay in its owning collection).
func mixVoice(out []float32, v *voice) bool {
	for i := range out {
		if v.pos >= len(v.samples) {
			if v.loop {
				v.pos = 0
			} else {
				break
			}
		}
		out[i] += v.samples[v.pos] * v.volume
		v.pos++
	}
	return v.loop || v.pos < len(v.samples)
}

func clampUnit(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampPan(v float32) float32 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
