package audio

import (
	"testing"

	"github.com/nczxlabs/nczx-core/sandbox"
)

type fakeSource struct{}

func (fakeSource) Samples(handle uint32) ([]float32, bool) {
	if handle == 0 {
		return nil, false
	}
	return []float32{1, 1, 1, 1}, true
}

func TestMixerSubmitAndRenderRetiresNonLoopingVoice(t *testing.T) {
	m := NewMixer(fakeSource{})
	m.Submit(&sandbox.FrameOutput{Sounds: []sandbox.SoundCommand{
		{Handle: 1, Volume: 0.5},
	}})
	if m.ActiveVoices() != 1 {
		t.Fatalf("ActiveVoices() = %d, want 1", m.ActiveVoices())
	}

	out := make([]float32, 4)
	m.Render(out)
	for i, v := range out {
		if v != 0.5 {
			t.Fatalf("out[%d] = %v, want 0.5", i, v)
		}
	}

	// The first render consumed all 4 samples and retired the voice; a
	// second render leaves it retired.
	m.Render(out)
	if m.ActiveVoices() != 0 {
		t.Fatalf("ActiveVoices() after exhaustion = %d, want 0", m.ActiveVoices())
	}
}

func TestMixerDropsUnresolvedHandles(t *testing.T) {
	m := NewMixer(fakeSource{})
	m.Submit(&sandbox.FrameOutput{Sounds: []sandbox.SoundCommand{{Handle: 0}}})
	if m.ActiveVoices() != 0 {
		t.Fatalf("ActiveVoices() = %d, want 0 for an unresolved handle", m.ActiveVoices())
	}
}

func TestMixerCapsAtMaxVoices(t *testing.T) {
	m := NewMixer(fakeSource{})
	var cmds []sandbox.SoundCommand
	for i := 0; i < MaxVoices+5; i++ {
		cmds = append(cmds, sandbox.SoundCommand{Handle: 1})
	}
	m.Submit(&sandbox.FrameOutput{Sounds: cmds})
	if m.ActiveVoices() != MaxVoices {
		t.Fatalf("ActiveVoices() = %d, want %d", m.ActiveVoices(), MaxVoices)
	}
}

func TestMixerChannelPlaySetStop(t *testing.T) {
	m := NewMixer(fakeSource{})
	m.Submit(&sandbox.FrameOutput{Channels: []sandbox.ChannelCommand{
		{Kind: sandbox.ChannelPlay, Channel: 3, Handle: 1, Volume: 1, Loop: true},
	}})

	out := make([]float32, 2)
	m.Render(out)
	if out[0] != 1 {
		t.Fatalf("out[0] = %v, want 1 from the looping channel voice", out[0])
	}

	m.Submit(&sandbox.FrameOutput{Channels: []sandbox.ChannelCommand{
		{Kind: sandbox.ChannelSet, Channel: 3, Volume: 0.25},
	}})
	m.Render(out)
	if out[0] != 0.25 {
		t.Fatalf("out[0] after channel_set = %v, want 0.25", out[0])
	}

	m.Submit(&sandbox.FrameOutput{Channels: []sandbox.ChannelCommand{
		{Kind: sandbox.ChannelStop, Channel: 3},
	}})
	m.Render(out)
	if out[0] != 0 {
		t.Fatalf("out[0] after channel_stop = %v, want 0", out[0])
	}
}

func TestMixerMusicPlayStopVolume(t *testing.T) {
	m := NewMixer(fakeSource{})
	m.Submit(&sandbox.FrameOutput{Music: []sandbox.MusicCommand{
		{Kind: sandbox.MusicPlay, Handle: 1, Volume: 1, Loop: true},
	}})

	out := make([]float32, 2)
	m.Render(out)
	if out[0] != 1 {
		t.Fatalf("out[0] = %v, want 1 from music voice", out[0])
	}

	m.Submit(&sandbox.FrameOutput{Music: []sandbox.MusicCommand{
		{Kind: sandbox.MusicSetVolume, Volume: 0.5},
	}})
	m.Render(out)
	if out[0] != 0.5 {
		t.Fatalf("out[0] after music_set_volume = %v, want 0.5", out[0])
	}

	m.Submit(&sandbox.FrameOutput{Music: []sandbox.MusicCommand{{Kind: sandbox.MusicStop}}})
	m.Render(out)
	if out[0] != 0 {
		t.Fatalf("out[0] after music_stop = %v, want 0", out[0])
	}
}

func TestMixerTrackerPlayStop(t *testing.T) {
	m := NewMixer(fakeSource{})
	m.Submit(&sandbox.FrameOutput{Trackers: []sandbox.TrackerCommand{
		{Kind: sandbox.TrackerPlay, Handle: 1, Volume: 1},
	}})

	out := make([]float32, 2)
	m.Render(out)
	if out[0] != 1 {
		t.Fatalf("out[0] = %v, want 1 from tracker voice", out[0])
	}

	m.Submit(&sandbox.FrameOutput{Trackers: []sandbox.TrackerCommand{
		{Kind: sandbox.TrackerStop, Handle: 1},
	}})
	m.Render(out)
	if out[0] != 0 {
		t.Fatalf("out[0] after tracker_stop = %v, want 0", out[0])
	}
}

func TestHeadlessPlayerLifecycle(t *testing.T) {
	m := NewMixer(nil)
	p := NewHeadlessPlayer(m)
	if p.IsStarted() {
		t.Fatal("new player should not be started")
	}
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !p.IsStarted() {
		t.Fatal("expected IsStarted after Start")
	}
	p.Pump()
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if p.IsStarted() {
		t.Fatal("expected IsStarted false after Close")
	}
}

func TestNewUnknownBackendErrors(t *testing.T) {
	if _, err := New(Backend(99), 44100, NewMixer(nil)); err == nil {
		t.Fatal("expected an error for an unknown backend")
	}
}
