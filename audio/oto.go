//go:build !headless

package audio

import (
	"math"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// otoPlayer is the real-output backend, grounded on the teacher's OtoPlayer
// (audio_backend_oto.go): an oto.Player pulling from Read, backed here by a
// Mixer instead of the teacher's single SoundChip ring buffer.
type otoPlayer struct {
	ctx     *oto.Context
	player  *oto.Player
	mixer   *Mixer
	started bool
	mu      sync.Mutex
}

func newOtoPlayer(sampleRate int, mixer *Mixer) (*otoPlayer, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
		BufferSize:   4,
	})
	if err != nil {
		return nil, &Error{Operation: "oto backend creation", Details: "NewContext", Err: err}
	}
	<-ready

	op := &otoPlayer{ctx: ctx, mixer: mixer}
	op.player = ctx.NewPlayer(op)
	return op, nil
}

// Read implements io.Reader for oto.Player, rendering mixer output directly
// into the byte buffer it was handed.
func (op *otoPlayer) Read(p []byte) (int, error) {
	numSamples := len(p) / 4
	samples := make([]float32, numSamples)
	op.mixer.Render(samples)
	for i, s := range samples {
		bits := math.Float32bits(s)
		p[i*4] = byte(bits)
		p[i*4+1] = byte(bits >> 8)
		p[i*4+2] = byte(bits >> 16)
		p[i*4+3] = byte(bits >> 24)
	}
	return len(p), nil
}

func (op *otoPlayer) Start() error {
	op.mu.Lock()
	defer op.mu.Unlock()
	if !op.started {
		op.player.Play()
		op.started = true
	}
	return nil
}

func (op *otoPlayer) Stop() error {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.started {
		op.player.Pause()
		op.started = false
	}
	return nil
}

func (op *otoPlayer) Close() error {
	_ = op.Stop()
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.player.Close()
}

func (op *otoPlayer) IsStarted() bool {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.started
}
