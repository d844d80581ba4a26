package rollback

import (
	"context"
	"testing"

	"github.com/nczxlabs/nczx-core/cartridge"
	"github.com/nczxlabs/nczx-core/console"
	"github.com/nczxlabs/nczx-core/sandbox"
	"github.com/nczxlabs/nczx-core/snapshot"
	"github.com/nczxlabs/nczx-core/state"
)

var minimalModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
	0x03, 0x03, 0x02, 0x00, 0x00,
	0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x1c, 0x03,
	0x06, 0x75, 0x70, 0x64, 0x61, 0x74, 0x65, 0x00, 0x00,
	0x06, 0x72, 0x65, 0x6e, 0x64, 0x65, 0x72, 0x00, 0x01,
	0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, 0x02, 0x00,
	0x0a, 0x07, 0x02,
	0x02, 0x00, 0x0b,
	0x02, 0x00, 0x0b,
}

func newFixture(t *testing.T) (*sandbox.Instance, *state.Model) {
	t.Helper()
	ctx := context.Background()
	engine := sandbox.NewEngine(ctx, console.NopLogger{})
	t.Cleanup(func() { engine.Close(ctx) })

	model := state.New(1, console.NopLogger{})
	roms := cartridge.NewHandleRegistry(cartridge.NewAssetTable())
	inst, err := engine.Load(ctx, minimalModule, model, roms, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(func() { inst.Close(ctx) })
	return inst, model
}

func TestLocalSessionAdvancesWithoutRollback(t *testing.T) {
	ctx := context.Background()
	inst, model := newFixture(t)
	snapMgr := snapshot.NewManager(8, 0, console.NopLogger{})
	sess := NewSession(KindLocal, 1, 0, 8, snapMgr, console.NopLogger{})

	if err := sess.AddLocalInput(1, state.Input{Buttons: state.ButtonA}); err != nil {
		t.Fatalf("AddLocalInput: %v", err)
	}
	reqs := sess.AdvanceFrame()
	if len(reqs) != 2 || reqs[0].Kind != RequestAdvanceFrame || reqs[1].Kind != RequestSaveState {
		t.Fatalf("unexpected plan for a non-rollback frame: %+v", reqs)
	}
	if err := sess.HandleRequests(ctx, reqs, 1.0/60, model, inst); err != nil {
		t.Fatalf("HandleRequests: %v", err)
	}
	if model.TickCount != 1 {
		t.Fatalf("TickCount = %d, want 1", model.TickCount)
	}
	if sess.ConfirmedFrame() != 1 {
		t.Fatalf("ConfirmedFrame = %d, want 1 for a local session", sess.ConfirmedFrame())
	}
}

func TestMispredictionSchedulesRollback(t *testing.T) {
	ctx := context.Background()
	inst, model := newFixture(t)
	snapMgr := snapshot.NewManager(16, 0, console.NopLogger{})
	sess := NewSession(KindPeerToPeer, 2, 0, 16, snapMgr, console.NopLogger{})

	for f := uint64(1); f <= 5; f++ {
		sess.AddLocalInput(f, state.Input{})
		reqs := sess.AdvanceFrame()
		if err := sess.HandleRequests(ctx, reqs, 1.0/60, model, inst); err != nil {
			t.Fatalf("HandleRequests frame %d: %v", f, err)
		}
	}
	if model.TickCount != 5 {
		t.Fatalf("TickCount = %d, want 5", model.TickCount)
	}

	// Remote input for frame 2 arrives late and disagrees with the
	// zero-value prediction already simulated.
	sess.SetRemoteInput(1, 2, state.Input{Buttons: state.ButtonB}, 30)

	sess.AddLocalInput(6, state.Input{})
	reqs := sess.AdvanceFrame()
	if reqs[0].Kind != RequestLoadState || reqs[0].Frame != 1 {
		t.Fatalf("expected plan to start with LoadState(1), got %+v", reqs[0])
	}
	if reqs[1].Kind != RequestAdvanceFrame || reqs[1].Frame != 2 {
		t.Fatalf("expected frame 2 to be re-simulated, not skipped, got %+v", reqs[1])
	}
	if err := sess.HandleRequests(ctx, reqs, 1.0/60, model, inst); err != nil {
		t.Fatalf("HandleRequests after rollback: %v", err)
	}
	if model.TickCount != 6 {
		t.Fatalf("TickCount after replay = %d, want 6", model.TickCount)
	}

	// The re-saved snapshot for frame 2 must reflect the corrected input
	// actually having been simulated, not the stale zero-value prediction.
	snap2, ok := sess.snapshots[2]
	if !ok {
		t.Fatalf("expected a retained snapshot for frame 2")
	}
	if snap2.Persistent.Input.Curr[1].Buttons&state.ButtonB == 0 {
		t.Fatalf("frame 2 snapshot does not reflect the corrected input; misprediction was never re-simulated")
	}
}

func TestClassifyQualityThresholds(t *testing.T) {
	cases := []struct {
		rtt  float64
		adv  int
		want Quality
	}{
		{20, 1, QualityExcellent},
		{80, 3, QualityGood},
		{150, 5, QualityFair},
		{500, 10, QualityPoor},
		{-1, 0, QualityDisconnected},
	}
	for _, c := range cases {
		if got := ClassifyQuality(c.rtt, c.adv); got != c.want {
			t.Errorf("ClassifyQuality(%v, %v) = %v, want %v", c.rtt, c.adv, got, c.want)
		}
	}
}

func TestPollRemoteClientsReportsDisconnected(t *testing.T) {
	snapMgr := snapshot.NewManager(4, 0, console.NopLogger{})
	sess := NewSession(KindPeerToPeer, 2, 0, 4, snapMgr, console.NopLogger{})
	sess.SetRemoteInput(1, 1, state.Input{}, 20)
	sess.MarkDisconnected(1)

	events := sess.PollRemoteClients()
	found := false
	for _, e := range events {
		if e.Kind == EventDisconnected && e.Player == 1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a disconnected event for player 1, got %+v", events)
	}
}

func TestStatsReflectsConfirmedFrame(t *testing.T) {
	snapMgr := snapshot.NewManager(4, 0, console.NopLogger{})
	sess := NewSession(KindPeerToPeer, 2, 0, 4, snapMgr, console.NopLogger{})
	sess.SetRemoteInput(1, 3, state.Input{}, 15)

	stats := sess.Stats()
	if len(stats) != 1 || stats[0].LastConfirmed != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
