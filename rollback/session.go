package rollback

import (
	"context"
	"fmt"

	"github.com/nczxlabs/nczx-core/console"
	"github.com/nczxlabs/nczx-core/sandbox"
	"github.com/nczxlabs/nczx-core/snapshot"
	"github.com/nczxlabs/nczx-core/state"
)

// Session drives one running game's input timeline: confirmed local input
// goes straight through, remote input is predicted (repeat-last) until a
// real value arrives, and a misprediction schedules a rollback — a
// LoadState to the last confirmed frame followed by replaying every frame
// since, with a fresh SaveState taken as each one is re-simulated.
type Session struct {
	kind             Kind
	numPlayers       int
	localPlayer      int
	predictionWindow int

	currentFrame   uint64
	confirmedFrame uint64
	rollbackTo     *uint64

	inputs map[uint64][state.MaxPlayers]state.Input
	peers  map[int]*baseline

	snapMgr   *snapshot.Manager
	snapshots map[uint64]*snapshot.Snapshot

	log console.Logger
}

// NewSession creates a session. predictionWindow bounds both how far
// ahead of confirmedFrame the local simulation is allowed to run and how
// many past snapshots are retained for rollback.
func NewSession(kind Kind, numPlayers, localPlayer, predictionWindow int, snapMgr *snapshot.Manager, log console.Logger) *Session {
	if log == nil {
		log = console.NopLogger{}
	}
	peers := make(map[int]*baseline, numPlayers)
	for p := 0; p < numPlayers; p++ {
		if p == localPlayer {
			continue
		}
		peers[p] = newBaseline(p)
	}
	return &Session{
		kind:             kind,
		numPlayers:       numPlayers,
		localPlayer:      localPlayer,
		predictionWindow: predictionWindow,
		inputs:           make(map[uint64][state.MaxPlayers]state.Input),
		peers:            peers,
		snapMgr:          snapMgr,
		snapshots:        make(map[uint64]*snapshot.Snapshot),
		log:              log,
	}
}

// Kind reports how this session sources its players' input.
func (s *Session) Kind() Kind { return s.kind }

// CurrentFrame is the highest frame the local simulation has run.
func (s *Session) CurrentFrame() uint64 { return s.currentFrame }

// ConfirmedFrame is the highest frame whose input is confirmed for every
// player (never rolled back past).
func (s *Session) ConfirmedFrame() uint64 { return s.confirmedFrame }

// AddLocalInput records the local player's input for the frame about to
// run. It must be called once per frame before AdvanceFrame.
func (s *Session) AddLocalInput(frame uint64, in state.Input) error {
	if s.localPlayer < 0 || s.localPlayer >= state.MaxPlayers {
		return fmt.Errorf("rollback: local player index %d out of range", s.localPlayer)
	}
	row := s.inputs[frame]
	row[s.localPlayer] = in
	s.inputs[frame] = row
	if s.kind == KindLocal {
		// No prediction in a local session: every frame is confirmed the
		// instant its input is recorded.
		if frame > s.confirmedFrame {
			s.confirmedFrame = frame
		}
	}
	return nil
}

// SetRemoteInput records a confirmed remote input arriving out of band
// (decoded by the host from its transport of choice and handed in here).
// If it disagrees with what was predicted for an already-simulated frame,
// a rollback to that frame is scheduled.
func (s *Session) SetRemoteInput(player int, frame uint64, in state.Input, rttMillis float64) {
	predicted := s.predictedInput(frame, player)

	row := s.inputs[frame]
	row[player] = in
	s.inputs[frame] = row

	if b, ok := s.peers[player]; ok {
		b.update(frame, rttMillis)
	}

	if frame <= s.currentFrame && predicted != in {
		if s.rollbackTo == nil || frame < *s.rollbackTo {
			f := frame
			s.rollbackTo = &f
		}
	}

	s.recomputeConfirmedFrame()
}

func (s *Session) recomputeConfirmedFrame() {
	min := ^uint64(0)
	for p := range s.peers {
		lc := s.peers[p].lastConfirmed
		if lc < min {
			min = lc
		}
	}
	if len(s.peers) == 0 {
		min = s.currentFrame
	}
	if min > s.confirmedFrame {
		s.confirmedFrame = min
	}
}

// predictedInput returns the last known input for player at or before
// frame, falling back to the zero value if none exists yet — classic
// repeat-last-input rollback prediction.
func (s *Session) predictedInput(frame uint64, player int) state.Input {
	for f := frame; ; f-- {
		if row, ok := s.inputs[f]; ok {
			return row[player]
		}
		if f == 0 {
			break
		}
	}
	return state.Input{}
}

// inputsForFrame returns the full per-player input row used to simulate
// frame: confirmed values where known, predicted otherwise.
func (s *Session) inputsForFrame(frame uint64) [state.MaxPlayers]state.Input {
	if row, ok := s.inputs[frame]; ok {
		return row
	}
	var row [state.MaxPlayers]state.Input
	for p := 0; p < s.numPlayers; p++ {
		row[p] = s.predictedInput(frame, p)
	}
	return row
}

// AdvanceFrame produces the ordered plan HandleRequests must execute to
// move the simulation one frame forward, rewinding first if a
// misprediction was scheduled by SetRemoteInput since the last call.
//
// A misprediction at frame F means snapshot{F} (saved after F originally
// ran) was built from the wrong input and is no longer trustworthy: F
// itself must be re-simulated, not skipped. So the rewind target is
// F-1 — the last snapshot still known good — and the replay re-runs
// every frame from F through the current one, saving a fresh snapshot
// after each (§8 scenario A4: LoadState{F-1} then AdvanceFrame for F and
// every frame since).
func (s *Session) AdvanceFrame() []Request {
	var reqs []Request

	if s.rollbackTo != nil {
		mispredicted := *s.rollbackTo
		s.rollbackTo = nil
		rewindTo := mispredicted - 1
		reqs = append(reqs, Request{Kind: RequestLoadState, Frame: rewindTo})
		for f := mispredicted; f <= s.currentFrame; f++ {
			reqs = append(reqs, Request{Kind: RequestAdvanceFrame, Frame: f})
			reqs = append(reqs, Request{Kind: RequestSaveState, Frame: f})
		}
	}

	next := s.currentFrame + 1
	reqs = append(reqs, Request{Kind: RequestAdvanceFrame, Frame: next})
	reqs = append(reqs, Request{Kind: RequestSaveState, Frame: next})
	s.currentFrame = next

	s.pruneSnapshots()
	return reqs
}

// HandleRequests executes a plan produced by AdvanceFrame against model
// and inst, using dt as the fixed timestep for every RequestAdvanceFrame
// step.
func (s *Session) HandleRequests(ctx context.Context, reqs []Request, dt float64, model *state.Model, inst *sandbox.Instance) error {
	for _, req := range reqs {
		switch req.Kind {
		case RequestLoadState:
			snap, ok := s.snapshots[req.Frame]
			if !ok {
				return fmt.Errorf("rollback: no snapshot retained for frame %d", req.Frame)
			}
			if err := s.snapMgr.Load(snap, model, inst); err != nil {
				return fmt.Errorf("rollback: load_state frame %d: %w", req.Frame, err)
			}
		case RequestAdvanceFrame:
			model.AdvanceTick(dt, s.inputsForFrame(req.Frame))
			inst.BeginFrame()
			if err := inst.Update(ctx); err != nil {
				return fmt.Errorf("rollback: update frame %d: %w", req.Frame, err)
			}
		case RequestSaveState:
			snap, err := s.snapMgr.Save(req.Frame, model, inst)
			if err != nil {
				return fmt.Errorf("rollback: save_state frame %d: %w", req.Frame, err)
			}
			if old, ok := s.snapshots[req.Frame]; ok {
				s.snapMgr.Recycle(old)
			}
			s.snapshots[req.Frame] = snap
		}
	}
	return nil
}

// pruneSnapshots discards retained snapshots older than the prediction
// window can ever roll back to, recycling their buffers.
func (s *Session) pruneSnapshots() {
	if s.currentFrame <= uint64(s.predictionWindow) {
		return
	}
	floor := s.currentFrame - uint64(s.predictionWindow)
	for frame, snap := range s.snapshots {
		if frame < floor {
			s.snapMgr.Recycle(snap)
			delete(s.snapshots, frame)
			delete(s.inputs, frame)
		}
	}
}

// PollRemoteClients re-derives session events from each tracked peer's
// current connection quality. The host is expected to have already fed any
// freshly arrived network data through SetRemoteInput before calling this.
func (s *Session) PollRemoteClients() []Event {
	var events []Event
	if s.kind != KindPeerToPeer {
		return events
	}
	if len(s.peers) < s.numPlayers-1 {
		events = append(events, Event{Kind: EventWaitingForPlayers, Frame: s.currentFrame})
	}
	for p, b := range s.peers {
		stats := b.stats(s.currentFrame)
		switch stats.Quality {
		case QualityDisconnected:
			events = append(events, Event{Kind: EventDisconnected, Player: p, Frame: s.currentFrame})
		case QualityPoor:
			events = append(events, Event{Kind: EventFrameAdvantageWarning, Player: p, Frame: s.currentFrame, FramesAhead: stats.FrameAdvantage})
		}
	}
	return events
}

// MarkDisconnected flags a peer as no longer responding, for the host to
// call when its transport detects a timeout.
func (s *Session) MarkDisconnected(player int) {
	if b, ok := s.peers[player]; ok {
		b.connected = false
	}
}

// Stats returns introspection data for every tracked remote peer.
func (s *Session) Stats() []PeerStats {
	out := make([]PeerStats, 0, len(s.peers))
	for _, b := range s.peers {
		out = append(out, b.stats(s.currentFrame))
	}
	return out
}
