// Package rollback implements component C2: a rollback-capable multiplayer
// session that predicts remote input, rewinds and replays frames when a
// prediction turns out wrong, and reports connection health back to the
// runtime loop.
package rollback

import "fmt"

// Kind selects how a Session sources its players' input.
type Kind int

const (
	// KindLocal drives every player from local input with no prediction
	// or rollback at all — used for single-player and local multiplayer.
	KindLocal Kind = iota
	// KindSyncTest replays the last N frames every tick against a second,
	// shadow copy of the same instance and compares checksums, to catch
	// nondeterminism bugs in a cartridge before it ever ships networked.
	KindSyncTest
	// KindPeerToPeer predicts remote players' input and rolls back when a
	// real input arrives that differs from the prediction.
	KindPeerToPeer
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindSyncTest:
		return "sync-test"
	case KindPeerToPeer:
		return "peer-to-peer"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// RequestKind is one step of the plan AdvanceFrame hands back for
// HandleRequests to execute, in order.
type RequestKind int

const (
	RequestSaveState RequestKind = iota
	RequestLoadState
	RequestAdvanceFrame
)

func (k RequestKind) String() string {
	switch k {
	case RequestSaveState:
		return "save_state"
	case RequestLoadState:
		return "load_state"
	case RequestAdvanceFrame:
		return "advance_frame"
	default:
		return fmt.Sprintf("request(%d)", int(k))
	}
}

// Request is one instruction in a rollback plan. Frame is the frame it
// applies to (the frame being saved, the frame being restored to, or the
// frame about to be simulated).
type Request struct {
	Kind  RequestKind
	Frame uint64
}

// EventKind enumerates every session-level condition the runtime loop
// needs to react to, named after the FFI-facing GUI event enum this core's
// teacher uses for its own collaborator-facing event stream.
type EventKind int

const (
	EventSynchronized EventKind = iota
	EventDisconnected
	EventDesync
	EventNetworkInterrupted
	EventNetworkResumed
	EventFrameAdvantageWarning
	EventTimeSync
	EventWaitingForPlayers
)

func (k EventKind) String() string {
	switch k {
	case EventSynchronized:
		return "synchronized"
	case EventDisconnected:
		return "disconnected"
	case EventDesync:
		return "desync"
	case EventNetworkInterrupted:
		return "network_interrupted"
	case EventNetworkResumed:
		return "network_resumed"
	case EventFrameAdvantageWarning:
		return "frame_advantage_warning"
	case EventTimeSync:
		return "time_sync"
	case EventWaitingForPlayers:
		return "waiting_for_players"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is one occurrence of an EventKind, with whatever payload that kind
// carries (only the fields relevant to Kind are meaningful).
type Event struct {
	Kind        EventKind
	Player      int
	Frame       uint64
	FramesAhead int    // EventFrameAdvantageWarning, EventTimeSync
	LocalSum    uint64 // EventDesync
	RemoteSum   uint64 // EventDesync
}

// Quality buckets a remote player's connection health so the runtime loop
// and monitor overlay can surface it without reasoning about raw RTT
// numbers themselves.
type Quality int

const (
	QualityExcellent Quality = iota
	QualityGood
	QualityFair
	QualityPoor
	QualityDisconnected
)

func (q Quality) String() string {
	switch q {
	case QualityExcellent:
		return "excellent"
	case QualityGood:
		return "good"
	case QualityFair:
		return "fair"
	case QualityPoor:
		return "poor"
	case QualityDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("quality(%d)", int(q))
	}
}

// ClassifyQuality buckets a connection from its rolling-average round trip
// time and current frame advantage (how many frames of local-only
// prediction are outstanding because remote input hasn't confirmed yet).
// Thresholds match §4.2: an advantage of at most 2 frames at LAN-grade RTT is
// excellent, disconnected is reserved for ClassifyQuality's caller setting
// rttMillis to a negative sentinel once a peer stops responding entirely.
func ClassifyQuality(rttMillis float64, frameAdvantage int) Quality {
	if rttMillis < 0 {
		return QualityDisconnected
	}
	switch {
	case rttMillis <= 50 && frameAdvantage <= 2:
		return QualityExcellent
	case rttMillis <= 100 && frameAdvantage <= 4:
		return QualityGood
	case rttMillis <= 150 && frameAdvantage <= 6:
		return QualityFair
	default:
		return QualityPoor
	}
}
