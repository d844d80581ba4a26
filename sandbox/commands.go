package sandbox

import "github.com/nczxlabs/nczx-core/state"

// Sprite2D is one 2D draw call a game's render() export produced through
// the graphics-2D FFI namespace. Handle identifies a texture resolved via
// the storage-ROM namespace.
type Sprite2D struct {
	Handle                     uint32
	X, Y                       float32
	ScaleX, ScaleY             float32
	RotationRadians            float32
	TintR, TintG, TintB, TintA float32
}

// Rect2D, Line2D, Circle2D and Text2D are the screen-space immediate-mode
// primitives the graphics-2D namespace exposes alongside draw_sprite. Each
// carries a copy of the host's current color register (set_color) rather
// than its own color arguments — a guest sets the color once, then issues
// any number of shape calls, the same register-then-act convention the
// input/time namespaces already follow for everything else in §4.4.
type Rect2D struct {
	X, Y, W, H             float32
	R, G, B, A             float32
	Filled                 bool
}

type Line2D struct {
	X0, Y0, X1, Y1 float32
	R, G, B, A     float32
}

type Circle2D struct {
	X, Y, Radius float32
	R, G, B, A   float32
	Filled       bool
}

type Text2D struct {
	X, Y       float32
	Font       uint32
	Text       string
	R, G, B, A float32
}

// ViewportKind distinguishes the two forms a viewport command takes:
// restricting drawing to a sub-rect, or releasing that restriction.
type ViewportKind int

const (
	ViewportSet ViewportKind = iota
	ViewportClear
)

// ViewportCommand is one viewport/viewport_clear call.
type ViewportCommand struct {
	Kind       ViewportKind
	X, Y, W, H int32
}

// ClearColorCommand records a set_clear_color call; the last one in a frame
// is the background color a collaborator renderer fills before drawing
// anything else.
type ClearColorCommand struct {
	R, G, B, A float32
}

// Mesh3D is one 3D draw call: a mesh handle plus a combined index into the
// frame's MVP+shading pool (state.MVPCombiner), so two draws sharing the
// exact same transform and material collapse to one pool entry (§4.5).
type Mesh3D struct {
	Handle   uint32
	Texture  uint32
	Combined state.Index
}

// TriangleFormat tags the per-vertex byte layout draw_triangles/
// draw_triangles_indexed read out of sandbox memory, so a fixed stride can
// be derived without the host having to understand vertex semantics beyond
// size.
type TriangleFormat uint32

const (
	// FormatPosition is 3 float32s (12 bytes): position only.
	FormatPosition TriangleFormat = iota
	// FormatPositionUV is position (12) + 2 float32 UV (8): 20 bytes.
	FormatPositionUV
	// FormatPositionNormalUV is position (12) + normal (12) + UV (8): 32 bytes.
	FormatPositionNormalUV
)

// Stride returns the per-vertex byte width of f, or 0 for an unrecognized
// format (treated as a no-op draw rather than a guess).
func (f TriangleFormat) Stride() uint32 {
	switch f {
	case FormatPosition:
		return 12
	case FormatPositionUV:
		return 20
	case FormatPositionNormalUV:
		return 32
	default:
		return 0
	}
}

// Triangles3D is one draw_triangles/draw_triangles_indexed call: a raw copy
// of the vertex (and, if indexed, index) bytes the guest handed over,
// tagged with enough metadata for a collaborator renderer to interpret them
// without reaching back into sandbox memory itself.
type Triangles3D struct {
	Vertices    []byte
	VertexCount uint32
	Format      TriangleFormat
	Indices     []uint16 // nil for a non-indexed draw
	Texture     uint32
	Combined    state.Index
}

// Camera is the current camera state recorded by camera_set/camera_fov.
// Only one camera is active at a time — later calls in the same frame
// overwrite earlier ones, the same "current register" convention as
// set_color.
type Camera struct {
	EyeX, EyeY, EyeZ       float32
	TargetX, TargetY, TargetZ float32
	UpX, UpY, UpZ          float32
	FOVRadians             float32
	Aspect                 float32
	Near, Far              float32
}

// ChannelCommandKind tags what an audio-channel FFI call asked the mixer to
// do with one of its addressable, persistent-until-stopped voices.
type ChannelCommandKind int

const (
	ChannelPlay ChannelCommandKind = iota
	ChannelSet
	ChannelStop
)

// ChannelCommand is one channel_play/channel_set/channel_stop call. Channel
// is the guest-chosen addressable id (distinct from the anonymous one-shot
// voices play_sound spawns).
type ChannelCommand struct {
	Kind    ChannelCommandKind
	Channel uint32
	Handle  uint32
	Volume  float32
	Pan     float32
	Loop    bool
}

// MusicCommandKind tags a music_play/music_stop/music_set_volume call.
type MusicCommandKind int

const (
	MusicPlay MusicCommandKind = iota
	MusicStop
	MusicSetVolume
)

// MusicCommand is one music_* call, driving the mixer's single dedicated
// music voice.
type MusicCommand struct {
	Kind   MusicCommandKind
	Handle uint32
	Volume float32
	Loop   bool
}

// TrackerCommandKind tags a tracker_play/tracker_stop/tracker_set_row call.
type TrackerCommandKind int

const (
	TrackerPlay TrackerCommandKind = iota
	TrackerStop
	TrackerSetRow
)

// TrackerCommand is one tracker_* call addressing a KindTracker asset
// (module/pattern music), kept distinct from MusicCommand since a tracker
// module exposes row/pattern transport controls a plain sample doesn't.
type TrackerCommand struct {
	Kind   TrackerCommandKind
	Handle uint32
	Row    uint32
	Volume float32
}

// SoundCommand is a one-shot or looping audio trigger produced through the
// audio FFI namespace.
type SoundCommand struct {
	Handle uint32
	Volume float32
	Pan    float32
	Loop   bool
}

// FrameOutput accumulates every draw and audio command a single render()
// call produced, plus the frame-local packed state it referenced. It is
// cleared at the start of every frame by Instance.BeginFrame.
type FrameOutput struct {
	Sprites  []Sprite2D
	Rects    []Rect2D
	Lines    []Line2D
	Circles  []Circle2D
	Texts    []Text2D
	Viewports []ViewportCommand
	Clears   []ClearColorCommand

	Meshes    []Mesh3D
	Triangles []Triangles3D
	Camera    *Camera

	Sounds   []SoundCommand
	Channels []ChannelCommand
	Music    []MusicCommand
	Trackers []TrackerCommand
}

func (f *FrameOutput) reset() {
	f.Sprites = f.Sprites[:0]
	f.Rects = f.Rects[:0]
	f.Lines = f.Lines[:0]
	f.Circles = f.Circles[:0]
	f.Texts = f.Texts[:0]
	f.Viewports = f.Viewports[:0]
	f.Clears = f.Clears[:0]

	f.Meshes = f.Meshes[:0]
	f.Triangles = f.Triangles[:0]
	f.Camera = nil

	f.Sounds = f.Sounds[:0]
	f.Channels = f.Channels[:0]
	f.Music = f.Music[:0]
	f.Trackers = f.Trackers[:0]
}
