package state

// Vec4 is a plain 4-component float vector, used here for colors and for
// matrix rows in Mat4. Comparable, so it can key a Pool directly.
type Vec4 struct{ X, Y, Z, W float32 }

// Mat4 is a column-major 4x4 matrix, comparable so the matrix pool can
// dedup identical transforms (two draw calls that happen to share a model
// matrix collapse to one pool entry, same as any other packed pool).
type Mat4 [4]Vec4

// ShadingState is the per-draw material and lighting parameters a 3D draw
// command references by pool index rather than embedding inline — the
// packed-pool pattern applied to GPU-facing state (§4.5).
type ShadingState struct {
	BaseColor     Vec4
	EmissiveColor Vec4
	Roughness     float32
	Metallic      float32
	Environment   Index // index into the environment pool, or Invalid
}

// Light is one directional or point light contribution inside an
// EnvironmentState. Kind 0 = directional, 1 = point.
type Light struct {
	Kind      uint8
	Position  Vec4 // w unused for directional lights
	Direction Vec4 // w unused for point lights
	Color     Vec4
	Intensity float32
}

// MaxLightsPerEnvironment bounds Light arrays so EnvironmentState stays
// comparable (fixed-size arrays, not slices) and therefore poolable.
const MaxLightsPerEnvironment = 4

// EnvironmentState is the per-scene ambient/sky/lighting configuration a
// ShadingState can reference. Pooled the same way: two draws in the same
// environment share one index.
type EnvironmentState struct {
	SkyTop    Vec4
	SkyBottom Vec4
	Ambient   Vec4
	LightCount uint8
	Lights    [MaxLightsPerEnvironment]Light
}

// MVPIndices is the combined index set a single draw command carries:
// three matrix-pool indices plus one shading-pool index, themselves
// interned as one unit so two draws with identical (model, view,
// projection, shading) collapse to a single combined-index lookup.
type MVPIndices struct {
	Model      Index
	View       Index
	Projection Index
	Shading    Index
}
