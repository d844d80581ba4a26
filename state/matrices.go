package state

// MatrixArray is an append-only, frame-local table of Mat4 values. Unlike
// Pool it does not deduplicate: draw commands that build a matrix
// on-the-fly each frame (e.g. from interpolated transform components)
// rarely produce bit-identical values, so paying for a map lookup on every
// append would cost more than it saves. Dedup happens one level up
// instead: the MVP combiner below interns the (model, view, projection,
// shading) index tuple, not the matrix values.
type MatrixArray struct {
	values []Mat4
}

// Append adds m and returns its index.
func (a *MatrixArray) Append(m Mat4) Index {
	idx := Index(len(a.values))
	a.values = append(a.values, m)
	return idx
}

// Get returns the matrix at idx, or the zero matrix and false if idx is
// out of range.
func (a *MatrixArray) Get(idx Index) (Mat4, bool) {
	if int(idx) < 0 || int(idx) >= len(a.values) {
		return Mat4{}, false
	}
	return a.values[idx], true
}

// Len reports how many matrices have been appended this frame.
func (a *MatrixArray) Len() int { return len(a.values) }

// Clear truncates the array for the next frame without releasing its
// backing storage.
func (a *MatrixArray) Clear() { a.values = a.values[:0] }

// MVPCombiner interns whole (model, view, projection, shading) tuples
// behind a single Index, using the identity of the four pool indices
// rather than the matrix contents — cheap to hash, and correct because two
// draws that already reduced to the same four indices are by construction
// visually identical.
type MVPCombiner struct {
	pool *Pool[MVPIndices]
}

// NewMVPCombiner creates an empty combiner.
func NewMVPCombiner() *MVPCombiner {
	return &MVPCombiner{pool: NewPool[MVPIndices]("mvp", nil)}
}

// Intern returns the combined index for mvp, deduplicating against every
// combination interned so far this frame.
func (c *MVPCombiner) Intern(mvp MVPIndices) Index {
	return c.pool.Intern(mvp)
}

// Get resolves a combined index back to its four components.
func (c *MVPCombiner) Get(idx Index) (MVPIndices, bool) {
	return c.pool.Get(idx)
}

// Clear resets the combiner for the next frame.
func (c *MVPCombiner) Clear() { c.pool.Clear() }
