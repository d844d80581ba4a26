package sandbox

import (
	"math"

	"github.com/nczxlabs/nczx-core/state"
)

// identityMat4 is the zero-rotation, zero-translation transform
// push_identity resets the host's scratch transform to.
func identityMat4() state.Mat4 {
	return state.Mat4{
		{X: 1, Y: 0, Z: 0, W: 0},
		{X: 0, Y: 1, Z: 0, W: 0},
		{X: 0, Y: 0, Z: 1, W: 0},
		{X: 0, Y: 0, Z: 0, W: 1},
	}
}

// mulMat4 composes a then b (b applied first, a second — a*b in row-vector
// convention), matching the order push_translate/push_rotate_*/push_scale
// accumulate onto the current scratch transform: each push left-multiplies
// its own matrix onto whatever is already there, so the most recently
// pushed operation takes effect closest to the vertex.
func mulMat4(a, b state.Mat4) state.Mat4 {
	var out state.Mat4
	ar := [4][4]float32{
		{a[0].X, a[0].Y, a[0].Z, a[0].W},
		{a[1].X, a[1].Y, a[1].Z, a[1].W},
		{a[2].X, a[2].Y, a[2].Z, a[2].W},
		{a[3].X, a[3].Y, a[3].Z, a[3].W},
	}
	br := [4][4]float32{
		{b[0].X, b[0].Y, b[0].Z, b[0].W},
		{b[1].X, b[1].Y, b[1].Z, b[1].W},
		{b[2].X, b[2].Y, b[2].Z, b[2].W},
		{b[3].X, b[3].Y, b[3].Z, b[3].W},
	}
	var r [4][4]float32
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += ar[i][k] * br[k][j]
			}
			r[i][j] = sum
		}
	}
	out[0] = state.Vec4{X: r[0][0], Y: r[0][1], Z: r[0][2], W: r[0][3]}
	out[1] = state.Vec4{X: r[1][0], Y: r[1][1], Z: r[1][2], W: r[1][3]}
	out[2] = state.Vec4{X: r[2][0], Y: r[2][1], Z: r[2][2], W: r[2][3]}
	out[3] = state.Vec4{X: r[3][0], Y: r[3][1], Z: r[3][2], W: r[3][3]}
	return out
}

func translateMat4(x, y, z float32) state.Mat4 {
	m := identityMat4()
	m[0].W = x
	m[1].W = y
	m[2].W = z
	return m
}

func scaleMat4(x, y, z float32) state.Mat4 {
	m := identityMat4()
	m[0].X = x
	m[1].Y = y
	m[2].Z = z
	return m
}

func rotateXMat4(radians float32) state.Mat4 {
	m := identityMat4()
	c, s := float32(math.Cos(float64(radians))), float32(math.Sin(float64(radians)))
	m[1].Y, m[1].Z = c, -s
	m[2].Y, m[2].Z = s, c
	return m
}

func rotateYMat4(radians float32) state.Mat4 {
	m := identityMat4()
	c, s := float32(math.Cos(float64(radians))), float32(math.Sin(float64(radians)))
	m[0].X, m[0].Z = c, s
	m[2].X, m[2].Z = -s, c
	return m
}

func rotateZMat4(radians float32) state.Mat4 {
	m := identityMat4()
	c, s := float32(math.Cos(float64(radians))), float32(math.Sin(float64(radians)))
	m[0].X, m[0].Y = c, -s
	m[1].X, m[1].Y = s, c
	return m
}
