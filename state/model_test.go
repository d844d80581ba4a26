package state

import "testing"

func TestModelClearFrameResetsPoolsNotPersistentState(t *testing.T) {
	m := New(123, nil)
	m.AdvanceTick(1.0/60, [MaxPlayers]Input{})

	shadingIdx := m.Shading.Intern(ShadingState{Roughness: 0.5})
	modelIdx := m.ModelMats.Append(Mat4{})
	mvpIdx := m.MVP.Intern(MVPIndices{Model: modelIdx, Shading: shadingIdx})

	tickBefore := m.TickCount
	rngBefore := m.RNG.State()

	m.ClearFrame()

	if m.TickCount != tickBefore || m.RNG.State() != rngBefore {
		t.Fatal("ClearFrame must not touch persistent state")
	}
	if m.Shading.Len() != 0 || m.ModelMats.Len() != 0 {
		t.Fatal("expected frame-local pools empty after ClearFrame")
	}
	if _, ok := m.MVP.Get(mvpIdx); ok {
		t.Fatal("expected combined MVP index to be invalid after ClearFrame")
	}
}

func TestMVPCombinerDedupesIdenticalTuples(t *testing.T) {
	m := New(1, nil)
	model := m.ModelMats.Append(Mat4{})
	view := m.ViewMats.Append(Mat4{})
	proj := m.ProjMats.Append(Mat4{})
	shading := m.Shading.Intern(ShadingState{Roughness: 1})

	a := m.MVP.Intern(MVPIndices{Model: model, View: view, Projection: proj, Shading: shading})
	b := m.MVP.Intern(MVPIndices{Model: model, View: view, Projection: proj, Shading: shading})
	if a != b {
		t.Fatalf("expected identical MVP tuples to collapse to one index, got %v and %v", a, b)
	}

	other := m.Shading.Intern(ShadingState{Roughness: 2})
	c := m.MVP.Intern(MVPIndices{Model: model, View: view, Projection: proj, Shading: other})
	if c == a {
		t.Fatal("expected a different shading index to produce a distinct MVP index")
	}
}

func TestSnapshotRestoreRoundTripsPersistentState(t *testing.T) {
	m := New(99, nil)
	for i := 0; i < 10; i++ {
		m.AdvanceTick(1.0/60, [MaxPlayers]Input{0: {Buttons: ButtonUp}})
	}
	m.RNG.Next()
	snap := m.Snapshot()

	for i := 0; i < 10; i++ {
		m.AdvanceTick(1.0/60, [MaxPlayers]Input{0: {Buttons: ButtonDown}})
		m.RNG.Next()
	}

	m.Restore(snap)
	if m.TickCount != snap.TickCount {
		t.Fatalf("TickCount = %d, want %d", m.TickCount, snap.TickCount)
	}
	if m.RNG.State() != snap.RNGState {
		t.Fatalf("RNG state = %d, want %d", m.RNG.State(), snap.RNGState)
	}
	if m.ElapsedTime != snap.ElapsedTime {
		t.Fatalf("ElapsedTime = %v, want %v", m.ElapsedTime, snap.ElapsedTime)
	}
}
