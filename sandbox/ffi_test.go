package sandbox

import (
	"context"
	"testing"

	"github.com/nczxlabs/nczx-core/cartridge"
	"github.com/nczxlabs/nczx-core/console"
	"github.com/nczxlabs/nczx-core/state"
)

func TestTriangleFormatStride(t *testing.T) {
	cases := map[TriangleFormat]uint32{
		FormatPosition:         12,
		FormatPositionUV:       20,
		FormatPositionNormalUV: 32,
		TriangleFormat(99):     0,
	}
	for format, want := range cases {
		if got := format.Stride(); got != want {
			t.Errorf("Stride(%d) = %d, want %d", format, got, want)
		}
	}
}

func TestIdentityMat4IsMultiplicativeIdentity(t *testing.T) {
	id := identityMat4()
	translated := translateMat4(1, 2, 3)
	got := mulMat4(id, translated)
	if got != translated {
		t.Fatalf("identity * translate = %+v, want %+v", got, translated)
	}
	got = mulMat4(translated, id)
	if got != translated {
		t.Fatalf("translate * identity = %+v, want %+v", got, translated)
	}
}

func TestPushTranslateComposesIntoLastColumn(t *testing.T) {
	m := mulMat4(identityMat4(), translateMat4(5, -2, 9))
	if m[0].W != 5 || m[1].W != -2 || m[2].W != 9 {
		t.Fatalf("translate columns = (%v,%v,%v), want (5,-2,9)", m[0].W, m[1].W, m[2].W)
	}
}

func TestScaleMat4ScalesDiagonal(t *testing.T) {
	m := scaleMat4(2, 3, 4)
	if m[0].X != 2 || m[1].Y != 3 || m[2].Z != 4 {
		t.Fatalf("scale diagonal = (%v,%v,%v), want (2,3,4)", m[0].X, m[1].Y, m[2].Z)
	}
}

func TestRotateZMat4RotatesQuarterTurn(t *testing.T) {
	const halfPi = 1.5707963267948966
	m := rotateZMat4(halfPi)
	// Rotating the +X axis a quarter turn about Z should land close to +Y.
	x, y := m[0].X, m[1].X
	if x > 1e-5 || x < -1e-5 {
		t.Errorf("rotated X component = %v, want ~0", x)
	}
	if y < 0.999 || y > 1.001 {
		t.Errorf("rotated Y component = %v, want ~1", y)
	}
}

func TestClampHelpers(t *testing.T) {
	if clamp01(-1) != 0 || clamp01(2) != 1 || clamp01(0.5) != 0.5 {
		t.Fatal("clamp01 did not clamp to [0,1]")
	}
	if clampSigned(-2) != -1 || clampSigned(2) != 1 || clampSigned(0.25) != 0.25 {
		t.Fatal("clampSigned did not clamp to [-1,1]")
	}
}

func TestHostCameraLazyAllocIsStableAcrossCalls(t *testing.T) {
	h := newHost(state.New(1, console.NopLogger{}), cartridge.NewHandleRegistry(cartridge.NewAssetTable()), func(string, ...any) {}, nil)
	cam := h.camera()
	cam.EyeX = 7
	if h.camera() != cam {
		t.Fatal("camera() must return the same instance within a frame")
	}
	if h.camera().EyeX != 7 {
		t.Fatal("camera state did not persist across camera() calls")
	}
}

func TestResolveByKindRejectsOutsideInit(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(ctx, console.NopLogger{})
	defer engine.Close(ctx)

	table := cartridge.NewAssetTable()
	table.Set(cartridge.KindTexture, []cartridge.Asset{{ID: "hero", Payload: []byte{1, 2, 3}}})
	roms := cartridge.NewHandleRegistry(table)

	model := state.New(1, console.NopLogger{})
	inst, err := engine.Load(ctx, minimalModule, model, roms, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer inst.Close(ctx)

	mem := inst.Memory()
	mem.WriteBytes(0, []byte("hero"))

	h := inst.host
	if h.inInit {
		t.Fatal("a fresh instance must not report inInit before Init runs")
	}
	if got := h.resolveByKind(cartridge.KindTexture, mem, 0, 4); got != uint32(cartridge.InvalidHandle) {
		t.Fatalf("resolveByKind outside init() = %d, want InvalidHandle", got)
	}

	h.inInit = true
	got := h.resolveByKind(cartridge.KindTexture, mem, 0, 4)
	if got == uint32(cartridge.InvalidHandle) {
		t.Fatal("resolveByKind during init() should resolve the registered texture")
	}
	again := h.resolveByKind(cartridge.KindTexture, mem, 0, 4)
	if again != got {
		t.Fatalf("resolveByKind must return the same handle on repeated calls, got %d then %d", got, again)
	}
}

func TestResolveByKindUnknownIDReturnsInvalidHandle(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(ctx, console.NopLogger{})
	defer engine.Close(ctx)

	roms := cartridge.NewHandleRegistry(cartridge.NewAssetTable())
	model := state.New(1, console.NopLogger{})
	inst, err := engine.Load(ctx, minimalModule, model, roms, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer inst.Close(ctx)

	mem := inst.Memory()
	mem.WriteBytes(0, []byte("missing"))

	h := inst.host
	h.inInit = true
	if got := h.resolveByKind(cartridge.KindTexture, mem, 0, 7); got != uint32(cartridge.InvalidHandle) {
		t.Fatalf("resolveByKind for an unregistered id = %d, want InvalidHandle", got)
	}
}
