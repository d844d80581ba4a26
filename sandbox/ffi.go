package sandbox

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/nczxlabs/nczx-core/cartridge"
	"github.com/nczxlabs/nczx-core/state"
)

// host carries everything the FFI namespaces close over: the persistent
// and frame-local state model, the cartridge's resolved asset handles,
// this frame's accumulated draw/audio output, and the handful of
// "current register" scratch values §4.4's immediate-mode drawing calls
// read and write (current color, current texture, the scratch transform
// the push_* calls compose onto and push_identity resets, the environment
// being assembled). One host per Instance, reused
// across every tick and render call for that instance's lifetime.
type host struct {
	model  *state.Model
	roms   *cartridge.HandleRegistry
	output *FrameOutput
	warn   func(format string, args ...any)
	debug  *DebugHooks

	// inInit is true only for the duration of the module's init() export,
	// gating the storage-ROM resolvers and load_sound — resolving assets
	// is meant to happen once at startup, not on every frame (§4.4 line
	// 166), so calling them later logs a warning and fails gracefully
	// rather than trapping.
	inInit bool

	currentColor   [4]float32
	clearColor     [4]float32
	currentTexture uint32
	transform      state.Mat4
	envScratch     state.EnvironmentState
}

func newHost(model *state.Model, roms *cartridge.HandleRegistry, warn func(format string, args ...any), debug *DebugHooks) *host {
	return &host{
		model:        model,
		roms:         roms,
		output:       &FrameOutput{},
		warn:         warn,
		debug:        debug,
		currentColor: [4]float32{1, 1, 1, 1},
		clearColor:   [4]float32{0, 0, 0, 1},
		transform:    identityMat4(),
	}
}

func memoryOf(mod api.Module) *Memory {
	return NewMemory(mod.Memory(), nil)
}

// linkNamespaces registers every FFI namespace §4.4 enumerates as host
// modules on r, to be resolved when the guest module is instantiated.
func (h *host) linkNamespaces(ctx context.Context, r wazero.Runtime) error {
	if err := h.linkInput(ctx, r); err != nil {
		return err
	}
	if err := h.linkTime(ctx, r); err != nil {
		return err
	}
	if err := h.linkStorage(ctx, r); err != nil {
		return err
	}
	if err := h.linkGraphics2D(ctx, r); err != nil {
		return err
	}
	if err := h.linkGraphics3D(ctx, r); err != nil {
		return err
	}
	if err := h.linkAudio(ctx, r); err != nil {
		return err
	}
	if err := h.linkDebug(ctx, r); err != nil {
		return err
	}
	return nil
}

func (h *host) linkInput(ctx context.Context, r wazero.Runtime) error {
	b := r.NewHostModuleBuilder("input")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, player, button uint32) uint32 {
			if h.model.Input.Pressed(int(player), state.Buttons(button)) {
				return 1
			}
			return 0
		}).Export("button_pressed")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, player, button uint32) uint32 {
			if h.model.Input.Released(int(player), state.Buttons(button)) {
				return 1
			}
			return 0
		}).Export("button_released")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, player, button uint32) uint32 {
			if h.model.Input.Held(int(player), state.Buttons(button)) {
				return 1
			}
			return 0
		}).Export("button_held")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, player uint32) float32 {
			if int(player) >= state.MaxPlayers {
				return 0
			}
			return float32(h.model.Input.Curr[player].StickX) / math.MaxInt16
		}).Export("stick_x")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, player uint32) float32 {
			if int(player) >= state.MaxPlayers {
				return 0
			}
			return float32(h.model.Input.Curr[player].StickY) / math.MaxInt16
		}).Export("stick_y")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, player uint32) float32 {
			if int(player) >= state.MaxPlayers {
				return 0
			}
			return float32(h.model.Input.Curr[player].RightStickX) / math.MaxInt16
		}).Export("right_stick_x")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, player uint32) float32 {
			if int(player) >= state.MaxPlayers {
				return 0
			}
			return float32(h.model.Input.Curr[player].RightStickY) / math.MaxInt16
		}).Export("right_stick_y")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, player uint32) float32 {
			if int(player) >= state.MaxPlayers {
				return 0
			}
			return float32(h.model.Input.Curr[player].TriggerL) / math.MaxUint8
		}).Export("left_trigger")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, player uint32) float32 {
			if int(player) >= state.MaxPlayers {
				return 0
			}
			return float32(h.model.Input.Curr[player].TriggerR) / math.MaxUint8
		}).Export("right_trigger")
	_, err := b.Instantiate(ctx)
	return err
}

func (h *host) linkTime(ctx context.Context, r wazero.Runtime) error {
	b := r.NewHostModuleBuilder("time")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context) uint64 { return h.model.TickCount }).
		Export("tick_count")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context) float64 { return h.model.ElapsedTime }).
		Export("elapsed_seconds")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context) uint64 { return h.model.RNG.Next() }).
		Export("rng_next")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context) float64 { return h.model.RNG.Float64() }).
		Export("rng_float")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, n int64) int64 { return h.model.RNG.IntN(n) }).
		Export("rng_int")
	_, err := b.Instantiate(ctx)
	return err
}

// resolveByKind implements the body shared by every typed rom_<kind>
// export: read the id string, refuse outside init(), resolve through the
// handle registry.
func (h *host) resolveByKind(kind cartridge.AssetKind, mem *Memory, ptr, length uint32) uint32 {
	if !h.inInit {
		h.warn("sandbox: rom_%s called outside init(), ignoring", kind)
		return uint32(cartridge.InvalidHandle)
	}
	id, ok := mem.ReadString(ptr, length)
	if !ok {
		return uint32(cartridge.InvalidHandle)
	}
	handle, ok := h.roms.Resolve(kind, id)
	if !ok {
		return uint32(cartridge.InvalidHandle)
	}
	return uint32(handle)
}

func (h *host) linkStorage(ctx context.Context, r wazero.Runtime) error {
	b := r.NewHostModuleBuilder("rom")
	// Generic resolver kept for callers that already address assets by a
	// runtime-computed AssetKind; the eight typed wrappers below are the
	// primary, documented entry points a cartridge links against.
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			kind := cartridge.AssetKind(uint32(stack[0]))
			ptr, length := uint32(stack[1]), uint32(stack[2])
			stack[0] = uint64(h.resolveByKind(kind, memoryOf(mod), ptr, length))
		}), []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}).
		Export("resolve")

	typedKinds := []struct {
		name string
		kind cartridge.AssetKind
	}{
		{"rom_texture", cartridge.KindTexture},
		{"rom_mesh", cartridge.KindMesh},
		{"rom_skeleton", cartridge.KindSkeleton},
		{"rom_keyframes", cartridge.KindKeyframes},
		{"rom_font", cartridge.KindFont},
		{"rom_sound", cartridge.KindSound},
		{"rom_data", cartridge.KindData},
		{"rom_tracker", cartridge.KindTracker},
	}
	for _, tk := range typedKinds {
		kind := tk.kind
		b.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
				ptr, length := uint32(stack[0]), uint32(stack[1])
				stack[0] = uint64(h.resolveByKind(kind, memoryOf(mod), ptr, length))
			}), []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}).
			Export(tk.name)
	}

	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			handle := cartridge.Handle(uint32(stack[0]))
			payload, ok := h.roms.Payload(handle)
			if !ok {
				stack[0] = 0
				return
			}
			stack[0] = uint64(len(payload))
		}), []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}).
		Export("payload_len")
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			handle := cartridge.Handle(uint32(stack[0]))
			destPtr := uint32(stack[1])
			payload, ok := h.roms.Payload(handle)
			if !ok {
				stack[0] = 0
				return
			}
			mem := memoryOf(mod)
			if !mem.WriteBytes(destPtr, payload) {
				stack[0] = 0
				return
			}
			stack[0] = uint64(len(payload))
		}), []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}).
		Export("payload_read")
	_, err := b.Instantiate(ctx)
	return err
}

func (h *host) linkGraphics2D(ctx context.Context, r wazero.Runtime) error {
	b := r.NewHostModuleBuilder("graphics2d")
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			mem := memoryOf(mod)
			s := Sprite2D{
				Handle:          uint32(stack[0]),
				X:               api.DecodeF32(stack[1]),
				Y:               api.DecodeF32(stack[2]),
				ScaleX:          mem.ClampFloat32("sprite_scale_x", api.DecodeF32(stack[3]), 0, 1000),
				ScaleY:          mem.ClampFloat32("sprite_scale_y", api.DecodeF32(stack[4]), 0, 1000),
				RotationRadians: api.DecodeF32(stack[5]),
				TintR:           mem.ClampFloat32("sprite_tint_r", api.DecodeF32(stack[6]), 0, 1),
				TintG:           mem.ClampFloat32("sprite_tint_g", api.DecodeF32(stack[7]), 0, 1),
				TintB:           mem.ClampFloat32("sprite_tint_b", api.DecodeF32(stack[8]), 0, 1),
				TintA:           mem.ClampFloat32("sprite_tint_a", api.DecodeF32(stack[9]), 0, 1),
			}
			h.output.Sprites = append(h.output.Sprites, s)
		}), []api.ValueType{
			api.ValueTypeI32,
			api.ValueTypeF32, api.ValueTypeF32,
			api.ValueTypeF32, api.ValueTypeF32, api.ValueTypeF32,
			api.ValueTypeF32, api.ValueTypeF32, api.ValueTypeF32, api.ValueTypeF32,
		}, nil).
		Export("draw_sprite")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, r, g, bch, a float32) {
			h.currentColor = [4]float32{clamp01(r), clamp01(g), clamp01(bch), clamp01(a)}
		}).Export("set_color")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, r, g, bch, a float32) {
			h.clearColor = [4]float32{clamp01(r), clamp01(g), clamp01(bch), clamp01(a)}
			h.output.Clears = append(h.output.Clears, ClearColorCommand{R: h.clearColor[0], G: h.clearColor[1], B: h.clearColor[2], A: h.clearColor[3]})
		}).Export("set_clear_color")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, x, y, w, hgt float32, filled uint32) {
			c := h.currentColor
			h.output.Rects = append(h.output.Rects, Rect2D{X: x, Y: y, W: w, H: hgt, R: c[0], G: c[1], B: c[2], A: c[3], Filled: filled != 0})
		}).Export("draw_rect")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, x0, y0, x1, y1 float32) {
			c := h.currentColor
			h.output.Lines = append(h.output.Lines, Line2D{X0: x0, Y0: y0, X1: x1, Y1: y1, R: c[0], G: c[1], B: c[2], A: c[3]})
		}).Export("draw_line")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, x, y, radius float32) {
			c := h.currentColor
			h.output.Circles = append(h.output.Circles, Circle2D{X: x, Y: y, Radius: radius, R: c[0], G: c[1], B: c[2], A: c[3], Filled: true})
		}).Export("draw_circle")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, x, y, radius float32) {
			c := h.currentColor
			h.output.Circles = append(h.output.Circles, Circle2D{X: x, Y: y, Radius: radius, R: c[0], G: c[1], B: c[2], A: c[3], Filled: false})
		}).Export("draw_circle_outline")
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			mem := memoryOf(mod)
			ptr, length := uint32(stack[0]), uint32(stack[1])
			x, y := api.DecodeF32(stack[2]), api.DecodeF32(stack[3])
			font := uint32(stack[4])
			text, ok := mem.ReadString(ptr, length)
			if !ok {
				return
			}
			c := h.currentColor
			h.output.Texts = append(h.output.Texts, Text2D{X: x, Y: y, Font: font, Text: text, R: c[0], G: c[1], B: c[2], A: c[3]})
		}), []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeF32, api.ValueTypeF32, api.ValueTypeI32}, nil).
		Export("draw_text")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, x, y, w, hgt int32) {
			h.output.Viewports = append(h.output.Viewports, ViewportCommand{Kind: ViewportSet, X: x, Y: y, W: w, H: hgt})
		}).Export("viewport")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context) {
			h.output.Viewports = append(h.output.Viewports, ViewportCommand{Kind: ViewportClear})
		}).Export("viewport_clear")

	_, err := b.Instantiate(ctx)
	return err
}

func (h *host) linkGraphics3D(ctx context.Context, r wazero.Runtime) error {
	b := r.NewHostModuleBuilder("graphics3d")
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			mem := memoryOf(mod)
			matPtr := uint32(stack[0])
			raw, ok := mem.ReadBytes(matPtr, 64) // 16 float32s
			if !ok {
				stack[0] = uint64(state.Invalid)
				return
			}
			var m state.Mat4
			decodeMat4(raw, &m)
			stack[0] = uint64(h.model.ModelMats.Append(m))
		}), []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}).
		Export("set_model_matrix")
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			mem := memoryOf(mod)
			raw, ok := mem.ReadBytes(uint32(stack[0]), 64)
			if !ok {
				stack[0] = uint64(state.Invalid)
				return
			}
			var m state.Mat4
			decodeMat4(raw, &m)
			stack[0] = uint64(h.model.ViewMats.Append(m))
		}), []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}).
		Export("set_view_matrix")
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			mem := memoryOf(mod)
			raw, ok := mem.ReadBytes(uint32(stack[0]), 64)
			if !ok {
				stack[0] = uint64(state.Invalid)
				return
			}
			var m state.Mat4
			decodeMat4(raw, &m)
			stack[0] = uint64(h.model.ProjMats.Append(m))
		}), []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}).
		Export("set_projection_matrix")
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			shading := state.ShadingState{
				BaseColor:     state.Vec4{X: api.DecodeF32(stack[0]), Y: api.DecodeF32(stack[1]), Z: api.DecodeF32(stack[2]), W: api.DecodeF32(stack[3])},
				EmissiveColor: state.Vec4{X: api.DecodeF32(stack[4]), Y: api.DecodeF32(stack[5]), Z: api.DecodeF32(stack[6]), W: api.DecodeF32(stack[7])},
				Roughness:     api.DecodeF32(stack[8]),
				Metallic:      api.DecodeF32(stack[9]),
				Environment:   state.Index(uint32(stack[10])),
			}
			stack[0] = uint64(h.model.Shading.Intern(shading))
		}), []api.ValueType{
			api.ValueTypeF32, api.ValueTypeF32, api.ValueTypeF32, api.ValueTypeF32,
			api.ValueTypeF32, api.ValueTypeF32, api.ValueTypeF32, api.ValueTypeF32,
			api.ValueTypeF32, api.ValueTypeF32, api.ValueTypeI32,
		}, []api.ValueType{api.ValueTypeI32}).
		Export("set_shading")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, handle, modelIdx, view, proj, shading uint32) {
			combined := h.model.MVP.Intern(state.MVPIndices{
				Model:      state.Index(modelIdx),
				View:       state.Index(view),
				Projection: state.Index(proj),
				Shading:    state.Index(shading),
			})
			h.output.Meshes = append(h.output.Meshes, Mesh3D{Handle: handle, Texture: h.currentTexture, Combined: combined})
		}).Export("draw_mesh")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, handle uint32) { h.currentTexture = handle }).
		Export("texture_bind")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, eyeX, eyeY, eyeZ, targetX, targetY, targetZ, upX, upY, upZ float32) {
			cam := h.camera()
			cam.EyeX, cam.EyeY, cam.EyeZ = eyeX, eyeY, eyeZ
			cam.TargetX, cam.TargetY, cam.TargetZ = targetX, targetY, targetZ
			cam.UpX, cam.UpY, cam.UpZ = upX, upY, upZ
		}).Export("camera_set")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, fovRadians, aspect, near, far float32) {
			cam := h.camera()
			cam.FOVRadians, cam.Aspect, cam.Near, cam.Far = fovRadians, aspect, near, far
		}).Export("camera_fov")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context) { h.transform = identityMat4() }).
		Export("push_identity")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, x, y, z float32) { h.transform = mulMat4(h.transform, translateMat4(x, y, z)) }).
		Export("push_translate")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, radians float32) { h.transform = mulMat4(h.transform, rotateXMat4(radians)) }).
		Export("push_rotate_x")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, radians float32) { h.transform = mulMat4(h.transform, rotateYMat4(radians)) }).
		Export("push_rotate_y")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, radians float32) { h.transform = mulMat4(h.transform, rotateZMat4(radians)) }).
		Export("push_rotate_z")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, x, y, z float32) { h.transform = mulMat4(h.transform, scaleMat4(x, y, z)) }).
		Export("push_scale")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context) uint32 { return uint32(h.model.ModelMats.Append(h.transform)) }).
		Export("transform_commit")

	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			mem := memoryOf(mod)
			ptr, vertexCount, format := uint32(stack[0]), uint32(stack[1]), TriangleFormat(uint32(stack[2]))
			stride := format.Stride()
			if stride == 0 {
				h.warn("sandbox: draw_triangles unrecognized vertex format %d", format)
				return
			}
			raw, ok := mem.ReadBytes(ptr, vertexCount*stride)
			if !ok {
				// Out-of-bounds is non-fatal (§4.4/A6): warn once and drop
				// the draw.
				h.warn("sandbox: draw_triangles vertex range at %d (%d bytes) out of bounds, draw dropped", ptr, vertexCount*stride)
				return
			}
			combined := h.model.MVP.Intern(state.MVPIndices{
				Model:      state.Index(uint32(stack[3])),
				View:       state.Index(uint32(stack[4])),
				Projection: state.Index(uint32(stack[5])),
				Shading:    state.Index(uint32(stack[6])),
			})
			h.output.Triangles = append(h.output.Triangles, Triangles3D{
				Vertices: raw, VertexCount: vertexCount, Format: format,
				Texture: h.currentTexture, Combined: combined,
			})
		}), []api.ValueType{
			api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32,
			api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32,
		}, nil).
		Export("draw_triangles")
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			mem := memoryOf(mod)
			ptr, vertexCount, format := uint32(stack[0]), uint32(stack[1]), TriangleFormat(uint32(stack[2]))
			idxPtr, idxCount := uint32(stack[3]), uint32(stack[4])
			stride := format.Stride()
			if stride == 0 {
				h.warn("sandbox: draw_triangles_indexed unrecognized vertex format %d", format)
				return
			}
			raw, ok := mem.ReadBytes(ptr, vertexCount*stride)
			if !ok {
				return
			}
			idxRaw, ok := mem.ReadBytes(idxPtr, idxCount*2)
			if !ok {
				return
			}
			indices := make([]uint16, idxCount)
			for i := range indices {
				indices[i] = binary.LittleEndian.Uint16(idxRaw[i*2 : i*2+2])
			}
			combined := h.model.MVP.Intern(state.MVPIndices{
				Model:      state.Index(uint32(stack[5])),
				View:       state.Index(uint32(stack[6])),
				Projection: state.Index(uint32(stack[7])),
				Shading:    state.Index(uint32(stack[8])),
			})
			h.output.Triangles = append(h.output.Triangles, Triangles3D{
				Vertices: raw, VertexCount: vertexCount, Format: format,
				Indices: indices, Texture: h.currentTexture, Combined: combined,
			})
		}), []api.ValueType{
			api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32,
			api.ValueTypeI32, api.ValueTypeI32,
			api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32,
		}, nil).
		Export("draw_triangles_indexed")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context) { h.envScratch = state.EnvironmentState{} }).
		Export("begin_environment")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, topR, topG, topB, botR, botG, botB, ambR, ambG, ambB float32) {
			h.envScratch.SkyTop = state.Vec4{X: topR, Y: topG, Z: topB, W: 1}
			h.envScratch.SkyBottom = state.Vec4{X: botR, Y: botG, Z: botB, W: 1}
			h.envScratch.Ambient = state.Vec4{X: ambR, Y: ambG, Z: ambB, W: 1}
		}).Export("environment_set_sky")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, kind, px, py, pz, dx, dy, dz, cr, cg, cbl, ca, intensity float32) uint32 {
			if int(h.envScratch.LightCount) >= state.MaxLightsPerEnvironment {
				h.warn("sandbox: environment_add_light exceeds %d lights, ignoring", state.MaxLightsPerEnvironment)
				return uint32(state.MaxLightsPerEnvironment)
			}
			slot := h.envScratch.LightCount
			h.envScratch.Lights[slot] = state.Light{
				Kind:      uint8(kind),
				Position:  state.Vec4{X: px, Y: py, Z: pz, W: 0},
				Direction: state.Vec4{X: dx, Y: dy, Z: dz, W: 0},
				Color:     state.Vec4{X: cr, Y: cg, Z: cbl, W: ca},
				Intensity: intensity,
			}
			h.envScratch.LightCount++
			return uint32(slot)
		}).Export("environment_add_light")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context) uint32 { return uint32(h.model.Environment.Intern(h.envScratch)) }).
		Export("environment_commit")

	_, err := b.Instantiate(ctx)
	return err
}

// camera lazily allocates h.output.Camera so camera_set/camera_fov can be
// called in either order within the same frame.
func (h *host) camera() *Camera {
	if h.output.Camera == nil {
		h.output.Camera = &Camera{}
	}
	return h.output.Camera
}

func decodeMat4(raw []byte, m *state.Mat4) {
	var f [16]float32
	for i := 0; i < 16; i++ {
		f[i] = math.Float32frombits(
			uint32(raw[i*4]) | uint32(raw[i*4+1])<<8 | uint32(raw[i*4+2])<<16 | uint32(raw[i*4+3])<<24,
		)
	}
	m[0] = state.Vec4{X: f[0], Y: f[1], Z: f[2], W: f[3]}
	m[1] = state.Vec4{X: f[4], Y: f[5], Z: f[6], W: f[7]}
	m[2] = state.Vec4{X: f[8], Y: f[9], Z: f[10], W: f[11]}
	m[3] = state.Vec4{X: f[12], Y: f[13], Z: f[14], W: f[15]}
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (h *host) linkAudio(ctx context.Context, r wazero.Runtime) error {
	b := r.NewHostModuleBuilder("audio")
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			mem := memoryOf(mod)
			h.output.Sounds = append(h.output.Sounds, SoundCommand{
				Handle: uint32(stack[0]),
				Volume: mem.ClampFloat32("audio_volume", api.DecodeF32(stack[1]), 0, 1),
				Pan:    mem.ClampFloat32("audio_pan", api.DecodeF32(stack[2]), -1, 1),
				Loop:   uint32(stack[3]) != 0,
			})
		}), []api.ValueType{api.ValueTypeI32, api.ValueTypeF32, api.ValueTypeF32, api.ValueTypeI32}, nil).
		Export("play_sound")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, handle uint32) uint32 {
			if !h.inInit {
				h.warn("sandbox: load_sound called outside init(), ignoring")
				return 0
			}
			if _, ok := h.roms.Payload(cartridge.Handle(handle)); !ok {
				return 0
			}
			return 1
		}).Export("load_sound")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, channel, handle uint32, volume, pan float32, loop uint32) {
			h.output.Channels = append(h.output.Channels, ChannelCommand{
				Kind: ChannelPlay, Channel: channel, Handle: handle,
				Volume: clamp01(volume), Pan: clampSigned(pan), Loop: loop != 0,
			})
		}).Export("channel_play")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, channel uint32, volume, pan float32) {
			h.output.Channels = append(h.output.Channels, ChannelCommand{
				Kind: ChannelSet, Channel: channel, Volume: clamp01(volume), Pan: clampSigned(pan),
			})
		}).Export("channel_set")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, channel uint32) {
			h.output.Channels = append(h.output.Channels, ChannelCommand{Kind: ChannelStop, Channel: channel})
		}).Export("channel_stop")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, handle uint32, volume float32, loop uint32) {
			h.output.Music = append(h.output.Music, MusicCommand{Kind: MusicPlay, Handle: handle, Volume: clamp01(volume), Loop: loop != 0})
		}).Export("music_play")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context) {
			h.output.Music = append(h.output.Music, MusicCommand{Kind: MusicStop})
		}).Export("music_stop")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, volume float32) {
			h.output.Music = append(h.output.Music, MusicCommand{Kind: MusicSetVolume, Volume: clamp01(volume)})
		}).Export("music_set_volume")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, handle, row uint32) {
			h.output.Trackers = append(h.output.Trackers, TrackerCommand{Kind: TrackerPlay, Handle: handle, Row: row})
		}).Export("tracker_play")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, handle uint32) {
			h.output.Trackers = append(h.output.Trackers, TrackerCommand{Kind: TrackerStop, Handle: handle})
		}).Export("tracker_stop")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, handle, row uint32) {
			h.output.Trackers = append(h.output.Trackers, TrackerCommand{Kind: TrackerSetRow, Handle: handle, Row: row})
		}).Export("tracker_set_row")

	_, err := b.Instantiate(ctx)
	return err
}

func clampSigned(v float32) float32 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

func (h *host) linkDebug(ctx context.Context, r wazero.Runtime) error {
	b := r.NewHostModuleBuilder("debug")
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			mem := memoryOf(mod)
			msg, ok := mem.ReadString(uint32(stack[0]), uint32(stack[1]))
			if !ok {
				return
			}
			if h.warn != nil {
				h.warn("game: %s", msg)
			}
		}), []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, nil).
		Export("log")

	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			mem := memoryOf(mod)
			name, ok := mem.ReadString(uint32(stack[0]), uint32(stack[1]))
			if !ok {
				return
			}
			kind, ptr := uint32(stack[2]), uint32(stack[3])
			if h.debug != nil && h.debug.RegisterValue != nil {
				h.debug.RegisterValue(name, kind, ptr, false, 0, 0)
			}
		}), []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}, nil).
		Export("debug_register_value")
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			mem := memoryOf(mod)
			name, ok := mem.ReadString(uint32(stack[0]), uint32(stack[1]))
			if !ok {
				return
			}
			kind, ptr := uint32(stack[2]), uint32(stack[3])
			min, max := api.DecodeF64(stack[4]), api.DecodeF64(stack[5])
			if h.debug != nil && h.debug.RegisterValue != nil {
				h.debug.RegisterValue(name, kind, ptr, true, min, max)
			}
		}), []api.ValueType{
			api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32,
			api.ValueTypeF64, api.ValueTypeF64,
		}, nil).
		Export("debug_register_value_ranged")
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			mem := memoryOf(mod)
			name, ok := mem.ReadString(uint32(stack[0]), uint32(stack[1]))
			if !ok {
				return
			}
			fn, ok := mem.ReadString(uint32(stack[2]), uint32(stack[3]))
			if !ok {
				return
			}
			if h.debug != nil && h.debug.RegisterAction != nil {
				h.debug.RegisterAction(name, fn)
			}
		}), []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}, nil).
		Export("debug_register_action")
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			mem := memoryOf(mod)
			action, ok := mem.ReadString(uint32(stack[0]), uint32(stack[1]))
			if !ok {
				return
			}
			name, ok := mem.ReadString(uint32(stack[2]), uint32(stack[3]))
			if !ok {
				return
			}
			kind := uint32(stack[4])
			def := api.DecodeF64(stack[5])
			if h.debug != nil && h.debug.ActionParam != nil {
				h.debug.ActionParam(action, name, kind, def)
			}
		}), []api.ValueType{
			api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32,
			api.ValueTypeI32, api.ValueTypeF64,
		}, nil).
		Export("debug_action_param")
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			mem := memoryOf(mod)
			name, ok := mem.ReadString(uint32(stack[0]), uint32(stack[1]))
			if !ok {
				return
			}
			ptr, size := uint32(stack[2]), uint32(stack[3])
			if h.debug != nil && h.debug.WatchChanged != nil {
				h.debug.WatchChanged(name, ptr, size)
			}
		}), []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}, nil).
		Export("debug_watch_changed")
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			mem := memoryOf(mod)
			name, ok := mem.ReadString(uint32(stack[0]), uint32(stack[1]))
			if !ok {
				return
			}
			ptr, size := uint32(stack[2]), uint32(stack[3])
			cond := uint32(stack[4])
			targetPtr, targetLen := uint32(stack[5]), uint32(stack[6])
			target, ok := mem.ReadBytes(targetPtr, targetLen)
			if !ok {
				return
			}
			if h.debug != nil && h.debug.WatchCompare != nil {
				h.debug.WatchCompare(name, ptr, size, cond, target)
			}
		}), []api.ValueType{
			api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32,
			api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32,
		}, nil).
		Export("debug_watch_compare")
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			mem := memoryOf(mod)
			name, ok := mem.ReadString(uint32(stack[0]), uint32(stack[1]))
			if !ok {
				return
			}
			if h.debug != nil && h.debug.GroupBegin != nil {
				h.debug.GroupBegin(name)
			}
		}), []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, nil).
		Export("debug_group_begin")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context) {
			if h.debug != nil && h.debug.GroupEnd != nil {
				h.debug.GroupEnd()
			}
		}).Export("debug_group_end")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context) uint32 {
			if h.debug != nil && h.debug.IsPaused != nil && h.debug.IsPaused() {
				return 1
			}
			return 0
		}).Export("debug_is_paused")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context) float64 {
			if h.debug != nil && h.debug.TimeScale != nil {
				return h.debug.TimeScale()
			}
			return 1.0
		}).Export("debug_get_time_scale")

	_, err := b.Instantiate(ctx)
	return err
}
