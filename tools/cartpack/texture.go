// Package cartpack implements the cartridge authoring CLI: it walks a
// directory of source assets (PNG textures, raw sound/data/font/mesh/
// skeleton/keyframe/tracker files), decodes what needs decoding, and packs
// everything plus a compiled bytecode module into the §6 container format
// via cartridge.Encode.
//
// Texture decoding is adapted from the teacher's tools/font2rgba.go (PNG
// decode, draw.Draw into an RGBA buffer, near-black chroma-keying) but
// generalized from that tool's one hardcoded font file to any texture in an
// asset directory, and rescaled with golang.org/x/image/draw instead of
// font2rgba's fixed passthrough, since a cartpack texture may need to match
// a target console's VRAM budget.
package cartpack

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	ximgdraw "golang.org/x/image/draw"
)

// DecodeOptions controls how a source PNG is converted to the packed RGBA
// payload a cartridge's graphics2D FFI namespace expects.
type DecodeOptions struct {
	// ChromaKeyBlack makes near-black pixels (every channel below the
	// threshold) transparent, matching font2rgba's font-sheet convention.
	ChromaKeyBlack    bool
	BlackThreshold    uint8
	MaxWidth, MaxHeight int // 0 means no resize
}

// DecodeTexture decodes a PNG and returns its packed RGBA bytes plus final
// dimensions, applying opts.
func DecodeTexture(data []byte, opts DecodeOptions) (pixels []byte, width, height int, err error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("cartpack: decode png: %w", err)
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)

	if opts.ChromaKeyBlack {
		threshold := opts.BlackThreshold
		if threshold == 0 {
			threshold = 16
		}
		chromaKeyBlack(rgba, threshold)
	}

	if opts.MaxWidth > 0 && opts.MaxHeight > 0 {
		if bounds.Dx() > opts.MaxWidth || bounds.Dy() > opts.MaxHeight {
			rgba = resize(rgba, opts.MaxWidth, opts.MaxHeight)
		}
	}

	return rgba.Pix, rgba.Bounds().Dx(), rgba.Bounds().Dy(), nil
}

func chromaKeyBlack(rgba *image.RGBA, threshold uint8) {
	for i := 0; i < len(rgba.Pix); i += 4 {
		r, g, b := rgba.Pix[i], rgba.Pix[i+1], rgba.Pix[i+2]
		if r < threshold && g < threshold && b < threshold {
			rgba.Pix[i+3] = 0
		}
	}
}

// resize scales src down to fit within maxW x maxH using x/image/draw's
// bilinear scaler, preserving aspect ratio.
func resize(src *image.RGBA, maxW, maxH int) *image.RGBA {
	sb := src.Bounds()
	scale := float64(maxW) / float64(sb.Dx())
	if alt := float64(maxH) / float64(sb.Dy()); alt < scale {
		scale = alt
	}
	dstW := int(float64(sb.Dx()) * scale)
	dstH := int(float64(sb.Dy()) * scale)
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	ximgdraw.BiLinear.Scale(dst, dst.Bounds(), src, sb, ximgdraw.Over, nil)
	return dst
}
