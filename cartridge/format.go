// Package cartridge parses the NCZX container format and exposes O(1)
// id-based lookup over its bundled-asset table (component C6 of the core).
package cartridge

import (
	"encoding/binary"
	"fmt"
)

// Magic identifies an NCZX cartridge container. Other consoles built on
// this core pick their own 4-byte tag; NCZX's stands for the reference
// console defined in console.Reference.
var Magic = [4]byte{0x4E, 0x43, 0x5A, 0x58} // "NCZX"

// FormatVersion is the only container version this package understands.
const FormatVersion = 1

// RenderMode selects how a cartridge's game expects to be driven: screen-
// space 2D drawing only, or the full 3D camera/mesh/lighting FFI surface.
type RenderMode uint8

const (
	RenderMode2D RenderMode = iota
	RenderMode3D
)

// Metadata carries the cartridge's author-facing identity plus the fields
// the runtime loop and console.Spec validation need before the first tick.
type Metadata struct {
	ID          string
	Title       string
	Author      string
	Version     string
	Description string
	Tags        []string
	CreatedAt   int64 // unix seconds
	UpdatedAt   int64 // unix seconds
	RenderMode  RenderMode
	Width       uint16
	Height      uint16
	TickRate    uint8
}

// Cartridge is the immutable, fully parsed container. Every byte slice it
// holds is a view into (or a copy taken from) the original container bytes;
// nothing here is mutated after Parse returns.
type Cartridge struct {
	Version     uint8
	Metadata    Metadata
	Bytecode    []byte
	Assets      *AssetTable // nil if the container carried no asset block
	Thumbnail   []byte      // nil if absent
	Screenshots [][]byte
}

// reader walks the container buffer, returning an error the moment any
// length prefix would read past the end of the bytes — malformed
// containers never panic.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) remaining() int { return len(r.buf) - r.pos }

func (r *reader) byte() (byte, error) {
	if r.remaining() < 1 {
		return 0, fmt.Errorf("cartridge: truncated at offset %d reading byte", r.pos)
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) u16() (uint16, error) {
	if r.remaining() < 2 {
		return 0, fmt.Errorf("cartridge: truncated at offset %d reading u16", r.pos)
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, fmt.Errorf("cartridge: truncated at offset %d reading u32", r.pos)
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) i64() (int64, error) {
	if r.remaining() < 8 {
		return 0, fmt.Errorf("cartridge: truncated at offset %d reading i64", r.pos)
	}
	v := int64(binary.LittleEndian.Uint64(r.buf[r.pos:]))
	r.pos += 8
	return v, nil
}

func (r *reader) bytes(n uint32) ([]byte, error) {
	if uint32(r.remaining()) < n {
		return nil, fmt.Errorf("cartridge: truncated at offset %d reading %d bytes", r.pos, n)
	}
	b := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

// string reads a u32-length-prefixed UTF-8 string.
func (r *reader) string() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// stringSlice reads a u16 count followed by that many length-prefixed
// strings — used for Metadata.Tags.
func (r *reader) stringSlice() ([]string, error) {
	n, err := r.u16()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := uint16(0); i < n; i++ {
		s, err := r.string()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Parse decodes a complete cartridge container. It validates the magic,
// the declared format version, and (per the data-model invariant) that the
// bytecode section is non-empty. It does no hash check of the bytecode:
// Metadata carries no bytecode hash, and neither tools/cartpack nor the
// sandbox computes one.
func Parse(data []byte) (*Cartridge, error) {
	if len(data) < 9 {
		return nil, fmt.Errorf("cartridge: container too short (%d bytes)", len(data))
	}
	if [4]byte{data[0], data[1], data[2], data[3]} != Magic {
		return nil, fmt.Errorf("cartridge: bad magic %x", data[0:4])
	}

	r := &reader{buf: data, pos: 4}
	version, err := r.byte()
	if err != nil {
		return nil, err
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("cartridge: unsupported format version %d", version)
	}

	metaLen, err := r.u32()
	if err != nil {
		return nil, err
	}
	metaBytes, err := r.bytes(metaLen)
	if err != nil {
		return nil, fmt.Errorf("cartridge: metadata block: %w", err)
	}
	meta, err := decodeMetadata(metaBytes)
	if err != nil {
		return nil, fmt.Errorf("cartridge: metadata decode: %w", err)
	}

	bcLen, err := r.u32()
	if err != nil {
		return nil, err
	}
	bytecode, err := r.bytes(bcLen)
	if err != nil {
		return nil, fmt.Errorf("cartridge: bytecode section: %w", err)
	}
	if len(bytecode) == 0 {
		return nil, fmt.Errorf("cartridge: empty bytecode section")
	}

	hasAssets, err := r.byte()
	if err != nil {
		return nil, err
	}
	var assets *AssetTable
	if hasAssets == 1 {
		assetsLen, err := r.u32()
		if err != nil {
			return nil, err
		}
		assetBytes, err := r.bytes(assetsLen)
		if err != nil {
			return nil, fmt.Errorf("cartridge: asset block: %w", err)
		}
		assets, err = decodeAssetTable(assetBytes)
		if err != nil {
			return nil, fmt.Errorf("cartridge: asset block decode: %w", err)
		}
	}

	hasThumb, err := r.byte()
	if err != nil {
		return nil, err
	}
	var thumb []byte
	if hasThumb == 1 {
		thumbLen, err := r.u32()
		if err != nil {
			return nil, err
		}
		thumb, err = r.bytes(thumbLen)
		if err != nil {
			return nil, fmt.Errorf("cartridge: thumbnail: %w", err)
		}
	}

	shotCount, err := r.u16()
	if err != nil {
		return nil, err
	}
	shots := make([][]byte, 0, shotCount)
	for i := uint16(0); i < shotCount; i++ {
		shotLen, err := r.u32()
		if err != nil {
			return nil, err
		}
		shot, err := r.bytes(shotLen)
		if err != nil {
			return nil, fmt.Errorf("cartridge: screenshot %d: %w", i, err)
		}
		shots = append(shots, shot)
	}

	return &Cartridge{
		Version:     version,
		Metadata:    meta,
		Bytecode:    bytecode,
		Assets:      assets,
		Thumbnail:   thumb,
		Screenshots: shots,
	}, nil
}

func decodeMetadata(b []byte) (Metadata, error) {
	r := &reader{buf: b}
	var m Metadata
	var err error
	if m.ID, err = r.string(); err != nil {
		return m, err
	}
	if m.Title, err = r.string(); err != nil {
		return m, err
	}
	if m.Author, err = r.string(); err != nil {
		return m, err
	}
	if m.Version, err = r.string(); err != nil {
		return m, err
	}
	if m.Description, err = r.string(); err != nil {
		return m, err
	}
	if m.Tags, err = r.stringSlice(); err != nil {
		return m, err
	}
	if m.CreatedAt, err = r.i64(); err != nil {
		return m, err
	}
	if m.UpdatedAt, err = r.i64(); err != nil {
		return m, err
	}
	mode, err := r.byte()
	if err != nil {
		return m, err
	}
	m.RenderMode = RenderMode(mode)
	if m.Width, err = r.u16(); err != nil {
		return m, err
	}
	if m.Height, err = r.u16(); err != nil {
		return m, err
	}
	tickRate, err := r.byte()
	if err != nil {
		return m, err
	}
	m.TickRate = tickRate
	return m, nil
}

// Encode produces the bit-exact container bytes for c. It is the inverse
// of Parse and is what tools/cartpack calls after assembling a Cartridge
// from a compiled module and an asset directory.
func Encode(c *Cartridge) ([]byte, error) {
	metaBytes := encodeMetadata(c.Metadata)

	var assetBytes []byte
	if c.Assets != nil {
		assetBytes = encodeAssetTable(c.Assets)
	}

	out := make([]byte, 0, 64+len(metaBytes)+len(c.Bytecode)+len(assetBytes))
	out = append(out, Magic[:]...)
	out = append(out, FormatVersion)
	out = appendU32(out, uint32(len(metaBytes)))
	out = append(out, metaBytes...)
	out = appendU32(out, uint32(len(c.Bytecode)))
	out = append(out, c.Bytecode...)

	if c.Assets != nil {
		out = append(out, 1)
		out = appendU32(out, uint32(len(assetBytes)))
		out = append(out, assetBytes...)
	} else {
		out = append(out, 0)
	}

	if c.Thumbnail != nil {
		out = append(out, 1)
		out = appendU32(out, uint32(len(c.Thumbnail)))
		out = append(out, c.Thumbnail...)
	} else {
		out = append(out, 0)
	}

	if len(c.Screenshots) > 0xFFFF {
		return nil, fmt.Errorf("cartridge: too many screenshots (%d)", len(c.Screenshots))
	}
	out = appendU16(out, uint16(len(c.Screenshots)))
	for _, shot := range c.Screenshots {
		out = appendU32(out, uint32(len(shot)))
		out = append(out, shot...)
	}

	return out, nil
}

func encodeMetadata(m Metadata) []byte {
	var out []byte
	out = appendString(out, m.ID)
	out = appendString(out, m.Title)
	out = appendString(out, m.Author)
	out = appendString(out, m.Version)
	out = appendString(out, m.Description)
	out = appendU16(out, uint16(len(m.Tags)))
	for _, t := range m.Tags {
		out = appendString(out, t)
	}
	out = appendI64(out, m.CreatedAt)
	out = appendI64(out, m.UpdatedAt)
	out = append(out, byte(m.RenderMode))
	out = appendU16(out, m.Width)
	out = appendU16(out, m.Height)
	out = append(out, m.TickRate)
	return out
}

func appendU16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendI64(b []byte, v int64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	return append(b, tmp[:]...)
}

func appendString(b []byte, s string) []byte {
	b = appendU32(b, uint32(len(s)))
	return append(b, s...)
}
