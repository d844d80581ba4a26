// Package replay serializes a recorded input stream (plus optional
// periodic checkpoints and assertions) into a container a rollback
// session can deterministically re-simulate frame for frame.
package replay

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/nczxlabs/nczx-core/state"
)

// Magic identifies a replay container, distinct from cartridge.Magic so
// the two file kinds are never confused by a loader that only peeks at
// the first four bytes.
var Magic = [4]byte{'N', 'C', 'Z', 'R'}

const formatVersion = 1

// Flags bit0 selects XOR-delta encoding of the input stream (each frame's
// input is stored XORed against the previous frame's, which compresses
// far better than raw input for games where most buttons stay held or
// released for many frames in a row).
const flagDeltaEncoded = 1 << 0

// Header is the fixed-size metadata every replay container opens with.
type Header struct {
	ConsoleTag  [4]byte
	PlayerCount uint8
	FrameCount  uint32
	Seed        uint64
	Flags       uint8
}

// Checkpoint is an optional periodic full-state checksum recorded during
// capture, letting a verifying playback fail fast at the first frame its
// own simulation diverges rather than only at the final comparison.
type Checkpoint struct {
	Frame    uint64
	Checksum uint64
}

// Assertion is an optional developer-inserted invariant check recorded
// during capture (e.g. "player health never negative"), replayed back for
// a regression run to confirm it still holds.
type Assertion struct {
	Frame   uint64
	Message string
}

// Replay is a fully decoded container: header, one input row per frame
// per player, and the optional checkpoint/assertion arrays.
type Replay struct {
	Header      Header
	Inputs      [][]state.Input // Inputs[frame][player]
	Checkpoints []Checkpoint
	Assertions  []Assertion
}

// Encode serializes r. The input stream is always flate-compressed; delta
// encoding is applied first when r.Header.Flags requests it.
func Encode(r *Replay) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(Magic[:])
	buf.WriteByte(formatVersion)
	buf.Write(r.Header.ConsoleTag[:])
	buf.WriteByte(r.Header.PlayerCount)
	writeU32(&buf, r.Header.FrameCount)
	writeU64(&buf, r.Header.Seed)
	buf.WriteByte(r.Header.Flags)

	inputBytes := encodeInputs(r.Inputs, r.Header.PlayerCount, r.Header.Flags&flagDeltaEncoded != 0)
	compressed, err := compress(inputBytes)
	if err != nil {
		return nil, fmt.Errorf("replay: compress input stream: %w", err)
	}
	writeU32(&buf, uint32(len(compressed)))
	buf.Write(compressed)

	writeU32(&buf, uint32(len(r.Checkpoints)))
	for _, c := range r.Checkpoints {
		writeU64(&buf, c.Frame)
		writeU64(&buf, c.Checksum)
	}

	writeU32(&buf, uint32(len(r.Assertions)))
	for _, a := range r.Assertions {
		writeU64(&buf, a.Frame)
		writeU32(&buf, uint32(len(a.Message)))
		buf.WriteString(a.Message)
	}

	return buf.Bytes(), nil
}

// Decode parses a container produced by Encode.
func Decode(data []byte) (*Replay, error) {
	r := bytes.NewReader(data)
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil || magic != Magic {
		return nil, fmt.Errorf("replay: bad magic")
	}
	version, err := readByte(r)
	if err != nil {
		return nil, err
	}
	if version != formatVersion {
		return nil, fmt.Errorf("replay: unsupported format version %d", version)
	}

	var out Replay
	var consoleTag [4]byte
	if _, err := io.ReadFull(r, consoleTag[:]); err != nil {
		return nil, fmt.Errorf("replay: truncated header: %w", err)
	}
	playerCount, err := readByte(r)
	if err != nil {
		return nil, err
	}
	frameCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	seed, err := readU64(r)
	if err != nil {
		return nil, err
	}
	flags, err := readByte(r)
	if err != nil {
		return nil, err
	}
	out.Header = Header{ConsoleTag: consoleTag, PlayerCount: playerCount, FrameCount: frameCount, Seed: seed, Flags: flags}

	compLen, err := readU32(r)
	if err != nil {
		return nil, err
	}
	compressed := make([]byte, compLen)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, fmt.Errorf("replay: truncated input stream: %w", err)
	}
	raw, err := decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("replay: decompress input stream: %w", err)
	}
	out.Inputs, err = decodeInputs(raw, playerCount, frameCount, flags&flagDeltaEncoded != 0)
	if err != nil {
		return nil, err
	}

	checkpointCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < checkpointCount; i++ {
		frame, err := readU64(r)
		if err != nil {
			return nil, err
		}
		sum, err := readU64(r)
		if err != nil {
			return nil, err
		}
		out.Checkpoints = append(out.Checkpoints, Checkpoint{Frame: frame, Checksum: sum})
	}

	assertionCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < assertionCount; i++ {
		frame, err := readU64(r)
		if err != nil {
			return nil, err
		}
		msgLen, err := readU32(r)
		if err != nil {
			return nil, err
		}
		msg := make([]byte, msgLen)
		if _, err := io.ReadFull(r, msg); err != nil {
			return nil, fmt.Errorf("replay: truncated assertion message: %w", err)
		}
		out.Assertions = append(out.Assertions, Assertion{Frame: frame, Message: string(msg)})
	}

	return &out, nil
}

// inputWidth is the serialized byte width of one player's state.Input:
// buttons (2) + left stick x/y (2+2) + right stick x/y (2+2) + two
// trigger bytes (1+1).
const inputWidth = 12

func inputToBytes(in state.Input) [inputWidth]byte {
	var b [inputWidth]byte
	binary.LittleEndian.PutUint16(b[0:2], uint16(in.Buttons))
	binary.LittleEndian.PutUint16(b[2:4], uint16(in.StickX))
	binary.LittleEndian.PutUint16(b[4:6], uint16(in.StickY))
	binary.LittleEndian.PutUint16(b[6:8], uint16(in.RightStickX))
	binary.LittleEndian.PutUint16(b[8:10], uint16(in.RightStickY))
	b[10] = in.TriggerL
	b[11] = in.TriggerR
	return b
}

func bytesToInput(b [inputWidth]byte) state.Input {
	return state.Input{
		Buttons:     state.Buttons(binary.LittleEndian.Uint16(b[0:2])),
		StickX:      int16(binary.LittleEndian.Uint16(b[2:4])),
		StickY:      int16(binary.LittleEndian.Uint16(b[4:6])),
		RightStickX: int16(binary.LittleEndian.Uint16(b[6:8])),
		RightStickY: int16(binary.LittleEndian.Uint16(b[8:10])),
		TriggerL:    b[10],
		TriggerR:    b[11],
	}
}

func encodeInputs(rows [][]state.Input, players uint8, delta bool) []byte {
	out := make([]byte, 0, len(rows)*int(players)*inputWidth)
	var prev [state.MaxPlayers][inputWidth]byte
	for _, row := range rows {
		for p := uint8(0); p < players; p++ {
			b := inputToBytes(row[p])
			if delta {
				var d [inputWidth]byte
				for i := range d {
					d[i] = b[i] ^ prev[p][i]
				}
				out = append(out, d[:]...)
				prev[p] = b
			} else {
				out = append(out, b[:]...)
			}
		}
	}
	return out
}

func decodeInputs(raw []byte, players uint8, frames uint32, delta bool) ([][]state.Input, error) {
	want := int(players) * int(frames) * inputWidth
	if len(raw) != want {
		return nil, fmt.Errorf("replay: input stream has %d bytes, expected %d", len(raw), want)
	}
	out := make([][]state.Input, frames)
	var prev [state.MaxPlayers][inputWidth]byte
	pos := 0
	for f := uint32(0); f < frames; f++ {
		row := make([]state.Input, players)
		for p := uint8(0); p < players; p++ {
			var b [inputWidth]byte
			copy(b[:], raw[pos:pos+inputWidth])
			pos += inputWidth
			if delta {
				var actual [inputWidth]byte
				for i := range actual {
					actual[i] = b[i] ^ prev[p][i]
				}
				row[p] = bytesToInput(actual)
				prev[p] = actual
			} else {
				row[p] = bytesToInput(b)
			}
		}
		out[f] = row
	}
	return out, nil
}

func compress(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(b []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(b))
	defer r.Close()
	return io.ReadAll(r)
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	buf.Write(tmp[:])
}

func readByte(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("replay: truncated: %w", err)
	}
	return b[0], nil
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("replay: truncated: %w", err)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readU64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("replay: truncated: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}
