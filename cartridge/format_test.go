package cartridge

import "testing"

func sampleCartridge() *Cartridge {
	table := NewAssetTable()
	table.Set(KindTexture, []Asset{{ID: "player", Payload: []byte{1, 2, 3, 4}}})
	table.Set(KindSound, []Asset{{ID: "jump", Payload: []byte{5, 6}}})

	return &Cartridge{
		Version: FormatVersion,
		Metadata: Metadata{
			ID:          "demo.cart",
			Title:       "Demo",
			Author:      "Tester",
			Version:     "1.0.0",
			Description: "a test cartridge",
			Tags:        []string{"test", "fixture"},
			CreatedAt:   1700000000,
			UpdatedAt:   1700000100,
			RenderMode:  RenderMode2D,
			Width:       640,
			Height:      480,
			TickRate:    60,
		},
		Bytecode:    []byte{0x00, 0x61, 0x73, 0x6d},
		Assets:      table,
		Thumbnail:   []byte{9, 9, 9},
		Screenshots: [][]byte{{1}, {2, 2}},
	}
}

func TestEncodeParseRoundTrip(t *testing.T) {
	original := sampleCartridge()
	encoded, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Parse(encoded)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if got.Metadata.ID != original.Metadata.ID || got.Metadata.Title != original.Metadata.Title {
		t.Fatalf("metadata mismatch: got %+v", got.Metadata)
	}
	if len(got.Metadata.Tags) != 2 || got.Metadata.Tags[0] != "test" {
		t.Fatalf("tags mismatch: got %v", got.Metadata.Tags)
	}
	if string(got.Bytecode) != string(original.Bytecode) {
		t.Fatalf("bytecode mismatch: got %x want %x", got.Bytecode, original.Bytecode)
	}
	if got.Assets == nil || got.Assets.Count(KindTexture) != 1 || got.Assets.Count(KindSound) != 1 {
		t.Fatalf("asset table mismatch: %+v", got.Assets)
	}
	if len(got.Screenshots) != 2 {
		t.Fatalf("screenshot count mismatch: got %d", len(got.Screenshots))
	}
}

func TestParseRejectsBadMagic(t *testing.T) {
	data := []byte{0x00, 0x00, 0x00, 0x00, 0x01, 0, 0, 0, 0}
	if _, err := Parse(data); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestParseRejectsUnsupportedVersion(t *testing.T) {
	original := sampleCartridge()
	encoded, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	encoded[4] = 99 // corrupt version byte
	if _, err := Parse(encoded); err == nil {
		t.Fatal("expected error for unsupported version")
	}
}

func TestParseRejectsTruncatedContainer(t *testing.T) {
	original := sampleCartridge()
	encoded, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	for _, cut := range []int{0, 4, 8, 20, len(encoded) - 1} {
		if cut > len(encoded) {
			continue
		}
		if _, err := Parse(encoded[:cut]); err == nil {
			t.Fatalf("expected error truncating at %d", cut)
		}
	}
}

func TestParseRejectsEmptyBytecode(t *testing.T) {
	c := sampleCartridge()
	c.Bytecode = nil
	encoded, err := Encode(c)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := Parse(encoded); err == nil {
		t.Fatal("expected error for empty bytecode section")
	}
}
