package cartridge

import "testing"

func TestAssetTableLookupIsO1AndDeduplicated(t *testing.T) {
	table := NewAssetTable()
	table.Set(KindTexture, []Asset{
		{ID: "a", Payload: []byte{1}},
		{ID: "b", Payload: []byte{2}},
	})

	asset, idx, ok := table.Lookup(KindTexture, "b")
	if !ok || idx != 1 || asset.Payload[0] != 2 {
		t.Fatalf("lookup(b) = %+v, %d, %v", asset, idx, ok)
	}

	if _, _, ok := table.Lookup(KindTexture, "missing"); ok {
		t.Fatal("expected lookup miss for unknown id")
	}

	// Lookup on a kind with no entries must not panic and must miss cleanly.
	if _, _, ok := table.Lookup(KindMesh, "anything"); ok {
		t.Fatal("expected miss on empty vector")
	}
}

func TestDecodeRejectsDuplicateIDsWithinKind(t *testing.T) {
	table := NewAssetTable()
	table.Set(KindFont, []Asset{
		{ID: "main", Payload: []byte{1}},
		{ID: "main", Payload: []byte{2}},
	})
	encoded := encodeAssetTable(table)
	if _, err := decodeAssetTable(encoded); err == nil {
		t.Fatal("expected duplicate-id error")
	}
}

func TestHandleRegistryIdempotence(t *testing.T) {
	table := NewAssetTable()
	table.Set(KindSound, []Asset{{ID: "jump", Payload: []byte{0xAB}}})
	hr := NewHandleRegistry(table)

	h1, ok := hr.Resolve(KindSound, "jump")
	if !ok {
		t.Fatal("expected resolve to succeed")
	}
	for i := 0; i < 5; i++ {
		h, ok := hr.Resolve(KindSound, "jump")
		if !ok || h != h1 {
			t.Fatalf("iteration %d: resolve returned %v, %v; want %v", i, h, ok, h1)
		}
	}

	payload, ok := hr.Payload(h1)
	if !ok || payload[0] != 0xAB {
		t.Fatalf("payload(%v) = %v, %v", h1, payload, ok)
	}

	if _, ok := hr.Resolve(KindSound, "missing"); ok {
		t.Fatal("expected resolve miss for unknown id")
	}
}

func TestHandleRegistryAllocatesDistinctHandlesAcrossIDs(t *testing.T) {
	table := NewAssetTable()
	table.Set(KindTexture, []Asset{
		{ID: "a", Payload: []byte{1}},
		{ID: "b", Payload: []byte{2}},
	})
	hr := NewHandleRegistry(table)

	ha, _ := hr.Resolve(KindTexture, "a")
	hb, _ := hr.Resolve(KindTexture, "b")
	if ha == hb {
		t.Fatalf("expected distinct handles, got %v and %v", ha, hb)
	}
	if ha == InvalidHandle || hb == InvalidHandle {
		t.Fatal("resolved handles must not be InvalidHandle")
	}
}
