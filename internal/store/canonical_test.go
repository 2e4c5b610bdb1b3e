package store

import (
	"encoding/json"
	"testing"
)

func TestMetadataHashStableAcrossKeyOrder(t *testing.T) {
	a := json.RawMessage(`{"artist_id":"A","offset":0,"limit":50}`)
	b := json.RawMessage(`{"limit":50,"artist_id":"A","offset":0}`)

	ha, err := MetadataHash("album_page", a)
	if err != nil {
		t.Fatalf("hash a: %v", err)
	}
	hb, err := MetadataHash("album_page", b)
	if err != nil {
		t.Fatalf("hash b: %v", err)
	}
	if ha != hb {
		t.Fatalf("expected stable hash, got %s vs %s", ha, hb)
	}
}

func TestMetadataHashDiffersByBatchType(t *testing.T) {
	meta := json.RawMessage(`{"artist_id":"A"}`)
	h1, _ := MetadataHash("album_page", meta)
	h2, _ := MetadataHash("track_page", meta)
	if h1 == h2 {
		t.Fatalf("expected different hashes for different batch types")
	}
}

func TestMetadataHashDiffersByNestedKeyOrder(t *testing.T) {
	a := json.RawMessage(`{"outer":{"a":1,"b":2},"list":[{"x":1,"y":2}]}`)
	b := json.RawMessage(`{"list":[{"y":2,"x":1}],"outer":{"b":2,"a":1}}`)
	ha, err := MetadataHash("t", a)
	if err != nil {
		t.Fatalf("hash a: %v", err)
	}
	hb, err := MetadataHash("t", b)
	if err != nil {
		t.Fatalf("hash b: %v", err)
	}
	if ha != hb {
		t.Fatalf("expected stable hash across nested key order, got %s vs %s", ha, hb)
	}
}

func TestMetadataHashEmptyMetadata(t *testing.T) {
	if _, err := MetadataHash("t", nil); err != nil {
		t.Fatalf("expected no error for nil metadata: %v", err)
	}
}
