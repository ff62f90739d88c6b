package kv

import (
	"bytes"
	"context"
	"testing"

	"github.com/rickcollette/bptreedb/store"
)

// TestEngineCursorScansRange covers spec §4.2's cursor surfaced through
// the façade: OpenCursor/CursorNext must visit every key in
// [fromBytes, toBytes] in ascending order and stop cleanly at the end
// of the range.
func TestEngineCursorScansRange(t *testing.T) {
	s := store.NewMemoryStore()
	e, err := Open(context.Background(), s, testConfig(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, err := e.CreateTree("scan", nil)
	if err != nil {
		t.Fatalf("CreateTree: %v", err)
	}

	keys := [][]byte{[]byte("b"), []byte("d"), []byte("a"), []byte("c"), []byte("e")}
	for _, k := range keys {
		if err := e.Insert(id, k, append([]byte("v-"), k...)); err != nil {
			t.Fatalf("Insert %s: %v", k, err)
		}
	}

	handle, err := e.OpenCursor(id, []byte("b"), []byte("d"))
	if err != nil {
		t.Fatalf("OpenCursor: %v", err)
	}
	defer e.CloseCursor(handle)

	var got [][]byte
	for {
		k, v, ok, err := e.CursorNext(handle)
		if err != nil {
			t.Fatalf("CursorNext: %v", err)
		}
		if !ok {
			break
		}
		if !bytes.Equal(v, append([]byte("v-"), k...)) {
			t.Fatalf("CursorNext value mismatch for key %q: got %q", k, v)
		}
		got = append(got, k)
	}

	want := [][]byte{[]byte("b"), []byte("c"), []byte("d")}
	if len(got) != len(want) {
		t.Fatalf("cursor returned %d keys, want %d: %q", len(got), len(want), got)
	}
	for i := range want {
		if !bytes.Equal(got[i], want[i]) {
			t.Fatalf("cursor key %d = %q, want %q", i, got[i], want[i])
		}
	}
}

// TestEngineCursorManagerLifecycle covers OpenCursorCount/CloseCursor:
// count rises on open and falls back to zero after close.
func TestEngineCursorManagerLifecycle(t *testing.T) {
	s := store.NewMemoryStore()
	e, err := Open(context.Background(), s, testConfig(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, err := e.CreateTree("scan", nil)
	if err != nil {
		t.Fatalf("CreateTree: %v", err)
	}
	if err := e.Insert(id, []byte("a"), []byte("1")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if got := e.OpenCursorCount(); got != 0 {
		t.Fatalf("OpenCursorCount = %d before any OpenCursor, want 0", got)
	}
	h1, err := e.OpenCursor(id, []byte("a"), []byte("z"))
	if err != nil {
		t.Fatalf("OpenCursor: %v", err)
	}
	h2, err := e.OpenCursor(id, []byte("a"), []byte("z"))
	if err != nil {
		t.Fatalf("OpenCursor: %v", err)
	}
	if got := e.OpenCursorCount(); got != 2 {
		t.Fatalf("OpenCursorCount = %d, want 2", got)
	}
	e.CloseCursor(h1)
	if got := e.OpenCursorCount(); got != 1 {
		t.Fatalf("OpenCursorCount = %d after closing one, want 1", got)
	}
	e.CloseCursor(h2)
	if got := e.OpenCursorCount(); got != 0 {
		t.Fatalf("OpenCursorCount = %d after closing all, want 0", got)
	}
}
