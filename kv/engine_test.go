package kv

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/rickcollette/bptreedb/config"
	"github.com/rickcollette/bptreedb/store"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.TreeParams.T = 4
	cfg.TreeParams.MinSizeRoot = 1
	cfg.TreeParams.MinSizeLeaf = 4
	cfg.TreeParams.MinSizeNode = 4
	return cfg
}

func TestEngineInsertFindRemove(t *testing.T) {
	s := store.NewMemoryStore()
	e, err := Open(context.Background(), s, testConfig(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, err := e.CreateTree("widgets", nil)
	if err != nil {
		t.Fatalf("CreateTree: %v", err)
	}

	keys := [][]byte{[]byte("banana"), []byte("apple"), []byte("cherry"), []byte("date")}
	for _, k := range keys {
		if err := e.Insert(id, k, append([]byte("v-"), k...)); err != nil {
			t.Fatalf("Insert %s: %v", k, err)
		}
	}

	for _, k := range keys {
		v, found, err := e.Find(id, k)
		if err != nil || !found {
			t.Fatalf("Find %s: found=%v err=%v", k, found, err)
		}
		if !bytes.Equal(v, append([]byte("v-"), k...)) {
			t.Fatalf("Find %s: got %q", k, v)
		}
	}

	if err := e.Remove(id, []byte("apple")); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, found, err := e.Find(id, []byte("apple")); err != nil || found {
		t.Fatalf("apple still found after remove: found=%v err=%v", found, err)
	}
	if v, found, err := e.Find(id, []byte("banana")); err != nil || !found || string(v) != "v-banana" {
		t.Fatalf("banana lookup broken after sibling removal: %q %v %v", v, found, err)
	}
}

func TestEngineDuplicateKeyOverwrites(t *testing.T) {
	s := store.NewMemoryStore()
	e, err := Open(context.Background(), s, testConfig(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, _ := e.CreateTree("t", nil)

	if err := e.Insert(id, []byte("k"), []byte("first")); err != nil {
		t.Fatalf("insert 1: %v", err)
	}
	if err := e.Insert(id, []byte("k"), []byte("second")); err != nil {
		t.Fatalf("insert 2: %v", err)
	}
	v, found, err := e.Find(id, []byte("k"))
	if err != nil || !found {
		t.Fatalf("Find: found=%v err=%v", found, err)
	}
	if string(v) != "second" {
		t.Fatalf("got %q, want last-writer-wins value %q", v, "second")
	}
}

func TestEngineCloseReopenPersists(t *testing.T) {
	s := store.NewMemoryStore()
	hmacKey := []byte("header-secret")

	e, err := Open(context.Background(), s, testConfig(), hmacKey)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, err := e.CreateTree("persisted", nil)
	if err != nil {
		t.Fatalf("CreateTree: %v", err)
	}
	for i := 0; i < 30; i++ {
		k := []byte{byte(i)}
		if err := e.Insert(id, k, []byte{byte(i), byte(i)}); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	e2, err := Open(context.Background(), s, testConfig(), hmacKey)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	for i := 0; i < 30; i++ {
		k := []byte{byte(i)}
		v, found, err := e2.Find(id, k)
		if err != nil || !found {
			t.Fatalf("reopened find %d: found=%v err=%v", i, found, err)
		}
		if v[0] != byte(i) || v[1] != byte(i) {
			t.Fatalf("reopened value %d mismatch: %v", i, v)
		}
	}
}

// TestEngineFileStoreReopenPersists covers the genuine-restart case
// TestEngineCloseReopenPersists can't: a FileStore closed and then
// reopened via a fresh OpenFileStore on the same path, so the header
// and params trailer must survive in the file's own bytes rather than
// in any in-memory struct field.
func TestEngineFileStoreReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.db")
	hmacKey := []byte("header-secret")

	fs, err := store.OpenFileStore(path)
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	e, err := Open(context.Background(), fs, testConfig(), hmacKey)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, err := e.CreateTree("persisted", nil)
	if err != nil {
		t.Fatalf("CreateTree: %v", err)
	}
	for i := 0; i < 20; i++ {
		k := []byte{byte(i)}
		if err := e.Insert(id, k, []byte{byte(i), byte(i)}); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	fs2, err := store.OpenFileStore(path)
	if err != nil {
		t.Fatalf("reopen OpenFileStore: %v", err)
	}
	defer fs2.Close()
	e2, err := Open(context.Background(), fs2, testConfig(), hmacKey)
	if err != nil {
		t.Fatalf("reopen Open: %v", err)
	}
	for i := 0; i < 20; i++ {
		k := []byte{byte(i)}
		v, found, err := e2.Find(id, k)
		if err != nil || !found {
			t.Fatalf("reopened find %d: found=%v err=%v", i, found, err)
		}
		if v[0] != byte(i) || v[1] != byte(i) {
			t.Fatalf("reopened value %d mismatch: %v", i, v)
		}
	}
}

func TestEngineRejectsTamperedHeader(t *testing.T) {
	s := store.NewMemoryStore()
	e, err := Open(context.Background(), s, testConfig(), []byte("correct-key"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, _ := e.CreateTree("t", nil)
	if err := e.Insert(id, []byte("a"), []byte("b")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := Open(context.Background(), s, testConfig(), []byte("wrong-key")); err == nil {
		t.Fatalf("Open accepted a store with a mismatched HMAC key")
	}
}

func TestTreeManagerLifecycle(t *testing.T) {
	s := store.NewMemoryStore()
	e, err := Open(context.Background(), s, testConfig(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := e.CreateTree("a", nil); err != nil {
		t.Fatalf("CreateTree a: %v", err)
	}
	if _, err := e.CreateTree("b", nil); err != nil {
		t.Fatalf("CreateTree b: %v", err)
	}
	if _, err := e.CreateTree("a", nil); err == nil {
		t.Fatalf("CreateTree allowed a duplicate name")
	}
	if err := e.manager.UseTree("b"); err != nil {
		t.Fatalf("UseTree: %v", err)
	}
	if got := e.manager.CurrentTree(); got != "b" {
		t.Fatalf("CurrentTree = %q, want %q", got, "b")
	}
	names := e.manager.ListTrees()
	if len(names) != 2 {
		t.Fatalf("ListTrees = %v, want 2 entries", names)
	}
	if err := e.manager.DropTree("a"); err != nil {
		t.Fatalf("DropTree: %v", err)
	}
	if _, ok := e.manager.IDFor("a"); ok {
		t.Fatalf("dropped tree still resolvable by name")
	}
}

func TestFlushNotifierPublishesOnInsert(t *testing.T) {
	s := store.NewMemoryStore()
	e, err := Open(context.Background(), s, testConfig(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, _ := e.CreateTree("t", nil)
	ch := e.notifier.Subscribe()
	defer e.notifier.Unsubscribe(ch)

	if err := e.Insert(id, []byte("k"), []byte("v")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	select {
	case ev := <-ch:
		if ev.TreeID != id {
			t.Fatalf("flush event tree_id = %d, want %d", ev.TreeID, id)
		}
	default:
		t.Fatalf("no flush event published after Insert")
	}
}
