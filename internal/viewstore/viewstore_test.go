package viewstore

import (
	"errors"
	"testing"

	pebblestore "github.com/eventspine/eventspine/internal/storage/pebble"
)

func newTestStore(t *testing.T) *PebbleStore {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	s, err := NewPebbleStore(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestPutGetDelete(t *testing.T) {
	s := newTestStore(t)

	if err := s.Put("balances", "42", []byte(`{"amount":10}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	doc, err := s.Get("balances", "42")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(doc) != `{"amount":10}` {
		t.Fatalf("got %q", doc)
	}

	if err := s.Delete("balances", "42"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get("balances", "42"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCollectionsAreIsolated(t *testing.T) {
	s := newTestStore(t)

	if err := s.Put("balances", "42", []byte("a")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put("orders", "42", []byte("b")); err != nil {
		t.Fatalf("put: %v", err)
	}

	keys, err := s.Keys("balances")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "42" {
		t.Fatalf("got %v", keys)
	}
}

func TestKeysOrdered(t *testing.T) {
	s := newTestStore(t)
	for _, k := range []string{"c", "a", "b"} {
		if err := s.Put("orders", k, []byte("x")); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	keys, err := s.Keys("orders")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 3 || keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Fatalf("got %v", keys)
	}
}
