package token

import (
	"path/filepath"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()

	if _, ok := s.Load(); ok {
		t.Fatalf("empty store reported a pair")
	}

	if err := s.Save("a1", "r1"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.SaveUser(`{"id":1}`); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}

	pair, ok := s.Load()
	if !ok || pair.Access != "a1" || pair.Refresh != "r1" {
		t.Fatalf("unexpected pair: %+v ok=%v", pair, ok)
	}
	if profile, ok := s.LoadUser(); !ok || profile != `{"id":1}` {
		t.Fatalf("unexpected profile: %q ok=%v", profile, ok)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok := s.Load(); ok {
		t.Fatalf("pair survived Clear")
	}
	if _, ok := s.LoadUser(); ok {
		t.Fatalf("profile survived Clear")
	}
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "tokens.json")
	s := NewFileStore(path)

	if _, ok := s.Load(); ok {
		t.Fatalf("missing file reported a pair")
	}

	if err := s.Save("a1", "r1"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.SaveUser("profile"); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}

	// A fresh store on the same path sees the persisted slots.
	reopened := NewFileStore(path)
	pair, ok := reopened.Load()
	if !ok || pair.Access != "a1" || pair.Refresh != "r1" {
		t.Fatalf("unexpected pair after reopen: %+v ok=%v", pair, ok)
	}
	if profile, ok := reopened.LoadUser(); !ok || profile != "profile" {
		t.Fatalf("unexpected profile after reopen: %q ok=%v", profile, ok)
	}

	if err := reopened.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok := reopened.Load(); ok {
		t.Fatalf("pair survived Clear")
	}
	if err := reopened.Clear(); err != nil {
		t.Fatalf("Clear on empty store: %v", err)
	}
}

func TestFileStore_SaveKeepsProfile(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))

	if err := s.SaveUser("profile"); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}
	if err := s.Save("a2", "r2"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if profile, ok := s.LoadUser(); !ok || profile != "profile" {
		t.Fatalf("profile lost by Save: %q ok=%v", profile, ok)
	}
}
