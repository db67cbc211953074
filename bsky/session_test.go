package bsky

import (
	"path/filepath"
	"testing"
)

func TestSessionStoreRoundTrip(t *testing.T) {
	store := NewSessionStore(filepath.Join(t.TempDir(), "data", "session.json"))

	if session, err := store.Load(); err != nil || session != nil {
		t.Fatalf("empty store must load nothing, got %v, %v", session, err)
	}

	saved := &Session{
		AccessJwt:  "access",
		RefreshJwt: "refresh",
		Handle:     "author.bsky.social",
		Did:        "did:plc:author",
		PdsHost:    "https://pds.example.com",
	}
	if err := store.Save(saved); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if *loaded != *saved {
		t.Errorf("got %+v, want %+v", loaded, saved)
	}
}
