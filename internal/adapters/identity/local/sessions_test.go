package local

import (
	"testing"
	"time"
)

func TestSessionStore_Lifecycle(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	ss := NewSessionStore(10*time.Minute, clock.Now)

	tok, expires, err := ss.Create("id-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(tok) != 64 {
		t.Errorf("token length = %d, want 64", len(tok))
	}
	if !expires.Equal(clock.Now().Add(10 * time.Minute)) {
		t.Errorf("expires = %v", expires)
	}
	if id, ok := ss.Get(tok); !ok || id != "id-1" {
		t.Errorf("Get = %q, %v", id, ok)
	}

	clock.Advance(10 * time.Minute)
	if _, ok := ss.Get(tok); ok {
		t.Error("session live at expiry")
	}
	if n := ss.Sweep(); n != 1 {
		t.Errorf("Sweep = %d, want 1", n)
	}
}

func TestSessionStore_DeleteForIdentity(t *testing.T) {
	ss := NewSessionStore(0, nil)
	a, _, _ := ss.Create("id-1")
	_, _, _ = ss.Create("id-1")
	c, _, _ := ss.Create("id-2")

	if n := ss.DeleteForIdentity("id-1"); n != 2 {
		t.Errorf("DeleteForIdentity = %d, want 2", n)
	}
	if _, ok := ss.Get(a); ok {
		t.Error("id-1 session survived")
	}
	if _, ok := ss.Get(c); !ok {
		t.Error("id-2 session removed")
	}
}
