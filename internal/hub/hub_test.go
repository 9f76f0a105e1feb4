package hub

import (
	"errors"
	"sync"
	"testing"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages [][]byte
	failWith error
	closed   bool
}

func (w *fakeWriter) Write(message []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failWith != nil {
		return w.failWith
	}
	w.messages = append(w.messages, message)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.messages)
}

func TestSendToUser(t *testing.T) {
	h := New()
	w1 := &fakeWriter{}
	w2 := &fakeWriter{}
	other := &fakeWriter{}

	h.Register(&Connection{ID: "c1", UserID: 3, Writer: w1})
	h.Register(&Connection{ID: "c2", UserID: 3, Writer: w2})
	h.Register(&Connection{ID: "c3", UserID: 5, Writer: other})

	if !h.SendToUser(3, []byte("hi")) {
		t.Fatalf("SendToUser reported failure")
	}
	if w1.count() != 1 || w2.count() != 1 {
		t.Fatalf("user 3 connections got %d/%d messages", w1.count(), w2.count())
	}
	if other.count() != 0 {
		t.Fatalf("user 5 received a targeted message")
	}

	if h.SendToUser(99, []byte("hi")) {
		t.Fatalf("delivery to absent user reported success")
	}
}

func TestSendToUser_EvictsFailedConnections(t *testing.T) {
	h := New()
	dead := &fakeWriter{failWith: errors.New("broken pipe")}
	live := &fakeWriter{}

	h.Register(&Connection{ID: "dead", UserID: 3, Writer: dead})
	h.Register(&Connection{ID: "live", UserID: 3, Writer: live})

	if !h.SendToUser(3, []byte("hi")) {
		t.Fatalf("one live connection should count as delivered")
	}
	if !dead.closed {
		t.Fatalf("failed connection not closed")
	}

	// The dead connection is gone; the next send reaches only the live one.
	h.SendToUser(3, []byte("again"))
	if live.count() != 2 {
		t.Fatalf("live connection got %d messages, want 2", live.count())
	}
}

func TestBroadcastAdmins(t *testing.T) {
	h := New()
	a1 := &fakeWriter{}
	a2 := &fakeWriter{}
	user := &fakeWriter{}

	h.Register(&Connection{ID: "a1", Admin: true, Writer: a1})
	h.Register(&Connection{ID: "a2", Admin: true, Writer: a2})
	h.Register(&Connection{ID: "u", UserID: 3, Writer: user})

	h.BroadcastAdmins([]byte("new message"))
	if a1.count() != 1 || a2.count() != 1 {
		t.Fatalf("admins got %d/%d messages", a1.count(), a2.count())
	}
	if user.count() != 0 {
		t.Fatalf("user received an admin broadcast")
	}
}

func TestUnregister(t *testing.T) {
	h := New()
	w := &fakeWriter{}
	conn := &Connection{ID: "c", UserID: 3, Writer: w}

	h.Register(conn)
	h.Unregister(conn)
	// Unregister of an unknown connection is a no-op.
	h.Unregister(conn)

	if h.SendToUser(3, []byte("hi")) {
		t.Fatalf("unregistered connection still reachable")
	}

	admin := &Connection{ID: "a", Admin: true, Writer: w}
	h.Register(admin)
	h.Unregister(admin)
	h.BroadcastAdmins([]byte("hi"))
	if w.count() != 0 {
		t.Fatalf("unregistered admin still reachable")
	}
}
