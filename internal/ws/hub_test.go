package ws

import (
	"errors"
	"sync"
	"testing"
)

type stubConn struct {
	mu      sync.Mutex
	sent    []any
	sendErr error
	closed  bool
}

func (s *stubConn) SendJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, v)
	return nil
}

func (s *stubConn) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubConn) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *stubConn) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func TestHubBindAndLookup(t *testing.T) {
	hub := NewHub()
	conn := &stubConn{}

	hub.Bind("alice", conn)
	got, ok := hub.Lookup("alice")
	if !ok || got != conn {
		t.Fatalf("expected bound connection for alice")
	}

	hub.Unbind("alice", conn)
	if _, ok := hub.Lookup("alice"); ok {
		t.Fatalf("expected alice to be unbound")
	}
}

func TestHubBindReplacesAndClosesPrior(t *testing.T) {
	hub := NewHub()
	old := &stubConn{}
	fresh := &stubConn{}

	hub.Bind("alice", old)
	hub.Bind("alice", fresh)

	if !old.isClosed() {
		t.Fatalf("expected replaced connection to be closed")
	}
	got, ok := hub.Lookup("alice")
	if !ok || got != fresh {
		t.Fatalf("expected fresh connection to be current")
	}
}

func TestHubUnbindIgnoresStaleConnection(t *testing.T) {
	hub := NewHub()
	old := &stubConn{}
	fresh := &stubConn{}

	hub.Bind("alice", old)
	hub.Bind("alice", fresh)
	hub.Unbind("alice", old)

	if _, ok := hub.Lookup("alice"); !ok {
		t.Fatalf("stale unbind must not remove the current connection")
	}
}

func TestHubJoinLeaveAndBroadcast(t *testing.T) {
	hub := NewHub()
	a := &stubConn{}
	b := &stubConn{}

	hub.Join("alice:bob", a)
	hub.Join("alice:bob", b)
	hub.Broadcast("alice:bob", "hello")

	if a.sentCount() != 1 || b.sentCount() != 1 {
		t.Fatalf("expected both room members to receive the broadcast")
	}

	hub.Leave("alice:bob", b)
	hub.Broadcast("alice:bob", "again")

	if a.sentCount() != 2 {
		t.Fatalf("expected remaining member to receive the broadcast")
	}
	if b.sentCount() != 1 {
		t.Fatalf("expected departed member to miss the broadcast")
	}
}

func TestHubJoinIsIdempotent(t *testing.T) {
	hub := NewHub()
	conn := &stubConn{}

	hub.Join("alice:bob", conn)
	hub.Join("alice:bob", conn)
	hub.Broadcast("alice:bob", "once")

	if conn.sentCount() != 1 {
		t.Fatalf("expected a single delivery, got %d", conn.sentCount())
	}
}

func TestHubBroadcastEvictsOnWriteError(t *testing.T) {
	hub := NewHub()
	bad := &stubConn{sendErr: errors.New("write failed")}
	good := &stubConn{}

	hub.Join("alice:bob", bad)
	hub.Join("alice:bob", good)
	hub.Broadcast("alice:bob", "hello")

	if !bad.isClosed() {
		t.Fatalf("expected failing connection to be closed")
	}

	bad.mu.Lock()
	bad.sendErr = nil
	bad.mu.Unlock()
	hub.Broadcast("alice:bob", "again")
	if bad.sentCount() != 0 {
		t.Fatalf("expected evicted connection to be out of the room")
	}
}

func TestHubLeaveAll(t *testing.T) {
	hub := NewHub()
	conn := &stubConn{}
	other := &stubConn{}

	hub.Join("alice:bob", conn)
	hub.Join("alice:carol", conn)
	hub.Join("alice:bob", other)
	hub.LeaveAll(conn)

	hub.Broadcast("alice:bob", "x")
	hub.Broadcast("alice:carol", "y")

	if conn.sentCount() != 0 {
		t.Fatalf("expected no deliveries after LeaveAll")
	}
	if other.sentCount() != 1 {
		t.Fatalf("expected other member to stay in its room")
	}
}

func TestHubBroadcastAll(t *testing.T) {
	hub := NewHub()
	a := &stubConn{}
	b := &stubConn{}

	hub.Bind("alice", a)
	hub.Bind("bob", b)
	hub.BroadcastAll("status")

	if a.sentCount() != 1 || b.sentCount() != 1 {
		t.Fatalf("expected every bound connection to receive the event")
	}
}
