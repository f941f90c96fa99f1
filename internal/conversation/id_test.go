package conversation

import "testing"

func TestIDIsOrderIndependent(t *testing.T) {
	pairs := [][2]string{
		{"alice", "bob"},
		{"bob", "alice"},
		{"1", "2"},
		{"zz", "aa"},
	}
	for _, p := range pairs {
		if ID(p[0], p[1]) != ID(p[1], p[0]) {
			t.Fatalf("ID(%q, %q) != ID(%q, %q)", p[0], p[1], p[1], p[0])
		}
	}
}

func TestIDSortsLexicographically(t *testing.T) {
	if got := ID("bob", "alice"); got != "alice:bob" {
		t.Fatalf("expected alice:bob, got %q", got)
	}
}

func TestParticipants(t *testing.T) {
	a, b := Participants(ID("u2", "u1"))
	if a != "u1" || b != "u2" {
		t.Fatalf("unexpected participants %q, %q", a, b)
	}
}

func TestIsParticipant(t *testing.T) {
	id := ID("alice", "bob")
	if !IsParticipant(id, "alice") || !IsParticipant(id, "bob") {
		t.Fatalf("participants not recognized")
	}
	if IsParticipant(id, "carol") {
		t.Fatalf("carol must not be a participant")
	}
}

func TestPeerOf(t *testing.T) {
	id := ID("alice", "bob")

	peer, ok := PeerOf(id, "alice")
	if !ok || peer != "bob" {
		t.Fatalf("expected bob, got %q ok=%v", peer, ok)
	}
	peer, ok = PeerOf(id, "bob")
	if !ok || peer != "alice" {
		t.Fatalf("expected alice, got %q ok=%v", peer, ok)
	}
	if _, ok := PeerOf(id, "carol"); ok {
		t.Fatalf("carol must have no peer")
	}
}

func TestValidUserID(t *testing.T) {
	if ValidUserID("") || ValidUserID("a:b") {
		t.Fatalf("invalid ids accepted")
	}
	if !ValidUserID("user-1") {
		t.Fatalf("valid id rejected")
	}
}
