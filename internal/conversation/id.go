// Package conversation derives the stable identity of a two-user chat.
// Conversations are never stored as entities; the id is recomputed wherever
// one is addressed.
package conversation

import "strings"

// Separator joins the two participant ids. User ids must not contain it;
// payload validation rejects ids that do.
const Separator = ":"

// ID returns the canonical conversation id for an unordered pair of users.
// ID(a, b) == ID(b, a).
func ID(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + Separator + b
}

// Participants splits a conversation id back into its two user ids.
func Participants(id string) (string, string) {
	a, b, _ := strings.Cut(id, Separator)
	return a, b
}

// IsParticipant reports whether the user is one of the conversation's two
// participants.
func IsParticipant(id, userID string) bool {
	a, b := Participants(id)
	return userID == a || userID == b
}

// PeerOf returns the other participant of the conversation, if userID is one
// of them.
func PeerOf(id, userID string) (string, bool) {
	a, b := Participants(id)
	switch userID {
	case a:
		return b, true
	case b:
		return a, true
	}
	return "", false
}

// ValidUserID reports whether the id can take part in id derivation.
func ValidUserID(id string) bool {
	return id != "" && !strings.Contains(id, Separator)
}
