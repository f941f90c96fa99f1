package models

import "time"

// User is the presence-bearing user record. Friendship and block edges live
// in their own tables and are queried through the relationship repository.
type User struct {
	ID       string    `db:"id" json:"id"`
	Username string    `db:"username" json:"username"`
	IsOnline bool      `db:"is_online" json:"isOnline"`
	LastSeen time.Time `db:"last_seen" json:"lastSeen"`
}

// IncognitoSetting is one user's ephemeral-mode opt-in for one conversation.
// Settings are not symmetric: each participant enables independently, and the
// sender-side setting found at send time governs message scheduling.
type IncognitoSetting struct {
	UserID         string    `db:"user_id" json:"userId"`
	ConversationID string    `db:"conversation_id" json:"conversationId"`
	EnabledAt      time.Time `db:"enabled_at" json:"enabledAt"`
	ExpiresAt      time.Time `db:"expires_at" json:"expiresAt"`
}

// Expired reports whether the setting has passed its expiry at the given time.
func (s IncognitoSetting) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
