package ws

import "time"

// ConnInfo captures identity and request context of one websocket connection
// for audit events.
type ConnInfo struct {
	ConnID      string
	UserID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
