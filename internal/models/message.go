package models

import "time"

// MessageType discriminates the shape of a message's content payload.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeVideo MessageType = "video"
	MessageTypeFile  MessageType = "file"
	MessageTypeVoice MessageType = "voice"
)

// Valid reports whether the type is one of the supported message types.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVideo, MessageTypeFile, MessageTypeVoice:
		return true
	}
	return false
}

// IsFileBacked reports whether the content payload references an uploaded file.
func (t MessageType) IsFileBacked() bool {
	return t != MessageTypeText
}

// Message represents one chat message. Delivery and read flags are
// monotonic: once true they never reset, and the matching timestamp is
// written exactly once on the first transition.
type Message struct {
	ID             int64       `db:"id" json:"id"`
	ConversationID string      `db:"conversation_id" json:"conversationId"`
	SenderID       string      `db:"sender_id" json:"senderId"`
	Type           MessageType `db:"type" json:"type"`
	Text           string      `db:"text" json:"text,omitempty"`
	FileURL        string      `db:"file_url" json:"fileUrl,omitempty"`
	FileName       string      `db:"file_name" json:"fileName,omitempty"`
	FileSize       int64       `db:"file_size" json:"fileSize,omitempty"`
	MimeType       string      `db:"mime_type" json:"mimeType,omitempty"`
	IsDelivered    bool        `db:"is_delivered" json:"isDelivered"`
	DeliveredAt    *time.Time  `db:"delivered_at" json:"deliveredAt,omitempty"`
	IsRead         bool        `db:"is_read" json:"isRead"`
	ReadAt         *time.Time  `db:"read_at" json:"readAt,omitempty"`
	Deleted        bool        `db:"deleted" json:"-"`
	CreatedAt      time.Time   `db:"created_at" json:"createdAt"`
}

// MessageContent is the client-supplied payload of a new message. Which
// fields matter depends on the message type; file-backed types carry a URL
// reference only, the service never touches file bytes.
type MessageContent struct {
	Text     string `json:"text,omitempty"`
	FileURL  string `json:"fileUrl,omitempty"`
	FileName string `json:"fileName,omitempty"`
	FileSize int64  `json:"fileSize,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}
