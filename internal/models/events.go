package models

import (
	"encoding/json"
	"time"
)

// Event names exchanged over the session websocket. These are wire contracts
// shared with the client; renaming one breaks compatibility.
const (
	// client -> server
	EventJoinConversation  = "joinConversation"
	EventLoadMessages      = "loadMessages"
	EventSendMessage       = "sendMessage"
	EventMarkMessageAsRead = "markMessageAsRead"
	EventMarkChatAsRead    = "markChatAsRead"
	EventTyping            = "typing"
	EventStopTyping        = "stopTyping"
	EventClearChat         = "clearChat"
	EventToggleIncognito   = "toggleIncognito"

	// server -> client
	EventMessagesLoaded      = "messagesLoaded"
	EventMessagesLoadError   = "messagesLoadError"
	EventReceiveMessage      = "receiveMessage"
	EventMessageNotification = "messageNotification"
	EventMessageSent         = "messageSent"
	EventSendMessageError    = "sendMessageError"
	EventMessageDelivered    = "messageDelivered"
	EventMessageRead         = "messageRead"
	EventChatRead            = "chatRead"
	EventChatCleared         = "chatCleared"
	EventChatClearSuccess    = "chatClearSuccess"
	EventChatClearError      = "chatClearError"
	EventIncognitoEnabled    = "incognitoEnabled"
	EventIncognitoDisabled   = "incognitoDisabled"
	EventIncognitoStatus     = "incognitoStatus"
	EventUserStatus          = "userStatus"
)

// ClientEvent is the envelope every client frame arrives in.
type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ServerEvent is the envelope every server frame is sent in.
type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Client payloads.

type JoinConversationPayload struct {
	ConversationID string `json:"conversationId"`
}

type LoadMessagesPayload struct {
	OtherUserID string `json:"otherUserId"`
}

type SendMessagePayload struct {
	ReceiverID string         `json:"receiverId"`
	Type       MessageType    `json:"type"`
	Content    MessageContent `json:"content"`
	TempID     string         `json:"tempId"`
}

type MarkMessageAsReadPayload struct {
	MessageID int64 `json:"messageId"`
}

type MarkChatAsReadPayload struct {
	OtherUserID string `json:"otherUserId"`
}

type TypingPayload struct {
	PeerID string `json:"peerId"`
}

type ClearChatPayload struct {
	OtherUserID string `json:"otherUserId"`
}

type ToggleIncognitoPayload struct {
	OtherUserID   string  `json:"otherUserId"`
	Enabled       bool    `json:"enabled"`
	DurationHours float64 `json:"durationHours"`
}

// Server payloads.

type MessagesLoadedPayload struct {
	ConversationID string    `json:"conversationId"`
	Messages       []Message `json:"messages"`
}

type MessagesLoadErrorPayload struct {
	Reason     string `json:"reason"`
	NotFriends bool   `json:"notFriends,omitempty"`
	IsBlocked  bool   `json:"isBlocked,omitempty"`
}

type MessageSentPayload struct {
	MessageID      int64      `json:"messageId"`
	TempID         string     `json:"tempId"`
	ConversationID string     `json:"conversationId"`
	IsDelivered    bool       `json:"isDelivered"`
	DeliveredAt    *time.Time `json:"deliveredAt,omitempty"`
}

type SendMessageErrorPayload struct {
	TempID     string `json:"tempId"`
	Reason     string `json:"reason"`
	NotFriends bool   `json:"notFriends,omitempty"`
	IsBlocked  bool   `json:"isBlocked,omitempty"`
}

type MessageDeliveredPayload struct {
	MessageID      int64     `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	DeliveredAt    time.Time `json:"deliveredAt"`
}

type MessageReadPayload struct {
	MessageID      int64     `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	ReadBy         string    `json:"readBy"`
	ReadAt         time.Time `json:"readAt"`
}

type ChatReadPayload struct {
	ConversationID string    `json:"conversationId"`
	ReadBy         string    `json:"readBy"`
	Count          int64     `json:"count"`
	ReadAt         time.Time `json:"readAt"`
}

type ChatClearedPayload struct {
	ConversationID string `json:"conversationId"`
}

type ChatClearSuccessPayload struct {
	ConversationID string `json:"conversationId"`
	Deleted        int64  `json:"deleted"`
}

type ChatClearErrorPayload struct {
	ConversationID string `json:"conversationId"`
	Reason         string `json:"reason"`
}

type IncognitoStatusPayload struct {
	ConversationID string     `json:"conversationId"`
	Enabled        bool       `json:"enabled"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
}

type UserStatusPayload struct {
	UserID   string     `json:"userId"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

// TypingEventPayload is the relayed form of a typing signal: the peer learns
// who is typing, not who they themselves are.
type TypingEventPayload struct {
	UserID string `json:"userId"`
}
