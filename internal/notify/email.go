// Package notify hands off out-of-band notifications to the external email
// sender via the event bus. Everything here is fire-and-forget: delivery
// failure is the email service's problem, not the send path's.
package notify

import (
	"context"
	"log"
	"time"

	"messenger-service/internal/models"
	"messenger-service/internal/rabbitmq"
)

// EmailNotifier publishes "you have a message" events for offline receivers.
type EmailNotifier struct {
	publisher  rabbitmq.Publisher
	routingKey string
}

// NewEmailNotifier constructs an EmailNotifier.
func NewEmailNotifier(publisher rabbitmq.Publisher, routingKey string) *EmailNotifier {
	return &EmailNotifier{publisher: publisher, routingKey: routingKey}
}

type offlineMessageEvent struct {
	RecipientID    string             `json:"recipient_id"`
	SenderID       string             `json:"sender_id"`
	MessageID      int64              `json:"message_id"`
	ConversationID string             `json:"conversation_id"`
	Type           models.MessageType `json:"type"`
	Preview        string             `json:"preview"`
	SentAt         time.Time          `json:"sent_at"`
}

// NotifyOfflineMessage publishes the notification event. Errors are logged,
// never propagated: a failed email must not fail the send.
func (n *EmailNotifier) NotifyOfflineMessage(ctx context.Context, recipientID, senderID string, msg models.Message) {
	event := offlineMessageEvent{
		RecipientID:    recipientID,
		SenderID:       senderID,
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		Type:           msg.Type,
		Preview:        preview(msg),
		SentAt:         msg.CreatedAt,
	}
	if err := n.publisher.Publish(ctx, n.routingKey, event); err != nil {
		log.Printf("email notification publish failed: message_id=%d err=%v", msg.ID, err)
	}
}

func preview(msg models.Message) string {
	if msg.Type != models.MessageTypeText {
		return string(msg.Type)
	}
	const max = 80
	if len(msg.Text) > max {
		return msg.Text[:max]
	}
	return msg.Text
}
