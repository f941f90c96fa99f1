// Package session drives the lifecycle of one connected user: authenticate,
// bind, serve message/typing/read events, disconnect. It owns no transport;
// connections and registries are injected behind small interfaces.
package session

import (
	"context"
	"log"
	"time"

	"messenger-service/internal/auth"
	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/repositories"
)

// Conn is the transport handle of one live connection.
type Conn interface {
	SendJSON(v any) error
	Close() error
}

// Registry is the process-wide user -> connection mapping plus conversation
// room membership. Implementations must be safe for concurrent use.
type Registry interface {
	Bind(userID string, c Conn)
	Unbind(userID string, c Conn)
	Lookup(userID string) (Conn, bool)
	Join(conversationID string, c Conn)
	Leave(conversationID string, c Conn)
	LeaveAll(c Conn)
	Broadcast(conversationID string, v any)
	BroadcastAll(v any)
}

// Authorizer answers the friendship/blocking question before sends and loads.
type Authorizer interface {
	Authorize(ctx context.Context, userID, peerID string) error
}

// Incognito is the ephemeral-mode manager surface the orchestrator drives.
type Incognito interface {
	Enable(ctx context.Context, userID, conversationID string, durationHours float64) (models.IncognitoSetting, error)
	Disable(ctx context.Context, userID, conversationID string) (bool, error)
	Status(ctx context.Context, userID, conversationID string) (models.IncognitoSetting, bool, error)
	OnMessagePersisted(ctx context.Context, senderID, conversationID string, messageID int64)
}

// Mailer notifies an offline receiver out of band. Fire and forget: failures
// are logged by the implementation, never propagated.
type Mailer interface {
	NotifyOfflineMessage(ctx context.Context, recipientID, senderID string, msg models.Message)
}

// Orchestrator coordinates sessions over shared collaborators.
type Orchestrator struct {
	registry      Registry
	guard         Authorizer
	messages      repositories.MessageRepository
	relationships repositories.RelationshipRepository
	incognito     Incognito
	mailer        Mailer
	typingTimeout time.Duration
	historyLimit  int
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(
	registry Registry,
	guard Authorizer,
	messages repositories.MessageRepository,
	relationships repositories.RelationshipRepository,
	incognito Incognito,
	mailer Mailer,
	typingTimeout time.Duration,
	historyLimit int,
) *Orchestrator {
	if typingTimeout <= 0 {
		typingTimeout = 3 * time.Second
	}
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &Orchestrator{
		registry:      registry,
		guard:         guard,
		messages:      messages,
		relationships: relationships,
		incognito:     incognito,
		mailer:        mailer,
		typingTimeout: typingTimeout,
		historyLimit:  historyLimit,
	}
}

// Connect binds an authenticated connection, announces presence, and flips
// messages that were waiting for this user to delivered, notifying each
// sender that is still reachable.
func (o *Orchestrator) Connect(ctx context.Context, identity auth.Identity, conn Conn) *Session {
	o.registry.Bind(identity.UserID, conn)

	if err := o.relationships.UpsertUser(ctx, identity.UserID, identity.Username); err != nil {
		log.Printf("upsert user failed: user_id=%s err=%v", identity.UserID, err)
	}
	lastSeen, err := o.relationships.SetOnline(ctx, identity.UserID, true)
	if err != nil {
		log.Printf("set online failed: user_id=%s err=%v", identity.UserID, err)
	}
	o.registry.BroadcastAll(models.ServerEvent{
		Event: models.EventUserStatus,
		Data:  models.UserStatusPayload{UserID: identity.UserID, IsOnline: true, LastSeen: &lastSeen},
	})

	o.deliverPending(ctx, identity.UserID)

	return &Session{
		orch:         o,
		conn:         conn,
		userID:       identity.UserID,
		typingTimers: make(map[string]*time.Timer),
	}
}

func (o *Orchestrator) deliverPending(ctx context.Context, userID string) {
	msgs, err := o.messages.MarkPendingDelivered(ctx, userID)
	if err != nil {
		log.Printf("delivery sweep failed: user_id=%s err=%v", userID, err)
		return
	}
	for _, msg := range msgs {
		observability.IncMessageDelivered()
		sender, ok := o.registry.Lookup(msg.SenderID)
		if !ok {
			continue
		}
		deliveredAt := msg.CreatedAt
		if msg.DeliveredAt != nil {
			deliveredAt = *msg.DeliveredAt
		}
		if err := sender.SendJSON(models.ServerEvent{
			Event: models.EventMessageDelivered,
			Data: models.MessageDeliveredPayload{
				MessageID:      msg.ID,
				ConversationID: msg.ConversationID,
				DeliveredAt:    deliveredAt,
			},
		}); err != nil {
			log.Printf("delivery notice failed: message_id=%d err=%v", msg.ID, err)
		}
	}
}
