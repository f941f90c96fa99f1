package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"messenger-service/internal/auth"
	"messenger-service/internal/conversation"
	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/repositories"
)

const (
	reasonInvalidPayload   = "invalid payload"
	reasonNotFriends       = "not friends"
	reasonBlocked          = "blocked"
	reasonStoreUnavailable = "store unavailable"
)

// Session is the server-side state of one connected user. One goroutine reads
// the socket and calls HandleEvent; typing timers fire on their own
// goroutines, so the timer map is guarded.
type Session struct {
	orch   *Orchestrator
	conn   Conn
	userID string

	mu           sync.Mutex
	typingTimers map[string]*time.Timer
	closed       bool
}

// UserID returns the authenticated user of this session.
func (s *Session) UserID() string {
	return s.userID
}

// HandleEvent dispatches one client frame. Failures are converted into typed
// error events for this connection; the returned error is for logging only.
func (s *Session) HandleEvent(ctx context.Context, raw []byte) error {
	var envelope models.ClientEvent
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("malformed frame: %w", err)
	}
	observability.IncSessionEvent(envelope.Event)

	switch envelope.Event {
	case models.EventJoinConversation:
		return dispatch(ctx, s.handleJoinConversation, envelope.Data)
	case models.EventLoadMessages:
		return dispatch(ctx, s.handleLoadMessages, envelope.Data)
	case models.EventSendMessage:
		return dispatch(ctx, s.handleSendMessage, envelope.Data)
	case models.EventMarkMessageAsRead:
		return dispatch(ctx, s.handleMarkMessageAsRead, envelope.Data)
	case models.EventMarkChatAsRead:
		return dispatch(ctx, s.handleMarkChatAsRead, envelope.Data)
	case models.EventTyping:
		return dispatch(ctx, s.handleTyping, envelope.Data)
	case models.EventStopTyping:
		return dispatch(ctx, s.handleStopTyping, envelope.Data)
	case models.EventClearChat:
		return dispatch(ctx, s.handleClearChat, envelope.Data)
	case models.EventToggleIncognito:
		return dispatch(ctx, s.handleToggleIncognito, envelope.Data)
	default:
		return fmt.Errorf("unknown event %q", envelope.Event)
	}
}

func dispatch[T any](ctx context.Context, handler func(context.Context, T) error, data json.RawMessage) error {
	var payload T
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("malformed payload: %w", err)
		}
	}
	return handler(ctx, payload)
}

func (s *Session) handleJoinConversation(ctx context.Context, p models.JoinConversationPayload) error {
	if p.ConversationID == "" {
		return errors.New("join: empty conversation id")
	}
	// No authorization here: loads and sends are checked, membership alone
	// leaks nothing.
	s.orch.registry.Join(p.ConversationID, s.conn)

	setting, enabled, err := s.orch.incognito.Status(ctx, s.userID, p.ConversationID)
	if err != nil {
		log.Printf("incognito status lookup failed: conversation=%s err=%v", p.ConversationID, err)
		return nil
	}
	if enabled {
		return s.send(models.EventIncognitoStatus, models.IncognitoStatusPayload{
			ConversationID: p.ConversationID,
			Enabled:        true,
			ExpiresAt:      &setting.ExpiresAt,
		})
	}
	return nil
}

func (s *Session) handleLoadMessages(ctx context.Context, p models.LoadMessagesPayload) error {
	if !conversation.ValidUserID(p.OtherUserID) {
		return s.send(models.EventMessagesLoadError, models.MessagesLoadErrorPayload{Reason: reasonInvalidPayload})
	}

	if err := s.orch.guard.Authorize(ctx, s.userID, p.OtherUserID); err != nil {
		return s.send(models.EventMessagesLoadError, loadDenial(err))
	}

	convID := conversation.ID(s.userID, p.OtherUserID)
	msgs, err := s.orch.messages.ListByConversation(ctx, convID, s.orch.historyLimit)
	if err != nil {
		log.Printf("load messages failed: conversation=%s err=%v", convID, err)
		return s.send(models.EventMessagesLoadError, models.MessagesLoadErrorPayload{Reason: reasonStoreUnavailable})
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return s.send(models.EventMessagesLoaded, models.MessagesLoadedPayload{ConversationID: convID, Messages: msgs})
}

func (s *Session) handleSendMessage(ctx context.Context, p models.SendMessagePayload) error {
	if reason, ok := validateSend(s.userID, p); !ok {
		return s.send(models.EventSendMessageError, models.SendMessageErrorPayload{TempID: p.TempID, Reason: reason})
	}

	if err := s.orch.guard.Authorize(ctx, s.userID, p.ReceiverID); err != nil {
		return s.send(models.EventSendMessageError, sendDenial(p.TempID, err))
	}

	convID := conversation.ID(s.userID, p.ReceiverID)
	receiverConn, reachable := s.orch.registry.Lookup(p.ReceiverID)

	msg, err := s.orch.messages.CreateMessage(ctx, convID, s.userID, p.Type, p.Content, reachable)
	if err != nil {
		log.Printf("persist message failed: conversation=%s err=%v", convID, err)
		return s.send(models.EventSendMessageError, models.SendMessageErrorPayload{TempID: p.TempID, Reason: reasonStoreUnavailable})
	}
	observability.IncMessageSent(reachable)

	// Every room member gets the message, the sender's own connection
	// included; clients reconcile optimistic placeholders via tempId.
	s.orch.registry.Broadcast(convID, models.ServerEvent{Event: models.EventReceiveMessage, Data: msg})

	if reachable {
		if err := receiverConn.SendJSON(models.ServerEvent{Event: models.EventMessageNotification, Data: msg}); err != nil {
			log.Printf("notification push failed: message_id=%d err=%v", msg.ID, err)
		}
	} else if s.orch.mailer != nil {
		s.orch.mailer.NotifyOfflineMessage(ctx, p.ReceiverID, s.userID, msg)
	}

	ack := s.send(models.EventMessageSent, models.MessageSentPayload{
		MessageID:      msg.ID,
		TempID:         p.TempID,
		ConversationID: convID,
		IsDelivered:    msg.IsDelivered,
		DeliveredAt:    msg.DeliveredAt,
	})

	s.orch.incognito.OnMessagePersisted(ctx, s.userID, convID, msg.ID)
	return ack
}

func (s *Session) handleMarkMessageAsRead(ctx context.Context, p models.MarkMessageAsReadPayload) error {
	msg, err := s.orch.messages.GetMessage(ctx, p.MessageID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		// Idempotent mutation on a gone message is a no-op.
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark read lookup: %w", err)
	}
	if !conversation.IsParticipant(msg.ConversationID, s.userID) {
		return fmt.Errorf("mark read: user %s not in conversation %s", s.userID, msg.ConversationID)
	}

	updated, transitioned, err := s.orch.messages.MarkRead(ctx, msg.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return nil
		}
		return fmt.Errorf("mark read: %w", err)
	}
	if !transitioned {
		return nil
	}

	readAt := time.Now()
	if updated.ReadAt != nil {
		readAt = *updated.ReadAt
	}
	s.orch.registry.Broadcast(msg.ConversationID, models.ServerEvent{
		Event: models.EventMessageRead,
		Data: models.MessageReadPayload{
			MessageID:      updated.ID,
			ConversationID: updated.ConversationID,
			ReadBy:         s.userID,
			ReadAt:         readAt,
		},
	})
	return nil
}

func (s *Session) handleMarkChatAsRead(ctx context.Context, p models.MarkChatAsReadPayload) error {
	if !conversation.ValidUserID(p.OtherUserID) {
		return errors.New("mark chat read: invalid peer id")
	}
	convID := conversation.ID(s.userID, p.OtherUserID)

	// Reading flips the *other* participant's messages.
	count, err := s.orch.messages.MarkAllReadFromSender(ctx, convID, p.OtherUserID)
	if err != nil {
		return fmt.Errorf("mark chat read: %w", err)
	}
	if count == 0 {
		return nil
	}

	s.orch.registry.Broadcast(convID, models.ServerEvent{
		Event: models.EventChatRead,
		Data: models.ChatReadPayload{
			ConversationID: convID,
			ReadBy:         s.userID,
			Count:          count,
			ReadAt:         time.Now(),
		},
	})
	return nil
}

func (s *Session) handleTyping(_ context.Context, p models.TypingPayload) error {
	if !conversation.ValidUserID(p.PeerID) {
		return errors.New("typing: invalid peer id")
	}
	if peer, ok := s.orch.registry.Lookup(p.PeerID); ok {
		if err := peer.SendJSON(models.ServerEvent{Event: models.EventTyping, Data: models.TypingEventPayload{UserID: s.userID}}); err != nil {
			log.Printf("typing relay failed: peer=%s err=%v", p.PeerID, err)
		}
	}
	s.armTypingTimer(p.PeerID)
	return nil
}

func (s *Session) handleStopTyping(_ context.Context, p models.TypingPayload) error {
	if !conversation.ValidUserID(p.PeerID) {
		return errors.New("stop typing: invalid peer id")
	}
	s.cancelTypingTimer(p.PeerID)
	s.relayStopTyping(p.PeerID)
	return nil
}

func (s *Session) handleClearChat(ctx context.Context, p models.ClearChatPayload) error {
	if !conversation.ValidUserID(p.OtherUserID) {
		return s.send(models.EventChatClearError, models.ChatClearErrorPayload{Reason: reasonInvalidPayload})
	}
	convID := conversation.ID(s.userID, p.OtherUserID)

	deleted, err := s.orch.messages.DeleteByConversation(ctx, convID)
	if err != nil {
		log.Printf("clear chat failed: conversation=%s err=%v", convID, err)
		return s.send(models.EventChatClearError, models.ChatClearErrorPayload{ConversationID: convID, Reason: reasonStoreUnavailable})
	}

	s.orch.registry.Broadcast(convID, models.ServerEvent{
		Event: models.EventChatCleared,
		Data:  models.ChatClearedPayload{ConversationID: convID},
	})
	return s.send(models.EventChatClearSuccess, models.ChatClearSuccessPayload{ConversationID: convID, Deleted: deleted})
}

func (s *Session) handleToggleIncognito(ctx context.Context, p models.ToggleIncognitoPayload) error {
	if !conversation.ValidUserID(p.OtherUserID) {
		return errors.New("toggle incognito: invalid peer id")
	}
	convID := conversation.ID(s.userID, p.OtherUserID)

	if p.Enabled {
		setting, err := s.orch.incognito.Enable(ctx, s.userID, convID, p.DurationHours)
		if err != nil {
			log.Printf("incognito enable failed: conversation=%s err=%v", convID, err)
			return fmt.Errorf("incognito enable: %w", err)
		}
		if err := s.send(models.EventIncognitoEnabled, models.IncognitoStatusPayload{
			ConversationID: convID,
			Enabled:        true,
			ExpiresAt:      &setting.ExpiresAt,
		}); err != nil {
			return err
		}
		s.orch.registry.Broadcast(convID, models.ServerEvent{
			Event: models.EventIncognitoStatus,
			Data:  models.IncognitoStatusPayload{ConversationID: convID, Enabled: true, ExpiresAt: &setting.ExpiresAt},
		})
		return nil
	}

	if _, err := s.orch.incognito.Disable(ctx, s.userID, convID); err != nil {
		log.Printf("incognito disable failed: conversation=%s err=%v", convID, err)
		return fmt.Errorf("incognito disable: %w", err)
	}
	if err := s.send(models.EventIncognitoDisabled, models.IncognitoStatusPayload{ConversationID: convID, Enabled: false}); err != nil {
		return err
	}
	s.orch.registry.Broadcast(convID, models.ServerEvent{
		Event: models.EventIncognitoStatus,
		Data:  models.IncognitoStatusPayload{ConversationID: convID, Enabled: false},
	})
	return nil
}

// Disconnect tears the session down: typing timers cancelled, rooms left,
// registry unbound, presence flipped offline. Safe to call once per session;
// in-flight handlers finish on their own and their writes stay idempotent.
func (s *Session) Disconnect(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for peer, timer := range s.typingTimers {
		timer.Stop()
		delete(s.typingTimers, peer)
	}
	s.mu.Unlock()

	s.orch.registry.LeaveAll(s.conn)
	s.orch.registry.Unbind(s.userID, s.conn)

	// A reconnect replaces the binding before the old connection tears down;
	// the stale teardown must not announce the still-connected user offline.
	if _, rebound := s.orch.registry.Lookup(s.userID); rebound {
		return
	}

	lastSeen, err := s.orch.relationships.SetOnline(ctx, s.userID, false)
	if err != nil {
		log.Printf("set offline failed: user_id=%s err=%v", s.userID, err)
	}
	s.orch.registry.BroadcastAll(models.ServerEvent{
		Event: models.EventUserStatus,
		Data:  models.UserStatusPayload{UserID: s.userID, IsOnline: false, LastSeen: &lastSeen},
	})
}

// armTypingTimer (re)schedules the synthetic stopTyping that fires if the
// client goes silent mid-type.
func (s *Session) armTypingTimer(peerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if timer, ok := s.typingTimers[peerID]; ok {
		timer.Stop()
	}
	s.typingTimers[peerID] = time.AfterFunc(s.orch.typingTimeout, func() {
		s.mu.Lock()
		delete(s.typingTimers, peerID)
		closed := s.closed
		s.mu.Unlock()
		if !closed {
			s.relayStopTyping(peerID)
		}
	})
}

func (s *Session) cancelTypingTimer(peerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.typingTimers[peerID]; ok {
		timer.Stop()
		delete(s.typingTimers, peerID)
	}
}

func (s *Session) relayStopTyping(peerID string) {
	if peer, ok := s.orch.registry.Lookup(peerID); ok {
		if err := peer.SendJSON(models.ServerEvent{Event: models.EventStopTyping, Data: models.TypingEventPayload{UserID: s.userID}}); err != nil {
			log.Printf("stop typing relay failed: peer=%s err=%v", peerID, err)
		}
	}
}

func (s *Session) send(event string, data any) error {
	return s.conn.SendJSON(models.ServerEvent{Event: event, Data: data})
}

func validateSend(senderID string, p models.SendMessagePayload) (string, bool) {
	if !conversation.ValidUserID(p.ReceiverID) || p.ReceiverID == senderID {
		return reasonInvalidPayload, false
	}
	if !p.Type.Valid() {
		return reasonInvalidPayload, false
	}
	if p.Type == models.MessageTypeText && p.Content.Text == "" {
		return reasonInvalidPayload, false
	}
	if p.Type.IsFileBacked() && p.Content.FileURL == "" {
		return reasonInvalidPayload, false
	}
	return "", true
}

func loadDenial(err error) models.MessagesLoadErrorPayload {
	switch {
	case errors.Is(err, auth.ErrBlocked):
		return models.MessagesLoadErrorPayload{Reason: reasonBlocked, IsBlocked: true}
	case errors.Is(err, auth.ErrNotFriends):
		return models.MessagesLoadErrorPayload{Reason: reasonNotFriends, NotFriends: true}
	default:
		return models.MessagesLoadErrorPayload{Reason: reasonStoreUnavailable}
	}
}

func sendDenial(tempID string, err error) models.SendMessageErrorPayload {
	switch {
	case errors.Is(err, auth.ErrBlocked):
		return models.SendMessageErrorPayload{TempID: tempID, Reason: reasonBlocked, IsBlocked: true}
	case errors.Is(err, auth.ErrNotFriends):
		return models.SendMessageErrorPayload{TempID: tempID, Reason: reasonNotFriends, NotFriends: true}
	default:
		return models.SendMessageErrorPayload{TempID: tempID, Reason: reasonStoreUnavailable}
	}
}
