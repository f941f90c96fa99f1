// Package incognito manages time-bounded auto-deletion of conversation
// messages. Two independent enforcement paths reach the same end state:
// per-message deferred deletions and a periodic sweep; both tolerate the
// target already being gone.
package incognito

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/repositories"
)

// Broadcaster fans an event out to every connection joined to a conversation.
type Broadcaster interface {
	Broadcast(conversationID string, v any)
}

// Manager owns incognito settings and their enforcement.
type Manager struct {
	settings repositories.IncognitoRepository
	messages repositories.MessageRepository
	rooms    Broadcaster
	interval time.Duration

	mu     sync.Mutex
	timers map[int64]*time.Timer

	now func() time.Time
}

// NewManager constructs a Manager sweeping at the given interval.
func NewManager(settings repositories.IncognitoRepository, messages repositories.MessageRepository, rooms Broadcaster, interval time.Duration) *Manager {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Manager{
		settings: settings,
		messages: messages,
		rooms:    rooms,
		interval: interval,
		timers:   make(map[int64]*time.Timer),
		now:      time.Now,
	}
}

// Enable turns incognito on for the user's side of a conversation. Any prior
// setting for the pair is replaced, and every message already in the
// conversation is scheduled for deletion at the new expiry: pre-existing
// history is purged together with new messages, at the enabling user's
// chosen horizon.
func (m *Manager) Enable(ctx context.Context, userID, conversationID string, durationHours float64) (models.IncognitoSetting, error) {
	if durationHours <= 0 {
		return models.IncognitoSetting{}, errors.New("duration must be positive")
	}

	now := m.now()
	setting := models.IncognitoSetting{
		UserID:         userID,
		ConversationID: conversationID,
		EnabledAt:      now,
		ExpiresAt:      now.Add(time.Duration(durationHours * float64(time.Hour))),
	}
	if err := m.settings.Upsert(ctx, setting); err != nil {
		return models.IncognitoSetting{}, err
	}

	existing, err := m.messages.ListIDsByConversation(ctx, conversationID)
	if err != nil {
		log.Printf("incognito backlog listing failed: conversation=%s err=%v", conversationID, err)
		// The sweep still enforces the expiry for anything missed here.
		return setting, nil
	}
	for _, id := range existing {
		m.scheduleDelete(id, setting.ExpiresAt)
	}
	return setting, nil
}

// Disable removes the setting. Deletions already scheduled for messages sent
// while enabled are left to fire; both participants saw the ephemeral promise
// when those messages were created.
func (m *Manager) Disable(ctx context.Context, userID, conversationID string) (bool, error) {
	return m.settings.Delete(ctx, userID, conversationID)
}

// Status reports the user's current setting for the conversation, treating an
// expired-but-unswept setting as enabled until the sweep clears it.
func (m *Manager) Status(ctx context.Context, userID, conversationID string) (models.IncognitoSetting, bool, error) {
	setting, err := m.settings.Get(ctx, userID, conversationID)
	if errors.Is(err, repositories.ErrIncognitoNotFound) {
		return models.IncognitoSetting{}, false, nil
	}
	if err != nil {
		return models.IncognitoSetting{}, false, err
	}
	return setting, true, nil
}

// OnMessagePersisted schedules deletion of a just-persisted message iff the
// sender's setting for the conversation is enabled and unexpired.
func (m *Manager) OnMessagePersisted(ctx context.Context, senderID, conversationID string, messageID int64) {
	setting, err := m.settings.Get(ctx, senderID, conversationID)
	if errors.Is(err, repositories.ErrIncognitoNotFound) {
		return
	}
	if err != nil {
		log.Printf("incognito lookup failed: conversation=%s err=%v", conversationID, err)
		return
	}
	if setting.Expired(m.now()) {
		// The sweep owns cleanup of the expired setting.
		return
	}
	m.scheduleDelete(messageID, setting.ExpiresAt)
}

// Sweep enforces every expired setting: delete the conversation's messages,
// tell the room, drop the setting. Each conversation is handled on its own so
// one failure never blocks the rest.
func (m *Manager) Sweep(ctx context.Context) error {
	expired, err := m.settings.ListExpired(ctx, m.now())
	if err != nil {
		return err
	}

	for _, setting := range expired {
		deleted, err := m.messages.DeleteByConversation(ctx, setting.ConversationID)
		if err != nil {
			log.Printf("incognito sweep delete failed: conversation=%s err=%v", setting.ConversationID, err)
			continue
		}
		observability.AddSweepDeleted(deleted)

		m.rooms.Broadcast(setting.ConversationID, models.ServerEvent{
			Event: models.EventChatCleared,
			Data:  models.ChatClearedPayload{ConversationID: setting.ConversationID},
		})

		if _, err := m.settings.Delete(ctx, setting.UserID, setting.ConversationID); err != nil {
			log.Printf("incognito setting cleanup failed: conversation=%s err=%v", setting.ConversationID, err)
		}
	}
	return nil
}

// Run sweeps on the configured interval until the context is cancelled.
// Failures are logged and retried on the next tick.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.stopTimers()
			return
		case <-ticker.C:
			observability.IncSweepRun()
			if err := m.Sweep(ctx); err != nil {
				log.Printf("incognito sweep failed: %v", err)
			}
		}
	}
}

// scheduleDelete arms (or re-arms) the deferred deletion of one message.
func (m *Manager) scheduleDelete(messageID int64, at time.Time) {
	delay := at.Sub(m.now())
	if delay < 0 {
		delay = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if timer, ok := m.timers[messageID]; ok {
		timer.Stop()
	}
	m.timers[messageID] = time.AfterFunc(delay, func() {
		m.mu.Lock()
		delete(m.timers, messageID)
		m.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, _, err := m.messages.DeleteByID(ctx, messageID); err != nil {
			log.Printf("incognito deferred delete failed: message_id=%d err=%v", messageID, err)
		}
	})
}

func (m *Manager) stopTimers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, timer := range m.timers {
		timer.Stop()
		delete(m.timers, id)
	}
}
