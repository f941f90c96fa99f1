package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/auth"
	"messenger-service/internal/conversation"
	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
	"messenger-service/internal/session"
	"messenger-service/internal/ws"
)

type fakeConn struct {
	mu     sync.Mutex
	events []models.ServerEvent
	closed bool
}

func (f *fakeConn) SendJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev, ok := v.(models.ServerEvent); ok {
		f.events = append(f.events, ev)
	}
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) byEvent(name string) []models.ServerEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ServerEvent
	for _, ev := range f.events {
		if ev.Event == name {
			out = append(out, ev)
		}
	}
	return out
}

func (f *fakeConn) lastOf(name string) (models.ServerEvent, bool) {
	evs := f.byEvent(name)
	if len(evs) == 0 {
		return models.ServerEvent{}, false
	}
	return evs[len(evs)-1], true
}

type testEnv struct {
	hub           *ws.Hub
	guard         *mocks.AuthorizerMock
	messages      *mocks.MessageRepositoryMock
	relationships *mocks.RelationshipRepositoryMock
	incognito     *mocks.IncognitoManagerMock
	mailer        *mocks.MailerMock
	orch          *session.Orchestrator
}

func newTestEnv(typingTimeout time.Duration) *testEnv {
	env := &testEnv{
		hub:           ws.NewHub(),
		guard:         new(mocks.AuthorizerMock),
		messages:      new(mocks.MessageRepositoryMock),
		relationships: new(mocks.RelationshipRepositoryMock),
		incognito:     new(mocks.IncognitoManagerMock),
		mailer:        new(mocks.MailerMock),
	}
	env.orch = session.NewOrchestrator(
		env.hub, env.guard, env.messages, env.relationships,
		env.incognito, env.mailer, typingTimeout, 50,
	)
	return env
}

// connect wires a user in with the boilerplate expectations every session
// needs: user upsert, presence flip, empty delivery sweep.
func (env *testEnv) connect(t *testing.T, userID string) (*session.Session, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	env.relationships.On("UpsertUser", mock.Anything, userID, mock.Anything).Return(nil).Once()
	env.relationships.On("SetOnline", mock.Anything, userID, true).Return(time.Now(), nil).Once()
	env.messages.On("MarkPendingDelivered", mock.Anything, userID).Return([]models.Message{}, nil).Once()
	sess := env.orch.Connect(context.Background(), auth.Identity{UserID: userID, Username: userID}, conn)
	return sess, conn
}

func frame(t *testing.T, event string, payload any) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	raw, err := json.Marshal(models.ClientEvent{Event: event, Data: data})
	require.NoError(t, err)
	return raw
}

func joinBoth(env *testEnv, convID string, conns ...*fakeConn) {
	for _, c := range conns {
		env.hub.Join(convID, c)
	}
}

func TestConnectAnnouncesPresence(t *testing.T) {
	env := newTestEnv(0)
	_, observer := env.connect(t, "bob")
	_, conn := env.connect(t, "alice")

	ev, ok := observer.lastOf(models.EventUserStatus)
	require.True(t, ok)
	status := ev.Data.(models.UserStatusPayload)
	assert.Equal(t, "alice", status.UserID)
	assert.True(t, status.IsOnline)

	_, ok = conn.lastOf(models.EventUserStatus)
	assert.True(t, ok, "the connecting user hears its own status event")
}

func TestConnectDeliversPendingToReachableSender(t *testing.T) {
	env := newTestEnv(0)
	_, senderConn := env.connect(t, "alice")

	now := time.Now()
	pending := models.Message{
		ID:             7,
		ConversationID: conversation.ID("alice", "bob"),
		SenderID:       "alice",
		IsDelivered:    true,
		DeliveredAt:    &now,
	}
	conn := &fakeConn{}
	env.relationships.On("UpsertUser", mock.Anything, "bob", mock.Anything).Return(nil).Once()
	env.relationships.On("SetOnline", mock.Anything, "bob", true).Return(time.Now(), nil).Once()
	env.messages.On("MarkPendingDelivered", mock.Anything, "bob").Return([]models.Message{pending}, nil).Once()
	env.orch.Connect(context.Background(), auth.Identity{UserID: "bob", Username: "bob"}, conn)

	ev, ok := senderConn.lastOf(models.EventMessageDelivered)
	require.True(t, ok, "online sender must be told its backlog got delivered")
	payload := ev.Data.(models.MessageDeliveredPayload)
	assert.Equal(t, int64(7), payload.MessageID)
	assert.Equal(t, pending.ConversationID, payload.ConversationID)
	assert.Equal(t, now.Unix(), payload.DeliveredAt.Unix())
}

func TestSendMessageToOnlineReceiver(t *testing.T) {
	env := newTestEnv(0)
	sess, senderConn := env.connect(t, "alice")
	_, receiverConn := env.connect(t, "bob")

	convID := conversation.ID("alice", "bob")
	joinBoth(env, convID, senderConn, receiverConn)

	now := time.Now()
	stored := models.Message{
		ID:             11,
		ConversationID: convID,
		SenderID:       "alice",
		Type:           models.MessageTypeText,
		Text:           "hi",
		IsDelivered:    true,
		DeliveredAt:    &now,
		CreatedAt:      now,
	}
	env.guard.On("Authorize", mock.Anything, "alice", "bob").Return(nil).Once()
	env.messages.On("CreateMessage", mock.Anything, convID, "alice", models.MessageTypeText, mock.Anything, true).
		Return(stored, nil).Once()
	env.incognito.On("OnMessagePersisted", mock.Anything, "alice", convID, int64(11)).Once()

	err := sess.HandleEvent(context.Background(), frame(t, models.EventSendMessage, models.SendMessagePayload{
		ReceiverID: "bob",
		Type:       models.MessageTypeText,
		Content:    models.MessageContent{Text: "hi"},
		TempID:     "tmp-1",
	}))
	require.NoError(t, err)

	_, ok := receiverConn.lastOf(models.EventReceiveMessage)
	assert.True(t, ok, "receiver joined the room and must get the message")
	_, ok = receiverConn.lastOf(models.EventMessageNotification)
	assert.True(t, ok, "online receiver gets a direct notification")

	ev, ok := senderConn.lastOf(models.EventMessageSent)
	require.True(t, ok)
	ack := ev.Data.(models.MessageSentPayload)
	assert.Equal(t, "tmp-1", ack.TempID)
	assert.Equal(t, int64(11), ack.MessageID)
	assert.True(t, ack.IsDelivered)

	env.messages.AssertExpectations(t)
	env.incognito.AssertExpectations(t)
	env.mailer.AssertNotCalled(t, "NotifyOfflineMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessageToOfflineReceiver(t *testing.T) {
	env := newTestEnv(0)
	sess, senderConn := env.connect(t, "alice")

	convID := conversation.ID("alice", "bob")
	stored := models.Message{
		ID:             12,
		ConversationID: convID,
		SenderID:       "alice",
		Type:           models.MessageTypeText,
		Text:           "hi",
		IsDelivered:    false,
		CreatedAt:      time.Now(),
	}
	env.guard.On("Authorize", mock.Anything, "alice", "bob").Return(nil).Once()
	env.messages.On("CreateMessage", mock.Anything, convID, "alice", models.MessageTypeText, mock.Anything, false).
		Return(stored, nil).Once()
	env.incognito.On("OnMessagePersisted", mock.Anything, "alice", convID, int64(12)).Once()
	env.mailer.On("NotifyOfflineMessage", mock.Anything, "bob", "alice", mock.Anything).Once()

	err := sess.HandleEvent(context.Background(), frame(t, models.EventSendMessage, models.SendMessagePayload{
		ReceiverID: "bob",
		Type:       models.MessageTypeText,
		Content:    models.MessageContent{Text: "hi"},
		TempID:     "tmp-2",
	}))
	require.NoError(t, err)

	ev, ok := senderConn.lastOf(models.EventMessageSent)
	require.True(t, ok)
	ack := ev.Data.(models.MessageSentPayload)
	assert.False(t, ack.IsDelivered)
	assert.Nil(t, ack.DeliveredAt)

	env.mailer.AssertExpectations(t)
}

func TestSendMessageDeniedWhenNotFriends(t *testing.T) {
	env := newTestEnv(0)
	sess, senderConn := env.connect(t, "alice")

	env.guard.On("Authorize", mock.Anything, "alice", "bob").Return(auth.ErrNotFriends).Once()

	err := sess.HandleEvent(context.Background(), frame(t, models.EventSendMessage, models.SendMessagePayload{
		ReceiverID: "bob",
		Type:       models.MessageTypeText,
		Content:    models.MessageContent{Text: "hi"},
		TempID:     "tmp-3",
	}))
	require.NoError(t, err)

	ev, ok := senderConn.lastOf(models.EventSendMessageError)
	require.True(t, ok)
	payload := ev.Data.(models.SendMessageErrorPayload)
	assert.Equal(t, "tmp-3", payload.TempID)
	assert.True(t, payload.NotFriends)
	assert.False(t, payload.IsBlocked)

	env.messages.AssertNotCalled(t, "CreateMessage",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessageDeniedWhenBlocked(t *testing.T) {
	env := newTestEnv(0)
	sess, senderConn := env.connect(t, "alice")

	env.guard.On("Authorize", mock.Anything, "alice", "bob").Return(auth.ErrBlocked).Once()

	err := sess.HandleEvent(context.Background(), frame(t, models.EventSendMessage, models.SendMessagePayload{
		ReceiverID: "bob",
		Type:       models.MessageTypeText,
		Content:    models.MessageContent{Text: "hi"},
		TempID:     "tmp-4",
	}))
	require.NoError(t, err)

	ev, ok := senderConn.lastOf(models.EventSendMessageError)
	require.True(t, ok)
	payload := ev.Data.(models.SendMessageErrorPayload)
	assert.True(t, payload.IsBlocked)
	env.messages.AssertNotCalled(t, "CreateMessage",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessageRejectsInvalidPayload(t *testing.T) {
	env := newTestEnv(0)
	sess, senderConn := env.connect(t, "alice")

	cases := []models.SendMessagePayload{
		{ReceiverID: "", Type: models.MessageTypeText, Content: models.MessageContent{Text: "hi"}},
		{ReceiverID: "alice", Type: models.MessageTypeText, Content: models.MessageContent{Text: "self"}},
		{ReceiverID: "bob", Type: "carrier-pigeon", Content: models.MessageContent{Text: "hi"}},
		{ReceiverID: "bob", Type: models.MessageTypeText, Content: models.MessageContent{}},
		{ReceiverID: "bob", Type: models.MessageTypeImage, Content: models.MessageContent{}},
	}
	for _, payload := range cases {
		payload.TempID = "tmp-bad"
		err := sess.HandleEvent(context.Background(), frame(t, models.EventSendMessage, payload))
		require.NoError(t, err)
	}

	errs := senderConn.byEvent(models.EventSendMessageError)
	require.Len(t, errs, len(cases))
	for _, ev := range errs {
		assert.Equal(t, "invalid payload", ev.Data.(models.SendMessageErrorPayload).Reason)
	}
	env.guard.AssertNotCalled(t, "Authorize", mock.Anything, mock.Anything, mock.Anything)
}

func TestLoadMessages(t *testing.T) {
	env := newTestEnv(0)
	sess, conn := env.connect(t, "alice")

	convID := conversation.ID("alice", "bob")
	history := []models.Message{{ID: 1, ConversationID: convID, SenderID: "bob", Type: models.MessageTypeText, Text: "yo"}}
	env.guard.On("Authorize", mock.Anything, "alice", "bob").Return(nil).Once()
	env.messages.On("ListByConversation", mock.Anything, convID, 50).Return(history, nil).Once()

	err := sess.HandleEvent(context.Background(), frame(t, models.EventLoadMessages, models.LoadMessagesPayload{OtherUserID: "bob"}))
	require.NoError(t, err)

	ev, ok := conn.lastOf(models.EventMessagesLoaded)
	require.True(t, ok)
	payload := ev.Data.(models.MessagesLoadedPayload)
	assert.Equal(t, convID, payload.ConversationID)
	require.Len(t, payload.Messages, 1)
	assert.Equal(t, int64(1), payload.Messages[0].ID)
}

func TestLoadMessagesDeniedWhenBlocked(t *testing.T) {
	env := newTestEnv(0)
	sess, conn := env.connect(t, "alice")

	env.guard.On("Authorize", mock.Anything, "alice", "bob").Return(auth.ErrBlocked).Once()

	err := sess.HandleEvent(context.Background(), frame(t, models.EventLoadMessages, models.LoadMessagesPayload{OtherUserID: "bob"}))
	require.NoError(t, err)

	ev, ok := conn.lastOf(models.EventMessagesLoadError)
	require.True(t, ok)
	payload := ev.Data.(models.MessagesLoadErrorPayload)
	assert.True(t, payload.IsBlocked)
	env.messages.AssertNotCalled(t, "ListByConversation", mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkMessageAsReadBroadcastsOnTransition(t *testing.T) {
	env := newTestEnv(0)
	sess, conn := env.connect(t, "bob")

	convID := conversation.ID("alice", "bob")
	env.hub.Join(convID, conn)

	stored := models.Message{ID: 21, ConversationID: convID, SenderID: "alice"}
	readAt := time.Now()
	updated := stored
	updated.IsRead = true
	updated.ReadAt = &readAt

	env.messages.On("GetMessage", mock.Anything, int64(21)).Return(stored, nil).Once()
	env.messages.On("MarkRead", mock.Anything, int64(21)).Return(updated, true, nil).Once()

	err := sess.HandleEvent(context.Background(), frame(t, models.EventMarkMessageAsRead, models.MarkMessageAsReadPayload{MessageID: 21}))
	require.NoError(t, err)

	ev, ok := conn.lastOf(models.EventMessageRead)
	require.True(t, ok)
	payload := ev.Data.(models.MessageReadPayload)
	assert.Equal(t, int64(21), payload.MessageID)
	assert.Equal(t, "bob", payload.ReadBy)
	assert.Equal(t, readAt.Unix(), payload.ReadAt.Unix())
}

func TestMarkMessageAsReadIsIdempotent(t *testing.T) {
	env := newTestEnv(0)
	sess, conn := env.connect(t, "bob")

	convID := conversation.ID("alice", "bob")
	env.hub.Join(convID, conn)

	readAt := time.Now()
	stored := models.Message{ID: 22, ConversationID: convID, SenderID: "alice", IsRead: true, ReadAt: &readAt}
	env.messages.On("GetMessage", mock.Anything, int64(22)).Return(stored, nil).Once()
	env.messages.On("MarkRead", mock.Anything, int64(22)).Return(stored, false, nil).Once()

	err := sess.HandleEvent(context.Background(), frame(t, models.EventMarkMessageAsRead, models.MarkMessageAsReadPayload{MessageID: 22}))
	require.NoError(t, err)

	assert.Empty(t, conn.byEvent(models.EventMessageRead), "already-read message must not re-broadcast")
}

func TestMarkMessageAsReadMissingIsNoOp(t *testing.T) {
	env := newTestEnv(0)
	sess, _ := env.connect(t, "bob")

	env.messages.On("GetMessage", mock.Anything, int64(404)).
		Return(models.Message{}, repositories.ErrMessageNotFound).Once()

	err := sess.HandleEvent(context.Background(), frame(t, models.EventMarkMessageAsRead, models.MarkMessageAsReadPayload{MessageID: 404}))
	require.NoError(t, err)
	env.messages.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything)
}

func TestMarkMessageAsReadRejectsNonParticipant(t *testing.T) {
	env := newTestEnv(0)
	sess, _ := env.connect(t, "mallory")

	stored := models.Message{ID: 23, ConversationID: conversation.ID("alice", "bob"), SenderID: "alice"}
	env.messages.On("GetMessage", mock.Anything, int64(23)).Return(stored, nil).Once()

	err := sess.HandleEvent(context.Background(), frame(t, models.EventMarkMessageAsRead, models.MarkMessageAsReadPayload{MessageID: 23}))
	require.Error(t, err)
	env.messages.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything)
}

func TestMarkChatAsRead(t *testing.T) {
	env := newTestEnv(0)
	sess, conn := env.connect(t, "bob")

	convID := conversation.ID("alice", "bob")
	env.hub.Join(convID, conn)
	env.messages.On("MarkAllReadFromSender", mock.Anything, convID, "alice").Return(int64(3), nil).Once()

	err := sess.HandleEvent(context.Background(), frame(t, models.EventMarkChatAsRead, models.MarkChatAsReadPayload{OtherUserID: "alice"}))
	require.NoError(t, err)

	ev, ok := conn.lastOf(models.EventChatRead)
	require.True(t, ok)
	payload := ev.Data.(models.ChatReadPayload)
	assert.Equal(t, int64(3), payload.Count)
	assert.Equal(t, "bob", payload.ReadBy)
}

func TestMarkChatAsReadSilentWhenNothingChanged(t *testing.T) {
	env := newTestEnv(0)
	sess, conn := env.connect(t, "bob")

	convID := conversation.ID("alice", "bob")
	env.hub.Join(convID, conn)
	env.messages.On("MarkAllReadFromSender", mock.Anything, convID, "alice").Return(int64(0), nil).Once()

	err := sess.HandleEvent(context.Background(), frame(t, models.EventMarkChatAsRead, models.MarkChatAsReadPayload{OtherUserID: "alice"}))
	require.NoError(t, err)
	assert.Empty(t, conn.byEvent(models.EventChatRead))
}

func TestTypingRelaysAndAutoStops(t *testing.T) {
	env := newTestEnv(40 * time.Millisecond)
	sess, _ := env.connect(t, "alice")
	_, peerConn := env.connect(t, "bob")

	err := sess.HandleEvent(context.Background(), frame(t, models.EventTyping, models.TypingPayload{PeerID: "bob"}))
	require.NoError(t, err)

	ev, ok := peerConn.lastOf(models.EventTyping)
	require.True(t, ok)
	assert.Equal(t, "alice", ev.Data.(models.TypingEventPayload).UserID)

	require.Eventually(t, func() bool {
		return len(peerConn.byEvent(models.EventStopTyping)) == 1
	}, time.Second, 5*time.Millisecond, "silence must synthesize a stopTyping")
}

func TestExplicitStopTypingCancelsTimer(t *testing.T) {
	env := newTestEnv(40 * time.Millisecond)
	sess, _ := env.connect(t, "alice")
	_, peerConn := env.connect(t, "bob")

	require.NoError(t, sess.HandleEvent(context.Background(), frame(t, models.EventTyping, models.TypingPayload{PeerID: "bob"})))
	require.NoError(t, sess.HandleEvent(context.Background(), frame(t, models.EventStopTyping, models.TypingPayload{PeerID: "bob"})))

	require.Eventually(t, func() bool {
		return len(peerConn.byEvent(models.EventStopTyping)) >= 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Len(t, peerConn.byEvent(models.EventStopTyping), 1, "cancelled timer must not fire a second stop")
}

func TestClearChat(t *testing.T) {
	env := newTestEnv(0)
	sess, conn := env.connect(t, "alice")
	_, peerConn := env.connect(t, "bob")

	convID := conversation.ID("alice", "bob")
	joinBoth(env, convID, conn, peerConn)
	env.messages.On("DeleteByConversation", mock.Anything, convID).Return(int64(4), nil).Once()

	err := sess.HandleEvent(context.Background(), frame(t, models.EventClearChat, models.ClearChatPayload{OtherUserID: "bob"}))
	require.NoError(t, err)

	_, ok := peerConn.lastOf(models.EventChatCleared)
	assert.True(t, ok, "both participants hear the clear")

	ev, ok := conn.lastOf(models.EventChatClearSuccess)
	require.True(t, ok)
	payload := ev.Data.(models.ChatClearSuccessPayload)
	assert.Equal(t, int64(4), payload.Deleted)
}

func TestClearChatStoreFailure(t *testing.T) {
	env := newTestEnv(0)
	sess, conn := env.connect(t, "alice")

	convID := conversation.ID("alice", "bob")
	env.messages.On("DeleteByConversation", mock.Anything, convID).Return(int64(0), errors.New("db down")).Once()

	err := sess.HandleEvent(context.Background(), frame(t, models.EventClearChat, models.ClearChatPayload{OtherUserID: "bob"}))
	require.NoError(t, err)

	ev, ok := conn.lastOf(models.EventChatClearError)
	require.True(t, ok)
	assert.Equal(t, "store unavailable", ev.Data.(models.ChatClearErrorPayload).Reason)
}

func TestToggleIncognitoOn(t *testing.T) {
	env := newTestEnv(0)
	sess, conn := env.connect(t, "alice")
	_, peerConn := env.connect(t, "bob")

	convID := conversation.ID("alice", "bob")
	joinBoth(env, convID, conn, peerConn)

	expiresAt := time.Now().Add(24 * time.Hour)
	setting := models.IncognitoSetting{UserID: "alice", ConversationID: convID, EnabledAt: time.Now(), ExpiresAt: expiresAt}
	env.incognito.On("Enable", mock.Anything, "alice", convID, float64(24)).Return(setting, nil).Once()

	err := sess.HandleEvent(context.Background(), frame(t, models.EventToggleIncognito, models.ToggleIncognitoPayload{
		OtherUserID:   "bob",
		Enabled:       true,
		DurationHours: 24,
	}))
	require.NoError(t, err)

	ev, ok := conn.lastOf(models.EventIncognitoEnabled)
	require.True(t, ok)
	payload := ev.Data.(models.IncognitoStatusPayload)
	assert.True(t, payload.Enabled)
	require.NotNil(t, payload.ExpiresAt)
	assert.Equal(t, expiresAt.Unix(), payload.ExpiresAt.Unix())

	_, ok = peerConn.lastOf(models.EventIncognitoStatus)
	assert.True(t, ok, "the peer is told incognito changed")
}

func TestToggleIncognitoOff(t *testing.T) {
	env := newTestEnv(0)
	sess, conn := env.connect(t, "alice")

	convID := conversation.ID("alice", "bob")
	env.hub.Join(convID, conn)
	env.incognito.On("Disable", mock.Anything, "alice", convID).Return(true, nil).Once()

	err := sess.HandleEvent(context.Background(), frame(t, models.EventToggleIncognito, models.ToggleIncognitoPayload{
		OtherUserID: "bob",
		Enabled:     false,
	}))
	require.NoError(t, err)

	ev, ok := conn.lastOf(models.EventIncognitoDisabled)
	require.True(t, ok)
	assert.False(t, ev.Data.(models.IncognitoStatusPayload).Enabled)
}

func TestDisconnect(t *testing.T) {
	env := newTestEnv(0)
	sess, conn := env.connect(t, "alice")
	_, observer := env.connect(t, "bob")

	env.hub.Join(conversation.ID("alice", "bob"), conn)
	env.relationships.On("SetOnline", mock.Anything, "alice", false).Return(time.Now(), nil).Once()

	sess.Disconnect(context.Background())

	_, bound := env.hub.Lookup("alice")
	assert.False(t, bound, "disconnect must unbind the connection")

	ev, ok := observer.lastOf(models.EventUserStatus)
	require.True(t, ok)
	status := ev.Data.(models.UserStatusPayload)
	assert.Equal(t, "alice", status.UserID)
	assert.False(t, status.IsOnline)

	// Second disconnect is a no-op; SetOnline was expected Once.
	sess.Disconnect(context.Background())
	env.relationships.AssertExpectations(t)
}

func TestDisconnectOfStaleConnectionKeepsReconnectedUserOnline(t *testing.T) {
	env := newTestEnv(0)
	stale, _ := env.connect(t, "alice")
	_, observer := env.connect(t, "bob")
	fresh, freshConn := env.connect(t, "alice")

	stale.Disconnect(context.Background())

	got, bound := env.hub.Lookup("alice")
	require.True(t, bound, "the reconnected binding must survive the stale teardown")
	assert.Equal(t, session.Conn(freshConn), got)

	for _, ev := range observer.byEvent(models.EventUserStatus) {
		status := ev.Data.(models.UserStatusPayload)
		if status.UserID == "alice" {
			assert.True(t, status.IsOnline, "stale teardown must not announce the live user offline")
		}
	}
	env.relationships.AssertNotCalled(t, "SetOnline", mock.Anything, "alice", false)

	env.relationships.On("SetOnline", mock.Anything, "alice", false).Return(time.Now(), nil).Once()
	fresh.Disconnect(context.Background())

	ev, ok := observer.lastOf(models.EventUserStatus)
	require.True(t, ok)
	status := ev.Data.(models.UserStatusPayload)
	assert.Equal(t, "alice", status.UserID)
	assert.False(t, status.IsOnline)
	env.relationships.AssertExpectations(t)
}

func TestJoinConversationReportsActiveIncognito(t *testing.T) {
	env := newTestEnv(0)
	sess, conn := env.connect(t, "alice")

	convID := conversation.ID("alice", "bob")
	expiresAt := time.Now().Add(time.Hour)
	setting := models.IncognitoSetting{UserID: "alice", ConversationID: convID, ExpiresAt: expiresAt}
	env.incognito.On("Status", mock.Anything, "alice", convID).Return(setting, true, nil).Once()

	err := sess.HandleEvent(context.Background(), frame(t, models.EventJoinConversation, models.JoinConversationPayload{ConversationID: convID}))
	require.NoError(t, err)

	ev, ok := conn.lastOf(models.EventIncognitoStatus)
	require.True(t, ok, "joining an incognito conversation must report its state")
	payload := ev.Data.(models.IncognitoStatusPayload)
	assert.True(t, payload.Enabled)
	require.NotNil(t, payload.ExpiresAt)
	assert.Equal(t, expiresAt.Unix(), payload.ExpiresAt.Unix())
}

func TestJoinConversationSilentWithoutIncognito(t *testing.T) {
	env := newTestEnv(0)
	sess, conn := env.connect(t, "alice")

	convID := conversation.ID("alice", "bob")
	env.incognito.On("Status", mock.Anything, "alice", convID).
		Return(models.IncognitoSetting{}, false, nil).Once()

	err := sess.HandleEvent(context.Background(), frame(t, models.EventJoinConversation, models.JoinConversationPayload{ConversationID: convID}))
	require.NoError(t, err)

	assert.Empty(t, conn.byEvent(models.EventIncognitoStatus))

	env.hub.Broadcast(convID, models.ServerEvent{Event: models.EventChatCleared})
	assert.Len(t, conn.byEvent(models.EventChatCleared), 1, "the join itself must still take effect")
}

func TestHandleEventRejectsMalformedFrame(t *testing.T) {
	env := newTestEnv(0)
	sess, _ := env.connect(t, "alice")

	require.Error(t, sess.HandleEvent(context.Background(), []byte("{not json")))
	require.Error(t, sess.HandleEvent(context.Background(), frame(t, "noSuchEvent", struct{}{})))
}
