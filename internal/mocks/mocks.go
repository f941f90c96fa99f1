package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, conversationID, senderID string, msgType models.MessageType, content models.MessageContent, delivered bool) (models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, msgType, content, delivered)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListByConversation(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) ListIDsByConversation(ctx context.Context, conversationID string) ([]int64, error) {
	args := m.Called(ctx, conversationID)
	var ids []int64
	if val := args.Get(0); val != nil {
		ids = val.([]int64)
	}
	return ids, args.Error(1)
}

func (m *MessageRepositoryMock) MarkDelivered(ctx context.Context, messageID int64) (models.Message, bool, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Bool(1), args.Error(2)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, messageID int64) (models.Message, bool, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Bool(1), args.Error(2)
}

func (m *MessageRepositoryMock) MarkAllReadFromSender(ctx context.Context, conversationID, senderID string) (int64, error) {
	args := m.Called(ctx, conversationID, senderID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MessageRepositoryMock) MarkPendingDelivered(ctx context.Context, receiverID string) ([]models.Message, error) {
	args := m.Called(ctx, receiverID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) DeleteByConversation(ctx context.Context, conversationID string) (int64, error) {
	args := m.Called(ctx, conversationID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MessageRepositoryMock) DeleteByID(ctx context.Context, messageID int64) (models.Message, bool, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Bool(1), args.Error(2)
}

type RelationshipRepositoryMock struct {
	mock.Mock
}

func (m *RelationshipRepositoryMock) AreFriends(ctx context.Context, userID, friendID string) (bool, error) {
	args := m.Called(ctx, userID, friendID)
	return args.Bool(0), args.Error(1)
}

func (m *RelationshipRepositoryMock) IsBlocked(ctx context.Context, userID, otherID string) (bool, error) {
	args := m.Called(ctx, userID, otherID)
	return args.Bool(0), args.Error(1)
}

func (m *RelationshipRepositoryMock) AddFriendship(ctx context.Context, userID, friendID string) error {
	args := m.Called(ctx, userID, friendID)
	return args.Error(0)
}

func (m *RelationshipRepositoryMock) RemoveFriendship(ctx context.Context, userID, friendID string) error {
	args := m.Called(ctx, userID, friendID)
	return args.Error(0)
}

func (m *RelationshipRepositoryMock) Block(ctx context.Context, userID, otherID string) error {
	args := m.Called(ctx, userID, otherID)
	return args.Error(0)
}

func (m *RelationshipRepositoryMock) Unblock(ctx context.Context, userID, otherID string) error {
	args := m.Called(ctx, userID, otherID)
	return args.Error(0)
}

func (m *RelationshipRepositoryMock) GetUser(ctx context.Context, userID string) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *RelationshipRepositoryMock) UpsertUser(ctx context.Context, userID, username string) error {
	args := m.Called(ctx, userID, username)
	return args.Error(0)
}

func (m *RelationshipRepositoryMock) SetOnline(ctx context.Context, userID string, online bool) (time.Time, error) {
	args := m.Called(ctx, userID, online)
	var ts time.Time
	if val := args.Get(0); val != nil {
		ts = val.(time.Time)
	}
	return ts, args.Error(1)
}

type IncognitoRepositoryMock struct {
	mock.Mock
}

func (m *IncognitoRepositoryMock) Upsert(ctx context.Context, setting models.IncognitoSetting) error {
	args := m.Called(ctx, setting)
	return args.Error(0)
}

func (m *IncognitoRepositoryMock) Get(ctx context.Context, userID, conversationID string) (models.IncognitoSetting, error) {
	args := m.Called(ctx, userID, conversationID)
	var setting models.IncognitoSetting
	if val := args.Get(0); val != nil {
		setting = val.(models.IncognitoSetting)
	}
	return setting, args.Error(1)
}

func (m *IncognitoRepositoryMock) Delete(ctx context.Context, userID, conversationID string) (bool, error) {
	args := m.Called(ctx, userID, conversationID)
	return args.Bool(0), args.Error(1)
}

func (m *IncognitoRepositoryMock) ListExpired(ctx context.Context, asOf time.Time) ([]models.IncognitoSetting, error) {
	args := m.Called(ctx, asOf)
	var settings []models.IncognitoSetting
	if val := args.Get(0); val != nil {
		settings = val.([]models.IncognitoSetting)
	}
	return settings, args.Error(1)
}

type IncognitoManagerMock struct {
	mock.Mock
}

func (m *IncognitoManagerMock) Enable(ctx context.Context, userID, conversationID string, durationHours float64) (models.IncognitoSetting, error) {
	args := m.Called(ctx, userID, conversationID, durationHours)
	var setting models.IncognitoSetting
	if val := args.Get(0); val != nil {
		setting = val.(models.IncognitoSetting)
	}
	return setting, args.Error(1)
}

func (m *IncognitoManagerMock) Disable(ctx context.Context, userID, conversationID string) (bool, error) {
	args := m.Called(ctx, userID, conversationID)
	return args.Bool(0), args.Error(1)
}

func (m *IncognitoManagerMock) Status(ctx context.Context, userID, conversationID string) (models.IncognitoSetting, bool, error) {
	args := m.Called(ctx, userID, conversationID)
	var setting models.IncognitoSetting
	if val := args.Get(0); val != nil {
		setting = val.(models.IncognitoSetting)
	}
	return setting, args.Bool(1), args.Error(2)
}

func (m *IncognitoManagerMock) OnMessagePersisted(ctx context.Context, senderID, conversationID string, messageID int64) {
	m.Called(ctx, senderID, conversationID, messageID)
}

type MailerMock struct {
	mock.Mock
}

func (m *MailerMock) NotifyOfflineMessage(ctx context.Context, recipientID, senderID string, msg models.Message) {
	m.Called(ctx, recipientID, senderID, msg)
}

type AuthorizerMock struct {
	mock.Mock
}

func (m *AuthorizerMock) Authorize(ctx context.Context, userID, peerID string) error {
	args := m.Called(ctx, userID, peerID)
	return args.Error(0)
}

var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.RelationshipRepository = (*RelationshipRepositoryMock)(nil)
var _ repositories.IncognitoRepository = (*IncognitoRepositoryMock)(nil)
