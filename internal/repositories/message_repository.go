package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/conversation"
	"messenger-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

const messageColumns = `id, conversation_id, sender_id, type, text, file_url, file_name, file_size, mime_type,
        is_delivered, delivered_at, is_read, read_at, deleted, created_at`

// MessageRepository defines durable operations over message records. Mutations
// of already-satisfied state are no-ops, not errors.
type MessageRepository interface {
	CreateMessage(ctx context.Context, conversationID, senderID string, msgType models.MessageType, content models.MessageContent, delivered bool) (models.Message, error)
	GetMessage(ctx context.Context, messageID int64) (models.Message, error)
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]models.Message, error)
	ListIDsByConversation(ctx context.Context, conversationID string) ([]int64, error)
	MarkDelivered(ctx context.Context, messageID int64) (models.Message, bool, error)
	MarkRead(ctx context.Context, messageID int64) (models.Message, bool, error)
	MarkAllReadFromSender(ctx context.Context, conversationID, senderID string) (int64, error)
	MarkPendingDelivered(ctx context.Context, receiverID string) ([]models.Message, error)
	DeleteByConversation(ctx context.Context, conversationID string) (int64, error)
	DeleteByID(ctx context.Context, messageID int64) (models.Message, bool, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a new message. delivered_at is set iff the receiver is
// reachable at creation time.
func (r *MessageRepo) CreateMessage(ctx context.Context, conversationID, senderID string, msgType models.MessageType, content models.MessageContent, delivered bool) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages
        (conversation_id, sender_id, type, text, file_url, file_name, file_size, mime_type, is_delivered, delivered_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, CASE WHEN $9 THEN NOW() ELSE NULL END)
        RETURNING `+messageColumns,
		conversationID, senderID, msgType, content.Text, content.FileURL, content.FileName, content.FileSize, content.MimeType, delivered).
		StructScan(&msg)
	return msg, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1 AND deleted = FALSE`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListByConversation returns the most recent messages of a conversation in
// ascending creation order. Callers needing more page explicitly.
func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM (
            SELECT ` + messageColumns + ` FROM messages
            WHERE conversation_id=$1 AND deleted = FALSE
            ORDER BY created_at DESC, id DESC
            LIMIT $2
        ) recent ORDER BY created_at ASC, id ASC`
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, query, conversationID, limit)
	return msgs, err
}

// ListIDsByConversation returns every live message id of a conversation,
// uncapped. Used by incognito scheduling, which must cover the full backlog.
func (r *MessageRepo) ListIDsByConversation(ctx context.Context, conversationID string) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids,
		`SELECT id FROM messages WHERE conversation_id=$1 AND deleted = FALSE ORDER BY id ASC`, conversationID)
	return ids, err
}

// MarkDelivered flips the delivery flag once. The bool result reports whether
// this call performed the transition; an already-delivered message is a no-op.
func (r *MessageRepo) MarkDelivered(ctx context.Context, messageID int64) (models.Message, bool, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `UPDATE messages SET is_delivered = TRUE, delivered_at = NOW()
        WHERE id=$1 AND is_delivered = FALSE
        RETURNING `+messageColumns, messageID).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		msg, err = r.GetMessage(ctx, messageID)
		return msg, false, err
	}
	return msg, err == nil, err
}

// MarkRead flips the read flag once, same contract as MarkDelivered.
func (r *MessageRepo) MarkRead(ctx context.Context, messageID int64) (models.Message, bool, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `UPDATE messages SET is_read = TRUE, read_at = NOW()
        WHERE id=$1 AND is_read = FALSE
        RETURNING `+messageColumns, messageID).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		msg, err = r.GetMessage(ctx, messageID)
		return msg, false, err
	}
	return msg, err == nil, err
}

// MarkAllReadFromSender bulk-reads every unread message a sender has in the
// conversation and returns how many rows transitioned.
func (r *MessageRepo) MarkAllReadFromSender(ctx context.Context, conversationID, senderID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET is_read = TRUE, read_at = NOW()
        WHERE conversation_id=$1 AND sender_id=$2 AND is_read = FALSE AND deleted = FALSE`,
		conversationID, senderID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkPendingDelivered flips every undelivered message addressed to the user
// and returns the affected rows so senders can be notified. Run when a user
// connects. The receiver is the conversation participant that did not send,
// recovered by splitting the id on the pair separator.
func (r *MessageRepo) MarkPendingDelivered(ctx context.Context, receiverID string) ([]models.Message, error) {
	query := `UPDATE messages SET is_delivered = TRUE, delivered_at = NOW()
        WHERE is_delivered = FALSE AND deleted = FALSE AND sender_id <> $1
        AND (split_part(conversation_id, $2, 1) = $1 OR split_part(conversation_id, $2, 2) = $1)
        RETURNING ` + messageColumns
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, query, receiverID, conversation.Separator)
	return msgs, err
}

// DeleteByConversation hard-deletes every message of a conversation.
func (r *MessageRepo) DeleteByConversation(ctx context.Context, conversationID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id=$1`, conversationID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteByID hard-deletes one message. A missing row is not an error: both
// incognito enforcement paths may race for the same target.
func (r *MessageRepo) DeleteByID(ctx context.Context, messageID int64) (models.Message, bool, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `DELETE FROM messages WHERE id=$1 RETURNING `+messageColumns, messageID).
		StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, false, nil
	}
	return msg, err == nil, err
}
