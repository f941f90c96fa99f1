package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// RelationshipRepository answers friendship/block queries and tracks user
// presence. Friendship edges are stored symmetrically, so a single-direction
// check is sufficient everywhere.
type RelationshipRepository interface {
	AreFriends(ctx context.Context, userID, friendID string) (bool, error)
	IsBlocked(ctx context.Context, userID, otherID string) (bool, error)
	AddFriendship(ctx context.Context, userID, friendID string) error
	RemoveFriendship(ctx context.Context, userID, friendID string) error
	Block(ctx context.Context, userID, otherID string) error
	Unblock(ctx context.Context, userID, otherID string) error
	GetUser(ctx context.Context, userID string) (models.User, error)
	UpsertUser(ctx context.Context, userID, username string) error
	SetOnline(ctx context.Context, userID string, online bool) (time.Time, error)
}

// RelationshipRepo is a sqlx implementation of RelationshipRepository.
type RelationshipRepo struct {
	db *sqlx.DB
}

// NewRelationshipRepo constructs a RelationshipRepo.
func NewRelationshipRepo(db *sqlx.DB) *RelationshipRepo {
	return &RelationshipRepo{db: db}
}

// AreFriends checks whether friendID is in userID's friend set.
func (r *RelationshipRepo) AreFriends(ctx context.Context, userID, friendID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM friendships WHERE user_id=$1 AND friend_id=$2)`, userID, friendID)
	return exists, err
}

// IsBlocked checks whether userID has blocked otherID.
func (r *RelationshipRepo) IsBlocked(ctx context.Context, userID, otherID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM blocks WHERE user_id=$1 AND blocked_id=$2)`, userID, otherID)
	return exists, err
}

// AddFriendship writes both directed edges in one transaction so friendship
// stays symmetric by construction.
func (r *RelationshipRepo) AddFriendship(ctx context.Context, userID, friendID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, pair := range [][2]string{{userID, friendID}, {friendID, userID}} {
		if _, err := tx.ExecContext(ctx, `INSERT INTO friendships (user_id, friend_id) VALUES ($1, $2)
            ON CONFLICT (user_id, friend_id) DO NOTHING`, pair[0], pair[1]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RemoveFriendship removes both directed edges.
func (r *RelationshipRepo) RemoveFriendship(ctx context.Context, userID, friendID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM friendships WHERE (user_id=$1 AND friend_id=$2) OR (user_id=$2 AND friend_id=$1)`,
		userID, friendID)
	return err
}

// Block records that userID has blocked otherID. Blocks are one-directional.
func (r *RelationshipRepo) Block(ctx context.Context, userID, otherID string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO blocks (user_id, blocked_id) VALUES ($1, $2)
        ON CONFLICT (user_id, blocked_id) DO NOTHING`, userID, otherID)
	return err
}

// Unblock removes userID's block on otherID.
func (r *RelationshipRepo) Unblock(ctx context.Context, userID, otherID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM blocks WHERE user_id=$1 AND blocked_id=$2`, userID, otherID)
	return err
}

// GetUser fetches a user record.
func (r *RelationshipRepo) GetUser(ctx context.Context, userID string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`SELECT id, username, is_online, last_seen FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// UpsertUser makes sure a presence row exists for the user.
func (r *RelationshipRepo) UpsertUser(ctx context.Context, userID, username string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO users (id, username) VALUES ($1, $2)
        ON CONFLICT (id) DO UPDATE SET username = CASE WHEN EXCLUDED.username <> '' THEN EXCLUDED.username ELSE users.username END`,
		userID, username)
	return err
}

// SetOnline flips the online flag and refreshes last_seen, returning the new
// last_seen timestamp.
func (r *RelationshipRepo) SetOnline(ctx context.Context, userID string, online bool) (time.Time, error) {
	var lastSeen time.Time
	err := r.db.QueryRowxContext(ctx,
		`UPDATE users SET is_online=$2, last_seen=NOW() WHERE id=$1 RETURNING last_seen`,
		userID, online).Scan(&lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrUserNotFound
	}
	return lastSeen, err
}
