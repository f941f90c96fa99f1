// Package auth verifies connection credentials and answers the
// friendship/blocking authorization question asked before every send or load.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"messenger-service/internal/repositories"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNotFriends      = errors.New("users are not friends")
	ErrBlocked         = errors.New("user is blocked")
)

// Identity is the result of a successful credential check.
type Identity struct {
	UserID   string
	Username string
}

// Guard authenticates tokens and enforces the relationship policy.
type Guard struct {
	secret        []byte
	relationships repositories.RelationshipRepository
}

// NewGuard constructs a Guard.
func NewGuard(secret string, relationships repositories.RelationshipRepository) *Guard {
	return &Guard{secret: []byte(secret), relationships: relationships}
}

// Authenticate verifies an HS256 JWT and resolves it to a user identity.
// Expiry is enforced by the parser.
func (g *Guard) Authenticate(token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return g.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, ErrUnauthenticated
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrUnauthenticated
	}
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return Identity{}, ErrUnauthenticated
	}
	username, _ := claims["username"].(string)

	return Identity{UserID: userID, Username: username}, nil
}

// Authorize decides whether userID may message or load history with peerID.
// A block in either direction wins regardless of friendship status.
func (g *Guard) Authorize(ctx context.Context, userID, peerID string) error {
	blocked, err := g.relationships.IsBlocked(ctx, userID, peerID)
	if err != nil {
		return fmt.Errorf("block check: %w", err)
	}
	if !blocked {
		blocked, err = g.relationships.IsBlocked(ctx, peerID, userID)
		if err != nil {
			return fmt.Errorf("block check: %w", err)
		}
	}
	if blocked {
		return ErrBlocked
	}

	friends, err := g.relationships.AreFriends(ctx, userID, peerID)
	if err != nil {
		return fmt.Errorf("friendship check: %w", err)
	}
	if !friends {
		return ErrNotFriends
	}
	return nil
}
