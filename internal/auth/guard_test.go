package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/mocks"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestAuthenticate(t *testing.T) {
	guard := NewGuard(testSecret, nil)

	token := signToken(t, testSecret, jwt.MapClaims{
		"user_id":  "alice",
		"username": "Alice",
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	identity, err := guard.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", identity.UserID)
	assert.Equal(t, "Alice", identity.Username)
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	guard := NewGuard(testSecret, nil)

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not.a.jwt",
		"wrong secret": signToken(t, "other-secret", jwt.MapClaims{"user_id": "alice"}),
		"expired": signToken(t, testSecret, jwt.MapClaims{
			"user_id": "alice",
			"exp":     time.Now().Add(-time.Hour).Unix(),
		}),
		"missing user_id": signToken(t, testSecret, jwt.MapClaims{"username": "Alice"}),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := guard.Authenticate(token)
			assert.ErrorIs(t, err, ErrUnauthenticated)
		})
	}
}

func TestAuthenticateRejectsUnexpectedAlg(t *testing.T) {
	guard := NewGuard(testSecret, nil)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": "alice"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = guard.Authenticate(unsigned)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthorizeAllowsFriends(t *testing.T) {
	relationships := new(mocks.RelationshipRepositoryMock)
	guard := NewGuard(testSecret, relationships)

	relationships.On("IsBlocked", mock.Anything, "alice", "bob").Return(false, nil).Once()
	relationships.On("IsBlocked", mock.Anything, "bob", "alice").Return(false, nil).Once()
	relationships.On("AreFriends", mock.Anything, "alice", "bob").Return(true, nil).Once()

	require.NoError(t, guard.Authorize(context.Background(), "alice", "bob"))
	relationships.AssertExpectations(t)
}

func TestAuthorizeDeniesNonFriends(t *testing.T) {
	relationships := new(mocks.RelationshipRepositoryMock)
	guard := NewGuard(testSecret, relationships)

	relationships.On("IsBlocked", mock.Anything, "alice", "bob").Return(false, nil).Once()
	relationships.On("IsBlocked", mock.Anything, "bob", "alice").Return(false, nil).Once()
	relationships.On("AreFriends", mock.Anything, "alice", "bob").Return(false, nil).Once()

	assert.ErrorIs(t, guard.Authorize(context.Background(), "alice", "bob"), ErrNotFriends)
}

func TestAuthorizeBlockWinsOverFriendship(t *testing.T) {
	relationships := new(mocks.RelationshipRepositoryMock)
	guard := NewGuard(testSecret, relationships)

	relationships.On("IsBlocked", mock.Anything, "alice", "bob").Return(true, nil).Once()

	assert.ErrorIs(t, guard.Authorize(context.Background(), "alice", "bob"), ErrBlocked)
	relationships.AssertNotCalled(t, "AreFriends", mock.Anything, mock.Anything, mock.Anything)
}

func TestAuthorizeChecksReverseBlock(t *testing.T) {
	relationships := new(mocks.RelationshipRepositoryMock)
	guard := NewGuard(testSecret, relationships)

	relationships.On("IsBlocked", mock.Anything, "alice", "bob").Return(false, nil).Once()
	relationships.On("IsBlocked", mock.Anything, "bob", "alice").Return(true, nil).Once()

	assert.ErrorIs(t, guard.Authorize(context.Background(), "alice", "bob"), ErrBlocked)
	relationships.AssertNotCalled(t, "AreFriends", mock.Anything, mock.Anything, mock.Anything)
}
