package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "chat_room/pkg/errors"
)

const testSecret = "test-secret"

func TestValidateToken_RoundTrip(t *testing.T) {
	token, err := GenerateAccessToken(42, "Ana", "ana@example.com", "chat-room", testSecret, time.Minute)
	require.NoError(t, err)

	claims, err := ValidateToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "Ana", claims.Name)
	assert.Equal(t, "ana@example.com", claims.Email)
	assert.Equal(t, "42", claims.Subject)
}

func TestValidateToken_Expired(t *testing.T) {
	token, err := GenerateAccessToken(1, "Ana", "", "chat-room", testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = ValidateToken(token, testSecret)
	assert.ErrorIs(t, err, apperrors.ErrTokenExpired)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := GenerateAccessToken(1, "Ana", "", "chat-room", testSecret, time.Minute)
	require.NoError(t, err)

	_, err = ValidateToken(token, "other-secret")
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
	assert.Equal(t, apperrors.KindAuthentication, apperrors.KindOf(err))
}

func TestValidateToken_Empty(t *testing.T) {
	_, err := ValidateToken("", testSecret)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestValidateToken_Garbage(t *testing.T) {
	_, err := ValidateToken("not.a.token", testSecret)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}
