package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInviteTokenRoundTrip(t *testing.T) {
	tok, err := GenerateInviteToken("room-1", "secret", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	claims, err := ValidateInviteToken(tok, "secret")
	require.NoError(t, err)
	assert.Equal(t, "room-1", claims.RoomID)
}

func TestInviteTokenWrongSecret(t *testing.T) {
	tok, err := GenerateInviteToken("room-1", "secret", time.Minute)
	require.NoError(t, err)

	_, err = ValidateInviteToken(tok, "other-secret")
	assert.Error(t, err)
}

func TestInviteTokenExpired(t *testing.T) {
	tok, err := GenerateInviteToken("room-1", "secret", -time.Minute)
	require.NoError(t, err)

	_, err = ValidateInviteToken(tok, "secret")
	assert.Error(t, err)
}

func TestInviteTokenGarbage(t *testing.T) {
	_, err := ValidateInviteToken("not-a-token", "secret")
	assert.Error(t, err)
}
