package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/authchain/internal/ledger"
	"github.com/javajoker/authchain/internal/models"
)

func TestMockIdentityProvider(t *testing.T) {
	ids, err := ledger.NewIdentities("", "", "", false)
	require.NoError(t, err)
	provider := NewMockIdentityProvider(ids, 1)

	session, err := provider.Login(&LoginRequest{Role: models.UserRoleConsumer})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", session.TokenType)
	assert.Equal(t, 3600, session.ExpiresIn)
	assert.Equal(t, ids.Purchaser.Address.Hex(), session.User.Address)

	user, err := provider.Resolve(session.Token)
	require.NoError(t, err)
	assert.Equal(t, models.UserRoleConsumer, user.Role)

	_, err = provider.Login(&LoginRequest{Role: "hacker"})
	assert.ErrorIs(t, err, ErrUnknownRole)

	_, err = provider.Login(&LoginRequest{})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = provider.Resolve("not-a-token")
	assert.Error(t, err)

	users := provider.Users()
	require.Len(t, users, 3)
	assert.Equal(t, ids.Owner.Address.Hex(), users[2].Address)
}
