package auth

import (
	"testing"

	"github.com/campuspoints/loyalty-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCarriesIdentity(t *testing.T) {
	user := &models.User{ID: 12, Utorid: "johndoe1", Role: models.RoleManager}

	token, expiresAt, err := GenerateToken(user, "test-secret")
	require.NoError(t, err)
	assert.False(t, expiresAt.IsZero())

	userID, utorid, role, err := ParseToken(token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, int32(12), userID)
	assert.Equal(t, "johndoe1", utorid)
	assert.Equal(t, models.RoleManager, role)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	user := &models.User{ID: 12, Utorid: "johndoe1", Role: models.RoleRegular}

	token, _, err := GenerateToken(user, "test-secret")
	require.NoError(t, err)

	_, _, _, err = ParseToken(token, "other-secret")
	assert.Error(t, err)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	_, _, _, err := ParseToken("not.a.token", "test-secret")
	assert.Error(t, err)
}
