package middleware

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robogatedev/tournament-server/internal/config"
	"github.com/robogatedev/tournament-server/internal/models"
	"github.com/robogatedev/tournament-server/internal/roles"
)

func TestTokenRoundTrip(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret"}
	user := &models.User{ID: uuid.New(), Role: roles.RoleScorekeeper}

	tokenStr, err := IssueToken(cfg, user)
	require.NoError(t, err)
	require.NotEmpty(t, tokenStr)

	claims, err := ParseToken(cfg, tokenStr)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.Equal(t, string(roles.RoleScorekeeper), claims.Role)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret"}
	user := &models.User{ID: uuid.New(), Role: roles.RoleReferee}

	tokenStr, err := IssueToken(cfg, user)
	require.NoError(t, err)

	_, err = ParseToken(&config.Config{JWTSecret: "other-secret"}, tokenStr)
	require.Error(t, err)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret"}

	_, err := ParseToken(cfg, "not-a-token")
	require.Error(t, err)

	// An unsigned token must not pass either.
	_, err = ParseToken(cfg, "eyJhbGciOiJub25lIn0.eyJzdWIiOiJ4In0.")
	require.Error(t, err)
}
