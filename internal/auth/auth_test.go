package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lijunhao/projfin/internal/apperr"
	"github.com/lijunhao/projfin/internal/models"
)

func TestHasCapability(t *testing.T) {
	fin := &models.User{UserID: "u1", Role: models.RoleFinance}
	admin := &models.User{UserID: "u2", Role: models.RoleAdmin}
	app := &models.User{UserID: "u3", Role: models.RoleApplicant}

	assert.True(t, HasCapability(fin, FinanceOrAdmin...))
	assert.True(t, HasCapability(admin, FinanceOrAdmin...))
	assert.False(t, HasCapability(app, FinanceOrAdmin...))
	assert.False(t, HasCapability(nil, FinanceOrAdmin...))
	assert.False(t, HasCapability(&models.User{UserID: "u4"}, FinanceOrAdmin...))
}

func TestRequireFinanceOrAdmin(t *testing.T) {
	assert.NoError(t, RequireFinanceOrAdmin(&models.User{Role: models.RoleAdmin}))

	err := RequireFinanceOrAdmin(&models.User{Role: models.RoleApplicant})
	assert.True(t, apperr.Is(err, apperr.CodeForbidden))
	assert.True(t, apperr.Is(RequireFinanceOrAdmin(nil), apperr.CodeForbidden))
}

func TestIsOwnerOrPrivileged(t *testing.T) {
	owner := &models.User{UserID: "u1", Role: models.RoleApplicant}
	other := &models.User{UserID: "u2", Role: models.RoleApplicant}
	fin := &models.User{UserID: "u3", Role: models.RoleFinance}

	assert.True(t, IsOwnerOrPrivileged(owner, "u1"))
	assert.False(t, IsOwnerOrPrivileged(other, "u1"))
	assert.True(t, IsOwnerOrPrivileged(fin, "u1"))
	assert.False(t, IsOwnerOrPrivileged(nil, "u1"))
}

func TestTokenIssueAndVerify(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	token, err := issuer.Issue("user_42")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user_42", userID)
}

func TestTokenVerifyRejectsBadTokens(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	_, err := issuer.Verify("not-a-token")
	assert.Error(t, err)

	// Token signed with a different secret.
	other := NewTokenIssuer("other-secret", time.Hour)
	token, err := other.Issue("user_42")
	require.NoError(t, err)
	_, err = issuer.Verify(token)
	assert.Error(t, err)
}

func TestTokenVerifyRejectsExpired(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", -time.Minute)
	token, err := issuer.Issue("user_42")
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.Error(t, err)
}
