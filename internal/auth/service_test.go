package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"phonestore-backend/internal/apperr"
	"phonestore-backend/internal/models"
	"phonestore-backend/internal/testutil"
)

func newTestService(t *testing.T) (*Service, *Tokens) {
	t.Helper()
	db := testutil.NewDB(t)
	tokens := NewTokens(testutil.JWTSecret, time.Hour)
	return NewService(db, tokens, NewDBStore(db), nil, zap.NewNop()), tokens
}

func customer(username string) NewUser {
	return NewUser{Username: username, Password: "s3cretpass", Email: username + "@mail.test", FullName: "Test " + username}
}

func TestRegisterAndLoginIsCaseInsensitive(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, customer("Alice_01"))
	require.NoError(t, err)
	assert.Equal(t, "alice_01", user.Username)
	assert.Equal(t, models.RoleCustomer, user.Role)
	assert.True(t, user.IsActive)

	res, err := svc.Login(ctx, "ALICE_01", "s3cretpass")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, user.ID, res.User.ID)
}

func TestRegisterDuplicates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, customer("bob"))
	require.NoError(t, err)

	_, err = svc.Register(ctx, customer("BOB"))
	assert.ErrorIs(t, err, apperr.ErrConflict)

	dup := customer("bobby")
	dup.Email = "BOB@mail.test"
	_, err = svc.Register(ctx, dup)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestLoginRejections(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	user, err := svc.Register(ctx, customer("carol"))
	require.NoError(t, err)

	_, err = svc.Login(ctx, "carol", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody", "s3cretpass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, svc.db.Model(user).Update("is_active", false).Error)
	_, err = svc.Login(ctx, "carol", "s3cretpass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, svc.db.Model(user).Update("is_active", true).Error)
	require.NoError(t, svc.db.Delete(user).Error)
	_, err = svc.Login(ctx, "carol", "s3cretpass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, customer("dave"))
	require.NoError(t, err)
	res, err := svc.Login(ctx, "dave", "s3cretpass")
	require.NoError(t, err)

	claims, user, err := svc.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, "dave", user.Username)

	require.NoError(t, svc.Logout(ctx, claims))
	require.NoError(t, svc.Logout(ctx, claims), "logout is idempotent")

	_, _, err = svc.Authenticate(ctx, res.Token)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	other, err := svc.Login(ctx, "dave", "s3cretpass")
	require.NoError(t, err)
	_, _, err = svc.Authenticate(ctx, other.Token)
	assert.NoError(t, err, "a fresh token is unaffected")
}

func TestAuthenticateRejectsDisabledUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	user, err := svc.Register(ctx, customer("erin"))
	require.NoError(t, err)
	res, err := svc.Login(ctx, "erin", "s3cretpass")
	require.NoError(t, err)

	require.NoError(t, svc.db.Model(user).Update("is_active", false).Error)
	_, _, err = svc.Authenticate(ctx, res.Token)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestRegisterAdminOnlyOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	admin, err := svc.RegisterAdmin(ctx, customer("root"))
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)

	_, err = svc.RegisterAdmin(ctx, customer("root2"))
	assert.ErrorIs(t, err, ErrAdminExists)
}

func TestUpdateProfileAndPassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	user, err := svc.Register(ctx, customer("frank"))
	require.NoError(t, err)
	_, err = svc.Register(ctx, customer("gina"))
	require.NoError(t, err)

	taken := "gina@mail.test"
	_, err = svc.UpdateProfile(ctx, user.ID, ProfileUpdate{Email: &taken})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	name, addr := "Frank Ocean", "12 Le Loi"
	updated, err := svc.UpdateProfile(ctx, user.ID, ProfileUpdate{FullName: &name, Address: &addr})
	require.NoError(t, err)
	assert.Equal(t, "Frank Ocean", updated.FullName)
	assert.Equal(t, "12 Le Loi", updated.Address)

	err = svc.ChangePassword(ctx, user.ID, "not-it", "newpassword1")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	require.NoError(t, svc.ChangePassword(ctx, user.ID, "s3cretpass", "newpassword1"))
	_, err = svc.Login(ctx, "frank", "newpassword1")
	assert.NoError(t, err)
}

func TestTokensRejectExpiredAndForeign(t *testing.T) {
	tokens := NewTokens(testutil.JWTSecret, time.Minute)
	user := &models.User{ID: 4, Username: "x", Role: models.RoleStaff}
	raw, claims, err := tokens.Issue(user)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)

	parsed, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStaff, parsed.Role)

	tokens.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = tokens.Parse(raw)
	assert.Error(t, err)

	other := NewTokens("another-secret-another-secret-another", time.Minute)
	_, err = other.Parse(raw)
	assert.Error(t, err)
}
