package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "fleamarket/internal/domain/auth"
	domainuser "fleamarket/internal/domain/user"
	"fleamarket/internal/infra/security"
	"fleamarket/internal/infra/storage/memory"
)

func newTestService() *Service {
	return &Service{
		Users:      memory.NewUserRepository(),
		Sessions:   memory.NewSessionStore(),
		Passwords:  security.BcryptHasher{Cost: 4},
		Tokens:     security.RandomTokenGenerator{},
		SessionTTL: time.Hour,
	}
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	registered, err := svc.Register(ctx, RegisterParams{
		Email:    " Alice@Example.com ",
		Name:     "Alice",
		Password: "correct horse",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", registered.User.Email)
	assert.Equal(t, []domainuser.Role{domainuser.RoleMember}, registered.User.Roles)
	assert.NotEmpty(t, registered.Token)

	logged, err := svc.Login(ctx, LoginParams{Email: "alice@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, logged.User.ID)
	assert.NotEqual(t, registered.Token, logged.Token)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc := newTestService()

	_, err := svc.Register(context.Background(), RegisterParams{
		Email:    "alice@example.com",
		Name:     "Alice",
		Password: "short",
	})
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterParams{Email: "alice@example.com", Name: "Alice", Password: "password1"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterParams{Email: "ALICE@example.com", Name: "Imposter", Password: "password2"})
	assert.ErrorIs(t, err, domainuser.ErrEmailAlreadyUsed)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterParams{Email: "alice@example.com", Name: "Alice", Password: "password1"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginParams{Email: "alice@example.com", Password: "wrong password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, LoginParams{Email: "nobody@example.com", Password: "password1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestResolveTokenRoundTrip(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	registered, err := svc.Register(ctx, RegisterParams{Email: "alice@example.com", Name: "Alice", Password: "password1"})
	require.NoError(t, err)

	resolved, err := svc.ResolveToken(ctx, registered.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, resolved.User.ID)

	_, err = svc.ResolveToken(ctx, "bogus-token")
	assert.ErrorIs(t, err, domainauth.ErrSessionNotFound)
}

func TestLogoutInvalidatesSession(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	registered, err := svc.Register(ctx, RegisterParams{Email: "alice@example.com", Name: "Alice", Password: "password1"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, registered.Token))

	_, err = svc.ResolveToken(ctx, registered.Token)
	assert.ErrorIs(t, err, domainauth.ErrSessionNotFound)
}

func TestBlockedUserIsLockedOut(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	registered, err := svc.Register(ctx, RegisterParams{Email: "alice@example.com", Name: "Alice", Password: "password1"})
	require.NoError(t, err)

	user, err := svc.Users.ByID(ctx, registered.User.ID)
	require.NoError(t, err)
	user.SetBlocked(true, time.Now())
	require.NoError(t, svc.Users.Save(ctx, user))

	_, err = svc.Login(ctx, LoginParams{Email: "alice@example.com", Password: "password1"})
	assert.ErrorIs(t, err, ErrUserBlocked)

	// The live session dies with the block.
	_, err = svc.ResolveToken(ctx, registered.Token)
	assert.ErrorIs(t, err, ErrUserBlocked)
	_, err = svc.Sessions.Get(ctx, domainauth.Token(registered.Token))
	assert.ErrorIs(t, err, domainauth.ErrSessionNotFound)
}
