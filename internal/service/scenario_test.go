package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "learnauth/internal/errors"
	"learnauth/internal/model"
)

func TestScenario_RegisterLoginAuthorize(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	t1, err := s.auth.Register(ctx, "a@x.com", "secret123")
	require.NoError(t, err)

	t2, err := s.auth.Login(ctx, "a@x.com", "secret123")
	require.NoError(t, err)

	c1, err := s.tokens.Validate(t1.AccessToken)
	require.NoError(t, err)
	c2, err := s.tokens.Validate(t2.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, c1.UserID, c2.UserID)
	assert.Equal(t, t1.User.ID, c2.UserID)

	_, err = s.auth.Login(ctx, "a@x.com", "wrong")
	assert.Equal(t, apperrors.ErrInvalidCredentials, err)

	user, err := s.guard.Authenticate(ctx, t2.AccessToken)
	require.NoError(t, err)
	_, err = s.guard.Authorize(user, model.NewRoleSet(model.RoleAdmin))
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestScenario_RegisterThenLoginForManyCredentials(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	creds := []struct{ email, password string }{
		{"plain@example.com", "secret123"},
		{"  Mixed.Case@Example.ORG ", "pässwörd-ünïcode"},
		{"max@example.com", "0123456789012345678901234567890123456789012345678901234567890123456789ab"},
	}
	for i, c := range creds {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			reg, err := s.auth.Register(ctx, c.email, c.password)
			require.NoError(t, err)

			login, err := s.auth.Login(ctx, c.email, c.password)
			require.NoError(t, err)

			claims, err := s.tokens.Validate(login.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, reg.User.ID, claims.UserID)
		})
	}
}

func TestScenario_WrongPasswordIndistinguishableFromUnknownEmail(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	_, err := s.auth.Register(ctx, "known@example.com", "secret123")
	require.NoError(t, err)

	_, wrongPassword := s.auth.Login(ctx, "known@example.com", "nope-nope")
	_, unknownEmail := s.auth.Login(ctx, "unknown@example.com", "secret123")

	assert.Equal(t, apperrors.ErrInvalidCredentials, wrongPassword)
	assert.Equal(t, wrongPassword, unknownEmail)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestScenario_DuplicateRegistration(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	_, err := s.auth.Register(ctx, "dup@example.com", "secret123")
	require.NoError(t, err)

	_, err = s.auth.Register(ctx, "DUP@example.com ", "another-secret")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestScenario_DeactivationBlocksLoginAndToken(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	reg, err := s.auth.Register(ctx, "off@example.com", "secret123")
	require.NoError(t, err)
	fed, err := s.auth.FederatedCallback(ctx, FederatedIdentity{Provider: model.ProviderGoogle, SubjectID: "g-off", Email: "off@example.com", EmailVerified: true})
	require.NoError(t, err)

	_, err = s.guard.Authenticate(ctx, reg.AccessToken)
	require.NoError(t, err)

	require.NoError(t, s.users.SetActive(ctx, reg.User.ID, false))

	_, err = s.auth.Login(ctx, "off@example.com", "secret123")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = s.guard.Authenticate(ctx, reg.AccessToken)
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	_, err = s.guard.Authenticate(ctx, fed.AccessToken)
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	_, err = s.auth.FederatedCallback(ctx, FederatedIdentity{Provider: model.ProviderGoogle, SubjectID: "g-off", Email: "off@example.com"})
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	require.NoError(t, s.users.SetActive(ctx, reg.User.ID, true))
	_, err = s.guard.Authenticate(ctx, reg.AccessToken)
	assert.NoError(t, err)
}

func TestScenario_ProviderOnlyAccountAddsPassword(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	fed, err := s.auth.FederatedCallback(ctx, FederatedIdentity{Provider: model.ProviderMicrosoft, SubjectID: "ms-7", Email: "fed@example.com"})
	require.NoError(t, err)

	_, err = s.auth.Login(ctx, "fed@example.com", "anything")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	require.NoError(t, s.auth.SetPassword(ctx, fed.User.ID, "", "new-secret"))

	login, err := s.auth.Login(ctx, "fed@example.com", "new-secret")
	require.NoError(t, err)
	assert.Equal(t, fed.User.ID, login.User.ID)

	err = s.auth.SetPassword(ctx, fed.User.ID, "wrong", "other-secret")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}
