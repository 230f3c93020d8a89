package oauth

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "learnauth/internal/errors"
	"learnauth/internal/logging"
	"learnauth/internal/service"
)

// Flow drives the authorization-code flow: Start redirects to the provider,
// Complete verifies state, exchanges the code and signs the user in.
type Flow struct {
	providers *Registry
	states    StateStoreInterface
	auth      service.AuthService
	logger    *slog.Logger
}

// NewFlow wires a Flow.
func NewFlow(providers *Registry, states StateStoreInterface, auth service.AuthService, logger *slog.Logger) *Flow {
	return &Flow{
		providers: providers,
		states:    states,
		auth:      auth,
		logger:    logger.With(logging.Component("oauth")),
	}
}

// Start returns the provider consent URL for a new login attempt.
func (f *Flow) Start(ctx context.Context, providerName string) (string, error) {
	p, err := f.providers.Get(providerName)
	if err != nil {
		return "", err
	}
	state, verifier, err := f.states.Issue(ctx, p.Name())
	if err != nil {
		return "", err
	}
	return p.AuthCodeURL(state, verifier), nil
}

// Complete finishes a login. The identity handed to the auth service has passed
// state, PKCE and provider verification.
func (f *Flow) Complete(ctx context.Context, providerName, state, code string) (*service.AuthResult, error) {
	p, err := f.providers.Get(providerName)
	if err != nil {
		return nil, err
	}

	verifier, err := f.states.Consume(ctx, p.Name(), state)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, fmt.Errorf("%w: missing authorization code", apperrors.ErrProviderExchange)
	}

	identity, err := p.Exchange(ctx, code, verifier)
	if err != nil {
		f.logger.WarnContext(ctx, "provider exchange failed", logging.Provider(providerName), logging.Error(err))
		return nil, err
	}

	return f.auth.FederatedCallback(ctx, service.FederatedIdentity{
		Provider:      identity.Provider,
		SubjectID:     identity.SubjectID,
		Email:         identity.Email,
		EmailVerified: identity.EmailVerified,
		DisplayName:   identity.DisplayName,
		AvatarURL:     identity.AvatarURL,
	})
}
