package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"learnauth/internal/cache"
	apperrors "learnauth/internal/errors"
	"learnauth/internal/model"
)

const (
	stateKeyPrefix = "oauth_state:"
	// DefaultStateTTL bounds how long a user may take at the provider's consent screen.
	DefaultStateTTL = 10 * time.Minute
)

// StateStoreInterface defines storage for one-time OAuth state values.
type StateStoreInterface interface {
	Issue(ctx context.Context, provider model.Provider) (state, verifier string, err error)
	Consume(ctx context.Context, provider model.Provider, state string) (verifier string, err error)
}

// StateStore keeps OAuth state and the matching PKCE verifier in Redis.
type StateStore struct {
	cache *cache.Client
	ttl   time.Duration
}

// Ensure StateStore implements StateStoreInterface
var _ StateStoreInterface = (*StateStore)(nil)

type statePayload struct {
	Provider model.Provider `json:"provider"`
	Verifier string         `json:"verifier"`
}

// NewStateStore creates a new state store.
func NewStateStore(cache *cache.Client, ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateStore{cache: cache, ttl: ttl}
}

// Issue creates a random state bound to provider, together with a fresh PKCE verifier.
func (s *StateStore) Issue(ctx context.Context, provider model.Provider) (string, string, error) {
	state := oauth2.GenerateVerifier()
	verifier := oauth2.GenerateVerifier()

	payload, err := json.Marshal(statePayload{Provider: provider, Verifier: verifier})
	if err != nil {
		return "", "", fmt.Errorf("marshal state: %w", err)
	}
	if err := s.cache.Store(ctx, stateKeyPrefix+state, payload, s.ttl); err != nil {
		return "", "", fmt.Errorf("store state: %w", err)
	}
	return state, verifier, nil
}

// Consume deletes the state and returns its verifier. Unknown, expired, reused or
// cross-provider states are ErrInvalidOAuthState.
func (s *StateStore) Consume(ctx context.Context, provider model.Provider, state string) (string, error) {
	if state == "" {
		return "", apperrors.ErrInvalidOAuthState
	}

	data, err := s.cache.Take(ctx, stateKeyPrefix+state)
	if err != nil {
		return "", fmt.Errorf("consume state: %w", err)
	}
	if data == nil {
		return "", apperrors.ErrInvalidOAuthState
	}

	var payload statePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("%w: corrupt payload", apperrors.ErrInvalidOAuthState)
	}
	if payload.Provider != provider || payload.Verifier == "" {
		return "", apperrors.ErrInvalidOAuthState
	}
	return payload.Verifier, nil
}
