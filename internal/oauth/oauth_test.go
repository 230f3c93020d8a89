package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"learnauth/internal/auth"
	"learnauth/internal/cache"
	"learnauth/internal/db"
	apperrors "learnauth/internal/errors"
	"learnauth/internal/logging"
	"learnauth/internal/model"
	"learnauth/internal/repository"
	"learnauth/internal/service"
)

// fakeIdP is a minimal OpenID provider: a token endpoint that checks the PKCE
// verifier against the challenge sent to /auth, and a userinfo endpoint.
type fakeIdP struct {
	*httptest.Server
	profile      map[string]any
	idClaims     jwt.MapClaims
	wantVerifier string
	tokenCalls   int
}

func newFakeIdP(t *testing.T, profile map[string]any) *fakeIdP {
	t.Helper()
	idp := &fakeIdP{profile: profile}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		idp.tokenCalls++
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" || r.Form.Get("code_verifier") != idp.wantVerifier {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		resp := map[string]any{"access_token": "at-123", "token_type": "Bearer", "expires_in": 3600}
		if idp.idClaims != nil {
			raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, idp.idClaims).SignedString([]byte("idp-signing-key"))
			require.NoError(t, err)
			resp["id_token"] = raw
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(idp.profile)
	})
	idp.Server = httptest.NewServer(mux)
	t.Cleanup(idp.Close)
	return idp
}

func (idp *fakeIdP) provider(name model.Provider, requireVerified bool) Provider {
	return NewProvider(name, ProviderConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8080/api/auth/oauth/" + string(name) + "/callback",
		Scopes:       []string{"openid", "email"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   idp.URL + "/auth",
			TokenURL:  idp.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		UserInfoURL:          idp.URL + "/userinfo",
		RequireVerifiedEmail: requireVerified,
		HTTPClient:           idp.Client(),
	})
}

func newStateStore(t *testing.T) (*StateStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := cache.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })
	return NewStateStore(client, time.Minute), mr
}

func TestProvider_AuthCodeURL(t *testing.T) {
	idp := newFakeIdP(t, nil)
	p := idp.provider(model.ProviderGoogle, true)
	verifier := oauth2.GenerateVerifier()

	raw := p.AuthCodeURL("state-1", verifier)
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, oauth2.S256ChallengeFromVerifier(verifier), q.Get("code_challenge"))
	assert.Empty(t, q.Get("code_verifier"))
}

func TestProvider_Exchange(t *testing.T) {
	tests := []struct {
		name            string
		profile         map[string]any
		idClaims        jwt.MapClaims
		requireVerified bool
		code            string
		expectedError   error
		expectedEmail   string
		expectVerified  bool
	}{
		{
			name:            "verified google profile",
			profile:         map[string]any{"sub": "g-1", "email": "a@x.com", "email_verified": true, "name": "A", "picture": "https://p/a.png"},
			requireVerified: true,
			code:            "good-code",
			expectedEmail:   "a@x.com",
			expectVerified:  true,
		},
		{
			name:            "string email_verified claim",
			profile:         map[string]any{"sub": "g-1", "email": "a@x.com", "email_verified": "true"},
			requireVerified: true,
			code:            "good-code",
			expectedEmail:   "a@x.com",
			expectVerified:  true,
		},
		{
			name:           "xms_edov in id token marks email verified",
			profile:        map[string]any{"sub": "ms-1", "email": "b@x.com"},
			idClaims:       jwt.MapClaims{"sub": "ms-1", "xms_edov": true},
			code:           "good-code",
			expectedEmail:  "b@x.com",
			expectVerified: true,
		},
		{
			name:          "id token without verification claim",
			profile:       map[string]any{"sub": "ms-1", "email": "b@x.com"},
			idClaims:      jwt.MapClaims{"sub": "ms-1", "xms_edov": false},
			code:          "good-code",
			expectedEmail: "b@x.com",
		},
		{
			name:            "unverified email rejected when required",
			profile:         map[string]any{"sub": "g-1", "email": "a@x.com", "email_verified": false},
			requireVerified: true,
			code:            "good-code",
			expectedError:   apperrors.ErrNoEmail,
		},
		{
			name:          "unverified email accepted when not required",
			profile:       map[string]any{"sub": "ms-1", "email": "b@x.com"},
			code:          "good-code",
			expectedEmail: "b@x.com",
		},
		{
			name:          "no email",
			profile:       map[string]any{"sub": "ms-1"},
			code:          "good-code",
			expectedError: apperrors.ErrNoEmail,
		},
		{
			name:          "no subject",
			profile:       map[string]any{"email": "b@x.com"},
			code:          "good-code",
			expectedError: apperrors.ErrProviderExchange,
		},
		{
			name:          "bad code",
			profile:       map[string]any{"sub": "ms-1", "email": "b@x.com"},
			code:          "stolen-code",
			expectedError: apperrors.ErrProviderExchange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idp := newFakeIdP(t, tt.profile)
			idp.idClaims = tt.idClaims
			verifier := oauth2.GenerateVerifier()
			idp.wantVerifier = verifier

			identity, err := idp.provider(model.ProviderGoogle, tt.requireVerified).Exchange(context.Background(), tt.code, verifier)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, identity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedEmail, identity.Email)
			assert.Equal(t, tt.expectVerified, identity.EmailVerified)
			assert.Equal(t, model.ProviderGoogle, identity.Provider)
			assert.NotEmpty(t, identity.SubjectID)
		})
	}
}

func TestProvider_ExchangeRejectsWrongVerifier(t *testing.T) {
	idp := newFakeIdP(t, map[string]any{"sub": "g-1", "email": "a@x.com", "email_verified": true})
	idp.wantVerifier = oauth2.GenerateVerifier()

	_, err := idp.provider(model.ProviderGoogle, true).Exchange(context.Background(), "good-code", oauth2.GenerateVerifier())
	assert.ErrorIs(t, err, apperrors.ErrProviderExchange)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(NewGoogle("id", "secret", "http://cb"), nil)

	p, err := reg.Get("google")
	require.NoError(t, err)
	assert.Equal(t, model.ProviderGoogle, p.Name())

	_, err = reg.Get("microsoft")
	assert.ErrorIs(t, err, apperrors.ErrUnknownProvider)
	_, err = reg.Get("github")
	assert.ErrorIs(t, err, apperrors.ErrUnknownProvider)
	assert.Equal(t, []model.Provider{model.ProviderGoogle}, reg.Names())

	ms := NewMicrosoft("id", "secret", "http://cb", "")
	assert.Contains(t, ms.AuthCodeURL("s", oauth2.GenerateVerifier()), "login.microsoftonline.com/common/")
}

func TestStateStore(t *testing.T) {
	ctx := context.Background()
	store, mr := newStateStore(t)

	state, verifier, err := store.Issue(ctx, model.ProviderGoogle)
	require.NoError(t, err)
	assert.NotEmpty(t, state)
	assert.NotEqual(t, state, verifier)

	got, err := store.Consume(ctx, model.ProviderGoogle, state)
	require.NoError(t, err)
	assert.Equal(t, verifier, got)

	// one-time
	_, err = store.Consume(ctx, model.ProviderGoogle, state)
	assert.ErrorIs(t, err, apperrors.ErrInvalidOAuthState)

	// bound to the provider it was issued for
	state, _, err = store.Issue(ctx, model.ProviderGoogle)
	require.NoError(t, err)
	_, err = store.Consume(ctx, model.ProviderMicrosoft, state)
	assert.ErrorIs(t, err, apperrors.ErrInvalidOAuthState)

	// expires
	state, _, err = store.Issue(ctx, model.ProviderGoogle)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = store.Consume(ctx, model.ProviderGoogle, state)
	assert.ErrorIs(t, err, apperrors.ErrInvalidOAuthState)

	_, err = store.Consume(ctx, model.ProviderGoogle, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidOAuthState)
	_, err = store.Consume(ctx, model.ProviderGoogle, "forged")
	assert.ErrorIs(t, err, apperrors.ErrInvalidOAuthState)
}

func TestStateStore_RedisDown(t *testing.T) {
	ctx := context.Background()
	store, mr := newStateStore(t)
	mr.Close()

	_, _, err := store.Issue(ctx, model.ProviderGoogle)
	assert.Error(t, err)
	_, err = store.Consume(ctx, model.ProviderGoogle, "anything")
	assert.Error(t, err)
}

// MockAuthService is a mock implementation of service.AuthService.
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, email, password string) (*service.AuthResult, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AuthResult), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*service.AuthResult, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AuthResult), args.Error(1)
}

func (m *MockAuthService) FederatedCallback(ctx context.Context, identity service.FederatedIdentity) (*service.AuthResult, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AuthResult), args.Error(1)
}

func (m *MockAuthService) SetPassword(ctx context.Context, userID uint, currentPassword, newPassword string) error {
	args := m.Called(ctx, userID, currentPassword, newPassword)
	return args.Error(0)
}

// recordingStates remembers the last verifier issued so the fake IdP can
// expect it.
type recordingStates struct {
	StateStoreInterface
	idp *fakeIdP
}

func (r *recordingStates) Issue(ctx context.Context, provider model.Provider) (string, string, error) {
	state, verifier, err := r.StateStoreInterface.Issue(ctx, provider)
	r.idp.wantVerifier = verifier
	return state, verifier, err
}

func TestFlow_StartAndComplete(t *testing.T) {
	ctx := context.Background()
	idp := newFakeIdP(t, map[string]any{"sub": "g-77", "email": "Flow@X.com", "email_verified": true, "picture": "https://p/f.png"})
	store, _ := newStateStore(t)

	authSvc := new(MockAuthService)
	expected := &service.AuthResult{AccessToken: "tok", TokenType: "bearer", User: model.PublicUser{ID: 3}}
	authSvc.On("FederatedCallback", mock.Anything, service.FederatedIdentity{
		Provider:      model.ProviderGoogle,
		SubjectID:     "g-77",
		Email:         "Flow@X.com",
		EmailVerified: true,
		AvatarURL:     "https://p/f.png",
	}).Return(expected, nil).Once()

	states := &recordingStates{StateStoreInterface: store, idp: idp}
	flow := NewFlow(NewRegistry(idp.provider(model.ProviderGoogle, true)), states, authSvc, logging.Discard())

	redirect, err := flow.Start(ctx, "google")
	require.NoError(t, err)
	u, err := url.Parse(redirect)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	assert.Equal(t, oauth2.S256ChallengeFromVerifier(idp.wantVerifier), u.Query().Get("code_challenge"))

	result, err := flow.Complete(ctx, "google", state, "good-code")
	require.NoError(t, err)
	assert.Same(t, expected, result)

	// Replaying the same callback fails on the consumed state.
	_, err = flow.Complete(ctx, "google", state, "good-code")
	assert.ErrorIs(t, err, apperrors.ErrInvalidOAuthState)
	assert.Equal(t, 1, idp.tokenCalls)

	authSvc.AssertExpectations(t)
}

func TestFlow_Errors(t *testing.T) {
	ctx := context.Background()
	idp := newFakeIdP(t, map[string]any{"sub": "g-1", "email": "a@x.com", "email_verified": true})
	store, _ := newStateStore(t)
	authSvc := new(MockAuthService)
	flow := NewFlow(NewRegistry(idp.provider(model.ProviderGoogle, true)), store, authSvc, logging.Discard())

	_, err := flow.Start(ctx, "github")
	assert.ErrorIs(t, err, apperrors.ErrUnknownProvider)

	_, err = flow.Complete(ctx, "google", "never-issued", "good-code")
	assert.ErrorIs(t, err, apperrors.ErrInvalidOAuthState)

	state, verifier, err := store.Issue(ctx, model.ProviderGoogle)
	require.NoError(t, err)
	idp.wantVerifier = verifier
	_, err = flow.Complete(ctx, "google", state, "")
	assert.ErrorIs(t, err, apperrors.ErrProviderExchange)

	state, verifier, err = store.Issue(ctx, model.ProviderGoogle)
	require.NoError(t, err)
	idp.wantVerifier = verifier
	_, err = flow.Complete(ctx, "google", state, "bad-code")
	assert.ErrorIs(t, err, apperrors.ErrProviderExchange)

	authSvc.AssertNotCalled(t, "FederatedCallback", mock.Anything, mock.Anything)
}

func TestFlow_UnverifiedMicrosoftEmailCannotSignInAsExistingUser(t *testing.T) {
	ctx := context.Background()
	gdb, err := db.NewSQLite(filepath.Join(t.TempDir(), "flow.db"))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(gdb))

	log := logging.Discard()
	repo := repository.NewUserRepository(gdb)
	authSvc := service.NewAuthService(repo, auth.NewPasswordHasher(bcrypt.MinCost),
		auth.NewJWTService("0123456789abcdef0123456789abcdef"),
		service.NewIdentityResolver(repo, log), nil, time.Hour, log)

	victim, err := authSvc.Register(ctx, "victim@x.com", "secret123")
	require.NoError(t, err)

	idp := newFakeIdP(t, map[string]any{"sub": "other-tenant-sub", "email": "victim@x.com"})
	store, _ := newStateStore(t)
	states := &recordingStates{StateStoreInterface: store, idp: idp}
	flow := NewFlow(NewRegistry(idp.provider(model.ProviderMicrosoft, false)), states, authSvc, log)

	redirect, err := flow.Start(ctx, "microsoft")
	require.NoError(t, err)
	u, err := url.Parse(redirect)
	require.NoError(t, err)

	result, err := flow.Complete(ctx, "microsoft", u.Query().Get("state"), "good-code")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Nil(t, result)

	links, err := repo.ListProviderLinks(ctx, victim.User.ID)
	require.NoError(t, err)
	assert.Empty(t, links)
}
