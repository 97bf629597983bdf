package service

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/devpulse_tracker/internal/pkg/credential"
	"github.com/qs3c/devpulse_tracker/internal/pkg/jwt"
	"github.com/qs3c/devpulse_tracker/internal/pkg/oauth"
	"github.com/qs3c/devpulse_tracker/internal/pkg/session"
	"github.com/qs3c/devpulse_tracker/internal/testutil"
)

func setupAuthService(t *testing.T, withStates bool) *AuthService {
	t.Helper()
	rdb, _ := testutil.SetupTestRedis(t)
	sess := session.NewStore(credential.NewRedisBackend(rdb))

	var states LoginStates
	if withStates {
		states = oauth.NewStateStore(rdb)
	}
	return NewAuthService(sess, states, "http://backend.test/api/v1", "http://127.0.0.1:8787/auth/callback")
}

func TestAuthService_LoginRoundTrip(t *testing.T) {
	svc := setupAuthService(t, true)
	ctx := context.Background()

	loginURL, err := svc.LoginURL(ctx, "/analyses/a1")
	require.NoError(t, err)

	u, err := url.Parse(loginURL)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/auth/github", u.Path)
	assert.Equal(t, "http://127.0.0.1:8787/auth/callback", u.Query().Get("redirect_uri"))
	state := u.Query().Get("state")
	require.Len(t, state, 48)

	token, err := jwt.GenerateToken(3, "secret", time.Hour)
	require.NoError(t, err)

	returnTo, err := svc.CompleteLogin(ctx, token, state)
	require.NoError(t, err)
	assert.Equal(t, "/analyses/a1", returnTo)
	assert.True(t, svc.IsAuthenticated(ctx))

	// state 只能用一次
	_, err = svc.CompleteLogin(ctx, token, state)
	assert.ErrorIs(t, err, oauth.ErrInvalidState)

	require.NoError(t, svc.Logout(ctx))
	assert.False(t, svc.IsAuthenticated(ctx))
}

func TestAuthService_CompleteLoginFailures(t *testing.T) {
	valid, err := jwt.GenerateToken(3, "secret", time.Hour)
	require.NoError(t, err)
	expired, err := jwt.GenerateToken(3, "secret", -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name       string
		withStates bool
		token      string
		state      string
		wantErr    error
	}{
		{name: "missing token", withStates: false, token: "", wantErr: ErrMissingToken},
		{name: "missing state", withStates: true, token: valid, state: "", wantErr: oauth.ErrEmptyState},
		{name: "unknown state", withStates: true, token: valid, state: "deadbeef", wantErr: oauth.ErrInvalidState},
		{name: "expired token", withStates: false, token: expired, wantErr: jwt.ErrTokenExpired},
		{name: "malformed token", withStates: false, token: "not.a.jwt", wantErr: jwt.ErrMalformedToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := setupAuthService(t, tt.withStates)
			_, err := svc.CompleteLogin(context.Background(), tt.token, tt.state)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.False(t, svc.IsAuthenticated(context.Background()))
		})
	}
}

func TestAuthService_LoginWithoutStates(t *testing.T) {
	svc := setupAuthService(t, false)

	loginURL, err := svc.LoginURL(context.Background(), "")
	require.NoError(t, err)
	u, err := url.Parse(loginURL)
	require.NoError(t, err)
	assert.Empty(t, u.Query().Get("state"))
}
