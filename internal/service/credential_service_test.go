package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/devpulse_tracker/internal/model/dto"
	"github.com/qs3c/devpulse_tracker/internal/pkg/credential"
	"github.com/qs3c/devpulse_tracker/internal/pkg/oauth"
	"github.com/qs3c/devpulse_tracker/internal/testutil"
)

func newGithubStub(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testPAT {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(status)
		if status == http.StatusOK {
			w.Write([]byte(`{"id": 1, "login": "octocat"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newCredentialService(t *testing.T, githubStatus int) (*CredentialService, *credential.Store, *testutil.FakeJobAPI) {
	t.Helper()
	rdb, _ := testutil.SetupTestRedis(t)
	creds := credential.NewStore(credential.NewRedisBackend(rdb), credential.NewCipher("test-key"))
	api := testutil.NewFakeJobAPI()
	gh := newGithubStub(t, githubStatus)
	verifier := oauth.NewTokenVerifier(gh.URL, gh.Client())
	return NewCredentialService(creds, verifier, api), creds, api
}

func TestCredentialService_Save(t *testing.T) {
	svc, creds, api := newCredentialService(t, http.StatusOK)
	ctx := context.Background()

	status, err := svc.Save(ctx, dto.SaveCredentialRequest{Token: testPAT})
	require.NoError(t, err)
	assert.True(t, status.HasCredential)
	assert.Equal(t, "octocat", status.GithubLogin)
	assert.Equal(t, 0, api.Calls("save_token"))

	got, ok := creds.GetCredential(ctx)
	require.True(t, ok)
	assert.Equal(t, testPAT, got)
	assert.True(t, svc.Status(ctx).HasCredential)
}

func TestCredentialService_SaveSyncsToServer(t *testing.T) {
	svc, _, api := newCredentialService(t, http.StatusOK)
	ctx := context.Background()

	_, err := svc.Save(ctx, dto.SaveCredentialRequest{Token: testPAT, SyncToServer: true})
	require.NoError(t, err)
	assert.Equal(t, 1, api.Calls("save_token"))

	server, err := svc.ServerStatus(ctx)
	require.NoError(t, err)
	assert.True(t, server.ServerHoldsToken())
}

func TestCredentialService_SaveRejected(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		token   string
		wantErr error
	}{
		{name: "bad format", status: http.StatusOK, token: "not-a-token", wantErr: oauth.ErrInvalidTokenFormat},
		{name: "github rejects", status: http.StatusForbidden, token: testPAT, wantErr: oauth.ErrTokenRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, creds, _ := newCredentialService(t, tt.status)
			ctx := context.Background()

			_, err := svc.Save(ctx, dto.SaveCredentialRequest{Token: tt.token})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.False(t, creds.HasCredential(ctx))
		})
	}
}

func TestCredentialService_SkipVerify(t *testing.T) {
	svc, creds, _ := newCredentialService(t, http.StatusForbidden)
	ctx := context.Background()

	status, err := svc.Save(ctx, dto.SaveCredentialRequest{Token: testPAT, SkipVerify: true})
	require.NoError(t, err)
	assert.Empty(t, status.GithubLogin)
	assert.True(t, creds.HasCredential(ctx))
}

func TestCredentialService_Remove(t *testing.T) {
	svc, creds, api := newCredentialService(t, http.StatusOK)
	ctx := context.Background()
	require.NoError(t, creds.SaveCredential(ctx, testPAT))

	require.NoError(t, svc.Remove(ctx, false))
	assert.False(t, creds.HasCredential(ctx))
	assert.Equal(t, 0, api.Calls("delete_token"))

	require.NoError(t, svc.Remove(ctx, true))
	assert.Equal(t, 1, api.Calls("delete_token"))
}
