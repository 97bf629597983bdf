package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/qs3c/devpulse_tracker/config"
	"github.com/qs3c/devpulse_tracker/internal/model"
	"github.com/qs3c/devpulse_tracker/internal/model/dto"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.APIConfig{BaseURL: server.URL + "/api/v1", Timeout: 2 * time.Second}
	return New(cfg, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "session-token"}), opts...)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestClient_SendsAuthAndRequestID(t *testing.T) {
	headers := make(chan http.Header, 1)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "analyzing", "progress": map[string]interface{}{"percentage": 40}})
	})

	_, err := c.GetAnalysisProgress(context.Background(), "a1")
	require.NoError(t, err)
	h := <-headers
	assert.Equal(t, "Bearer session-token", h.Get("Authorization"))
	assert.Len(t, h.Get("X-Request-ID"), 36)
}

func TestClient_GetAnalysisProgress(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/cline/analysis/a1/progress", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":   "analyzing",
			"progress": map[string]interface{}{"percentage": 40, "message": "Scanning files"},
		})
	})

	patch, err := c.GetAnalysisProgress(context.Background(), "a1")
	require.NoError(t, err)
	require.NotNil(t, patch.Status)
	assert.Equal(t, model.AnalysisAnalyzing, *patch.Status)
	require.NotNil(t, patch.Progress)
	assert.Equal(t, 40, *patch.Progress)
	require.NotNil(t, patch.Message)
	assert.Equal(t, "Scanning files", *patch.Message)
}

func TestClient_GetAnalysis(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/cline/analysis/a1", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"analysis": map[string]interface{}{
				"analysis_id":  "a1",
				"status":       "completed",
				"progress":     100,
				"code_quality": map[string]interface{}{"score": 62, "grade": "C"},
			},
		})
	})

	a, err := c.GetAnalysis(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", a.ID)
	assert.Equal(t, model.AnalysisCompleted, a.Status)
	score, ok := a.QualityScore()
	assert.True(t, ok)
	assert.Equal(t, 62, score)
}

func TestClient_ListAnalyses(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/cline/all-analysis", r.URL.Path)
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		assert.Equal(t, "", r.URL.Query().Get("offset"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"analyses": []map[string]interface{}{
				{"analysis_id": "a2", "status": "analyzing"},
				{"analysis_id": "a1", "status": "completed", "fix_jobs": []map[string]interface{}{{"job_id": "j1", "status": "fixing"}}},
			},
		})
	})

	items, err := c.ListAnalyses(context.Background(), ListOptions{Limit: 50})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a2", items[0].ID)
	assert.Equal(t, "a1", items[1].ID)
	require.Len(t, items[1].Fixes, 1)
	assert.Equal(t, model.FixJobFixing, items[1].Fixes[0].Status)
}

func TestClient_SubmitAnalysis(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req dto.SubmitAnalysisRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://github.com/o/r", req.RepoURL)
		assert.Equal(t, "r", req.RepoName)
		assert.Equal(t, "o", req.Owner)

		writeJSON(w, http.StatusOK, map[string]interface{}{"analysisId": "a1", "message": "queued"})
	})

	id, err := c.SubmitAnalysis(context.Background(), dto.SubmitAnalysisRequest{RepoURL: "https://github.com/o/r", RepoName: "r", Owner: "o"})
	require.NoError(t, err)
	assert.Equal(t, "a1", id)
}

func TestClient_SubmitAnalysisMissingID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"message": "queued"})
	})

	_, err := c.SubmitAnalysis(context.Background(), dto.SubmitAnalysisRequest{})
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestClient_TriggerFixOmitsEmptyToken(t *testing.T) {
	bodies := make(chan []byte, 1)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies <- body
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "jobId": "j1", "tokenSource": "session"})
	})

	resp, err := c.TriggerFix(context.Background(), dto.TriggerFixRequest{AnalysisID: "a1"})
	require.NoError(t, err)
	assert.Equal(t, "j1", resp.GetJobID())

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(<-bodies, &raw))
	assert.Equal(t, "a1", raw["analysisId"])
	assert.NotContains(t, raw, "accessToken")
}

func TestClient_GetFixJobStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/cline/autonomous-fix/j1", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"job": map[string]interface{}{"status": "completed", "progress": 100, "pr_url": "https://github.com/o/r/pull/3", "pr_number": 3},
		})
	})

	patch, err := c.GetFixJobStatus(context.Background(), "j1")
	require.NoError(t, err)
	assert.True(t, patch.IsTerminal())
	require.NotNil(t, patch.PRNumber)
	assert.Equal(t, 3, *patch.PRNumber)
}

func TestClient_ServerErrorCarriesMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "Repository already being analyzed"})
	})

	_, err := c.SubmitAnalysis(context.Background(), dto.SubmitAnalysisRequest{})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.False(t, apiErr.Temporary())
	assert.Equal(t, "Repository already being analyzed", UserMessage(err, "Failed to start analysis"))
}

func TestClient_ServerErrorWithoutBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.GetAnalysisProgress(context.Background(), "a1")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.Temporary())
	assert.Equal(t, "Failed to start analysis", UserMessage(err, "Failed to start analysis"))
}

func TestClient_UnauthorizedClearsSession(t *testing.T) {
	var cleared int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"message": "token expired"})
	}, WithUnauthorizedHook(func() { atomic.AddInt32(&cleared, 1) }))

	_, err := c.ListAnalyses(context.Background(), ListOptions{})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(1), atomic.LoadInt32(&cleared))
}

func TestClient_TokenSourceError(t *testing.T) {
	noSession := errors.New("no session")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	}))
	defer server.Close()

	c := New(config.APIConfig{BaseURL: server.URL}, failingSource{err: noSession})
	_, err := c.ListRepos(context.Background())

	assert.ErrorIs(t, err, noSession)
}

func TestClient_TransportErrorIsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := New(config.APIConfig{BaseURL: url, Timeout: time.Second}, nil)
	_, err := c.GetAnalysisProgress(context.Background(), "a1")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 0, apiErr.StatusCode)
	assert.True(t, apiErr.Temporary())
	assert.Equal(t, "fallback", UserMessage(err, "fallback"))
}

func TestClient_ServerToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/github/token/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "hasToken": true})
	})
	mux.HandleFunc("/github/token", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "githubUsername": "octo"})
		case http.MethodDelete:
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := New(config.APIConfig{BaseURL: server.URL}, nil)
	ctx := context.Background()

	status, err := c.ServerTokenStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.ServerHoldsToken())

	saved, err := c.SaveServerToken(ctx, "ghp_x")
	require.NoError(t, err)
	assert.Equal(t, "octo", saved.GithubUsername)

	assert.NoError(t, c.DeleteServerToken(ctx))
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"repos": []interface{}{}})
	})
	c2 := New(config.APIConfig{BaseURL: c.baseURL, RateLimit: 0.001, Burst: 1}, nil)

	_, err := c2.ListRepos(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c2.ListRepos(ctx)
	assert.Error(t, err)
}

type failingSource struct{ err error }

func (f failingSource) Token() (*oauth2.Token, error) { return nil, f.err }
