package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/oauth2"
)

var (
	ErrInvalidTokenFormat = errors.New("invalid GitHub token format")
	ErrTokenRejected      = errors.New("GitHub rejected the token")
)

// classic (ghp_) 与 fine-grained (ghs_) token
var tokenPattern = regexp.MustCompile(`^gh[ps]_[a-zA-Z0-9]{36,255}$`)

type GithubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
	Name      string `json:"name"`
}

// ValidateTokenFormat 只检查格式，不发请求
func ValidateTokenFormat(token string) error {
	if !tokenPattern.MatchString(strings.TrimSpace(token)) {
		return ErrInvalidTokenFormat
	}
	return nil
}

// TokenVerifier 用 GitHub /user 接口验证 PAT 是否可用
type TokenVerifier struct {
	apiURL string
	client *http.Client
}

func NewTokenVerifier(apiURL string, client *http.Client) *TokenVerifier {
	if apiURL == "" {
		apiURL = "https://api.github.com"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &TokenVerifier{
		apiURL: strings.TrimRight(apiURL, "/"),
		client: client,
	}
}

// Verify 返回 token 所属用户
func (v *TokenVerifier) Verify(ctx context.Context, token string) (*GithubUser, error) {
	token = strings.TrimSpace(token)
	if err := ValidateTokenFormat(token); err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, v.client)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.apiURL+"/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrTokenRejected
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("github api error: status %d: %s", resp.StatusCode, string(body))
	}

	var user GithubUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	return &user, nil
}

// LoginURL 后端 GitHub OAuth 入口，登录完成后后端带 ?token= 回跳 redirectURI
func LoginURL(apiBaseURL, redirectURI, state string) string {
	q := url.Values{}
	if redirectURI != "" {
		q.Set("redirect_uri", redirectURI)
	}
	if state != "" {
		q.Set("state", state)
	}
	u := strings.TrimRight(apiBaseURL, "/") + "/auth/github"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}
