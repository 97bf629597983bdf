package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/qs3c/devpulse_tracker/internal/pkg/oauth"
)

var ErrMissingToken = errors.New("missing token in callback")

// SessionStore 会话 token 的读写
type SessionStore interface {
	IsAuthenticated(ctx context.Context) bool
	SetToken(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// LoginStates 登录 state 的签发与核销
type LoginStates interface {
	Issue(ctx context.Context, returnTo string) (string, error)
	Consume(ctx context.Context, state string) (string, error)
}

// AuthService 通过后端的 GitHub OAuth 登录，回调里拿到会话 token
type AuthService struct {
	session     SessionStore
	states      LoginStates
	apiBaseURL  string
	callbackURL string
}

// NewAuthService states 为空时不校验 state
func NewAuthService(session SessionStore, states LoginStates, apiBaseURL, callbackURL string) *AuthService {
	return &AuthService{
		session:     session,
		states:      states,
		apiBaseURL:  apiBaseURL,
		callbackURL: callbackURL,
	}
}

// LoginURL 生成跳转到后端 OAuth 入口的地址
func (s *AuthService) LoginURL(ctx context.Context, returnTo string) (string, error) {
	state := ""
	if s.states != nil {
		var err error
		state, err = s.states.Issue(ctx, returnTo)
		if err != nil {
			return "", err
		}
	}
	return oauth.LoginURL(s.apiBaseURL, s.callbackURL, state), nil
}

// CompleteLogin 处理回调，返回登录前要回到的地址
func (s *AuthService) CompleteLogin(ctx context.Context, token, state string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}

	returnTo := ""
	if s.states != nil {
		var err error
		returnTo, err = s.states.Consume(ctx, state)
		if err != nil {
			return "", err
		}
	}

	if err := s.session.SetToken(ctx, token); err != nil {
		return "", err
	}
	log.Println("Login completed, session stored")
	return returnTo, nil
}

// Logout 清除会话
func (s *AuthService) Logout(ctx context.Context) error {
	return s.session.Clear(ctx)
}

func (s *AuthService) IsAuthenticated(ctx context.Context) bool {
	return s.session.IsAuthenticated(ctx)
}
