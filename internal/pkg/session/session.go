package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/qs3c/devpulse_tracker/internal/pkg/credential"
	"github.com/qs3c/devpulse_tracker/internal/pkg/jwt"
)

const keySessionToken = "devpulse_token"

var ErrNoSession = errors.New("not authenticated")

// Store 后端签发的会话 token
type Store struct {
	backend credential.Backend
	now     func() time.Time
}

func NewStore(backend credential.Backend) *Store {
	return &Store{backend: backend, now: time.Now}
}

// Token 返回未过期的 token
func (s *Store) Token(ctx context.Context) (string, bool) {
	token, ok, err := s.backend.Get(ctx, keySessionToken)
	if err != nil {
		log.Printf("Session store: read failed: %v", err)
		return "", false
	}
	if !ok || token == "" {
		return "", false
	}
	if _, err := jwt.CheckExpiry(token, s.now()); err != nil {
		return "", false
	}
	return token, true
}

// IsAuthenticated 有 token 且未过期
func (s *Store) IsAuthenticated(ctx context.Context) bool {
	_, ok := s.Token(ctx)
	return ok
}

// SetToken 登录回调拿到 token 后保存
func (s *Store) SetToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if _, err := jwt.CheckExpiry(token, s.now()); err != nil {
		return err
	}
	if err := s.backend.Set(ctx, keySessionToken, token); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Clear 退出登录或服务端返回 401
func (s *Store) Clear(ctx context.Context) error {
	return s.backend.Delete(ctx, keySessionToken)
}

// ClearOnUnauthorized 作为 apiclient 的 401 回调
func (s *Store) ClearOnUnauthorized() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Clear(ctx); err != nil {
		log.Printf("Session store: failed to clear after 401: %v", err)
		return
	}
	log.Println("Session store: cleared session after 401")
}

// TokenSource 给 oauth2.Transport 使用，每次请求读取最新 token
func (s *Store) TokenSource() oauth2.TokenSource {
	return tokenSource{s}
}

type tokenSource struct {
	s *Store
}

func (t tokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	token, ok := t.s.Token(ctx)
	if !ok {
		return nil, ErrNoSession
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}
