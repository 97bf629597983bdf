package credential

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
)

// KeyGithubPAT 本地保存的 GitHub PAT
const KeyGithubPAT = "github_pat"

var ErrEmptyCredential = errors.New("credential is empty")

// Backend 键值存储，数据库和 Redis 各有一个实现
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Store 用户的 GitHub PAT，加密后保存。
// 读不出或解不开的值一律视为不存在。
type Store struct {
	backend Backend
	cipher  *Cipher
	key     string
}

func NewStore(backend Backend, cipher *Cipher) *Store {
	return &Store{backend: backend, cipher: cipher, key: KeyGithubPAT}
}

// HasCredential 不会返回错误，存储故障按没有凭据处理
func (s *Store) HasCredential(ctx context.Context) bool {
	_, ok := s.GetCredential(ctx)
	return ok
}

func (s *Store) GetCredential(ctx context.Context) (string, bool) {
	sealed, ok, err := s.backend.Get(ctx, s.key)
	if err != nil {
		log.Printf("Credential store: read failed: %v", err)
		return "", false
	}
	if !ok || sealed == "" {
		return "", false
	}

	token, err := s.cipher.Open(sealed)
	if err != nil {
		log.Printf("Credential store: stored token unreadable, treating as absent: %v", err)
		return "", false
	}
	if token == "" {
		return "", false
	}
	return token, true
}

func (s *Store) SaveCredential(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyCredential
	}

	sealed, err := s.cipher.Seal(token)
	if err != nil {
		return err
	}
	if err := s.backend.Set(ctx, s.key, sealed); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// RemoveCredential 之后 HasCredential 返回 false
func (s *Store) RemoveCredential(ctx context.Context) error {
	if err := s.backend.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("failed to remove credential: %w", err)
	}
	return nil
}
