package service

import (
	"context"
	"log"

	"github.com/qs3c/devpulse_tracker/internal/model/dto"
	"github.com/qs3c/devpulse_tracker/internal/pkg/oauth"
)

const (
	msgTokenSyncFailed   = "Failed to save token to server"
	msgTokenDeleteFailed = "Failed to remove token from server"
)

// TokenVerifier 向 GitHub 校验 PAT
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*oauth.GithubUser, error)
}

// TokenServer 服务端保存的 PAT
type TokenServer interface {
	SaveServerToken(ctx context.Context, token string) (*dto.SaveTokenResponse, error)
	ServerTokenStatus(ctx context.Context) (*dto.TokenStatusResponse, error)
	DeleteServerToken(ctx context.Context) error
}

// CredentialService 管理本地 PAT，可选同步到服务端
type CredentialService struct {
	creds    Credentials
	verifier TokenVerifier
	server   TokenServer
}

func NewCredentialService(creds Credentials, verifier TokenVerifier, server TokenServer) *CredentialService {
	return &CredentialService{
		creds:    creds,
		verifier: verifier,
		server:   server,
	}
}

// Save 校验格式和有效性后保存
func (s *CredentialService) Save(ctx context.Context, req dto.SaveCredentialRequest) (*dto.CredentialStatus, error) {
	if err := oauth.ValidateTokenFormat(req.Token); err != nil {
		return nil, err
	}

	status := &dto.CredentialStatus{HasCredential: true}
	if !req.SkipVerify && s.verifier != nil {
		user, err := s.verifier.Verify(ctx, req.Token)
		if err != nil {
			return nil, err
		}
		status.GithubLogin = user.Login
	}

	if err := s.creds.SaveCredential(ctx, req.Token); err != nil {
		return nil, err
	}
	log.Printf("Credential saved")

	if req.SyncToServer && s.server != nil {
		resp, err := s.server.SaveServerToken(ctx, req.Token)
		if err != nil {
			return status, newActionError("save_token", msgTokenSyncFailed, err)
		}
		if status.GithubLogin == "" {
			status.GithubLogin = resp.GithubUsername
		}
	}
	return status, nil
}

// Status 只反映本地是否保存了可用的 PAT
func (s *CredentialService) Status(ctx context.Context) *dto.CredentialStatus {
	return &dto.CredentialStatus{HasCredential: s.creds.HasCredential(ctx)}
}

// ServerStatus 服务端是否保存了 PAT
func (s *CredentialService) ServerStatus(ctx context.Context) (*dto.TokenStatusResponse, error) {
	resp, err := s.server.ServerTokenStatus(ctx)
	if err != nil {
		return nil, newActionError("token_status", "Failed to check token status", err)
	}
	return resp, nil
}

// Remove 删除本地 PAT；alsoServer 时同时删除服务端保存的 PAT
func (s *CredentialService) Remove(ctx context.Context, alsoServer bool) error {
	if err := s.creds.RemoveCredential(ctx); err != nil {
		return err
	}
	log.Printf("Credential removed")

	if alsoServer && s.server != nil {
		if err := s.server.DeleteServerToken(ctx); err != nil {
			return newActionError("delete_token", msgTokenDeleteFailed, err)
		}
	}
	return nil
}
