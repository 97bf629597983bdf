package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/devpulse_tracker/internal/model/dto"
	"github.com/qs3c/devpulse_tracker/internal/pkg/response"
	"github.com/qs3c/devpulse_tracker/internal/service"
)

type CredentialHandler struct {
	credentials *service.CredentialService
}

func NewCredentialHandler(credentials *service.CredentialService) *CredentialHandler {
	return &CredentialHandler{
		credentials: credentials,
	}
}

// Status GET /api/v1/credential
func (h *CredentialHandler) Status(c *gin.Context) {
	response.Success(c, h.credentials.Status(c.Request.Context()))
}

// Save 保存 PAT
// PUT /api/v1/credential
func (h *CredentialHandler) Save(c *gin.Context) {
	var req dto.SaveCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	status, err := h.credentials.Save(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, status)
}

// Remove 删除 PAT，?server=true 时同时删除服务端保存的 PAT
// DELETE /api/v1/credential
func (h *CredentialHandler) Remove(c *gin.Context) {
	alsoServer := c.Query("server") == "true"
	if err := h.credentials.Remove(c.Request.Context(), alsoServer); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, h.credentials.Status(c.Request.Context()))
}

// ServerStatus GET /api/v1/credential/server
func (h *CredentialHandler) ServerStatus(c *gin.Context) {
	status, err := h.credentials.ServerStatus(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{
		"has_token":       status.ServerHoldsToken(),
		"github_username": status.GithubUsername,
	})
}
