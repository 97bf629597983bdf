package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/devpulse_tracker/internal/pkg/apiclient"
	"github.com/qs3c/devpulse_tracker/internal/pkg/jwt"
	"github.com/qs3c/devpulse_tracker/internal/pkg/oauth"
	"github.com/qs3c/devpulse_tracker/internal/pkg/response"
	"github.com/qs3c/devpulse_tracker/internal/service"
)

// 调用方输入有误，原样返回错误文本
var paramErrors = []error{
	service.ErrMissingSelection,
	service.ErrMissingRepository,
	service.ErrMissingToken,
	oauth.ErrInvalidRepoURL,
	oauth.ErrInvalidTokenFormat,
	oauth.ErrTokenRejected,
	oauth.ErrEmptyState,
	oauth.ErrInvalidState,
	jwt.ErrMalformedToken,
	jwt.ErrTokenExpired,
}

// respondError 把服务层错误映射到统一响应
func respondError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrNotAuthenticated) || errors.Is(err, apiclient.ErrUnauthorized) {
		response.AuthError(c, "")
		return
	}
	if errors.Is(err, service.ErrCredentialRequired) {
		response.CredentialError(c, err.Error())
		return
	}
	for _, target := range paramErrors {
		if errors.Is(err, target) {
			response.ParamError(c, err.Error())
			return
		}
	}

	var actionErr *service.ActionError
	if errors.As(err, &actionErr) {
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			response.NotFoundError(c, actionErr.Message)
			return
		}
		response.UpstreamError(c, actionErr.Message)
		return
	}

	log.Printf("Gateway: %s %s failed: %v", c.Request.Method, c.FullPath(), err)
	response.ServerError(c, "")
}
