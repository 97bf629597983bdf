package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/devpulse_tracker/internal/pkg/response"
	"github.com/qs3c/devpulse_tracker/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Login 跳转到后端的 GitHub 登录
// GET /api/v1/auth/login?return_to=
func (h *AuthHandler) Login(c *gin.Context) {
	url, err := h.authService.LoginURL(c.Request.Context(), c.Query("return_to"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, url)
}

// Callback 后端登录完成后带 token 回跳
// GET /api/v1/auth/callback?token=&state=
func (h *AuthHandler) Callback(c *gin.Context) {
	returnTo, err := h.authService.CompleteLogin(c.Request.Context(), c.Query("token"), c.Query("state"))
	if err != nil {
		respondError(c, err)
		return
	}
	if returnTo != "" {
		c.Redirect(http.StatusFound, returnTo)
		return
	}
	response.Success(c, gin.H{"authenticated": true})
}

// Logout POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"authenticated": false})
}

// Status GET /api/v1/auth/status
func (h *AuthHandler) Status(c *gin.Context) {
	response.Success(c, gin.H{"authenticated": h.authService.IsAuthenticated(c.Request.Context())})
}
