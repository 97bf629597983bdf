package api

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/devpulse_tracker/config"
	"github.com/qs3c/devpulse_tracker/internal/api/handler"
	"github.com/qs3c/devpulse_tracker/internal/api/middleware"
)

type Router struct {
	authHandler       *handler.AuthHandler
	analysisHandler   *handler.AnalysisHandler
	credentialHandler *handler.CredentialHandler
	websocketHandler  *handler.WebSocketHandler
	session           middleware.SessionChecker
	cfg               *config.Config
}

func NewRouter(
	authHandler *handler.AuthHandler,
	analysisHandler *handler.AnalysisHandler,
	credentialHandler *handler.CredentialHandler,
	websocketHandler *handler.WebSocketHandler,
	session middleware.SessionChecker,
	cfg *config.Config,
) *Router {
	return &Router{
		authHandler:       authHandler,
		analysisHandler:   analysisHandler,
		credentialHandler: credentialHandler,
		websocketHandler:  websocketHandler,
		session:           session,
		cfg:               cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	api := engine.Group("/api/v1")
	{
		// WebSocket，只推送本地读模型
		api.GET("/ws", r.websocketHandler.Handle)

		// 登录
		auth := api.Group("/auth")
		{
			auth.GET("/login", r.authHandler.Login)
			auth.GET("/callback", r.authHandler.Callback)
			auth.POST("/logout", r.authHandler.Logout)
			auth.GET("/status", r.authHandler.Status)
		}

		// 本地读模型不需要会话
		api.GET("/analyses", r.analysisHandler.List)
		api.GET("/tracking", r.analysisHandler.Active)
		api.DELETE("/tracking", r.analysisHandler.Leave)

		// PAT 只存在本地
		api.GET("/credential", r.credentialHandler.Status)
		api.PUT("/credential", r.credentialHandler.Save)
		api.DELETE("/credential", r.credentialHandler.Remove)

		// 会转发到后端的接口
		authenticated := api.Group("")
		authenticated.Use(middleware.RequireSession(r.session))
		{
			authenticated.POST("/tracking", r.analysisHandler.Enter)
			authenticated.GET("/repos", r.analysisHandler.Repos)
			authenticated.GET("/credential/server", r.credentialHandler.ServerStatus)

			analyses := authenticated.Group("/analyses")
			{
				analyses.POST("", r.analysisHandler.Submit)
				analyses.GET("/:id", r.analysisHandler.Get)
				analyses.POST("/:id/refresh", r.analysisHandler.Refresh)
				analyses.POST("/:id/fixes", r.analysisHandler.TriggerFix)
			}
		}
	}

	return engine
}
