package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/devpulse_tracker/internal/model"
	"github.com/qs3c/devpulse_tracker/internal/model/dto"
	"github.com/qs3c/devpulse_tracker/internal/pkg/response"
	"github.com/qs3c/devpulse_tracker/internal/service"
)

type AnalysisHandler struct {
	tracker *service.TrackerService
}

func NewAnalysisHandler(tracker *service.TrackerService) *AnalysisHandler {
	return &AnalysisHandler{
		tracker: tracker,
	}
}

// List 本地读模型，可按状态过滤
// GET /api/v1/analyses?status=
func (h *AnalysisHandler) List(c *gin.Context) {
	items := h.tracker.ListAnalyses()

	if status := c.Query("status"); status != "" {
		filtered := make([]model.Analysis, 0, len(items))
		for _, a := range items {
			if string(a.Status) == status {
				filtered = append(filtered, a)
			}
		}
		items = filtered
	}

	response.SuccessList(c, len(items), items)
}

// Get 单条记录，本地没有时从服务端拉取
// GET /api/v1/analyses/:id
func (h *AnalysisHandler) Get(c *gin.Context) {
	a, err := h.tracker.GetAnalysis(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, a)
}

// Submit 提交分析
// POST /api/v1/analyses
func (h *AnalysisHandler) Submit(c *gin.Context) {
	var req dto.SubmitAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	result, err := h.tracker.SubmitAnalysis(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, result)
}

// Refresh 拉取完整记录
// POST /api/v1/analyses/:id/refresh
func (h *AnalysisHandler) Refresh(c *gin.Context) {
	a, err := h.tracker.RefreshAnalysis(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, a)
}

// TriggerFix 触发自动修复
// POST /api/v1/analyses/:id/fixes
func (h *AnalysisHandler) TriggerFix(c *gin.Context) {
	result, err := h.tracker.TriggerFix(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, result)
}

// Enter 进入视图：拉取列表并开始轮询
// POST /api/v1/tracking
func (h *AnalysisHandler) Enter(c *gin.Context) {
	if err := h.tracker.LoadAnalyses(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	items := h.tracker.ListAnalyses()
	response.SuccessList(c, len(items), items)
}

// Leave 离开视图：停止所有轮询
// DELETE /api/v1/tracking
func (h *AnalysisHandler) Leave(c *gin.Context) {
	stopped := h.tracker.Leave()
	response.Success(c, gin.H{"stopped": stopped})
}

// Active 当前轮询中的实体
// GET /api/v1/tracking
func (h *AnalysisHandler) Active(c *gin.Context) {
	keys := h.tracker.ActiveTrackers()
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.String())
	}
	response.SuccessList(c, len(out), out)
}

// Repos 可供分析的仓库
// GET /api/v1/repos
func (h *AnalysisHandler) Repos(c *gin.Context) {
	repos, err := h.tracker.ListRepos(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessList(c, len(repos), repos)
}
