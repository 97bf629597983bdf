package model

import (
	"encoding/json"
	"time"
)

// AnalysisStatus 分析状态，服务端返回的任意字符串都原样保存
type AnalysisStatus string

const (
	AnalysisPending     AnalysisStatus = "pending"
	AnalysisCloning     AnalysisStatus = "cloning"
	AnalysisAnalyzing   AnalysisStatus = "analyzing"
	AnalysisAIAnalyzing AnalysisStatus = "ai_analyzing"
	AnalysisCompleted   AnalysisStatus = "completed"
	AnalysisFailed      AnalysisStatus = "failed"
)

// IsTerminal completed 或 failed
func (s AnalysisStatus) IsTerminal() bool {
	return s == AnalysisCompleted || s == AnalysisFailed
}

// CodeQuality 质量评分
type CodeQuality struct {
	Score int    `json:"score"`
	Grade string `json:"grade"`
}

// Structure 项目结构摘要
type Structure struct {
	TotalFiles int `json:"totalFiles"`
}

type Analysis struct {
	ID          string         `json:"analysis_id"`
	RepoName    string         `json:"repo_name"`
	RepoOwner   string         `json:"repo_owner"`
	RepoURL     string         `json:"repo_url"`
	Status      AnalysisStatus `json:"status"`
	Progress    int            `json:"progress"`
	Message     string         `json:"message"`
	Error       string         `json:"error,omitempty"`
	CodeQuality *CodeQuality   `json:"code_quality,omitempty"`
	Structure   *Structure     `json:"structure,omitempty"`
	// AIAnalysis 对引擎不透明，只做透传
	AIAnalysis  json.RawMessage `json:"ai_analysis,omitempty"`
	Fixes       []FixJob        `json:"fixes"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`

	HasActiveFixes    bool `json:"hasActiveFixes"`
	HasCompletedFixes bool `json:"hasCompletedFixes"`

	// Provisional 客户端占位记录，尚未得到服务端确认
	Provisional bool `json:"provisional"`
}

// NewPlaceholder 提交成功后立即插入的占位记录
func NewPlaceholder(id, repoName, owner, repoURL string, now time.Time) Analysis {
	return Analysis{
		ID:          id,
		RepoName:    repoName,
		RepoOwner:   owner,
		RepoURL:     repoURL,
		Status:      AnalysisPending,
		Progress:    0,
		CreatedAt:   now,
		UpdatedAt:   now,
		Provisional: true,
	}
}

// QualityScore 返回评分，未完成时 ok=false
func (a *Analysis) QualityScore() (int, bool) {
	if a.CodeQuality == nil {
		return 0, false
	}
	return a.CodeQuality.Score, true
}

// FindFix 按 job id 查找修复任务下标
func (a *Analysis) FindFix(jobID string) int {
	for i := range a.Fixes {
		if a.Fixes[i].JobID == jobID {
			return i
		}
	}
	return -1
}

// RecomputeFixFlags 根据修复任务列表重新计算派生标记
func (a *Analysis) RecomputeFixFlags() {
	a.HasActiveFixes = false
	a.HasCompletedFixes = false
	for i := range a.Fixes {
		if a.Fixes[i].Status.IsTerminal() {
			if a.Fixes[i].Status == FixJobCompleted {
				a.HasCompletedFixes = true
			}
			continue
		}
		a.HasActiveFixes = true
	}
}

// Clone 深拷贝，读模型对外只暴露副本
func (a *Analysis) Clone() Analysis {
	out := *a
	if a.CodeQuality != nil {
		cq := *a.CodeQuality
		out.CodeQuality = &cq
	}
	if a.Structure != nil {
		st := *a.Structure
		out.Structure = &st
	}
	if a.AIAnalysis != nil {
		out.AIAnalysis = append(json.RawMessage(nil), a.AIAnalysis...)
	}
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		out.CompletedAt = &t
	}
	if a.Fixes != nil {
		out.Fixes = make([]FixJob, len(a.Fixes))
		for i := range a.Fixes {
			out.Fixes[i] = a.Fixes[i].Clone()
		}
	}
	return out
}
