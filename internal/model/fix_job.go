package model

import (
	"time"
)

// FixJobStatus 自动修复任务状态
type FixJobStatus string

const (
	FixJobInitializing FixJobStatus = "initializing"
	FixJobAnalyzing    FixJobStatus = "analyzing"
	FixJobCloning      FixJobStatus = "cloning"
	FixJobFixing       FixJobStatus = "fixing"
	FixJobCommitting   FixJobStatus = "committing"
	FixJobPushing      FixJobStatus = "pushing"
	FixJobCreatingPR   FixJobStatus = "creating_pr"
	FixJobCompleted    FixJobStatus = "completed"
	FixJobFailed       FixJobStatus = "failed"
)

func (s FixJobStatus) IsTerminal() bool {
	return s == FixJobCompleted || s == FixJobFailed
}

// HighImpactIssue 本次修复针对的高影响问题
type HighImpactIssue struct {
	ID          string `json:"id"`
	Type        string `json:"type"`     // SECURITY, BUG, CODE_QUALITY
	Severity    string `json:"severity"` // critical, high, medium, low
	Title       string `json:"title"`
	Description string `json:"description"`
	File        string `json:"file,omitempty"`
	Priority    int    `json:"priority"`
	Fixable     bool   `json:"fixable"`
}

type FixJob struct {
	JobID            string            `json:"job_id"`
	AnalysisID       string            `json:"analysis_id"`
	Status           FixJobStatus      `json:"status"`
	Progress         int               `json:"progress"`
	Message          string            `json:"message,omitempty"`
	PRURL            string            `json:"pr_url,omitempty"`
	PRNumber         int               `json:"pr_number,omitempty"`
	HighImpactIssues []HighImpactIssue `json:"high_impact_issues,omitempty"`
	FilesModified    []string          `json:"files_modified,omitempty"`
	Error            string            `json:"error,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	Provisional      bool              `json:"provisional"`
}

// NewFixJobPlaceholder 触发修复成功后立即插入的占位任务
func NewFixJobPlaceholder(analysisID, jobID string, now time.Time) FixJob {
	return FixJob{
		JobID:       jobID,
		AnalysisID:  analysisID,
		Status:      FixJobInitializing,
		CreatedAt:   now,
		Provisional: true,
	}
}

func (f *FixJob) Clone() FixJob {
	out := *f
	if f.HighImpactIssues != nil {
		out.HighImpactIssues = append([]HighImpactIssue(nil), f.HighImpactIssues...)
	}
	if f.FilesModified != nil {
		out.FilesModified = append([]string(nil), f.FilesModified...)
	}
	if f.CompletedAt != nil {
		t := *f.CompletedAt
		out.CompletedAt = &t
	}
	return out
}
