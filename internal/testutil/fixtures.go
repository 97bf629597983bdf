package testutil

import (
	"fmt"
	"time"

	"github.com/qs3c/devpulse_tracker/internal/model"
)

// TestAnalysis 构造一条记录，可以用 opts 覆盖字段
func TestAnalysis(id string, status model.AnalysisStatus, opts ...func(*model.Analysis)) model.Analysis {
	now := time.Now()
	a := model.Analysis{
		ID:        id,
		RepoName:  fmt.Sprintf("repo-%s", id),
		RepoOwner: "octo",
		RepoURL:   fmt.Sprintf("https://github.com/octo/repo-%s", id),
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if status == model.AnalysisCompleted {
		a.Progress = 100
	}

	for _, opt := range opts {
		opt(&a)
	}
	return a
}

// WithScore 设置质量评分
func WithScore(score int, grade string) func(*model.Analysis) {
	return func(a *model.Analysis) {
		a.CodeQuality = &model.CodeQuality{Score: score, Grade: grade}
	}
}

// WithProgress 设置进度
func WithProgress(progress int) func(*model.Analysis) {
	return func(a *model.Analysis) {
		a.Progress = progress
	}
}

// WithFix 追加修复任务
func WithFix(jobID string, status model.FixJobStatus) func(*model.Analysis) {
	return func(a *model.Analysis) {
		a.Fixes = append(a.Fixes, model.FixJob{
			JobID:      jobID,
			AnalysisID: a.ID,
			Status:     status,
			CreatedAt:  time.Now(),
		})
		a.RecomputeFixFlags()
	}
}

// ProgressPatch 构造进度补丁
func ProgressPatch(status model.AnalysisStatus, progress int, message string) model.AnalysisPatch {
	return model.AnalysisPatch{Status: &status, Progress: &progress, Message: &message}
}

// FixPatch 构造修复任务补丁
func FixPatch(status model.FixJobStatus, progress int) model.FixJobPatch {
	return model.FixJobPatch{Status: &status, Progress: &progress}
}
