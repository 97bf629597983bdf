package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/qs3c/devpulse_tracker/internal/model"
)

// 服务端同一个概念会以两种命名出现（snake_case / camelCase），
// 这里把所有入站数据统一成 model 里的规范结构，歧义不越过这一层。

var ErrEmptyPayload = errors.New("empty payload")

// AnalysisPayload 分析记录的入站结构
type AnalysisPayload struct {
	AnalysisID      string `json:"analysis_id"`
	AnalysisIDCamel string `json:"analysisId"`
	ID              string `json:"id"`

	RepoName       string `json:"repo_name"`
	RepoNameCamel  string `json:"repoName"`
	RepoOwner      string `json:"repo_owner"`
	RepoOwnerCamel string `json:"repoOwner"`
	RepoURL        string `json:"repo_url"`
	RepoURLCamel   string `json:"repoUrl"`

	Status   string          `json:"status"`
	Progress json.RawMessage `json:"progress"`
	Message  string          `json:"message"`
	Error    string          `json:"error"`

	CodeQuality      *model.CodeQuality `json:"code_quality"`
	CodeQualityCamel *model.CodeQuality `json:"codeQuality"`
	QualityScore     *int               `json:"quality_score"`
	Grade            string             `json:"grade"`

	Structure       json.RawMessage `json:"structure"`
	AIAnalysis      json.RawMessage `json:"ai_analysis"`
	AIAnalysisCamel json.RawMessage `json:"aiAnalysis"`

	Fixes   []FixJobPayload `json:"fixes"`
	FixJobs []FixJobPayload `json:"fix_jobs"`

	HasActiveFixes         *bool `json:"hasActiveFixes"`
	HasActiveFixesSnake    *bool `json:"has_active_fixes"`
	HasCompletedFixes      *bool `json:"hasCompletedFixes"`
	HasCompletedFixesSnake *bool `json:"has_completed_fixes"`

	CreatedAt        string `json:"created_at"`
	CreatedAtCamel   string `json:"createdAt"`
	UpdatedAt        string `json:"updated_at"`
	UpdatedAtCamel   string `json:"updatedAt"`
	CompletedAt      string `json:"completed_at"`
	CompletedAtCamel string `json:"completedAt"`
}

// ToModel 转换为规范结构
func (p *AnalysisPayload) ToModel() model.Analysis {
	a := model.Analysis{
		ID:        firstNonEmpty(p.AnalysisID, p.AnalysisIDCamel, p.ID),
		RepoName:  firstNonEmpty(p.RepoName, p.RepoNameCamel),
		RepoOwner: firstNonEmpty(p.RepoOwner, p.RepoOwnerCamel),
		RepoURL:   firstNonEmpty(p.RepoURL, p.RepoURLCamel),
		Status:    model.AnalysisStatus(p.Status),
		Message:   p.Message,
		Error:     p.Error,
		CreatedAt: parseTime(firstNonEmpty(p.CreatedAt, p.CreatedAtCamel)),
		UpdatedAt: parseTime(firstNonEmpty(p.UpdatedAt, p.UpdatedAtCamel)),
	}

	if pct, msg := decodeProgress(p.Progress); pct != nil {
		a.Progress = *pct
		if a.Message == "" && msg != nil {
			a.Message = *msg
		}
	}

	switch {
	case p.CodeQuality != nil:
		cq := *p.CodeQuality
		a.CodeQuality = &cq
	case p.CodeQualityCamel != nil:
		cq := *p.CodeQualityCamel
		a.CodeQuality = &cq
	case p.QualityScore != nil:
		a.CodeQuality = &model.CodeQuality{Score: *p.QualityScore, Grade: p.Grade}
	}

	a.Structure = decodeStructure(p.Structure)

	if ai := firstRaw(p.AIAnalysis, p.AIAnalysisCamel); ai != nil {
		a.AIAnalysis = append(json.RawMessage(nil), ai...)
	}

	if completed := parseTime(firstNonEmpty(p.CompletedAt, p.CompletedAtCamel)); !completed.IsZero() {
		a.CompletedAt = &completed
	}

	fixes := p.Fixes
	if fixes == nil {
		fixes = p.FixJobs
	}
	if fixes != nil {
		a.Fixes = make([]model.FixJob, 0, len(fixes))
		for i := range fixes {
			job := fixes[i].ToModel()
			if job.AnalysisID == "" {
				job.AnalysisID = a.ID
			}
			a.Fixes = append(a.Fixes, job)
		}
		a.RecomputeFixFlags()
	} else {
		// 列表接口有时不带修复任务，只带标记
		a.HasActiveFixes = firstBool(p.HasActiveFixes, p.HasActiveFixesSnake)
		a.HasCompletedFixes = firstBool(p.HasCompletedFixes, p.HasCompletedFixesSnake)
	}

	return a
}

// ProgressPayload 轻量进度接口 {status, progress:{percentage, message}}
type ProgressPayload struct {
	Status   *string         `json:"status"`
	Progress json.RawMessage `json:"progress"`
	Message  *string         `json:"message"`
	Error    *string         `json:"error"`
}

// ToPatch 只包含服务端实际返回的字段
func (p *ProgressPayload) ToPatch() model.AnalysisPatch {
	var patch model.AnalysisPatch
	if p.Status != nil {
		s := model.AnalysisStatus(*p.Status)
		patch.Status = &s
	}
	pct, msg := decodeProgress(p.Progress)
	patch.Progress = pct
	if msg != nil {
		patch.Message = msg
	} else if p.Message != nil {
		patch.Message = p.Message
	}
	if p.Error != nil {
		patch.Error = p.Error
	}
	return patch
}

// FixJobPayload 修复任务入站结构
type FixJobPayload struct {
	JobID           *string `json:"job_id"`
	JobIDCamel      *string `json:"jobId"`
	AnalysisID      *string `json:"analysis_id"`
	AnalysisIDCamel *string `json:"analysisId"`

	Status   *string         `json:"status"`
	Progress json.RawMessage `json:"progress"`
	Message  *string         `json:"message"`
	Error    *string         `json:"error"`

	PRURL         *string `json:"pr_url"`
	PRURLCamel    *string `json:"prUrl"`
	PRNumber      *int    `json:"pr_number"`
	PRNumberCamel *int    `json:"prNumber"`

	HighImpactIssues      []model.HighImpactIssue `json:"high_impact_issues"`
	HighImpactIssuesCamel []model.HighImpactIssue `json:"highImpactIssues"`
	FilesModified         []string                `json:"files_modified"`
	FilesModifiedCamel    []string                `json:"filesModified"`

	CreatedAt        string `json:"created_at"`
	CreatedAtCamel   string `json:"createdAt"`
	CompletedAt      string `json:"completed_at"`
	CompletedAtCamel string `json:"completedAt"`
}

func (p *FixJobPayload) ToPatch() model.FixJobPatch {
	var patch model.FixJobPatch
	if p.Status != nil {
		s := model.FixJobStatus(*p.Status)
		patch.Status = &s
	}
	pct, msg := decodeProgress(p.Progress)
	patch.Progress = pct
	patch.Message = p.Message
	if patch.Message == nil {
		patch.Message = msg
	}
	patch.PRURL = firstStrPtr(p.PRURL, p.PRURLCamel)
	patch.PRNumber = firstIntPtr(p.PRNumber, p.PRNumberCamel)
	patch.Error = p.Error
	if p.HighImpactIssues != nil {
		patch.HighImpactIssues = p.HighImpactIssues
	} else {
		patch.HighImpactIssues = p.HighImpactIssuesCamel
	}
	if p.FilesModified != nil {
		patch.FilesModified = p.FilesModified
	} else {
		patch.FilesModified = p.FilesModifiedCamel
	}
	return patch
}

func (p *FixJobPayload) ToModel() model.FixJob {
	job := model.FixJob{
		JobID:      deref(firstStrPtr(p.JobID, p.JobIDCamel)),
		AnalysisID: deref(firstStrPtr(p.AnalysisID, p.AnalysisIDCamel)),
		CreatedAt:  parseTime(firstNonEmpty(p.CreatedAt, p.CreatedAtCamel)),
	}
	p.ToPatch().Apply(&job)
	if completed := parseTime(firstNonEmpty(p.CompletedAt, p.CompletedAtCamel)); !completed.IsZero() {
		job.CompletedAt = &completed
	}
	return job
}

// ListAnalysesResponse GET /cline/all-analysis
type ListAnalysesResponse struct {
	Success    bool              `json:"success"`
	Analyses   []AnalysisPayload `json:"analyses"`
	Data       []AnalysisPayload `json:"data"`
	Pagination *Pagination       `json:"pagination,omitempty"`
}

type Pagination struct {
	Total      int `json:"total"`
	Limit      int `json:"limit"`
	Offset     int `json:"offset"`
	Page       int `json:"page"`
	TotalPages int `json:"totalPages"`
}

// Items 返回规范化后的记录，保持服务端顺序
func (r *ListAnalysesResponse) Items() []model.Analysis {
	payloads := r.Analyses
	if payloads == nil {
		payloads = r.Data
	}
	out := make([]model.Analysis, 0, len(payloads))
	for i := range payloads {
		a := payloads[i].ToModel()
		if a.ID == "" {
			continue
		}
		out = append(out, a)
	}
	return out
}

// DecodeAnalysis 兼容 {analysis:{...}}、{data:{...}} 和扁平结构
func DecodeAnalysis(body []byte) (*model.Analysis, error) {
	var env struct {
		Analysis *AnalysisPayload `json:"analysis"`
		Data     *AnalysisPayload `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	payload := env.Analysis
	if payload == nil {
		payload = env.Data
	}
	if payload == nil {
		payload = &AnalysisPayload{}
		if err := json.Unmarshal(body, payload); err != nil {
			return nil, err
		}
	}
	a := payload.ToModel()
	if a.ID == "" && a.Status == "" {
		return nil, ErrEmptyPayload
	}
	return &a, nil
}

// DecodeProgress 兼容 {data:{...}} 和扁平结构
func DecodeProgress(body []byte) (*ProgressPayload, error) {
	var env struct {
		Data *ProgressPayload `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	if env.Data != nil {
		return env.Data, nil
	}
	var p ProgressPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	if p.Status == nil && len(p.Progress) == 0 {
		return nil, ErrEmptyPayload
	}
	return &p, nil
}

// DecodeFixJob 兼容 {job:{...}}、{fixJob:{...}}、{data:{...}} 和扁平结构
func DecodeFixJob(body []byte) (*FixJobPayload, error) {
	var env struct {
		Job    *FixJobPayload `json:"job"`
		FixJob *FixJobPayload `json:"fixJob"`
		Data   *FixJobPayload `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	for _, p := range []*FixJobPayload{env.Job, env.FixJob, env.Data} {
		if p != nil {
			return p, nil
		}
	}
	var p FixJobPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	if p.Status == nil && len(p.Progress) == 0 {
		return nil, ErrEmptyPayload
	}
	return &p, nil
}

// SubmitAnalysisRequest POST /cline/analyze
type SubmitAnalysisRequest struct {
	RepoURL  string `json:"repoUrl" binding:"required"`
	RepoName string `json:"repoName"`
	Owner    string `json:"owner"`
}

// SubmitAnalysisResponse 兼容多种返回形态
type SubmitAnalysisResponse struct {
	AnalysisIDCamel string `json:"analysisId"`
	AnalysisID      string `json:"analysis_id"`
	ID              string `json:"id"`
	Message         string `json:"message"`
	Data            *struct {
		AnalysisIDCamel string `json:"analysisId"`
		AnalysisID      string `json:"analysis_id"`
	} `json:"data"`
}

func (r *SubmitAnalysisResponse) GetAnalysisID() string {
	id := firstNonEmpty(r.AnalysisIDCamel, r.AnalysisID, r.ID)
	if id == "" && r.Data != nil {
		id = firstNonEmpty(r.Data.AnalysisIDCamel, r.Data.AnalysisID)
	}
	return id
}

// TriggerFixRequest POST /cline/autonomous-fix
type TriggerFixRequest struct {
	AnalysisID  string `json:"analysisId"`
	AccessToken string `json:"accessToken,omitempty"`
}

type TriggerFixResponse struct {
	Success     bool   `json:"success"`
	JobIDCamel  string `json:"jobId"`
	JobID       string `json:"job_id"`
	AnalysisID  string `json:"analysisId"`
	Message     string `json:"message"`
	Status      string `json:"status"`
	TokenSource string `json:"tokenSource,omitempty"`
}

func (r *TriggerFixResponse) GetJobID() string {
	return firstNonEmpty(r.JobIDCamel, r.JobID)
}

// ErrorBody 服务端错误体
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (e *ErrorBody) Text() string {
	return firstNonEmpty(e.Error, e.Message)
}

func decodeProgress(raw json.RawMessage) (*int, *string) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] == '{' {
		var obj struct {
			Percentage *float64 `json:"percentage"`
			Percent    *float64 `json:"percent"`
			Message    *string  `json:"message"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, nil
		}
		pct := obj.Percentage
		if pct == nil {
			pct = obj.Percent
		}
		if pct == nil {
			return nil, obj.Message
		}
		v := clampPercent(*pct)
		return &v, obj.Message
	}

	var num float64
	if err := json.Unmarshal(raw, &num); err != nil {
		return nil, nil
	}
	v := clampPercent(num)
	return &v, nil
}

func decodeStructure(raw json.RawMessage) *model.Structure {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	var s struct {
		TotalFiles      *int `json:"totalFiles"`
		TotalFilesSnake *int `json:"total_files"`
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	total := firstIntPtr(s.TotalFiles, s.TotalFilesSnake)
	if total == nil {
		return &model.Structure{}
	}
	return &model.Structure{TotalFiles: *total}
}

func clampPercent(v float64) int {
	n := int(math.Round(v))
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstRaw(values ...json.RawMessage) json.RawMessage {
	for _, v := range values {
		v = bytes.TrimSpace(v)
		if len(v) > 0 && !bytes.Equal(v, []byte("null")) {
			return v
		}
	}
	return nil
}

func firstBool(values ...*bool) bool {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return false
}

func firstStrPtr(values ...*string) *string {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstIntPtr(values ...*int) *int {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
