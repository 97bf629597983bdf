package model

// AnalysisPatch 轮询得到的部分字段，nil 表示不修改
type AnalysisPatch struct {
	Status   *AnalysisStatus
	Progress *int
	Message  *string
	Error    *string
}

// Apply 浅合并到记录上，未提供的字段保持原值
func (p AnalysisPatch) Apply(a *Analysis) {
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.Progress != nil {
		a.Progress = *p.Progress
	}
	if p.Message != nil {
		a.Message = *p.Message
	}
	if p.Error != nil {
		a.Error = *p.Error
	}
}

// FixJobPatch 修复任务的部分字段
type FixJobPatch struct {
	Status           *FixJobStatus
	Progress         *int
	Message          *string
	PRURL            *string
	PRNumber         *int
	Error            *string
	HighImpactIssues []HighImpactIssue
	FilesModified    []string
}

func (p FixJobPatch) Apply(f *FixJob) {
	if p.Status != nil {
		f.Status = *p.Status
	}
	if p.Progress != nil {
		f.Progress = *p.Progress
	}
	if p.Message != nil {
		f.Message = *p.Message
	}
	if p.PRURL != nil {
		f.PRURL = *p.PRURL
	}
	if p.PRNumber != nil {
		f.PRNumber = *p.PRNumber
	}
	if p.Error != nil {
		f.Error = *p.Error
	}
	if p.HighImpactIssues != nil {
		f.HighImpactIssues = append([]HighImpactIssue(nil), p.HighImpactIssues...)
	}
	if p.FilesModified != nil {
		f.FilesModified = append([]string(nil), p.FilesModified...)
	}
}

// IsTerminal 补丁是否把任务推进到终态
func (p FixJobPatch) IsTerminal() bool {
	return p.Status != nil && p.Status.IsTerminal()
}
