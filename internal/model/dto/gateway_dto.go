package dto

// SaveCredentialRequest 本地网关保存 PAT
type SaveCredentialRequest struct {
	Token        string `json:"token" binding:"required"`
	SkipVerify   bool   `json:"skip_verify,omitempty"`
	SyncToServer bool   `json:"sync_to_server,omitempty"`
}

// CredentialStatus 本地网关 PAT 状态
type CredentialStatus struct {
	HasCredential bool   `json:"has_credential"`
	GithubLogin   string `json:"github_login,omitempty"`
}

// TriggerFixResult 触发修复的结果
type TriggerFixResult struct {
	AnalysisID  string `json:"analysis_id"`
	JobID       string `json:"job_id"`
	TokenSource string `json:"token_source,omitempty"`
	Message     string `json:"message,omitempty"`
}

// SubmitResult 提交分析的结果
type SubmitResult struct {
	AnalysisID string `json:"analysis_id"`
}
