package dto

// GithubRepo GET /github/repos 列表项
type GithubRepo struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	FullName      string `json:"fullName"`
	Description   string `json:"description"`
	URL           string `json:"url"`
	CloneURL      string `json:"cloneUrl"`
	Language      string `json:"language"`
	Stars         int    `json:"stars"`
	Forks         int    `json:"forks"`
	DefaultBranch string `json:"defaultBranch"`
	Private       bool   `json:"private"`
	Owner         struct {
		Login  string `json:"login"`
		Avatar string `json:"avatar"`
	} `json:"owner"`
}

// SubmitRequest 把仓库转换成提交分析的请求
func (r *GithubRepo) SubmitRequest() SubmitAnalysisRequest {
	return SubmitAnalysisRequest{
		RepoURL:  r.CloneURL,
		RepoName: r.Name,
		Owner:    r.Owner.Login,
	}
}

type ReposResponse struct {
	Repos []GithubRepo `json:"repos"`
}

// SaveTokenRequest POST /github/token
type SaveTokenRequest struct {
	AccessToken string `json:"accessToken" binding:"required"`
}

type SaveTokenResponse struct {
	Success        bool     `json:"success"`
	Message        string   `json:"message"`
	GithubUsername string   `json:"githubUsername"`
	Scopes         []string `json:"scopes"`
	ExpiresIn      string   `json:"expiresIn,omitempty"`
}

// TokenStatusResponse GET /github/token/status
type TokenStatusResponse struct {
	Success        bool   `json:"success"`
	HasToken       *bool  `json:"hasToken"`
	HasTokenSnake  *bool  `json:"has_token"`
	Configured     *bool  `json:"configured"`
	GithubUsername string `json:"githubUsername,omitempty"`
}

// ServerHoldsToken 服务端是否已保存 PAT
func (r *TokenStatusResponse) ServerHoldsToken() bool {
	return firstBool(r.HasToken, r.HasTokenSnake, r.Configured)
}
