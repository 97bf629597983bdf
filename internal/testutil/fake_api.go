package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/qs3c/devpulse_tracker/internal/model"
	"github.com/qs3c/devpulse_tracker/internal/model/dto"
	"github.com/qs3c/devpulse_tracker/internal/pkg/apiclient"
)

var ErrNotScripted = errors.New("fake api: no response scripted")

// FakeJobAPI 内存版后端，按脚本返回进度；最后一个脚本项会一直重复
type FakeJobAPI struct {
	mu sync.Mutex

	listing  []model.Analysis
	listErr  error
	progress map[string][]progressStep
	details  map[string]model.Analysis
	fixes    map[string][]fixStep

	submitID   string
	submitErr  error
	jobIDs     []string
	triggerErr error

	serverHasToken bool
	repos          []dto.GithubRepo

	calls       map[string]int
	lastSubmit  dto.SubmitAnalysisRequest
	lastTrigger dto.TriggerFixRequest
}

type progressStep struct {
	patch model.AnalysisPatch
	err   error
}

type fixStep struct {
	patch model.FixJobPatch
	err   error
}

func NewFakeJobAPI() *FakeJobAPI {
	return &FakeJobAPI{
		progress: make(map[string][]progressStep),
		details:  make(map[string]model.Analysis),
		fixes:    make(map[string][]fixStep),
		calls:    make(map[string]int),
	}
}

func (f *FakeJobAPI) SetListing(items []model.Analysis, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listing = items
	f.listErr = err
}

func (f *FakeJobAPI) ScriptProgress(id string, patches ...model.AnalysisPatch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range patches {
		f.progress[id] = append(f.progress[id], progressStep{patch: p})
	}
}

func (f *FakeJobAPI) FailProgress(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress[id] = append(f.progress[id], progressStep{err: err})
}

func (f *FakeJobAPI) SetDetail(a model.Analysis) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.details[a.ID] = a
}

func (f *FakeJobAPI) ScriptFixJob(jobID string, patches ...model.FixJobPatch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range patches {
		f.fixes[jobID] = append(f.fixes[jobID], fixStep{patch: p})
	}
}

func (f *FakeJobAPI) FailFixJob(jobID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fixes[jobID] = append(f.fixes[jobID], fixStep{err: err})
}

func (f *FakeJobAPI) SetSubmitResult(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitID = id
	f.submitErr = err
}

// SetTriggerResults 每次 TriggerFix 依次返回一个 job id
func (f *FakeJobAPI) SetTriggerResults(err error, jobIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobIDs = jobIDs
	f.triggerErr = err
}

func (f *FakeJobAPI) SetServerHasToken(has bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.serverHasToken = has
}

func (f *FakeJobAPI) SetRepos(repos []dto.GithubRepo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repos = repos
}

// Calls 某个操作被调用的次数，如 "progress:a1"、"submit"
func (f *FakeJobAPI) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// TotalCalls 所有网络操作次数
func (f *FakeJobAPI) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *FakeJobAPI) LastSubmit() dto.SubmitAnalysisRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSubmit
}

func (f *FakeJobAPI) LastTrigger() dto.TriggerFixRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastTrigger
}

func (f *FakeJobAPI) ListAnalyses(ctx context.Context, opts apiclient.ListOptions) ([]model.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["list"]++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]model.Analysis, len(f.listing))
	for i := range f.listing {
		out[i] = f.listing[i].Clone()
	}
	return out, nil
}

func (f *FakeJobAPI) GetAnalysis(ctx context.Context, analysisID string) (*model.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["detail:"+analysisID]++
	a, ok := f.details[analysisID]
	if !ok {
		return nil, &apiclient.APIError{Method: "GET", Path: "/cline/analysis/" + analysisID, StatusCode: 404, Message: "Analysis not found"}
	}
	c := a.Clone()
	return &c, nil
}

func (f *FakeJobAPI) GetAnalysisProgress(ctx context.Context, analysisID string) (model.AnalysisPatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["progress:"+analysisID]++
	steps := f.progress[analysisID]
	if len(steps) == 0 {
		return model.AnalysisPatch{}, ErrNotScripted
	}
	step := steps[0]
	if len(steps) > 1 {
		f.progress[analysisID] = steps[1:]
	}
	return step.patch, step.err
}

func (f *FakeJobAPI) SubmitAnalysis(ctx context.Context, req dto.SubmitAnalysisRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["submit"]++
	f.lastSubmit = req
	if f.submitErr != nil {
		return "", f.submitErr
	}
	if f.submitID == "" {
		return "", apiclient.ErrMissingID
	}
	return f.submitID, nil
}

func (f *FakeJobAPI) TriggerFix(ctx context.Context, req dto.TriggerFixRequest) (*dto.TriggerFixResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["trigger"]++
	f.lastTrigger = req
	if f.triggerErr != nil {
		return nil, f.triggerErr
	}
	if len(f.jobIDs) == 0 {
		return nil, apiclient.ErrMissingID
	}
	id := f.jobIDs[0]
	f.jobIDs = f.jobIDs[1:]

	source := "session"
	if req.AccessToken != "" {
		source = "request"
	}
	return &dto.TriggerFixResponse{Success: true, JobIDCamel: id, AnalysisID: req.AnalysisID, Status: "initializing", TokenSource: source}, nil
}

func (f *FakeJobAPI) GetFixJobStatus(ctx context.Context, jobID string) (model.FixJobPatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["fixjob:"+jobID]++
	steps := f.fixes[jobID]
	if len(steps) == 0 {
		return model.FixJobPatch{}, ErrNotScripted
	}
	step := steps[0]
	if len(steps) > 1 {
		f.fixes[jobID] = steps[1:]
	}
	return step.patch, step.err
}

func (f *FakeJobAPI) ListRepos(ctx context.Context) ([]dto.GithubRepo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["repos"]++
	return append([]dto.GithubRepo(nil), f.repos...), nil
}

func (f *FakeJobAPI) SaveServerToken(ctx context.Context, token string) (*dto.SaveTokenResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["save_token"]++
	f.serverHasToken = true
	return &dto.SaveTokenResponse{Success: true, Message: "saved"}, nil
}

func (f *FakeJobAPI) ServerTokenStatus(ctx context.Context) (*dto.TokenStatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["token_status"]++
	has := f.serverHasToken
	return &dto.TokenStatusResponse{Success: true, HasToken: &has}, nil
}

func (f *FakeJobAPI) DeleteServerToken(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["delete_token"]++
	f.serverHasToken = false
	return nil
}
