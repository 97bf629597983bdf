package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/qs3c/devpulse_tracker/config"
	"github.com/qs3c/devpulse_tracker/internal/model"
	"github.com/qs3c/devpulse_tracker/internal/model/dto"
	"github.com/qs3c/devpulse_tracker/internal/pkg/apiclient"
	"github.com/qs3c/devpulse_tracker/internal/pkg/cron"
	"github.com/qs3c/devpulse_tracker/internal/pkg/oauth"
	"github.com/qs3c/devpulse_tracker/internal/store"
	"github.com/qs3c/devpulse_tracker/internal/worker"
)

var (
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrCredentialRequired = errors.New("a GitHub personal access token is required to create pull requests")
	ErrMissingSelection   = errors.New("no analysis selected")
	ErrMissingRepository  = errors.New("no repository selected")
)

const (
	msgSubmitFailed  = "Failed to start analysis"
	msgTriggerFailed = "Failed to start PR creation"
	msgLoadFailed    = "Failed to fetch analyses"
	msgReposFailed   = "Failed to fetch repositories"
	msgDetailFailed  = "Failed to fetch analysis"

	snapshotTimeout = 5 * time.Second
)

// JobAPI 远程任务服务
type JobAPI interface {
	worker.AnalysisFetcher
	worker.FixJobFetcher
	ListAnalyses(ctx context.Context, opts apiclient.ListOptions) ([]model.Analysis, error)
	SubmitAnalysis(ctx context.Context, req dto.SubmitAnalysisRequest) (string, error)
	TriggerFix(ctx context.Context, req dto.TriggerFixRequest) (*dto.TriggerFixResponse, error)
	ListRepos(ctx context.Context) ([]dto.GithubRepo, error)
	SaveServerToken(ctx context.Context, token string) (*dto.SaveTokenResponse, error)
	ServerTokenStatus(ctx context.Context) (*dto.TokenStatusResponse, error)
	DeleteServerToken(ctx context.Context) error
}

// Session 会话 token 存储
type Session interface {
	IsAuthenticated(ctx context.Context) bool
}

// Credentials 本地 PAT 存储
type Credentials interface {
	HasCredential(ctx context.Context) bool
	GetCredential(ctx context.Context) (string, bool)
	SaveCredential(ctx context.Context, token string) error
	RemoveCredential(ctx context.Context) error
}

// SnapshotArchive 终态快照归档，可为空
type SnapshotArchive interface {
	Save(ctx context.Context, a *model.Analysis) error
	List(ctx context.Context, limit int) ([]model.Analysis, error)
}

// ActionError 服务端拒绝用户操作，Message 是给用户看的文本
type ActionError struct {
	Op      string
	Message string
	Err     error
}

func (e *ActionError) Error() string {
	return e.Message
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

func newActionError(op, fallback string, err error) *ActionError {
	return &ActionError{Op: op, Message: apiclient.UserMessage(err, fallback), Err: err}
}

// TrackerService 把用户操作转换成 Store 写入和轮询任务
type TrackerService struct {
	api       JobAPI
	store     *store.Store
	registry  *worker.Registry
	scheduler *cron.Scheduler
	analyses  *worker.AnalysisPoller
	fixes     *worker.FixJobPoller
	creds     Credentials
	session   Session
	archive   SnapshotArchive
	cfg       config.PollingConfig
	now       func() time.Time

	// view 每次 Leave 加一，请求发出前后不一致时丢弃列表结果
	viewMu sync.Mutex
	view   uint64
}

func NewTrackerService(
	api JobAPI,
	st *store.Store,
	creds Credentials,
	sess Session,
	archive SnapshotArchive,
	cfg config.PollingConfig,
) *TrackerService {
	s := &TrackerService{
		api:       api,
		store:     st,
		registry:  worker.NewRegistry(),
		scheduler: cron.NewScheduler(),
		creds:     creds,
		session:   sess,
		archive:   archive,
		cfg:       cfg,
		now:       time.Now,
	}

	opts := worker.Options{
		Interval:             cfg.Interval,
		MaxRetries:           cfg.MaxRetries,
		RetryInitialInterval: cfg.RetryInitialInterval,
	}
	s.analyses = worker.NewAnalysisPoller(api, st, s.registry, opts)
	s.analyses.OnSettled(s.archiveSnapshot)
	s.fixes = worker.NewFixJobPoller(api, st, s.registry, s.scheduler, opts, cfg.RefreshDelay, s.bulkRefresh)
	return s
}

// Store 读模型
func (s *TrackerService) Store() *store.Store {
	return s.store
}

// Registry 当前的轮询任务
func (s *TrackerService) Registry() *worker.Registry {
	return s.registry
}

// ListAnalyses 本地读模型的副本
func (s *TrackerService) ListAnalyses() []model.Analysis {
	return s.store.List()
}

// LoadAnalyses 进入视图时调用：拉取列表、替换 Store、为未结束的实体开始轮询
func (s *TrackerService) LoadAnalyses(ctx context.Context) error {
	if !s.session.IsAuthenticated(ctx) {
		return ErrNotAuthenticated
	}

	view := s.currentView()
	items, err := s.api.ListAnalyses(ctx, apiclient.ListOptions{Limit: s.cfg.ListLimit})
	if err != nil {
		log.Printf("Tracker: listing fetch failed: %v", err)
		s.seedFromArchive(ctx, view)
		if errors.Is(err, apiclient.ErrUnauthorized) {
			return ErrNotAuthenticated
		}
		return newActionError("list", msgLoadFailed, err)
	}

	s.applyListing(view, items)
	return nil
}

// Refresh 重新拉取列表，不做会话检查，供延迟刷新使用
func (s *TrackerService) Refresh(ctx context.Context) error {
	view := s.currentView()
	items, err := s.api.ListAnalyses(ctx, apiclient.ListOptions{Limit: s.cfg.ListLimit})
	if err != nil {
		return newActionError("list", msgLoadFailed, err)
	}
	s.applyListing(view, items)
	return nil
}

func (s *TrackerService) currentView() uint64 {
	s.viewMu.Lock()
	defer s.viewMu.Unlock()
	return s.view
}

// applyListing 请求期间视图已被离开时丢弃结果，不会重新启动轮询
func (s *TrackerService) applyListing(view uint64, items []model.Analysis) bool {
	s.viewMu.Lock()
	defer s.viewMu.Unlock()
	if s.view != view {
		log.Printf("Tracker: discarding listing fetched before leaving the view")
		return false
	}
	s.store.ReplaceAll(items)
	s.trackPending()
	return true
}

// trackPending 为 Store 中未结束的分析和修复任务开始轮询，已有任务的 key 不受影响
func (s *TrackerService) trackPending() {
	started := 0
	for _, a := range s.store.List() {
		if !a.Status.IsTerminal() && s.analyses.Track(a.ID) {
			started++
		}
		for _, f := range a.Fixes {
			if !f.Status.IsTerminal() && s.fixes.Track(a.ID, f.JobID) {
				started++
			}
		}
	}
	if started > 0 {
		log.Printf("Tracker: started %d pollers", started)
	}
}

func (s *TrackerService) bulkRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), s.requestTimeout())
	defer cancel()
	if err := s.Refresh(ctx); err != nil {
		log.Printf("Tracker: delayed refresh failed: %v", err)
	}
}

func (s *TrackerService) requestTimeout() time.Duration {
	// 列表请求本身还受 api.timeout 约束，这里只是上限
	if s.cfg.Interval > 0 {
		return 10 * s.cfg.Interval
	}
	return 30 * time.Second
}

// seedFromArchive 列表拉取失败时，用归档的快照填充空的 Store
func (s *TrackerService) seedFromArchive(ctx context.Context, view uint64) {
	if s.archive == nil || s.store.Len() > 0 {
		return
	}
	archived, err := s.archive.List(ctx, s.cfg.ListLimit)
	if err != nil {
		log.Printf("Tracker: archive read failed: %v", err)
		return
	}
	if len(archived) == 0 {
		return
	}

	s.viewMu.Lock()
	defer s.viewMu.Unlock()
	if s.view != view {
		return
	}
	s.store.ReplaceAll(archived)
	log.Printf("Tracker: seeded %d analyses from archive", len(archived))
}

func (s *TrackerService) archiveSnapshot(a model.Analysis) {
	if s.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()
	if err := s.archive.Save(ctx, &a); err != nil {
		log.Printf("Tracker: archive snapshot %s failed: %v", a.ID, err)
	}
}

// SubmitAnalysis 提交分析，成功后插入占位记录并开始轮询
func (s *TrackerService) SubmitAnalysis(ctx context.Context, req dto.SubmitAnalysisRequest) (*dto.SubmitResult, error) {
	req, err := normalizeSubmit(req)
	if err != nil {
		return nil, err
	}
	if !s.session.IsAuthenticated(ctx) {
		return nil, ErrNotAuthenticated
	}

	id, err := s.api.SubmitAnalysis(ctx, req)
	if err != nil {
		return nil, newActionError("submit", msgSubmitFailed, err)
	}

	s.store.UpsertPlaceholder(model.NewPlaceholder(id, req.RepoName, req.Owner, req.RepoURL, s.now()))
	s.analyses.Track(id)
	log.Printf("Tracker: submitted analysis %s for %s/%s", id, req.Owner, req.RepoName)
	return &dto.SubmitResult{AnalysisID: id}, nil
}

// normalizeSubmit 只给了 repoUrl 时从 URL 推出 owner 和仓库名
func normalizeSubmit(req dto.SubmitAnalysisRequest) (dto.SubmitAnalysisRequest, error) {
	req.RepoURL = strings.TrimSpace(req.RepoURL)
	req.RepoName = strings.TrimSpace(req.RepoName)
	req.Owner = strings.TrimSpace(req.Owner)
	if req.RepoURL == "" {
		return req, ErrMissingRepository
	}
	if req.RepoName != "" && req.Owner != "" {
		return req, nil
	}
	ref, err := oauth.ParseRepoURL(req.RepoURL)
	if err != nil {
		return req, err
	}
	if req.RepoName == "" {
		req.RepoName = ref.Name
	}
	if req.Owner == "" {
		req.Owner = ref.Owner
	}
	return req, nil
}

// TriggerFix 触发自动修复。
// 没有本地 PAT 时直接拒绝，不发起任何请求；服务端已保存 PAT 时不再随请求发送。
func (s *TrackerService) TriggerFix(ctx context.Context, analysisID string) (*dto.TriggerFixResult, error) {
	analysisID = strings.TrimSpace(analysisID)
	if analysisID == "" {
		return nil, ErrMissingSelection
	}
	if !s.session.IsAuthenticated(ctx) {
		return nil, ErrNotAuthenticated
	}
	if !s.creds.HasCredential(ctx) {
		return nil, ErrCredentialRequired
	}

	req := dto.TriggerFixRequest{AnalysisID: analysisID}
	status, err := s.api.ServerTokenStatus(ctx)
	if err != nil {
		log.Printf("Tracker: token status check failed, sending local token: %v", err)
	}
	if err != nil || !status.ServerHoldsToken() {
		token, ok := s.creds.GetCredential(ctx)
		if !ok {
			return nil, ErrCredentialRequired
		}
		req.AccessToken = token
	}

	resp, err := s.api.TriggerFix(ctx, req)
	if err != nil {
		return nil, newActionError("trigger_fix", msgTriggerFailed, err)
	}
	jobID := resp.GetJobID()

	if !s.store.AppendFixJobPlaceholder(analysisID, model.NewFixJobPlaceholder(analysisID, jobID, s.now())) {
		log.Printf("Tracker: analysis %s not loaded, fix job %s tracked without placeholder", analysisID, jobID)
	}
	s.fixes.Track(analysisID, jobID)

	log.Printf("Tracker: fix job %s started for analysis %s", jobID, analysisID)
	return &dto.TriggerFixResult{
		AnalysisID:  analysisID,
		JobID:       jobID,
		TokenSource: resp.TokenSource,
		Message:     resp.Message,
	}, nil
}

// GetAnalysis 优先读本地，本地没有时从服务端拉取
func (s *TrackerService) GetAnalysis(ctx context.Context, analysisID string) (model.Analysis, error) {
	if analysisID == "" {
		return model.Analysis{}, ErrMissingSelection
	}
	if a, ok := s.store.Get(analysisID); ok {
		return a, nil
	}
	return s.RefreshAnalysis(ctx, analysisID)
}

// RefreshAnalysis 拉取完整记录替换本地记录；未结束时继续轮询
func (s *TrackerService) RefreshAnalysis(ctx context.Context, analysisID string) (model.Analysis, error) {
	if analysisID == "" {
		return model.Analysis{}, ErrMissingSelection
	}
	if !s.session.IsAuthenticated(ctx) {
		return model.Analysis{}, ErrNotAuthenticated
	}

	full, err := s.api.GetAnalysis(ctx, analysisID)
	if err != nil {
		return model.Analysis{}, newActionError("detail", msgDetailFailed, err)
	}
	if !s.store.Replace(analysisID, *full) {
		s.store.UpsertPlaceholder(*full)
		s.store.Replace(analysisID, *full)
	}

	s.analyses.Track(analysisID)
	for _, f := range full.Fixes {
		if !f.Status.IsTerminal() {
			s.fixes.Track(analysisID, f.JobID)
		}
	}

	a, ok := s.store.Get(analysisID)
	if !ok {
		return model.Analysis{}, fmt.Errorf("analysis %s vanished from store", analysisID)
	}
	return a, nil
}

// TrackAnalysis 跟踪一个已经在别处提交的分析
func (s *TrackerService) TrackAnalysis(placeholder model.Analysis) bool {
	if placeholder.ID == "" {
		return false
	}
	if _, ok := s.store.Get(placeholder.ID); !ok {
		s.store.UpsertPlaceholder(placeholder)
	}
	return s.analyses.Track(placeholder.ID)
}

// TrackFixJob 跟踪一个已经在别处触发的修复任务
func (s *TrackerService) TrackFixJob(analysisID, jobID string) bool {
	if analysisID == "" || jobID == "" {
		return false
	}
	if _, ok := s.store.FixJob(analysisID, jobID); !ok {
		s.store.AppendFixJobPlaceholder(analysisID, model.NewFixJobPlaceholder(analysisID, jobID, s.now()))
	}
	return s.fixes.Track(analysisID, jobID)
}

// ListRepos 可供分析的仓库
func (s *TrackerService) ListRepos(ctx context.Context) ([]dto.GithubRepo, error) {
	if !s.session.IsAuthenticated(ctx) {
		return nil, ErrNotAuthenticated
	}
	repos, err := s.api.ListRepos(ctx)
	if err != nil {
		return nil, newActionError("repos", msgReposFailed, err)
	}
	return repos, nil
}

// ActiveTrackers 当前轮询中的 key
func (s *TrackerService) ActiveTrackers() []worker.Key {
	return s.registry.Keys()
}

// Leave 离开视图：停止全部轮询和尚未执行的延迟刷新。
// 正在进行的列表请求返回后会被丢弃。
func (s *TrackerService) Leave() int {
	s.viewMu.Lock()
	s.view++
	s.scheduler.CancelAll()
	n := s.registry.StopAll()
	s.viewMu.Unlock()
	if n > 0 {
		log.Printf("Tracker: stopped %d pollers", n)
	}
	return n
}

// Close 停止所有任务并等待退出。先停调度器，正在执行的刷新不会再启动新的轮询
func (s *TrackerService) Close() {
	s.scheduler.Stop()
	s.registry.StopAll()
	s.registry.Wait()
}
