package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/qs3c/devpulse_tracker/config"
	"github.com/qs3c/devpulse_tracker/internal/model"
	"github.com/qs3c/devpulse_tracker/internal/model/dto"
)

const (
	tracerName     = "github.com/qs3c/devpulse_tracker/internal/pkg/apiclient"
	defaultTimeout = 10 * time.Second
	maxBodySize    = 8 << 20
)

// Client DevPulse 后端 API。所有请求带超时，携带会话 token，
// 401 时回调 onUnauthorized 清除本地会话。
type Client struct {
	baseURL        string
	http           *http.Client
	limiter        *rate.Limiter
	tracer         trace.Tracer
	onUnauthorized func()
}

type Option func(*Client)

// WithHTTPClient 替换底层 http.Client，测试时指向 httptest
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithUnauthorizedHook 收到 401 时调用
func WithUnauthorizedHook(fn func()) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

// New tokens 为 nil 时不带 Authorization 头
func New(cfg config.APIConfig, tokens oauth2.TokenSource, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tracer:  otel.Tracer(tracerName),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	for _, opt := range opts {
		opt(c)
	}

	if tokens != nil {
		base := c.http.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		c.http = &http.Client{
			Timeout:   c.http.Timeout,
			Transport: &oauth2.Transport{Source: tokens, Base: base},
		}
	}
	return c
}

// ListOptions GET /cline/all-analysis 查询参数
type ListOptions struct {
	Limit  int
	Offset int
	Status string
	SortBy string
	Order  string
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		q.Set("offset", strconv.Itoa(o.Offset))
	}
	if o.Status != "" {
		q.Set("status", o.Status)
	}
	if o.SortBy != "" {
		q.Set("sortBy", o.SortBy)
	}
	if o.Order != "" {
		q.Set("order", o.Order)
	}
	return q
}

// ListAnalyses 列表，保持服务端顺序
func (c *Client) ListAnalyses(ctx context.Context, opts ListOptions) ([]model.Analysis, error) {
	path := "/cline/all-analysis"
	if q := opts.query(); len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp dto.ListAnalysesResponse
	if err := c.doJSON(ctx, http.MethodGet, path, "list_analyses", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items(), nil
}

// GetAnalysis 完整记录，终态时作为权威快照
func (c *Client) GetAnalysis(ctx context.Context, analysisID string) (*model.Analysis, error) {
	body, err := c.do(ctx, http.MethodGet, "/cline/analysis/"+url.PathEscape(analysisID), "get_analysis", nil)
	if err != nil {
		return nil, err
	}
	a, err := dto.DecodeAnalysis(body)
	if err != nil {
		return nil, fmt.Errorf("decode analysis %s: %w", analysisID, err)
	}
	if a.ID == "" {
		a.ID = analysisID
	}
	return a, nil
}

// GetAnalysisProgress 轻量进度
func (c *Client) GetAnalysisProgress(ctx context.Context, analysisID string) (model.AnalysisPatch, error) {
	body, err := c.do(ctx, http.MethodGet, "/cline/analysis/"+url.PathEscape(analysisID)+"/progress", "get_analysis_progress", nil)
	if err != nil {
		return model.AnalysisPatch{}, err
	}
	p, err := dto.DecodeProgress(body)
	if err != nil {
		return model.AnalysisPatch{}, fmt.Errorf("decode progress %s: %w", analysisID, err)
	}
	return p.ToPatch(), nil
}

// SubmitAnalysis 返回新分析的 id
func (c *Client) SubmitAnalysis(ctx context.Context, req dto.SubmitAnalysisRequest) (string, error) {
	var resp dto.SubmitAnalysisResponse
	if err := c.doJSON(ctx, http.MethodPost, "/cline/analyze", "submit_analysis", req, &resp); err != nil {
		return "", err
	}
	id := resp.GetAnalysisID()
	if id == "" {
		return "", ErrMissingID
	}
	return id, nil
}

// TriggerFix 返回修复任务 id
func (c *Client) TriggerFix(ctx context.Context, req dto.TriggerFixRequest) (*dto.TriggerFixResponse, error) {
	var resp dto.TriggerFixResponse
	if err := c.doJSON(ctx, http.MethodPost, "/cline/autonomous-fix", "trigger_fix", req, &resp); err != nil {
		return nil, err
	}
	if resp.GetJobID() == "" {
		return nil, ErrMissingID
	}
	return &resp, nil
}

// GetFixJobStatus 修复任务状态
func (c *Client) GetFixJobStatus(ctx context.Context, jobID string) (model.FixJobPatch, error) {
	body, err := c.do(ctx, http.MethodGet, "/cline/autonomous-fix/"+url.PathEscape(jobID), "get_fix_job", nil)
	if err != nil {
		return model.FixJobPatch{}, err
	}
	p, err := dto.DecodeFixJob(body)
	if err != nil {
		return model.FixJobPatch{}, fmt.Errorf("decode fix job %s: %w", jobID, err)
	}
	return p.ToPatch(), nil
}

// ListRepos 当前用户的 GitHub 仓库
func (c *Client) ListRepos(ctx context.Context) ([]dto.GithubRepo, error) {
	var resp dto.ReposResponse
	if err := c.doJSON(ctx, http.MethodGet, "/github/repos", "list_repos", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Repos, nil
}

// SaveServerToken 把 PAT 保存到服务端
func (c *Client) SaveServerToken(ctx context.Context, token string) (*dto.SaveTokenResponse, error) {
	var resp dto.SaveTokenResponse
	if err := c.doJSON(ctx, http.MethodPost, "/github/token", "save_token", dto.SaveTokenRequest{AccessToken: token}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ServerTokenStatus 服务端是否已保存 PAT
func (c *Client) ServerTokenStatus(ctx context.Context) (*dto.TokenStatusResponse, error) {
	var resp dto.TokenStatusResponse
	if err := c.doJSON(ctx, http.MethodGet, "/github/token/status", "token_status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) DeleteServerToken(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodDelete, "/github/token", "delete_token", nil)
	return err
}

func (c *Client) doJSON(ctx context.Context, method, path, op string, in, out interface{}) error {
	body, err := c.do(ctx, method, path, op, in)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, op string, in interface{}) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "devpulse.api."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
	)

	body, err := c.roundTrip(ctx, method, path, in, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return body, err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in interface{}, span trace.Span) ([]byte, error) {
	fail := func(status int, msg string, err error) *APIError {
		return &APIError{Method: method, Path: path, StatusCode: status, Message: msg, Err: err}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fail(0, "", err)
		}
	}

	var reader io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	span.SetAttributes(attribute.String("request.id", requestID))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fail(0, "", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fail(0, "", fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var eb dto.ErrorBody
		_ = json.Unmarshal(body, &eb)
		if resp.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return nil, fail(resp.StatusCode, eb.Text(), nil)
	}
	return body, nil
}
