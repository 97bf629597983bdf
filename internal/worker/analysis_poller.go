package worker

import (
	"context"
	"log"
	"time"

	"github.com/qs3c/devpulse_tracker/internal/model"
	"github.com/qs3c/devpulse_tracker/internal/store"
)

// AnalysisFetcher 分析轮询需要的远程接口
type AnalysisFetcher interface {
	GetAnalysisProgress(ctx context.Context, analysisID string) (model.AnalysisPatch, error)
	GetAnalysis(ctx context.Context, analysisID string) (*model.Analysis, error)
}

// AnalysisPoller 按固定间隔拉取分析进度并合并到 Store。
// 进入终态后拉取一次完整记录替换本地记录，然后注销自己。
type AnalysisPoller struct {
	api      AnalysisFetcher
	store    *store.Store
	registry *Registry
	opts     Options

	// onSettled 在权威快照写入 Store 之后调用
	onSettled func(model.Analysis)
}

func NewAnalysisPoller(api AnalysisFetcher, st *store.Store, registry *Registry, opts Options) *AnalysisPoller {
	return &AnalysisPoller{
		api:      api,
		store:    st,
		registry: registry,
		opts:     opts.withDefaults(),
	}
}

// OnSettled 设置终态快照回调
func (p *AnalysisPoller) OnSettled(fn func(model.Analysis)) {
	p.onSettled = fn
}

func AnalysisKey(analysisID string) Key {
	return Key{Kind: KindAnalysis, ID: analysisID}
}

// Track 开始轮询。记录已处于终态或已有任务时返回 false，不发起任何请求。
func (p *AnalysisPoller) Track(analysisID string) bool {
	if rec, ok := p.store.Get(analysisID); ok && rec.Status.IsTerminal() {
		return false
	}
	return p.registry.Start(AnalysisKey(analysisID), func(ctx context.Context, h *Handle) {
		p.run(ctx, h, analysisID)
	})
}

// Untrack 停止轮询
func (p *AnalysisPoller) Untrack(analysisID string) bool {
	return p.registry.Stop(AnalysisKey(analysisID))
}

func (p *AnalysisPoller) run(ctx context.Context, h *Handle, analysisID string) {
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if p.tick(ctx, h, analysisID) {
			return
		}
	}
}

// tick 返回 true 表示轮询结束
func (p *AnalysisPoller) tick(ctx context.Context, h *Handle, analysisID string) bool {
	patch, err := fetchWithRetry(ctx, p.opts, func(ctx context.Context) (model.AnalysisPatch, error) {
		return p.api.GetAnalysisProgress(ctx, analysisID)
	})
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("Analysis poller %s: progress fetch failed, stop tracking: %v", analysisID, err)
		}
		return true
	}
	if !h.Apply(func() { p.store.Patch(analysisID, patch) }) {
		return true
	}

	if patch.Status == nil || !patch.Status.IsTerminal() {
		return false
	}

	full, err := fetchWithRetry(ctx, p.opts, func(ctx context.Context) (*model.Analysis, error) {
		return p.api.GetAnalysis(ctx, analysisID)
	})
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("Analysis poller %s: detail fetch failed after %s: %v", analysisID, *patch.Status, err)
		}
		return true
	}
	if !h.Apply(func() { p.store.Replace(analysisID, *full) }) {
		return true
	}
	h.Release()

	log.Printf("Analysis poller %s: reached %s", analysisID, *patch.Status)
	if p.onSettled != nil {
		if rec, ok := p.store.Get(analysisID); ok {
			p.onSettled(rec)
		}
	}
	return true
}
