package worker

import (
	"context"
	"log"
	"time"

	"github.com/qs3c/devpulse_tracker/internal/model"
	"github.com/qs3c/devpulse_tracker/internal/pkg/cron"
	"github.com/qs3c/devpulse_tracker/internal/store"
)

// FixJobFetcher 修复任务轮询需要的远程接口
type FixJobFetcher interface {
	GetFixJobStatus(ctx context.Context, jobID string) (model.FixJobPatch, error)
}

const bulkRefreshTask = "bulk-refresh"

// FixJobPoller 轮询某个分析下的一个修复任务。
// 终态后注销并延迟触发一次整体刷新，吸收服务端的最终一致延迟。
type FixJobPoller struct {
	api          FixJobFetcher
	store        *store.Store
	registry     *Registry
	scheduler    *cron.Scheduler
	opts         Options
	refreshDelay time.Duration
	refresh      func()
}

func NewFixJobPoller(
	api FixJobFetcher,
	st *store.Store,
	registry *Registry,
	scheduler *cron.Scheduler,
	opts Options,
	refreshDelay time.Duration,
	refresh func(),
) *FixJobPoller {
	if refreshDelay <= 0 {
		refreshDelay = DefaultRefreshDelay
	}
	return &FixJobPoller{
		api:          api,
		store:        st,
		registry:     registry,
		scheduler:    scheduler,
		opts:         opts.withDefaults(),
		refreshDelay: refreshDelay,
		refresh:      refresh,
	}
}

// FixJobKey job id 只在所属分析内唯一，key 带上分析 id
func FixJobKey(analysisID, jobID string) Key {
	return Key{Kind: KindFixJob, ID: analysisID + "/" + jobID}
}

// Track 开始轮询；任务已处于终态或已有任务时返回 false
func (p *FixJobPoller) Track(analysisID, jobID string) bool {
	if job, ok := p.store.FixJob(analysisID, jobID); ok && job.Status.IsTerminal() {
		return false
	}
	return p.registry.Start(FixJobKey(analysisID, jobID), func(ctx context.Context, h *Handle) {
		p.run(ctx, h, analysisID, jobID)
	})
}

func (p *FixJobPoller) Untrack(analysisID, jobID string) bool {
	return p.registry.Stop(FixJobKey(analysisID, jobID))
}

func (p *FixJobPoller) run(ctx context.Context, h *Handle, analysisID, jobID string) {
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if p.tick(ctx, h, analysisID, jobID) {
			return
		}
	}
}

func (p *FixJobPoller) tick(ctx context.Context, h *Handle, analysisID, jobID string) bool {
	patch, err := fetchWithRetry(ctx, p.opts, func(ctx context.Context) (model.FixJobPatch, error) {
		return p.api.GetFixJobStatus(ctx, jobID)
	})
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("Fix job poller %s/%s: status fetch failed, stop tracking: %v", analysisID, jobID, err)
		}
		return true
	}
	if !h.Apply(func() { p.store.PatchFixJob(analysisID, jobID, patch) }) {
		return true
	}

	if !patch.IsTerminal() {
		return false
	}

	h.Release()
	log.Printf("Fix job poller %s/%s: reached %s", analysisID, jobID, *patch.Status)

	if p.refresh != nil && p.scheduler != nil {
		p.scheduler.After(bulkRefreshTask, p.refreshDelay, p.refresh)
	}
	return true
}
