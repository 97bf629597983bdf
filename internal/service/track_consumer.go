package service

import (
	"context"
	"log"
	"time"

	"github.com/qs3c/devpulse_tracker/internal/model"
	"github.com/qs3c/devpulse_tracker/internal/pkg/queue"
)

// TrackSource 跟踪请求来源
type TrackSource interface {
	Pop(ctx context.Context, timeout time.Duration) (*queue.TrackRequest, error)
}

// ApplyTrackRequest 为一个外部提交的实体开始轮询
func (s *TrackerService) ApplyTrackRequest(req *queue.TrackRequest) bool {
	if err := req.Validate(); err != nil {
		log.Printf("Tracker: dropping track request: %v", err)
		return false
	}
	switch req.Kind {
	case queue.TrackFixJob:
		return s.TrackFixJob(req.AnalysisID, req.JobID)
	default:
		at := req.EnqueuedAt
		if at.IsZero() {
			at = s.now()
		}
		return s.TrackAnalysis(model.NewPlaceholder(req.AnalysisID, req.RepoName, req.RepoOwner, req.RepoURL, at))
	}
}

// ConsumeTrackRequests 阻塞消费队列直到 ctx 结束
func (s *TrackerService) ConsumeTrackRequests(ctx context.Context, src TrackSource, pollTimeout time.Duration) {
	for {
		select {
		case <-ctx.Done():
			log.Println("Track consumer shutting down")
			return
		default:
		}

		req, err := src.Pop(ctx, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("Track consumer: failed to pop request: %v", err)
			// 避免 redis 不可用时空转
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollTimeout):
			}
			continue
		}
		if req == nil {
			continue
		}

		if s.ApplyTrackRequest(req) {
			log.Printf("Track consumer: tracking %s %s", req.Kind, req.AnalysisID)
		}
	}
}
