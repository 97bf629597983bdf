package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultName serve 进程消费的跟踪请求队列
const DefaultName = "devpulse:track_requests"

// TrackKind 请求跟踪的实体类型
type TrackKind string

const (
	TrackAnalysis TrackKind = "analysis"
	TrackFixJob   TrackKind = "fixjob"
)

var ErrInvalidRequest = errors.New("invalid track request")

// TrackRequest CLI 提交任务后交给常驻进程继续轮询
type TrackRequest struct {
	Kind       TrackKind `json:"kind"`
	AnalysisID string    `json:"analysis_id"`
	JobID      string    `json:"job_id,omitempty"`
	RepoName   string    `json:"repo_name,omitempty"`
	RepoOwner  string    `json:"repo_owner,omitempty"`
	RepoURL    string    `json:"repo_url,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

func (r *TrackRequest) Validate() error {
	if r.AnalysisID == "" {
		return ErrInvalidRequest
	}
	switch r.Kind {
	case TrackAnalysis:
		return nil
	case TrackFixJob:
		if r.JobID == "" {
			return ErrInvalidRequest
		}
		return nil
	default:
		return ErrInvalidRequest
	}
}

type Queue struct {
	client    *redis.Client
	queueName string
}

func NewQueue(client *redis.Client, queueName string) *Queue {
	if queueName == "" {
		queueName = DefaultName
	}
	return &Queue{
		client:    client,
		queueName: queueName,
	}
}

// Push 将请求加入队列
func (q *Queue) Push(ctx context.Context, req *TrackRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if req.EnqueuedAt.IsZero() {
		req.EnqueuedAt = time.Now()
	}

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal track request: %w", err)
	}

	return q.client.LPush(ctx, q.queueName, data).Err()
}

// Pop 阻塞获取请求，超时返回 nil, nil
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (*TrackRequest, error) {
	result, err := q.client.BRPop(ctx, timeout, q.queueName).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop from queue: %w", err)
	}

	if len(result) < 2 {
		return nil, nil
	}

	var req TrackRequest
	if err := json.Unmarshal([]byte(result[1]), &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal track request: %w", err)
	}

	return &req, nil
}

// Length 获取队列长度
func (q *Queue) Length(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.queueName).Result()
}
