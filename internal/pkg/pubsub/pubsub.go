package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/qs3c/devpulse_tracker/internal/model"
	"github.com/qs3c/devpulse_tracker/internal/store"
)

const (
	ChannelAnalysisChanges = "devpulse:analysis_changes"

	MessageTypeChange = "analysis_change"
)

// ChangeMessage Store 变更在进程间传递的形式
type ChangeMessage struct {
	Type       string          `json:"type"`
	Change     string          `json:"change"`
	AnalysisID string          `json:"analysis_id,omitempty"`
	JobID      string          `json:"job_id,omitempty"`
	Status     string          `json:"status,omitempty"`
	Progress   int             `json:"progress"`
	Message    string          `json:"message,omitempty"`
	Count      int             `json:"count,omitempty"`
	Record     *model.Analysis `json:"record,omitempty"`
	At         time.Time       `json:"at"`
}

// NewChangeMessage 从 Store 变更生成消息；修复任务变更时状态取该任务的状态
func NewChangeMessage(c store.Change) *ChangeMessage {
	msg := &ChangeMessage{
		Type:       MessageTypeChange,
		Change:     string(c.Type),
		AnalysisID: c.AnalysisID,
		JobID:      c.JobID,
		Count:      c.Count,
		Record:     c.Record,
		At:         c.At,
	}
	if c.Record == nil {
		return msg
	}

	msg.Status = string(c.Record.Status)
	msg.Progress = c.Record.Progress
	msg.Message = c.Record.Message
	if c.JobID != "" {
		if i := c.Record.FindFix(c.JobID); i >= 0 {
			job := c.Record.Fixes[i]
			msg.Status = string(job.Status)
			msg.Progress = job.Progress
			msg.Message = job.Message
		}
	}
	return msg
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishChange 发布变更消息
func (p *Publisher) PublishChange(ctx context.Context, msg *ChangeMessage) error {
	msg.Type = MessageTypeChange

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal change message: %w", err)
	}

	return p.client.Publish(ctx, ChannelAnalysisChanges, data).Err()
}

// Forward 返回可以直接挂到 Store.Subscribe 上的监听函数
func (p *Publisher) Forward(timeout time.Duration) store.Listener {
	return func(c store.Change) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := p.PublishChange(ctx, NewChangeMessage(c)); err != nil {
			log.Printf("Failed to publish %s change for %q: %v", c.Type, c.AnalysisID, err)
		}
	}
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 阻塞直到 ctx 取消；ready 非空时在订阅确认后关闭
func (s *Subscriber) Subscribe(ctx context.Context, ready chan<- struct{}, handler func(*ChangeMessage)) error {
	sub := s.client.Subscribe(ctx, ChannelAnalysisChanges)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	if ready != nil {
		close(ready)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var change ChangeMessage
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				continue // 忽略解析错误
			}

			handler(&change)
		}
	}
}
