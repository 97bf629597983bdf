package main

import (
	"context"
	"time"

	"github.com/qs3c/devpulse_tracker/internal/pkg/pubsub"
	"github.com/qs3c/devpulse_tracker/internal/store"
)

const followCheckInterval = 200 * time.Millisecond

// follow 打印本进程 Store 的变更，直到 done 返回 true 或 ctx 结束。
// done 也会被定期检查：轮询失败退出时不会再有变更。
func follow(ctx context.Context, st *store.Store, done func() bool) error {
	changes := make(chan store.Change, 64)
	unsubscribe := st.Subscribe(func(c store.Change) {
		select {
		case changes <- c:
		default:
		}
	})
	defer unsubscribe()

	ticker := time.NewTicker(followCheckInterval)
	defer ticker.Stop()

	for !done() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-changes:
			printChange(pubsub.NewChangeMessage(c))
		case <-ticker.C:
		}
	}

	// 把已经排队的变更打印完
	for {
		select {
		case c := <-changes:
			printChange(pubsub.NewChangeMessage(c))
		default:
			return nil
		}
	}
}
