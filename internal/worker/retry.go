package worker

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Options 轮询参数
type Options struct {
	Interval time.Duration
	// MaxRetries 单次拉取失败后的重试次数，0 表示失败即停止轮询
	MaxRetries           int
	RetryInitialInterval time.Duration
}

const (
	DefaultInterval     = 3 * time.Second
	DefaultRefreshDelay = 2 * time.Second
)

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.RetryInitialInterval <= 0 {
		o.RetryInitialInterval = 500 * time.Millisecond
	}
	return o
}

// temporary 由 apiclient.APIError 等实现
type temporary interface {
	Temporary() bool
}

func fetchWithRetry[T any](ctx context.Context, opts Options, fetch func(context.Context) (T, error)) (T, error) {
	if opts.MaxRetries <= 0 {
		return fetch(ctx)
	}

	var result T
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.RetryInitialInterval
	b.MaxInterval = opts.Interval
	b.MaxElapsedTime = 0

	operation := func() error {
		v, err := fetch(ctx)
		if err != nil {
			// 只有声明可重试的错误才重试，解码错误等直接放弃
			var t temporary
			if !errors.As(err, &t) || !t.Temporary() {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		result = v
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, uint64(opts.MaxRetries)), ctx))
	return result, err
}
