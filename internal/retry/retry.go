// Package retry 提供固定次数、固定间隔的重试（不做指数退避，也不加抖动）。
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted 所有尝试都失败
var ErrExhausted = errors.New("retry attempts exhausted")

const (
	DefaultAttempts = 3
	DefaultDelay    = 3 * time.Second
)

// Policy 重试策略；Attempts 包含首次调用
type Policy struct {
	Attempts int
	Delay    time.Duration
	// Retryable 为 nil 时所有错误都重试
	Retryable func(error) bool
}

// Observer 在每次失败后被调用，attempt 从 1 开始；日志由调用方注入，这里不直接打印
type Observer func(attempt int, err error)

// Do 执行 op，直到成功、遇到不可重试的错误、次数用尽或 ctx 结束
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error), observe Observer) (T, error) {
	var zero T

	attempts := p.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, fmt.Errorf("%w: %w", err, lastErr)
			}
			return zero, err
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if observe != nil {
			observe(attempt, err)
		}

		if p.Retryable != nil && !p.Retryable(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		if p.Delay > 0 {
			timer := time.NewTimer(p.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, fmt.Errorf("%w: %w", ctx.Err(), lastErr)
			case <-timer.C:
			}
		}
	}

	return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastErr)
}
