package storage

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

type retrier struct {
	max  uint64
	base time.Duration
}

// do runs task with Fibonacci backoff. Only errors shouldRetry accepts are
// retried; the rest return at once.
func (r retrier) do(ctx context.Context, op string, task func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(r.max, retry.NewFibonacci(r.base))
	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := task(ctx)
		if shouldRetry(err) {
			slog.Debug("storage: retrying", "op", op, "attempt", attempt, "err", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && attempt > 1 {
		slog.Warn("storage: gave up", "op", op, "attempts", attempt, "err", err)
	}
	return err
}

func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrClosed) || errors.Is(err, redis.Nil) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, os.ErrClosed) {
		return false
	}
	switch {
	case errors.Is(err, syscall.EROFS),
		errors.Is(err, syscall.ENOSPC),
		errors.Is(err, syscall.EACCES),
		errors.Is(err, syscall.EPERM),
		errors.Is(err, syscall.ENAMETOOLONG),
		errors.Is(err, syscall.ENOTDIR),
		errors.Is(err, syscall.EISDIR),
		errors.Is(err, syscall.EINVAL):
		return false
	}
	return true
}
