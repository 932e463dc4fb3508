// Package retryutil schedules one-shot background retries for startup
// probes that failed but may succeed once a backend comes up.
package retryutil

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultDelay   = 2 * time.Second
	defaultTimeout = 12 * time.Second
)

// AsyncRetry runs fn once in the background after delay, giving it at most
// timeout. Zero durations take the defaults. The outcome is logged under
// name-prefixed keys; the caller is never blocked.
func AsyncRetry(logger *slog.Logger, name string, delay, timeout time.Duration, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	if delay <= 0 {
		delay = defaultDelay
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger != nil {
		logger.Info(name+"_retry_scheduled", "delay", delay.String(), "timeout", timeout.String())
	}
	time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := fn(ctx)
		if logger == nil {
			return
		}
		if err != nil {
			logger.Warn(name+"_retry_failed", "error", err.Error())
			return
		}
		logger.Info(name + "_retry_ok")
	})
}
