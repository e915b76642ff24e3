package pipeline

import (
	"context"
	"errors"
	"time"

	"pressdesk/internal/logging"
)

// DefaultWatchInterval is used when Watch receives a non-positive interval.
const DefaultWatchInterval = 15 * time.Minute

// Watch runs a pass immediately and then once per interval until ctx is
// cancelled. Pass errors are logged and do not stop the loop.
func (r *Runner) Watch(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	r.logger.Info("watch started",
		logging.String(logging.FieldEventType, "watch_started"),
		logging.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		r.watchPass(ctx)
		select {
		case <-ctx.Done():
			r.logger.Info("watch stopped", logging.String(logging.FieldEventType, "watch_stopped"))
			return nil
		case <-ticker.C:
		}
	}
}

func (r *Runner) watchPass(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	_, err := r.Run(ctx)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
	case errors.Is(err, ErrRunInProgress):
		r.logger.Info("pass skipped; another run holds the store lock",
			logging.String(logging.FieldEventType, "watch_pass_skipped"))
	default:
		logging.ErrorWithContext(r.logger, "watch pass failed", "watch_pass_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the next pass retries automatically"))
	}
}
