package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/distask/task"
)

// Timeout returns middleware that bounds every simple task's run time.
// Resumable tasks are exempt since they are expected to wait for long
// periods. A non-positive d disables the deadline.
func Timeout(logger *slog.Logger, d time.Duration) Middleware {
	return func(ctx context.Context, t task.Task, next Handler) error {
		if d <= 0 || t.Kind() == task.KindResumable {
			return next(ctx)
		}

		logger.Debug("task timeout set",
			slog.String("task_id", t.ID().String()),
			slog.Duration("timeout", d),
		)
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next(ctx)
	}
}
