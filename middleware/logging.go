package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/xraph/distask/task"
)

// Logging returns middleware that logs task start and completion.
// Interrupted tasks are logged at Info rather than as failures.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, t task.Task, next Handler) error {
		logger.Info("task started",
			slog.String("task_name", t.Name()),
			slog.String("task_id", t.ID().String()),
			slog.String("task_kind", string(t.Kind())),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		switch {
		case err == nil:
			logger.Info("task completed",
				slog.String("task_name", t.Name()),
				slog.String("task_id", t.ID().String()),
				slog.Duration("elapsed", elapsed),
			)
		case errors.Is(err, context.Canceled):
			logger.Info("task interrupted",
				slog.String("task_name", t.Name()),
				slog.String("task_id", t.ID().String()),
				slog.Duration("elapsed", elapsed),
			)
		default:
			logger.Error("task failed",
				slog.String("task_name", t.Name()),
				slog.String("task_id", t.ID().String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		}

		return err
	}
}
