// internal/workers/middleware.go
package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/beadledger/internal/pkg/logger"
)

// TaskLogging puts the task type and id on the context for every log line and
// records how long each task took.
func TaskLogging(l *slog.Logger) asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
			ctx = logger.WithValue(ctx, logger.ContextKeyTaskType, t.Type())
			if id, ok := asynq.GetTaskID(ctx); ok {
				ctx = logger.WithValue(ctx, logger.ContextKeyTaskID, id)
			}

			start := time.Now()
			err := next.ProcessTask(ctx, t)

			level := slog.LevelDebug
			if err != nil {
				level = slog.LevelWarn
			}
			l.Log(ctx, level, "task_completed",
				slog.Duration("duration", time.Since(start)),
				slog.Bool("failed", err != nil))
			return err
		})
	}
}
