package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// FinalizedHandler consumes one finalized result.
type FinalizedHandler func(ctx context.Context, p FinalizedPayload) error

// Worker runs FinalizedHandler for every queued TypeResultFinalized task.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewWorker creates a worker reading from the Redis instance at redisURL.
func NewWorker(redisURL string, concurrency int, h FinalizedHandler) (*Worker, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queueName: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			slog.Error("task failed", "type", task.Type(), "error", err)
		}),
		Logger: slogLogger{},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeResultFinalized, handleFinalized(h))
	return &Worker{server: server, mux: mux}, nil
}

// Run processes tasks until the process receives SIGTERM or SIGINT.
func (w *Worker) Run() error {
	return w.server.Run(w.mux)
}

func handleFinalized(h FinalizedHandler) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		p, err := ParseFinalizedPayload(task)
		if err != nil {
			// A payload that cannot be decoded will never succeed.
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		return h(ctx, *p)
	}
}

// slogLogger routes asynq's internal logging through slog.
type slogLogger struct{}

func (slogLogger) Debug(args ...any) { slog.Debug(fmt.Sprint(args...), "component", "asynq") }
func (slogLogger) Info(args ...any)  { slog.Info(fmt.Sprint(args...), "component", "asynq") }
func (slogLogger) Warn(args ...any)  { slog.Warn(fmt.Sprint(args...), "component", "asynq") }
func (slogLogger) Error(args ...any) { slog.Error(fmt.Sprint(args...), "component", "asynq") }
func (slogLogger) Fatal(args ...any) { slog.Error(fmt.Sprint(args...), "component", "asynq") }
