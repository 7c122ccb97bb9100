package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/pavelanni/assessor/internal/events"
)

func workerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume finalized result events and log them for reporting",
		RunE:  runWorker,
	}
	addCommonFlags(cmd)
	cmd.Flags().String("redis-url", "redis://localhost:6379/0", "Redis URL of the event queue")
	cmd.Flags().Int("concurrency", 4, "Number of events processed in parallel")
	return cmd
}

func runWorker(cmd *cobra.Command, _ []string) error {
	v, err := setup(cmd)
	if err != nil {
		return err
	}
	w, err := events.NewWorker(v.GetString("redis-url"), v.GetInt("concurrency"), logFinalized)
	if err != nil {
		return fmt.Errorf("create worker: %w", err)
	}
	slog.Info("starting event worker", "redis_url", redactURL(v.GetString("redis-url")))
	return w.Run()
}

// redactURL masks the password of a connection URL for logging.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable url>"
	}
	return u.Redacted()
}

func logFinalized(_ context.Context, p events.FinalizedPayload) error {
	level := ""
	if p.RecommendedLevel != nil {
		level = string(*p.RecommendedLevel)
	}
	slog.Info("result finalized",
		"kind", p.Kind,
		"result_id", p.ResultID,
		"reference", p.Reference,
		"student_id", p.StudentID,
		"test_id", p.TestID,
		"attempt", p.Attempt,
		"score", p.Score,
		"total", p.TotalPoints,
		"percentage", p.Percentage,
		"status", p.Status,
		"recommended_level", level,
		"finalized_at", p.FinalizedAt,
	)
	return nil
}
