// Package events carries finalized results to downstream consumers such as
// certificate issuance and reporting through an asynq queue.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/pavelanni/assessor/internal/model"
)

// TypeResultFinalized is the task type enqueued for graded and completed results.
const TypeResultFinalized = "result:finalized"

const (
	queueName  = "results"
	maxRetries = 5
	taskTTL    = 24 * time.Hour
)

// FinalizedPayload is the task body of TypeResultFinalized.
type FinalizedPayload struct {
	ResultID         int64        `json:"resultId"`
	Reference        string       `json:"reference,omitempty"`
	Kind             model.Kind   `json:"kind"`
	StudentID        string       `json:"studentId"`
	TestID           int64        `json:"testId"`
	Attempt          int          `json:"attempt"`
	Score            float64      `json:"score"`
	TotalPoints      float64      `json:"totalPoints"`
	Percentage       float64      `json:"percentage"`
	Status           model.Status `json:"status"`
	RecommendedLevel *model.Level `json:"recommendedLevel"`
	FinalizedAt      time.Time    `json:"finalizedAt"`
}

func payloadFor(r model.ResultRecord, now time.Time) FinalizedPayload {
	return FinalizedPayload{
		ResultID:         r.ID,
		Reference:        r.Reference,
		Kind:             r.Kind,
		StudentID:        r.StudentID,
		TestID:           r.TestID,
		Attempt:          r.Attempt,
		Score:            r.Score,
		TotalPoints:      r.TotalPoints,
		Percentage:       r.Percentage,
		Status:           r.Status,
		RecommendedLevel: r.RecommendedLevel,
		FinalizedAt:      now,
	}
}

// taskID identifies one finalization so a retried request does not enqueue
// the same outcome twice. A regrade with a different score gets a new id.
func taskID(r model.ResultRecord) string {
	return fmt.Sprintf("%s:%d:%s:%g", r.Kind, r.ID, r.Status, r.Score)
}

// NewFinalizedTask builds the task for a finalized result.
func NewFinalizedTask(r model.ResultRecord, now time.Time) (*asynq.Task, error) {
	data, err := json.Marshal(payloadFor(r, now))
	if err != nil {
		return nil, fmt.Errorf("marshal finalized payload: %w", err)
	}
	return asynq.NewTask(TypeResultFinalized, data,
		asynq.TaskID(taskID(r)),
		asynq.Queue(queueName),
		asynq.MaxRetry(maxRetries),
		asynq.Retention(taskTTL),
	), nil
}

// ParseFinalizedPayload decodes the body of a TypeResultFinalized task.
func ParseFinalizedPayload(t *asynq.Task) (*FinalizedPayload, error) {
	var p FinalizedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return nil, fmt.Errorf("unmarshal finalized payload: %w", err)
	}
	return &p, nil
}

// Publisher enqueues finalized results.
type Publisher struct {
	client *asynq.Client
	now    func() time.Time
}

// NewPublisher connects to the Redis instance at redisURL.
func NewPublisher(redisURL string) (*Publisher, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Publisher{
		client: asynq.NewClient(opt),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// PublishFinalized enqueues a TypeResultFinalized task. A task that is already
// queued for the same outcome is not an error.
func (p *Publisher) PublishFinalized(ctx context.Context, r model.ResultRecord) error {
	task, err := NewFinalizedTask(r, p.now())
	if err != nil {
		return err
	}
	info, err := p.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		slog.Debug("finalized result already queued", "result_id", r.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue finalized result %d: %w", r.ID, err)
	}
	slog.Info("queued finalized result", "task_id", info.ID, "result_id", r.ID, "status", r.Status)
	return nil
}

// Close releases the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}
