package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/pavelanni/assessor/internal/model"
)

// AppendGradeEvent records one grading pass. An empty ID is filled with a new UUID.
func (s *Store) AppendGradeEvent(ctx context.Context, ev model.GradeEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	marks, err := encodeOptional(ev.EssayMarks, len(ev.EssayMarks) == 0)
	if err != nil {
		return fmt.Errorf("encode essay marks: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO grading_events (id, result_id, essay_marks, oral_review_marks, score, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		ev.ID, ev.ResultID, marks, ev.OralReviewMarks, ev.Score, ev.Status, ev.CreatedAt,
	)
	return err
}

// ListGradeEvents returns the grading history of a result, oldest first.
func (s *Store) ListGradeEvents(ctx context.Context, resultID int64) ([]model.GradeEvent, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, result_id, essay_marks, oral_review_marks, score, status, created_at
		 FROM grading_events WHERE result_id = ? ORDER BY created_at, id`), resultID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []model.GradeEvent
	for rows.Next() {
		var (
			ev    model.GradeEvent
			marks string
		)
		if err := rows.Scan(&ev.ID, &ev.ResultID, &marks, &ev.OralReviewMarks, &ev.Score, &ev.Status, &ev.CreatedAt); err != nil {
			return nil, err
		}
		if marks != "" {
			if err := json.Unmarshal([]byte(marks), &ev.EssayMarks); err != nil {
				return nil, fmt.Errorf("grade event %s essay marks: %w", ev.ID, err)
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
