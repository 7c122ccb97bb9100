package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pavelanni/assessor/internal/model"
)

const resultColumns = `id, reference, kind, student_id, test_id, attempt, score, total_points, percentage,
	answers, essay_marks, oral_review_marks, status, feedback, submitted_at, graded_at`

// ResultFilter narrows ListResults. Zero values mean no filtering on that field.
type ResultFilter struct {
	StudentID string
	TestID    int64
	Status    model.Status
}

func scanResult(row rowScanner) (*model.ResultRecord, error) {
	var (
		r                           model.ResultRecord
		reference                   sql.NullString
		answers, marks, feedbackRaw string
	)
	if err := row.Scan(&r.ID, &reference, &r.Kind, &r.StudentID, &r.TestID, &r.Attempt,
		&r.Score, &r.TotalPoints, &r.Percentage, &answers, &marks, &r.OralReviewMarks,
		&r.Status, &feedbackRaw, &r.SubmittedAt, &r.GradedAt); err != nil {
		return nil, err
	}
	r.Reference = reference.String
	if err := json.Unmarshal([]byte(answers), &r.Answers); err != nil {
		return nil, fmt.Errorf("result %d answers: %w", r.ID, err)
	}
	if marks != "" {
		if err := json.Unmarshal([]byte(marks), &r.EssayMarks); err != nil {
			return nil, fmt.Errorf("result %d essay marks: %w", r.ID, err)
		}
	}
	if feedbackRaw != "" {
		r.Feedback = &model.Feedback{}
		if err := json.Unmarshal([]byte(feedbackRaw), r.Feedback); err != nil {
			return nil, fmt.Errorf("result %d feedback: %w", r.ID, err)
		}
	}
	return &r, nil
}

func encodeOptional(v any, empty bool) (string, error) {
	if empty {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// InsertResult stores a new result and returns its id. A second row for the
// same (kind, student, test, attempt) fails with model.ErrDuplicate.
func (s *Store) InsertResult(ctx context.Context, r *model.ResultRecord) (int64, error) {
	answers, err := json.Marshal(r.Answers)
	if err != nil {
		return 0, fmt.Errorf("encode answers: %w", err)
	}
	marks, err := encodeOptional(r.EssayMarks, len(r.EssayMarks) == 0)
	if err != nil {
		return 0, fmt.Errorf("encode essay marks: %w", err)
	}
	feedback, err := encodeOptional(r.Feedback, r.Feedback == nil)
	if err != nil {
		return 0, fmt.Errorf("encode feedback: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx, s.rebind(
		`INSERT INTO results (reference, kind, student_id, test_id, attempt, score, total_points, percentage,
			answers, essay_marks, oral_review_marks, status, feedback, submitted_at, graded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`),
		sql.NullString{String: r.Reference, Valid: r.Reference != ""}, r.Kind, r.StudentID, r.TestID, r.Attempt,
		r.Score, r.TotalPoints, r.Percentage, string(answers), marks, r.OralReviewMarks, r.Status, feedback, r.SubmittedAt, r.GradedAt,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("result for student %s, test %d, attempt %d: %w",
				r.StudentID, r.TestID, r.Attempt, model.ErrDuplicate)
		}
		return 0, err
	}
	return id, nil
}

// GetResult returns a result of the given kind, or nil if there is none.
func (s *Store) GetResult(ctx context.Context, kind model.Kind, id int64) (*model.ResultRecord, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+resultColumns+` FROM results WHERE kind = ? AND id = ?`), kind, id)
	r, err := scanResult(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// FindResults returns every attempt of a student at a test, oldest first.
func (s *Store) FindResults(ctx context.Context, kind model.Kind, studentID string, testID int64) ([]model.ResultRecord, error) {
	return s.ListResults(ctx, kind, ResultFilter{StudentID: studentID, TestID: testID})
}

// ListResults returns results of a kind matching the filter, ordered by id.
func (s *Store) ListResults(ctx context.Context, kind model.Kind, f ResultFilter) ([]model.ResultRecord, error) {
	query := `SELECT ` + resultColumns + ` FROM results WHERE kind = ?`
	args := []any{kind}
	if f.StudentID != "" {
		query += ` AND student_id = ?`
		args = append(args, f.StudentID)
	}
	if f.TestID != 0 {
		query += ` AND test_id = ?`
		args = append(args, f.TestID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.ResultRecord
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *r)
	}
	return results, rows.Err()
}

// UpdateGrade persists the derived score, status, marks and feedback of a result.
func (s *Store) UpdateGrade(ctx context.Context, r *model.ResultRecord) error {
	marks, err := encodeOptional(r.EssayMarks, len(r.EssayMarks) == 0)
	if err != nil {
		return fmt.Errorf("encode essay marks: %w", err)
	}
	feedback, err := encodeOptional(r.Feedback, r.Feedback == nil)
	if err != nil {
		return fmt.Errorf("encode feedback: %w", err)
	}
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE results SET score = ?, total_points = ?, percentage = ?, essay_marks = ?,
			oral_review_marks = ?, status = ?, feedback = ?, graded_at = ?
		 WHERE kind = ? AND id = ?`),
		r.Score, r.TotalPoints, r.Percentage, marks, r.OralReviewMarks, r.Status, feedback, r.GradedAt,
		r.Kind, r.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
