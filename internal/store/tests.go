package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pavelanni/assessor/internal/model"
)

const testColumns = `id, kind, slug, title, duration_minutes, status, requires_oral_review, oral_review_points, questions, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTest(row rowScanner) (*model.TestDefinition, error) {
	var (
		t   model.TestDefinition
		raw string
	)
	if err := row.Scan(&t.ID, &t.Kind, &t.Slug, &t.Title, &t.DurationMinutes, &t.Status,
		&t.RequiresOralReview, &t.OralReviewPoints, &raw, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	qs, err := model.DecodeQuestions([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("test %d: %w", t.ID, err)
	}
	t.Questions = qs
	return &t, nil
}

// UpsertTest inserts a definition or replaces the one with the same kind and slug.
func (s *Store) UpsertTest(ctx context.Context, t model.TestDefinition) (int64, error) {
	questions, err := model.EncodeQuestions(t.Questions)
	if err != nil {
		return 0, fmt.Errorf("encode questions: %w", err)
	}
	now := time.Now().UTC()
	var id int64
	err = s.db.QueryRowContext(ctx, s.rebind(
		`INSERT INTO tests (kind, slug, title, duration_minutes, status, requires_oral_review, oral_review_points, questions, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (kind, slug) DO UPDATE SET
			title = excluded.title,
			duration_minutes = excluded.duration_minutes,
			status = excluded.status,
			requires_oral_review = excluded.requires_oral_review,
			oral_review_points = excluded.oral_review_points,
			questions = excluded.questions,
			updated_at = excluded.updated_at
		 RETURNING id`),
		t.Kind, t.Slug, t.Title, t.DurationMinutes, t.Status, t.RequiresOralReview, t.OralReviewPoints, string(questions), now, now,
	).Scan(&id)
	return id, err
}

// GetTest returns a test of the given kind, or nil if there is none.
func (s *Store) GetTest(ctx context.Context, kind model.Kind, id int64) (*model.TestDefinition, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+testColumns+` FROM tests WHERE kind = ? AND id = ?`), kind, id)
	t, err := scanTest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// ListTests returns all tests of a kind ordered by id.
func (s *Store) ListTests(ctx context.Context, kind model.Kind) ([]model.TestDefinition, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+testColumns+` FROM tests WHERE kind = ? ORDER BY id`), kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tests []model.TestDefinition
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		tests = append(tests, *t)
	}
	return tests, rows.Err()
}

// SetTestStatus changes the publication status of a test.
func (s *Store) SetTestStatus(ctx context.Context, id int64, status model.TestStatus) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE tests SET status = ?, updated_at = ? WHERE id = ?`), status, time.Now().UTC(), id)
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
