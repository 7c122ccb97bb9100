package store

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/pavelanni/assessor/internal/model"
)

// UpsertStudent inserts a student or updates the name and cohort of an existing one.
func (s *Store) UpsertStudent(ctx context.Context, st model.Student) error {
	if st.Cohort == "" {
		st.Cohort = model.CohortStandard
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO students (id, display_name, cohort, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET display_name = excluded.display_name, cohort = excluded.cohort`),
		st.ID, st.DisplayName, st.Cohort, time.Now().UTC(),
	)
	if err != nil {
		slog.Error("failed to upsert student", "id", st.ID, "error", err)
		return err
	}
	slog.Info("saved student", "id", st.ID, "cohort", st.Cohort)
	return nil
}

// GetStudent returns a student by ID, or nil if unknown.
func (s *Store) GetStudent(ctx context.Context, id string) (*model.Student, error) {
	var st model.Student
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, display_name, cohort, created_at FROM students WHERE id = ?`), id,
	).Scan(&st.ID, &st.DisplayName, &st.Cohort, &st.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// ListStudents returns all students.
func (s *Store) ListStudents(ctx context.Context) ([]model.Student, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, display_name, cohort, created_at FROM students ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var students []model.Student
	for rows.Next() {
		var st model.Student
		if err := rows.Scan(&st.ID, &st.DisplayName, &st.Cohort, &st.CreatedAt); err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	return students, rows.Err()
}
