package store

import (
	"context"
	"fmt"

	"github.com/pavelanni/assessor/internal/model"
)

// ExportResults returns every result of a kind joined with the student's name
// and the test title. Derived fields are as stored; callers enrich them.
func (s *Store) ExportResults(ctx context.Context, kind model.Kind) ([]model.ExportedResult, error) {
	cols := `r.id, r.reference, r.kind, r.student_id, r.test_id, r.attempt, r.score, r.total_points, r.percentage,
		r.answers, r.essay_marks, r.oral_review_marks, r.status, r.feedback, r.submitted_at, r.graded_at`
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+cols+`, COALESCE(st.display_name, ''), t.title
		 FROM results r
		 JOIN tests t ON t.id = r.test_id
		 LEFT JOIN students st ON st.id = r.student_id
		 WHERE r.kind = ?
		 ORDER BY r.id`), kind)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []model.ExportedResult
	for rows.Next() {
		var studentName, testTitle string
		r, err := scanResult(scannerWithTail{rows, []any{&studentName, &testTitle}})
		if err != nil {
			return nil, err
		}
		out = append(out, model.ExportedResult{
			ResultRecord: *r,
			StudentName:  studentName,
			TestTitle:    testTitle,
		})
	}
	return out, rows.Err()
}

// scannerWithTail appends extra destinations after the ones scanResult passes.
type scannerWithTail struct {
	row  rowScanner
	tail []any
}

func (s scannerWithTail) Scan(dest ...any) error {
	return s.row.Scan(append(dest, s.tail...)...)
}
