// Package assessment runs the submit and grade flows for one assessment kind.
// Placement and proficiency tests share this code and differ only in the kind
// and the collaborators they are given.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/pavelanni/assessor/internal/model"
	"github.com/pavelanni/assessor/internal/scoring"
	"github.com/pavelanni/assessor/internal/store"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadySubmitted    = errors.New("already submitted")
	ErrMalformedDefinition = model.ErrMalformedDefinition
	ErrSuggestionsDisabled = errors.New("essay suggestions are disabled")
)

// TestStore loads test definitions. GetTest returns nil, nil when absent.
type TestStore interface {
	GetTest(ctx context.Context, kind model.Kind, id int64) (*model.TestDefinition, error)
}

// SubmissionStore persists results. InsertResult must fail with
// model.ErrDuplicate when (kind, student, test, attempt) already exists.
type SubmissionStore interface {
	GetResult(ctx context.Context, kind model.Kind, id int64) (*model.ResultRecord, error)
	FindResults(ctx context.Context, kind model.Kind, studentID string, testID int64) ([]model.ResultRecord, error)
	ListResults(ctx context.Context, kind model.Kind, f store.ResultFilter) ([]model.ResultRecord, error)
	InsertResult(ctx context.Context, r *model.ResultRecord) (int64, error)
	UpdateGrade(ctx context.Context, r *model.ResultRecord) error
}

// StudentDirectory resolves students to their attempt policy.
type StudentDirectory interface {
	GetStudent(ctx context.Context, id string) (*model.Student, error)
}

// Sequencer hands out monotonically increasing numbers per name.
type Sequencer interface {
	NextSequence(ctx context.Context, name string) (int64, error)
}

// AuditLog records grading passes and reads them back per result.
type AuditLog interface {
	AppendGradeEvent(ctx context.Context, ev model.GradeEvent) error
	ListGradeEvents(ctx context.Context, resultID int64) ([]model.GradeEvent, error)
}

// Publisher notifies downstream consumers (certificates, reporting) of final results.
type Publisher interface {
	PublishFinalized(ctx context.Context, r model.ResultRecord) error
}

// Suggester proposes advisory essay marks.
type Suggester interface {
	SuggestEssayMark(ctx context.Context, essay model.Essay, answer string) (*model.EssaySuggestion, error)
}

// Service implements submit and grade for one assessment kind.
type Service struct {
	kind      model.Kind
	tests     TestStore
	results   SubmissionStore
	students  StudentDirectory
	sequences Sequencer
	audit     AuditLog
	publisher Publisher
	suggester Suggester
	threshold float64
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithStudents sets the directory used for the retake policy. Without it every
// student is limited to one attempt.
func WithStudents(d StudentDirectory) Option { return func(s *Service) { s.students = d } }

// WithSequencer enables human-readable result references.
func WithSequencer(q Sequencer) Option { return func(s *Service) { s.sequences = q } }

// WithAuditLog records every grading pass.
func WithAuditLog(a AuditLog) Option { return func(s *Service) { s.audit = a } }

// WithPublisher emits finalized results.
func WithPublisher(p Publisher) Option { return func(s *Service) { s.publisher = p } }

// WithSuggester enables advisory essay marks.
func WithSuggester(sg Suggester) Option { return func(s *Service) { s.suggester = sg } }

// WithAdvancedThreshold overrides the percentage needed for the advanced level.
func WithAdvancedThreshold(pct float64) Option { return func(s *Service) { s.threshold = pct } }

// New creates a Service for kind backed by the given stores.
func New(kind model.Kind, tests TestStore, results SubmissionStore, opts ...Option) *Service {
	s := &Service{
		kind:      kind,
		tests:     tests,
		results:   results,
		threshold: scoring.DefaultAdvancedThreshold,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Kind returns the assessment kind this service handles.
func (s *Service) Kind() model.Kind { return s.kind }

// SubmitInput is a learner's submission.
type SubmitInput struct {
	TestID    int64
	StudentID string
	Answers   model.AnswerMap
}

// Submit scores a submission and stores a new result. Tests with essays start
// pending; fully auto-scored tests start graded. A graded result is published
// right away unless the test still waits for an oral mark.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*model.ResultRecord, error) {
	test, err := s.publishedTest(ctx, in.TestID)
	if err != nil {
		return nil, err
	}

	previous, err := s.results.FindResults(ctx, s.kind, in.StudentID, in.TestID)
	if err != nil {
		return nil, fmt.Errorf("find previous results: %w", err)
	}
	attempt := 1
	if len(previous) > 0 {
		retake, err := s.allowsRetake(ctx, in.StudentID)
		if err != nil {
			return nil, err
		}
		if !retake {
			return nil, fmt.Errorf("student %s, test %d: %w", in.StudentID, in.TestID, ErrAlreadySubmitted)
		}
		for _, p := range previous {
			attempt = max(attempt, p.Attempt+1)
		}
	}

	answers := in.Answers
	if answers == nil {
		answers = model.AnswerMap{}
	}
	outcome := scoring.Score(*test, answers)

	rec := &model.ResultRecord{
		Kind:        s.kind,
		StudentID:   in.StudentID,
		TestID:      test.ID,
		Attempt:     attempt,
		Score:       outcome.AutoScore,
		TotalPoints: outcome.TotalPossible,
		Percentage:  scoring.Percentage(outcome.AutoScore, outcome.TotalPossible),
		Answers:     answers,
		Status:      scoring.InitialStatus(outcome),
		Breakdown:   outcome.Breakdown,
		SubmittedAt: s.now(),
	}
	awaiting := outcome.HasEssay || test.RequiresOralReview
	rec.RecommendedLevel = scoring.RecommendedLevel(rec.Percentage, s.threshold, awaiting)

	rec.Reference, err = s.nextReference(ctx)
	if err != nil {
		return nil, err
	}

	id, err := s.results.InsertResult(ctx, rec)
	if err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			return nil, fmt.Errorf("student %s, test %d: %w", in.StudentID, in.TestID, ErrAlreadySubmitted)
		}
		return nil, fmt.Errorf("insert result: %w", err)
	}
	rec.ID = id

	slog.Info("submission scored",
		"kind", s.kind,
		"result_id", rec.ID,
		"reference", rec.Reference,
		"student_id", rec.StudentID,
		"test_id", rec.TestID,
		"attempt", rec.Attempt,
		"score", rec.Score,
		"total", rec.TotalPoints,
		"status", rec.Status,
	)

	if rec.Status == model.StatusGraded && !awaiting {
		s.publish(ctx, *rec)
	}
	return rec, nil
}

// GradeInput carries manual marks for a stored result.
type GradeInput struct {
	ResultID int64
	// EssayMarks maps question ids to manual marks. Marks for non-essay
	// questions override their automatic score.
	EssayMarks      map[string]float64
	OralReviewMarks *float64
	Feedback        *model.Feedback
}

// Grade recomputes the automatic score from the current definition and the
// stored answers, merges manual marks over the stored ones and persists the
// new score and status. Repeating a call with the same marks changes nothing
// and publishes nothing new.
func (s *Service) Grade(ctx context.Context, in GradeInput) (*model.ResultRecord, error) {
	rec, err := s.results.GetResult(ctx, s.kind, in.ResultID)
	if err != nil {
		return nil, fmt.Errorf("get result %d: %w", in.ResultID, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("result %d: %w", in.ResultID, ErrNotFound)
	}
	test, err := s.tests.GetTest(ctx, s.kind, rec.TestID)
	if err != nil {
		return nil, fmt.Errorf("get test %d: %w", rec.TestID, err)
	}
	if test == nil {
		return nil, fmt.Errorf("test %d of result %d: %w", rec.TestID, rec.ID, ErrNotFound)
	}

	marks := make(map[string]float64, len(rec.EssayMarks)+len(in.EssayMarks))
	maps.Copy(marks, rec.EssayMarks)
	maps.Copy(marks, in.EssayMarks)
	oral := rec.OralReviewMarks
	if in.OralReviewMarks != nil {
		o := scoring.OralMark(*test, *in.OralReviewMarks)
		oral = &o
	}

	m := scoring.Marks{Questions: marks, Oral: oral}
	g := scoring.Grade(*test, rec.Answers, m)

	previousStatus, previousScore := rec.Status, rec.Score
	now := s.now()
	rec.Score = g.Score
	rec.TotalPoints = g.TotalPossible
	rec.Percentage = scoring.Percentage(g.Score, g.TotalPossible)
	rec.Status = g.Status
	rec.EssayMarks = marks
	rec.OralReviewMarks = oral
	rec.Feedback = mergeFeedback(rec.Feedback, in.Feedback)
	rec.Breakdown = g.Breakdown
	rec.GradedAt = &now
	rec.RecommendedLevel = scoring.RecommendedLevel(rec.Percentage, s.threshold, scoring.AwaitingManual(*test, m))

	if err := s.results.UpdateGrade(ctx, rec); err != nil {
		return nil, fmt.Errorf("update result %d: %w", rec.ID, err)
	}

	if s.audit != nil {
		ev := model.GradeEvent{
			ResultID:        rec.ID,
			EssayMarks:      in.EssayMarks,
			OralReviewMarks: in.OralReviewMarks,
			Score:           rec.Score,
			Status:          rec.Status,
			CreatedAt:       now,
		}
		if err := s.audit.AppendGradeEvent(ctx, ev); err != nil {
			slog.Error("failed to record grade event", "result_id", rec.ID, "error", err)
		}
	}

	slog.Info("result graded",
		"kind", s.kind,
		"result_id", rec.ID,
		"score", rec.Score,
		"previous_status", previousStatus,
		"status", rec.Status,
	)

	changed := previousStatus != model.StatusCompleted || previousScore != rec.Score
	if rec.Status == model.StatusCompleted && changed {
		s.publish(ctx, *rec)
	}
	return rec, nil
}

// Get returns a result with its derived fields recomputed from the current
// test definition. The stored score is returned as is.
func (s *Service) Get(ctx context.Context, id int64) (*model.ResultRecord, error) {
	rec, err := s.results.GetResult(ctx, s.kind, id)
	if err != nil {
		return nil, fmt.Errorf("get result %d: %w", id, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("result %d: %w", id, ErrNotFound)
	}
	s.enrich(ctx, rec, newTestCache(s))
	return rec, nil
}

// List returns enriched results matching the filter.
func (s *Service) List(ctx context.Context, f store.ResultFilter) ([]model.ResultRecord, error) {
	recs, err := s.results.ListResults(ctx, s.kind, f)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	cache := newTestCache(s)
	for i := range recs {
		s.enrich(ctx, &recs[i], cache)
	}
	return recs, nil
}

// Events returns the grading history of a result, oldest first. Without an
// audit log the history is empty.
func (s *Service) Events(ctx context.Context, resultID int64) ([]model.GradeEvent, error) {
	rec, err := s.results.GetResult(ctx, s.kind, resultID)
	if err != nil {
		return nil, fmt.Errorf("get result %d: %w", resultID, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("result %d: %w", resultID, ErrNotFound)
	}
	if s.audit == nil {
		return []model.GradeEvent{}, nil
	}
	events, err := s.audit.ListGradeEvents(ctx, resultID)
	if err != nil {
		return nil, fmt.Errorf("list grade events of result %d: %w", resultID, err)
	}
	if events == nil {
		events = []model.GradeEvent{}
	}
	return events, nil
}

// Test returns a published or unpublished definition by id.
func (s *Service) Test(ctx context.Context, id int64) (*model.TestDefinition, error) {
	test, err := s.tests.GetTest(ctx, s.kind, id)
	if err != nil {
		return nil, fmt.Errorf("get test %d: %w", id, err)
	}
	if test == nil {
		return nil, fmt.Errorf("test %d: %w", id, ErrNotFound)
	}
	return test, nil
}

// Suggest asks the configured suggester for an advisory mark for every
// unmarked essay of a result.
func (s *Service) Suggest(ctx context.Context, resultID int64) ([]model.EssaySuggestion, error) {
	if s.suggester == nil {
		return nil, ErrSuggestionsDisabled
	}
	rec, err := s.results.GetResult(ctx, s.kind, resultID)
	if err != nil {
		return nil, fmt.Errorf("get result %d: %w", resultID, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("result %d: %w", resultID, ErrNotFound)
	}
	test, err := s.Test(ctx, rec.TestID)
	if err != nil {
		return nil, err
	}

	var out []model.EssaySuggestion
	for _, e := range test.Essays() {
		if _, marked := rec.EssayMarks[e.ID]; marked {
			continue
		}
		answer, _ := rec.Answers.Text(e.ID)
		sg, err := s.suggester.SuggestEssayMark(ctx, *e, answer)
		if err != nil {
			return nil, fmt.Errorf("suggest mark for %s: %w", e.ID, err)
		}
		out = append(out, *sg)
	}
	return out, nil
}

func (s *Service) publishedTest(ctx context.Context, id int64) (*model.TestDefinition, error) {
	test, err := s.tests.GetTest(ctx, s.kind, id)
	if err != nil {
		return nil, fmt.Errorf("get test %d: %w", id, err)
	}
	if test == nil || test.Status != model.TestPublished {
		return nil, fmt.Errorf("test %d: %w", id, ErrNotFound)
	}
	return test, nil
}

func (s *Service) allowsRetake(ctx context.Context, studentID string) (bool, error) {
	if s.students == nil {
		return false, nil
	}
	st, err := s.students.GetStudent(ctx, studentID)
	if err != nil {
		return false, fmt.Errorf("get student %s: %w", studentID, err)
	}
	return st != nil && st.AllowsMultipleAttempts(), nil
}

func (s *Service) nextReference(ctx context.Context) (string, error) {
	if s.sequences == nil {
		return "", nil
	}
	n, err := s.sequences.NextSequence(ctx, "results:"+string(s.kind))
	if err != nil {
		return "", fmt.Errorf("allocate reference: %w", err)
	}
	return fmt.Sprintf("%s-%06d", s.kind.ReferencePrefix(), n), nil
}

func (s *Service) publish(ctx context.Context, rec model.ResultRecord) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishFinalized(ctx, rec); err != nil {
		slog.Error("failed to publish finalized result", "result_id", rec.ID, "error", err)
	}
}

func mergeFeedback(stored, incoming *model.Feedback) *model.Feedback {
	if incoming == nil {
		return stored
	}
	out := model.Feedback{}
	if stored != nil {
		out = *stored
	}
	if incoming.Essay != nil {
		out.Essay = incoming.Essay
	}
	if incoming.Audio != nil {
		out.Audio = incoming.Audio
	}
	return &out
}
