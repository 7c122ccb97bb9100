package assessment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/pavelanni/assessor/internal/model"
	"github.com/pavelanni/assessor/internal/store"
)

func ptr[T any](v T) *T { return &v }

type recordingPublisher struct {
	mu        sync.Mutex
	published []model.ResultRecord
}

func (p *recordingPublisher) PublishFinalized(_ context.Context, r model.ResultRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, r)
	return nil
}

type fixedSuggester struct {
	calls []string
}

func (f *fixedSuggester) SuggestEssayMark(_ context.Context, e model.Essay, answer string) (*model.EssaySuggestion, error) {
	f.calls = append(f.calls, e.ID+":"+answer)
	return &model.EssaySuggestion{QuestionID: e.ID, Mark: e.MaxPoints() / 2, MaxPoints: e.MaxPoints(), Rationale: "ok"}, nil
}

type fixture struct {
	st  *store.Store
	svc *Service
	pub *recordingPublisher
}

func newFixture(t *testing.T, kind model.Kind, opts ...Option) *fixture {
	t.Helper()
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	pub := &recordingPublisher{}
	all := append([]Option{
		WithStudents(st),
		WithSequencer(st),
		WithAuditLog(st),
		WithPublisher(pub),
	}, opts...)
	return &fixture{st: st, svc: New(kind, st, st, all...), pub: pub}
}

func (f *fixture) addTest(t *testing.T, slug string, status model.TestStatus, oral bool, qs ...model.Question) int64 {
	t.Helper()
	id, err := f.st.UpsertTest(context.Background(), model.TestDefinition{
		Kind:               f.svc.Kind(),
		Slug:               slug,
		Title:              "Test " + slug,
		Status:             status,
		RequiresOralReview: oral,
		Questions:          qs,
	})
	if err != nil {
		t.Fatalf("UpsertTest: %v", err)
	}
	return id
}

func mcq(id string, points float64, correct int, options ...string) *model.MCQ {
	return &model.MCQ{ID: id, Points: ptr(points), Options: options, CorrectOptionIndex: ptr(correct)}
}

func essay(id string, points float64) *model.Essay {
	return &model.Essay{ID: id, Points: ptr(points), Prompt: "Describe your last holiday."}
}

func TestSubmitAutoScoredTest(t *testing.T) {
	f := newFixture(t, model.KindPlacement)
	ctx := context.Background()
	testID := f.addTest(t, "a", model.TestPublished, false, mcq("q1", 2, 0, "A", "B"))

	rec, err := f.svc.Submit(ctx, SubmitInput{TestID: testID, StudentID: "s1", Answers: model.AnswerMap{"q1": "A"}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if rec.Score != 2 || rec.TotalPoints != 2 || rec.Percentage != 100 {
		t.Errorf("score = %v/%v (%v%%), want 2/2 (100%%)", rec.Score, rec.TotalPoints, rec.Percentage)
	}
	if rec.Status != model.StatusGraded {
		t.Errorf("status = %q, want graded", rec.Status)
	}
	if rec.Reference != "PLC-000001" {
		t.Errorf("reference = %q, want PLC-000001", rec.Reference)
	}
	if rec.RecommendedLevel == nil || *rec.RecommendedLevel != model.LevelAdvanced {
		t.Errorf("recommended level = %v, want Advanced", rec.RecommendedLevel)
	}
	if len(f.pub.published) != 1 || f.pub.published[0].ID != rec.ID {
		t.Errorf("published = %+v, want the graded result", f.pub.published)
	}

	got, err := f.svc.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Score != 2 || got.Status != model.StatusGraded || got.Attempt != 1 {
		t.Errorf("stored result = %+v", got)
	}
}

func TestSubmitAndGradeEssay(t *testing.T) {
	f := newFixture(t, model.KindProficiency)
	ctx := context.Background()
	testID := f.addTest(t, "b", model.TestPublished, false, essay("q1", 10))

	rec, err := f.svc.Submit(ctx, SubmitInput{TestID: testID, StudentID: "s1", Answers: model.AnswerMap{"q1": "My essay"}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if rec.Score != 0 || rec.TotalPoints != 10 || rec.Status != model.StatusPending {
		t.Errorf("submitted = %v/%v %q, want 0/10 pending", rec.Score, rec.TotalPoints, rec.Status)
	}
	if rec.RecommendedLevel != nil {
		t.Errorf("recommended level = %v, want nil while the essay is unmarked", *rec.RecommendedLevel)
	}
	if rec.Reference != "PRF-000001" {
		t.Errorf("reference = %q, want PRF-000001", rec.Reference)
	}
	if len(f.pub.published) != 0 {
		t.Errorf("pending result was published")
	}

	graded, err := f.svc.Grade(ctx, GradeInput{
		ResultID:   rec.ID,
		EssayMarks: map[string]float64{"q1": 7},
		Feedback:   &model.Feedback{Essay: ptr("Good structure")},
	})
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if graded.Score != 7 || graded.Status != model.StatusCompleted {
		t.Errorf("graded = %v %q, want 7 completed", graded.Score, graded.Status)
	}
	if graded.RecommendedLevel == nil || *graded.RecommendedLevel != model.LevelStandard {
		t.Errorf("recommended level = %v, want Standard", graded.RecommendedLevel)
	}
	if graded.GradedAt == nil {
		t.Error("graded_at not set")
	}
	if len(f.pub.published) != 1 {
		t.Errorf("published %d results, want 1", len(f.pub.published))
	}

	events, err := f.svc.Events(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 1 || events[0].Score != 7 || events[0].ID == "" {
		t.Errorf("events = %+v", events)
	}

	got, err := f.svc.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Feedback == nil || got.Feedback.Essay == nil || *got.Feedback.Essay != "Good structure" {
		t.Errorf("feedback = %+v", got.Feedback)
	}
	if got.EssayMarks["q1"] != 7 {
		t.Errorf("essay marks = %v", got.EssayMarks)
	}
}

func TestSubmitTwiceIsRejected(t *testing.T) {
	f := newFixture(t, model.KindPlacement)
	ctx := context.Background()
	testID := f.addTest(t, "a", model.TestPublished, false, mcq("q1", 1, 0, "A", "B"))

	in := SubmitInput{TestID: testID, StudentID: "s1", Answers: model.AnswerMap{"q1": "A"}}
	if _, err := f.svc.Submit(ctx, in); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	_, err := f.svc.Submit(ctx, in)
	if !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("second Submit error = %v, want ErrAlreadySubmitted", err)
	}
	recs, err := f.svc.List(ctx, store.ResultFilter{StudentID: "s1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("stored %d results, want 1", len(recs))
	}
}

func TestRetakeCohortGetsNewAttempts(t *testing.T) {
	f := newFixture(t, model.KindProficiency)
	ctx := context.Background()
	testID := f.addTest(t, "a", model.TestPublished, false, mcq("q1", 1, 0, "A", "B"))
	if err := f.st.UpsertStudent(ctx, model.Student{ID: "s1", Cohort: model.CohortProficiencyOnly}); err != nil {
		t.Fatalf("UpsertStudent: %v", err)
	}

	for want := 1; want <= 3; want++ {
		rec, err := f.svc.Submit(ctx, SubmitInput{TestID: testID, StudentID: "s1", Answers: model.AnswerMap{"q1": "B"}})
		if err != nil {
			t.Fatalf("Submit attempt %d: %v", want, err)
		}
		if rec.Attempt != want {
			t.Errorf("attempt = %d, want %d", rec.Attempt, want)
		}
	}
}

func TestSubmitUnavailableTest(t *testing.T) {
	f := newFixture(t, model.KindPlacement)
	ctx := context.Background()
	draft := f.addTest(t, "draft", model.TestDraft, false, mcq("q1", 1, 0, "A"))

	tests := []struct {
		name   string
		testID int64
	}{
		{"draft", draft},
		{"missing", 999},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Submit(ctx, SubmitInput{TestID: tt.testID, StudentID: "s1"})
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestSubmitWrongKindIsNotFound(t *testing.T) {
	f := newFixture(t, model.KindPlacement)
	ctx := context.Background()
	id, err := f.st.UpsertTest(ctx, model.TestDefinition{
		Kind:      model.KindProficiency,
		Slug:      "p",
		Status:    model.TestPublished,
		Questions: model.Questions{mcq("q1", 1, 0, "A")},
	})
	if err != nil {
		t.Fatalf("UpsertTest: %v", err)
	}
	if _, err := f.svc.Submit(ctx, SubmitInput{TestID: id, StudentID: "s1"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestGradeUnknownResult(t *testing.T) {
	f := newFixture(t, model.KindPlacement)
	_, err := f.svc.Grade(context.Background(), GradeInput{ResultID: 42, EssayMarks: map[string]float64{"q1": 1}})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.Get(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get error = %v, want ErrNotFound", err)
	}
}

func TestGradeIsIdempotent(t *testing.T) {
	f := newFixture(t, model.KindPlacement)
	ctx := context.Background()
	testID := f.addTest(t, "mix", model.TestPublished, false,
		mcq("q1", 2, 0, "A", "B"),
		essay("e1", 5),
	)
	rec, err := f.svc.Submit(ctx, SubmitInput{TestID: testID, StudentID: "s1", Answers: model.AnswerMap{"q1": "A", "e1": "text"}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	in := GradeInput{ResultID: rec.ID, EssayMarks: map[string]float64{"e1": 3}}
	first, err := f.svc.Grade(ctx, in)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	second, err := f.svc.Grade(ctx, in)
	if err != nil {
		t.Fatalf("Grade again: %v", err)
	}
	if first.Score != 5 || second.Score != 5 || first.Status != second.Status {
		t.Errorf("scores = %v, %v (%q, %q), want 5 both times", first.Score, second.Score, first.Status, second.Status)
	}
	if len(f.pub.published) != 1 {
		t.Errorf("published %d times, want 1", len(f.pub.published))
	}

	changed, err := f.svc.Grade(ctx, GradeInput{ResultID: rec.ID, EssayMarks: map[string]float64{"e1": 4}})
	if err != nil {
		t.Fatalf("Grade with a new mark: %v", err)
	}
	if changed.Score != 6 {
		t.Errorf("score = %v, want 6", changed.Score)
	}
	if len(f.pub.published) != 2 || f.pub.published[1].Score != 6 {
		t.Errorf("published = %+v, want a second publish with score 6", f.pub.published)
	}

	if _, err := f.svc.Grade(ctx, GradeInput{ResultID: rec.ID, Feedback: &model.Feedback{Essay: ptr("ok")}}); err != nil {
		t.Fatalf("Grade with feedback only: %v", err)
	}
	if len(f.pub.published) != 2 {
		t.Errorf("feedback-only regrade published again (%d publishes)", len(f.pub.published))
	}
}

func TestGradeRecomputesCorruptedScore(t *testing.T) {
	f := newFixture(t, model.KindPlacement)
	ctx := context.Background()
	testID := f.addTest(t, "mix", model.TestPublished, false,
		mcq("q1", 2, 0, "A", "B"),
		essay("e1", 5),
	)
	rec, err := f.svc.Submit(ctx, SubmitInput{TestID: testID, StudentID: "s1", Answers: model.AnswerMap{"q1": "A"}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	rec.Score = 99
	if err := f.st.UpdateGrade(ctx, rec); err != nil {
		t.Fatalf("UpdateGrade: %v", err)
	}

	graded, err := f.svc.Grade(ctx, GradeInput{ResultID: rec.ID, EssayMarks: map[string]float64{"e1": 4}})
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if graded.Score != 6 {
		t.Errorf("score = %v, want 6", graded.Score)
	}
}

func TestGradeMergesMarksAndClamps(t *testing.T) {
	f := newFixture(t, model.KindProficiency)
	ctx := context.Background()
	testID := f.addTest(t, "two", model.TestPublished, false, essay("e1", 5), essay("e2", 5))
	rec, err := f.svc.Submit(ctx, SubmitInput{TestID: testID, StudentID: "s1"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	partial, err := f.svc.Grade(ctx, GradeInput{ResultID: rec.ID, EssayMarks: map[string]float64{"e1": 9}})
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if partial.Score != 5 || partial.Status != model.StatusPending {
		t.Errorf("partial = %v %q, want 5 pending", partial.Score, partial.Status)
	}

	full, err := f.svc.Grade(ctx, GradeInput{ResultID: rec.ID, EssayMarks: map[string]float64{"e2": 2}})
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if full.Score != 7 || full.Status != model.StatusCompleted {
		t.Errorf("full = %v %q, want 7 completed", full.Score, full.Status)
	}
}

func TestGradeWithOralReview(t *testing.T) {
	f := newFixture(t, model.KindProficiency)
	ctx := context.Background()
	testID := f.addTest(t, "oral", model.TestPublished, true, essay("e1", 10))
	rec, err := f.svc.Submit(ctx, SubmitInput{TestID: testID, StudentID: "s1"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	g, err := f.svc.Grade(ctx, GradeInput{ResultID: rec.ID, EssayMarks: map[string]float64{"e1": 6}})
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if g.Status != model.StatusPending {
		t.Errorf("status without oral mark = %q, want pending", g.Status)
	}

	g, err = f.svc.Grade(ctx, GradeInput{ResultID: rec.ID, OralReviewMarks: ptr(3.0)})
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if g.Score != 9 || g.Status != model.StatusCompleted {
		t.Errorf("with oral = %v %q, want 9 completed", g.Score, g.Status)
	}
}

func TestOralReviewHoldsAutoScoredResult(t *testing.T) {
	f := newFixture(t, model.KindPlacement)
	ctx := context.Background()
	testID := f.addTest(t, "oral-mcq", model.TestPublished, true, mcq("q1", 2, 0, "A", "B"))

	rec, err := f.svc.Submit(ctx, SubmitInput{TestID: testID, StudentID: "s1", Answers: model.AnswerMap{"q1": "A"}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if rec.Status != model.StatusGraded {
		t.Errorf("status = %q, want graded", rec.Status)
	}
	if rec.RecommendedLevel != nil {
		t.Errorf("recommended level = %v, want nil until the oral mark", *rec.RecommendedLevel)
	}
	if len(f.pub.published) != 0 {
		t.Fatalf("published %d results before the oral mark", len(f.pub.published))
	}
	got, err := f.svc.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.RecommendedLevel != nil {
		t.Errorf("Get recommended level = %v, want nil", *got.RecommendedLevel)
	}

	g, err := f.svc.Grade(ctx, GradeInput{ResultID: rec.ID, OralReviewMarks: ptr(1.0)})
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if g.Status != model.StatusCompleted || g.Score != 3 {
		t.Errorf("graded = %v %q, want 3 completed", g.Score, g.Status)
	}
	if g.RecommendedLevel == nil {
		t.Error("recommended level withheld after the oral mark")
	}
	if len(f.pub.published) != 1 || f.pub.published[0].Status != model.StatusCompleted {
		t.Errorf("published = %+v, want one completed result", f.pub.published)
	}
}

func TestOralMarkIsCapped(t *testing.T) {
	f := newFixture(t, model.KindProficiency)
	ctx := context.Background()
	id, err := f.st.UpsertTest(ctx, model.TestDefinition{
		Kind:               model.KindProficiency,
		Slug:               "capped",
		Status:             model.TestPublished,
		RequiresOralReview: true,
		OralReviewPoints:   5,
		Questions:          model.Questions{mcq("q1", 5, 0, "A", "B")},
	})
	if err != nil {
		t.Fatalf("UpsertTest: %v", err)
	}
	rec, err := f.svc.Submit(ctx, SubmitInput{TestID: id, StudentID: "s1", Answers: model.AnswerMap{"q1": "A"}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if rec.TotalPoints != 10 {
		t.Errorf("total = %v, want 10 including oral points", rec.TotalPoints)
	}

	g, err := f.svc.Grade(ctx, GradeInput{ResultID: rec.ID, OralReviewMarks: ptr(50.0)})
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if g.Score != 10 || g.Percentage != 100 {
		t.Errorf("graded = %v (%v%%), want 10 (100%%)", g.Score, g.Percentage)
	}
	if g.OralReviewMarks == nil || *g.OralReviewMarks != 5 {
		t.Errorf("stored oral mark = %v, want 5", g.OralReviewMarks)
	}
}

func TestEvents(t *testing.T) {
	f := newFixture(t, model.KindProficiency)
	ctx := context.Background()
	if _, err := f.svc.Events(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown result error = %v, want ErrNotFound", err)
	}

	testID := f.addTest(t, "ev", model.TestPublished, false, essay("e1", 5))
	rec, err := f.svc.Submit(ctx, SubmitInput{TestID: testID, StudentID: "s1"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	events, err := f.svc.Events(ctx, rec.ID)
	if err != nil || events == nil || len(events) != 0 {
		t.Fatalf("Events before grading = %v, %v; want empty", events, err)
	}

	bare := New(model.KindProficiency, f.st, f.st)
	events, err = bare.Events(ctx, rec.ID)
	if err != nil || len(events) != 0 {
		t.Errorf("Events without an audit log = %v, %v; want empty", events, err)
	}
}

func TestGetReflectsEditedPoints(t *testing.T) {
	f := newFixture(t, model.KindPlacement)
	ctx := context.Background()
	testID := f.addTest(t, "edit", model.TestPublished, false, mcq("q1", 2, 0, "A", "B"))
	rec, err := f.svc.Submit(ctx, SubmitInput{TestID: testID, StudentID: "s1", Answers: model.AnswerMap{"q1": "A"}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	f.addTest(t, "edit", model.TestPublished, false, mcq("q1", 2, 0, "A", "B"), mcq("q2", 2, 0, "A", "B"))

	got, err := f.svc.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Score != 2 || got.TotalPoints != 4 || got.Percentage != 50 {
		t.Errorf("got %v/%v (%v%%), want 2/4 (50%%)", got.Score, got.TotalPoints, got.Percentage)
	}
	if got.RecommendedLevel == nil || *got.RecommendedLevel != model.LevelStandard {
		t.Errorf("recommended level = %v, want Standard", got.RecommendedLevel)
	}
}

func TestSubmitEmptyTest(t *testing.T) {
	f := newFixture(t, model.KindPlacement)
	ctx := context.Background()
	testID := f.addTest(t, "empty", model.TestPublished, false)

	rec, err := f.svc.Submit(ctx, SubmitInput{TestID: testID, StudentID: "s1"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if rec.Score != 0 || rec.TotalPoints != 0 || rec.Percentage != 0 || rec.Status != model.StatusGraded {
		t.Errorf("got %v/%v (%v%%) %q, want 0/0 (0%%) graded", rec.Score, rec.TotalPoints, rec.Percentage, rec.Status)
	}
}

func TestSubmitWithoutOptionalCollaborators(t *testing.T) {
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	svc := New(model.KindPlacement, st, st, WithAdvancedThreshold(50))
	ctx := context.Background()
	testID, err := st.UpsertTest(ctx, model.TestDefinition{
		Kind:      model.KindPlacement,
		Slug:      "bare",
		Status:    model.TestPublished,
		Questions: model.Questions{mcq("q1", 2, 0, "A", "B"), mcq("q2", 2, 0, "A", "B")},
	})
	if err != nil {
		t.Fatalf("UpsertTest: %v", err)
	}

	for _, student := range []string{"s1", "s2"} {
		rec, err := svc.Submit(ctx, SubmitInput{TestID: testID, StudentID: student, Answers: model.AnswerMap{"q1": "A"}})
		if err != nil {
			t.Fatalf("Submit %s: %v", student, err)
		}
		if rec.Reference != "" {
			t.Errorf("reference = %q, want empty without a sequencer", rec.Reference)
		}
		if rec.RecommendedLevel == nil || *rec.RecommendedLevel != model.LevelAdvanced {
			t.Errorf("recommended level = %v, want Advanced at threshold 50", rec.RecommendedLevel)
		}
	}
}

func TestSuggest(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		f := newFixture(t, model.KindPlacement)
		if _, err := f.svc.Suggest(ctx, 1); !errors.Is(err, ErrSuggestionsDisabled) {
			t.Errorf("error = %v, want ErrSuggestionsDisabled", err)
		}
	})

	t.Run("unmarked essays only", func(t *testing.T) {
		sg := &fixedSuggester{}
		f := newFixture(t, model.KindPlacement, WithSuggester(sg))
		testID := f.addTest(t, "s", model.TestPublished, false, essay("e1", 4), essay("e2", 6))
		rec, err := f.svc.Submit(ctx, SubmitInput{TestID: testID, StudentID: "s1", Answers: model.AnswerMap{"e1": "one", "e2": "two"}})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if _, err := f.svc.Grade(ctx, GradeInput{ResultID: rec.ID, EssayMarks: map[string]float64{"e1": 2}}); err != nil {
			t.Fatalf("Grade: %v", err)
		}

		got, err := f.svc.Suggest(ctx, rec.ID)
		if err != nil {
			t.Fatalf("Suggest: %v", err)
		}
		if len(got) != 1 || got[0].QuestionID != "e2" || got[0].Mark != 3 || got[0].MaxPoints != 6 {
			t.Errorf("suggestions = %+v", got)
		}
		if len(sg.calls) != 1 || sg.calls[0] != "e2:two" {
			t.Errorf("suggester calls = %v", sg.calls)
		}
	})
}

func TestExportEnrichesRows(t *testing.T) {
	f := newFixture(t, model.KindPlacement)
	ctx := context.Background()
	testID := f.addTest(t, "x", model.TestPublished, false, mcq("q1", 2, 0, "A", "B"))
	if err := f.st.UpsertStudent(ctx, model.Student{ID: "s1", DisplayName: "Ann"}); err != nil {
		t.Fatalf("UpsertStudent: %v", err)
	}
	if _, err := f.svc.Submit(ctx, SubmitInput{TestID: testID, StudentID: "s1", Answers: model.AnswerMap{"q1": "A"}}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	rows, err := f.svc.Export(ctx, f.st)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("exported %d rows, want 1", len(rows))
	}
	r := rows[0]
	if r.StudentName != "Ann" || r.TestTitle != "Test x" || r.Percentage != 100 || len(r.Breakdown) != 1 {
		t.Errorf("row = %+v", r)
	}
}
