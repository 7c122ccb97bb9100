package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrDuplicate is returned by stores when a write would violate a uniqueness rule.
var ErrDuplicate = errors.New("duplicate record")

// Kind identifies which assessment flow a test or result belongs to.
type Kind string

const (
	KindPlacement   Kind = "placement"
	KindProficiency Kind = "proficiency"
)

// Kinds lists every supported assessment kind.
var Kinds = []Kind{KindPlacement, KindProficiency}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown assessment kind %q", s)
}

// ReferencePrefix is the prefix of human-readable result references.
func (k Kind) ReferencePrefix() string {
	switch k {
	case KindPlacement:
		return "PLC"
	case KindProficiency:
		return "PRF"
	default:
		return "RES"
	}
}

// TestStatus is the publication state of a test definition.
type TestStatus string

const (
	TestDraft     TestStatus = "draft"
	TestPublished TestStatus = "published"
	TestArchived  TestStatus = "archived"
)

// TestDefinition is the question set and metadata for one assessment.
type TestDefinition struct {
	ID                 int64      `json:"id"`
	Kind               Kind       `json:"kind"`
	Slug               string     `json:"slug"`
	Title              string     `json:"title"`
	DurationMinutes    int        `json:"durationMinutes"`
	Status             TestStatus `json:"status"`
	RequiresOralReview bool       `json:"requiresOralReview"`
	// OralReviewPoints caps the oral mark and counts toward the total. Zero
	// leaves the oral mark uncapped and outside the total.
	OralReviewPoints   float64    `json:"oralReviewPoints,omitempty"`
	Questions          Questions  `json:"questions"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// Essays returns the essay questions of the test in order.
func (t TestDefinition) Essays() []*Essay {
	var out []*Essay
	for _, q := range t.Questions {
		if e, ok := q.(*Essay); ok {
			out = append(out, e)
		}
	}
	return out
}

// Question looks up a top-level question by id.
func (t TestDefinition) Question(id string) (Question, bool) {
	for _, q := range t.Questions {
		if q.QuestionID() == id {
			return q, true
		}
	}
	return nil, false
}

// AnswerMap holds learner answers keyed by question or sub-question id.
// Values are whatever the client sent; scoring only credits string answers.
type AnswerMap map[string]any

// Text returns the answer for id when it is a string.
func (a AnswerMap) Text(id string) (string, bool) {
	s, ok := a[id].(string)
	return s, ok
}

// Status is the grading state of a result.
type Status string

const (
	// StatusPending waits for manual marks.
	StatusPending Status = "pending"
	// StatusGraded is fully auto-scored.
	StatusGraded Status = "graded"
	// StatusCompleted has every manual component marked.
	StatusCompleted Status = "completed"
)

// Level is a placement hint derived from the percentage score.
type Level string

const (
	LevelAdvanced Level = "Advanced"
	LevelStandard Level = "Standard"
)

// Feedback holds grader comments.
type Feedback struct {
	Essay *string `json:"essay,omitempty"`
	Audio *string `json:"audio,omitempty"`
}

// QuestionScore is the per-question line of a score breakdown.
type QuestionScore struct {
	QuestionID   string          `json:"questionId"`
	Type         QuestionType    `json:"type"`
	Awarded      float64         `json:"awarded"`
	Possible     float64         `json:"possible"`
	Correct      bool            `json:"correct,omitempty"`
	Manual       bool            `json:"manual,omitempty"`
	Unscoreable  bool            `json:"unscoreable,omitempty"`
	SubQuestions []QuestionScore `json:"subQuestions,omitempty"`
}

// ResultRecord is the persisted outcome of one submission. Score, TotalPoints
// and Percentage are always derived server side.
type ResultRecord struct {
	ID               int64              `json:"id"`
	Reference        string             `json:"reference"`
	Kind             Kind               `json:"kind"`
	StudentID        string             `json:"studentId"`
	TestID           int64              `json:"testId"`
	Attempt          int                `json:"attempt"`
	Score            float64            `json:"score"`
	TotalPoints      float64            `json:"totalPoints"`
	Percentage       float64            `json:"percentage"`
	Answers          AnswerMap          `json:"answers"`
	EssayMarks       map[string]float64 `json:"essayMarks,omitempty"`
	OralReviewMarks  *float64           `json:"oralReviewMarks,omitempty"`
	Status           Status             `json:"status"`
	Feedback         *Feedback          `json:"feedback,omitempty"`
	RecommendedLevel *Level             `json:"recommendedLevel"`
	Breakdown        []QuestionScore    `json:"breakdown,omitempty"`
	SubmittedAt      time.Time          `json:"submittedAt"`
	GradedAt         *time.Time         `json:"gradedAt,omitempty"`
}

// Cohort groups students under an attempt policy.
type Cohort string

const (
	CohortStandard Cohort = "standard"
	// CohortProficiencyOnly students may submit the same test more than once.
	CohortProficiencyOnly Cohort = "proficiency_only"
)

// Student is a learner known to the assessment service.
type Student struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Cohort      Cohort    `json:"cohort"`
	CreatedAt   time.Time `json:"createdAt"`
}

// AllowsMultipleAttempts reports whether the student may retake a test.
func (s Student) AllowsMultipleAttempts() bool {
	return s.Cohort == CohortProficiencyOnly
}

// GradeEvent is one entry of the grading audit log.
type GradeEvent struct {
	ID              string             `json:"id"`
	ResultID        int64              `json:"resultId"`
	EssayMarks      map[string]float64 `json:"essayMarks,omitempty"`
	OralReviewMarks *float64           `json:"oralReviewMarks,omitempty"`
	Score           float64            `json:"score"`
	Status          Status             `json:"status"`
	CreatedAt       time.Time          `json:"createdAt"`
}

// EssaySuggestion is an advisory mark for an essay. It never counts toward a score.
type EssaySuggestion struct {
	QuestionID string  `json:"questionId"`
	Mark       float64 `json:"mark"`
	MaxPoints  float64 `json:"maxPoints"`
	Rationale  string  `json:"rationale"`
}
