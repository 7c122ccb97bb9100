package scoring

import "github.com/pavelanni/assessor/internal/model"

// DefaultAdvancedThreshold is the percentage at or above which a learner is
// recommended the advanced level.
const DefaultAdvancedThreshold = 80.0

// Marks are the manual inputs of a grading pass.
type Marks struct {
	// Questions maps a top-level question id to a manual mark. For essays it is
	// the essay mark; for other questions it replaces the automatic score.
	Questions map[string]float64
	// Oral is a flat additive term independent of any question.
	Oral *float64
}

// Graded is the result of merging automatic scoring with manual marks.
type Graded struct {
	Score         float64
	TotalPossible float64
	Status        model.Status
	HasEssay      bool
	EssaysMarked  bool
	Breakdown     []model.QuestionScore
}

// InitialStatus is the status a fresh submission starts in.
func InitialStatus(o Outcome) model.Status {
	if o.HasEssay {
		return model.StatusPending
	}
	return model.StatusGraded
}

// Grade recomputes the automatic part of the score from the definition and
// the stored answers, then applies marks. Marks are clamped to the points of
// the question they target. Calling Grade again with the same inputs gives
// the same result, which is what heals a corrupted stored score.
func Grade(test model.TestDefinition, answers model.AnswerMap, marks Marks) Graded {
	o := Score(test, answers)
	g := Graded{
		TotalPossible: o.TotalPossible,
		HasEssay:      o.HasEssay,
		EssaysMarked:  true,
		Breakdown:     o.Breakdown,
	}

	for i := range g.Breakdown {
		qs := &g.Breakdown[i]
		mark, ok := marks.Questions[qs.QuestionID]
		switch {
		case ok:
			qs.Awarded = clamp(mark, 0, qs.Possible)
			qs.Manual = true
		case qs.Type == model.TypeEssay:
			g.EssaysMarked = false
		}
		g.Score += qs.Awarded
	}

	if marks.Oral != nil {
		g.Score += OralMark(test, *marks.Oral)
	}

	oralDone := !test.RequiresOralReview || marks.Oral != nil
	switch {
	case g.EssaysMarked && oralDone:
		g.Status = model.StatusCompleted
	case o.HasEssay:
		g.Status = model.StatusPending
	default:
		// Auto-only tests never go back to pending; they wait in graded
		// until the oral mark arrives.
		g.Status = model.StatusGraded
	}
	return g
}

// Percentage returns score as a percentage of total, or 0 for an empty total.
func Percentage(score, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return score / total * 100
}

// RecommendedLevel derives the placement hint. It is withheld (nil) while
// manual grading is outstanding.
func RecommendedLevel(percentage, threshold float64, withheld bool) *model.Level {
	if withheld {
		return nil
	}
	level := model.LevelStandard
	if percentage >= threshold {
		level = model.LevelAdvanced
	}
	return &level
}

// EssayUngraded reports whether any essay of the test lacks a mark.
func EssayUngraded(test model.TestDefinition, marks map[string]float64) bool {
	for _, e := range test.Essays() {
		if _, ok := marks[e.ID]; !ok {
			return true
		}
	}
	return false
}

// AwaitingManual reports whether an essay mark or a required oral mark is
// still missing.
func AwaitingManual(test model.TestDefinition, marks Marks) bool {
	if test.RequiresOralReview && marks.Oral == nil {
		return true
	}
	return EssayUngraded(test, marks.Questions)
}

// OralMark bounds an oral mark to [0, test.OralReviewPoints]. A test without
// oral points only gets the lower bound.
func OralMark(test model.TestDefinition, mark float64) float64 {
	if test.OralReviewPoints > 0 {
		return clamp(mark, 0, test.OralReviewPoints)
	}
	return max(mark, 0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
