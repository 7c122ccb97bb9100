// Package scoring evaluates submissions against test definitions and merges
// manual marks into final scores. Everything here is pure: the same inputs
// always produce the same outputs.
package scoring

import "github.com/pavelanni/assessor/internal/model"

// Outcome is the automatic scoring of one submission.
type Outcome struct {
	AutoScore     float64
	TotalPossible float64
	HasEssay      bool
	Breakdown     []model.QuestionScore
}

// Score evaluates answers against every question of the test. Essays add to
// TotalPossible but never to AutoScore, and so do the test's oral review points.
// A question without usable options or correct index scores zero instead of
// failing the submission.
func Score(test model.TestDefinition, answers model.AnswerMap) Outcome {
	var out Outcome
	out.Breakdown = make([]model.QuestionScore, 0, len(test.Questions))
	for _, q := range test.Questions {
		var qs model.QuestionScore
		switch q := q.(type) {
		case *model.MCQ:
			qs = scoreMCQ(q, answers)
		case *model.Passage:
			qs = scorePassage(q, answers)
		case *model.Essay:
			qs = model.QuestionScore{
				QuestionID: q.ID,
				Type:       model.TypeEssay,
				Possible:   q.MaxPoints(),
				Manual:     true,
			}
			out.HasEssay = true
		default:
			continue
		}
		out.AutoScore += qs.Awarded
		out.TotalPossible += qs.Possible
		out.Breakdown = append(out.Breakdown, qs)
	}
	out.TotalPossible += test.OralReviewPoints
	return out
}

// TotalPossible is the sum of points the current definition can award.
func TotalPossible(test model.TestDefinition) float64 {
	var total float64
	for _, q := range test.Questions {
		total += q.MaxPoints()
	}
	return total + test.OralReviewPoints
}

// HasEssay reports whether the test contains any essay question.
func HasEssay(test model.TestDefinition) bool {
	for _, q := range test.Questions {
		if q.Type() == model.TypeEssay {
			return true
		}
	}
	return false
}

// scoreMCQ compares the answer with the text of the correct option, not its index.
func scoreMCQ(q *model.MCQ, answers model.AnswerMap) model.QuestionScore {
	qs := model.QuestionScore{
		QuestionID: q.ID,
		Type:       model.TypeMCQ,
		Possible:   q.MaxPoints(),
	}
	correct, ok := q.CorrectOption()
	if !ok {
		qs.Unscoreable = true
		return qs
	}
	if given, ok := answers.Text(q.ID); ok && given == correct {
		qs.Awarded = qs.Possible
		qs.Correct = true
	}
	return qs
}

func scorePassage(p *model.Passage, answers model.AnswerMap) model.QuestionScore {
	qs := model.QuestionScore{
		QuestionID:   p.ID,
		Type:         model.TypePassage,
		SubQuestions: make([]model.QuestionScore, 0, len(p.SubQuestions)),
	}
	for i := range p.SubQuestions {
		sub := scoreMCQ(&p.SubQuestions[i], answers)
		qs.Awarded += sub.Awarded
		qs.Possible += sub.Possible
		qs.SubQuestions = append(qs.SubQuestions, sub)
	}
	return qs
}
