package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// ErrMalformedDefinition is returned when a stored or imported question set cannot be decoded.
var ErrMalformedDefinition = errors.New("malformed test definition")

// QuestionSchemaVersion is the version written by EncodeQuestions.
const QuestionSchemaVersion = 1

// DefaultPoints is used for any question or sub-question that does not carry a points value.
const DefaultPoints = 1.0

// QuestionType tags a question in its serialized form.
type QuestionType string

const (
	TypeMCQ     QuestionType = "mcq"
	TypePassage QuestionType = "passage"
	TypeEssay   QuestionType = "essay"
)

// Question is one of *MCQ, *Passage or *Essay. The set is closed: the
// unexported marker method keeps other packages from adding variants.
type Question interface {
	QuestionID() string
	Type() QuestionType
	// MaxPoints is the number of points the question contributes to a test total.
	MaxPoints() float64
	question()
}

// MCQ is a multiple-choice question answered by the text of one option.
type MCQ struct {
	ID                 string   `json:"id" validate:"required"`
	Text               string   `json:"text,omitempty"`
	Points             *float64 `json:"points,omitempty" validate:"omitempty,gte=0"`
	Options            []string `json:"options,omitempty"`
	CorrectOptionIndex *int     `json:"correctOptionIndex,omitempty"`
}

// Passage is a reading passage scored as the sum of its sub-questions.
type Passage struct {
	ID           string `json:"id" validate:"required"`
	PassageText  string `json:"passageText"`
	SubQuestions []MCQ  `json:"subQuestions" validate:"dive"`
}

// Essay is a free-text question that is always marked by hand.
type Essay struct {
	ID     string   `json:"id" validate:"required"`
	Points *float64 `json:"points,omitempty" validate:"omitempty,gte=0"`
	Prompt string   `json:"prompt"`
}

func (q *MCQ) QuestionID() string     { return q.ID }
func (q *Passage) QuestionID() string { return q.ID }
func (q *Essay) QuestionID() string   { return q.ID }

func (*MCQ) Type() QuestionType     { return TypeMCQ }
func (*Passage) Type() QuestionType { return TypePassage }
func (*Essay) Type() QuestionType   { return TypeEssay }

func (*MCQ) question()     {}
func (*Passage) question() {}
func (*Essay) question()   {}

func (q *MCQ) MaxPoints() float64   { return pointsOrDefault(q.Points) }
func (q *Essay) MaxPoints() float64 { return pointsOrDefault(q.Points) }

func (q *Passage) MaxPoints() float64 {
	var total float64
	for i := range q.SubQuestions {
		total += q.SubQuestions[i].MaxPoints()
	}
	return total
}

// CorrectOption resolves the text of the correct option. ok is false when the
// question lacks options or its correct index does not point at one.
func (q *MCQ) CorrectOption() (option string, ok bool) {
	if q.CorrectOptionIndex == nil || len(q.Options) == 0 {
		return "", false
	}
	idx := *q.CorrectOptionIndex
	if idx < 0 || idx >= len(q.Options) {
		return "", false
	}
	return q.Options[idx], true
}

func pointsOrDefault(p *float64) float64 {
	if p == nil {
		return DefaultPoints
	}
	return *p
}

func (q MCQ) MarshalJSON() ([]byte, error) {
	type plain MCQ
	return json.Marshal(struct {
		Type QuestionType `json:"type"`
		plain
	}{TypeMCQ, plain(q)})
}

func (q Passage) MarshalJSON() ([]byte, error) {
	type plain Passage
	return json.Marshal(struct {
		Type QuestionType `json:"type"`
		plain
	}{TypePassage, plain(q)})
}

func (q Essay) MarshalJSON() ([]byte, error) {
	type plain Essay
	return json.Marshal(struct {
		Type QuestionType `json:"type"`
		plain
	}{TypeEssay, plain(q)})
}

// Questions is an ordered question list that decodes its discriminated-union form.
type Questions []Question

// UnmarshalJSON decodes each element by its "type" tag.
func (qs *Questions) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedDefinition, err)
	}
	out := make(Questions, 0, len(raw))
	for i, r := range raw {
		q, err := decodeQuestion(r)
		if err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
		out = append(out, q)
	}
	*qs = out
	return nil
}

func decodeQuestion(data json.RawMessage) (Question, error) {
	var tag struct {
		Type QuestionType `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDefinition, err)
	}
	switch tag.Type {
	case TypeMCQ:
		q, degraded, err := decodeMCQ(data)
		if err != nil {
			return nil, err
		}
		if degraded && q.ID == "" {
			return nil, fmt.Errorf("%w: mcq without a readable id", ErrMalformedDefinition)
		}
		return q, nil
	case TypePassage:
		q, err := decodePassage(data)
		if err != nil {
			return nil, err
		}
		return q, nil
	case TypeEssay:
		q := &Essay{}
		typeErr, err := decodeLenient(data, q)
		if err != nil {
			return nil, err
		}
		if typeErr != nil {
			if q.ID == "" {
				return nil, fmt.Errorf("%w: essay without a readable id", ErrMalformedDefinition)
			}
			slog.Warn("essay has a field of the wrong type, keeping the readable ones",
				"question_id", q.ID, "field", typeErr.Field)
			if typeErr.Field == "points" {
				q.Points = nil
			}
		}
		return q, nil
	default:
		return nil, fmt.Errorf("%w: unknown question type %q", ErrMalformedDefinition, tag.Type)
	}
}

// decodeMCQ decodes one multiple-choice question. A question with a field of
// the wrong type loses its options and correct index, so it scores as
// unscoreable instead of failing the whole definition.
func decodeMCQ(data []byte) (q *MCQ, degraded bool, err error) {
	q = &MCQ{}
	typeErr, err := decodeLenient(data, q)
	if err != nil {
		return nil, false, err
	}
	if typeErr != nil {
		slog.Warn("mcq has a field of the wrong type, treating it as unscoreable",
			"question_id", q.ID, "field", typeErr.Field)
		q.Options = nil
		q.CorrectOptionIndex = nil
		if typeErr.Field == "points" {
			q.Points = nil
		}
	}
	return q, typeErr != nil, nil
}

func decodePassage(data []byte) (*Passage, error) {
	var p struct {
		ID           string            `json:"id"`
		PassageText  string            `json:"passageText"`
		SubQuestions []json.RawMessage `json:"subQuestions"`
	}
	typeErr, err := decodeLenient(data, &p)
	if err != nil {
		return nil, err
	}
	if typeErr != nil {
		if p.ID == "" {
			return nil, fmt.Errorf("%w: passage without a readable id", ErrMalformedDefinition)
		}
		slog.Warn("passage has a field of the wrong type, keeping the readable ones",
			"question_id", p.ID, "field", typeErr.Field)
	}
	q := &Passage{ID: p.ID, PassageText: p.PassageText}
	if p.SubQuestions != nil {
		q.SubQuestions = make([]MCQ, 0, len(p.SubQuestions))
	}
	for i, raw := range p.SubQuestions {
		sq, _, err := decodeMCQ(raw)
		if err != nil {
			return nil, fmt.Errorf("passage %s sub-question %d: %w", p.ID, i, err)
		}
		q.SubQuestions = append(q.SubQuestions, *sq)
	}
	return q, nil
}

// decodeLenient unmarshals data into v. A value of the wrong JSON type only
// degrades v: encoding/json keeps filling the other fields and the type error
// is returned for the caller to repair. Anything else, or an unreadable id,
// is malformed.
func decodeLenient(data []byte, v any) (*json.UnmarshalTypeError, error) {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil, nil
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "id" {
		return typeErr, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrMalformedDefinition, err)
}

type questionSet struct {
	SchemaVersion int       `json:"schemaVersion"`
	Questions     Questions `json:"questions"`
}

// EncodeQuestions serializes questions into the versioned storage envelope.
func EncodeQuestions(qs Questions) ([]byte, error) {
	if qs == nil {
		qs = Questions{}
	}
	return json.Marshal(questionSet{SchemaVersion: QuestionSchemaVersion, Questions: qs})
}

// DecodeQuestions parses the storage envelope. Bare JSON arrays written before
// the envelope existed are accepted as version 1.
func DecodeQuestions(data []byte) (Questions, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Questions{}, nil
	}
	if data[0] == '[' {
		var qs Questions
		if err := json.Unmarshal(data, &qs); err != nil {
			return nil, malformed(err)
		}
		return qs, nil
	}
	var set questionSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, malformed(err)
	}
	if set.SchemaVersion > QuestionSchemaVersion {
		return nil, fmt.Errorf("%w: unsupported schema version %d", ErrMalformedDefinition, set.SchemaVersion)
	}
	if set.Questions == nil {
		set.Questions = Questions{}
	}
	return set.Questions, nil
}

func malformed(err error) error {
	if errors.Is(err, ErrMalformedDefinition) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrMalformedDefinition, err)
}

// Redacted returns copies of the questions with correct answers removed, for
// showing a test to a learner.
func (qs Questions) Redacted() Questions {
	out := make(Questions, 0, len(qs))
	for _, q := range qs {
		switch q := q.(type) {
		case *MCQ:
			c := *q
			c.CorrectOptionIndex = nil
			out = append(out, &c)
		case *Passage:
			c := *q
			c.SubQuestions = make([]MCQ, len(q.SubQuestions))
			for i, sq := range q.SubQuestions {
				sq.CorrectOptionIndex = nil
				c.SubQuestions[i] = sq
			}
			out = append(out, &c)
		case *Essay:
			c := *q
			out = append(out, &c)
		}
	}
	return out
}
