package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validator returns the shared struct validator.
func Validator() *validator.Validate {
	return validate
}

// Validate checks an imported test definition: required metadata, non-negative
// points and unique question ids. Missing options or correct indexes are left
// alone; scoring treats such questions as unscoreable.
func (ti TestImport) Validate() error {
	if err := validate.Struct(ti); err != nil {
		return fmt.Errorf("test %q: %w", ti.Slug, err)
	}
	seen := make(map[string]bool)
	check := func(id string) error {
		if seen[id] {
			return fmt.Errorf("test %q: duplicate question id %q", ti.Slug, id)
		}
		seen[id] = true
		return nil
	}
	for i, q := range ti.Questions {
		if q == nil {
			return fmt.Errorf("test %q: question %d is empty", ti.Slug, i)
		}
		if err := validate.Struct(q); err != nil {
			return fmt.Errorf("test %q: question %d: %w", ti.Slug, i, err)
		}
		if err := check(q.QuestionID()); err != nil {
			return err
		}
		if p, ok := q.(*Passage); ok {
			for _, sq := range p.SubQuestions {
				if err := check(sq.ID); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// ValidationMessages flattens validator errors into field: tag strings.
func ValidationMessages(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
	}
	return out
}
