// Package prompts renders the essay marking prompts sent to the LLM.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"
)

//go:embed templates/*.txt
var templateFS embed.FS

var learnerAnswerRegex = regexp.MustCompile(`(?i)</?\s*learner-answer\b[^>]*>`)

// maxAnswerRunes bounds the essay text sent to the model.
const maxAnswerRunes = 10000

// Variant selects how generously essays are marked.
type Variant string

const (
	// Strict is for proficiency certification.
	Strict Variant = "strict"
	// Standard is the default.
	Standard Variant = "standard"
	// Lenient is for beginner placement.
	Lenient Variant = "lenient"
)

var variants = []Variant{Strict, Standard, Lenient}

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[Variant]*template.Template
)

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	for _, known := range variants {
		if string(known) == v {
			return true
		}
	}
	return false
}

// MarkData holds template data for an essay marking prompt.
type MarkData struct {
	Prompt    string
	MaxPoints string
	Answer    string
}

func load() error {
	loadOnce.Do(func() {
		templates = make(map[Variant]*template.Template)
		for _, v := range variants {
			name := "templates/mark_" + string(v) + ".txt"
			tmpl, err := template.ParseFS(templateFS, name)
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", name, err)
				return
			}
			templates[v] = tmpl
		}
	})
	return loadErr
}

// BuildMarkPrompt renders the marking prompt for one essay answer.
func BuildMarkPrompt(variant Variant, prompt string, maxPoints float64, answer string) (string, error) {
	if err := load(); err != nil {
		return "", err
	}
	tmpl, ok := templates[variant]
	if !ok {
		return "", fmt.Errorf("invalid prompt variant %q", variant)
	}

	data := MarkData{
		Prompt:    strings.TrimSpace(prompt),
		MaxPoints: strconv.FormatFloat(maxPoints, 'f', -1, 64),
		Answer:    sanitizeAnswer(answer),
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// sanitizeAnswer strips tags that would let an answer escape its delimiters
// and truncates very long answers.
func sanitizeAnswer(answer string) string {
	answer = learnerAnswerRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		runes := []rune(answer)
		answer = string(runes[:maxAnswerRunes]) + "\n\n[Answer truncated due to length]"
	}
	return answer
}
