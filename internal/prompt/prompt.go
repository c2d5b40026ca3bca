// Package prompt renders the grounded-answer prompt sent to the language model.
package prompt

import (
	"errors"
	"strings"
	"text/template"
)

const answerTemplate = `You are an assistant that answers questions using only the provided context.

Rules:
- Answer strictly from the context below. Do not use outside knowledge.
- If the answer is not contained in the context, say explicitly that the provided documents do not contain this information. Say it in the language of the question.
- Answer in the same language as the question. If the language of the question is ambiguous, answer in the language of the context.

Context:
{{.Context}}

Question: {{.Question}}

Answer:`

// Data fills the template slots.
type Data struct {
	Context  string
	Question string
}

// Template is the parsed answer prompt.
type Template struct {
	tmpl *template.Template
}

// New parses the built-in answer prompt.
func New() *Template {
	return &Template{tmpl: template.Must(template.New("answer").Option("missingkey=error").Parse(answerTemplate))}
}

// Parse builds a Template from custom text. Both slots must be referenced.
func Parse(text string) (*Template, error) {
	if !strings.Contains(text, "{{.Context}}") || !strings.Contains(text, "{{.Question}}") {
		return nil, errors.New("prompt template must reference {{.Context}} and {{.Question}}")
	}
	t, err := template.New("answer").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, err
	}
	return &Template{tmpl: t}, nil
}

// Render fills the template.
func (t *Template) Render(d Data) (string, error) {
	var sb strings.Builder
	if err := t.tmpl.Execute(&sb, d); err != nil {
		return "", err
	}
	return sb.String(), nil
}
