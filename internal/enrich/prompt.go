package enrich

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"

	"github.com/amishk599/jobscout/internal/model"
)

// DefaultDescriptionCap bounds the description prefix sent to the model.
const DefaultDescriptionCap = 16300

//go:embed prompts/field_question.tmpl
var fieldQuestionRaw string

// fieldQuestionTemplate is parsed once at package init and reused for every
// prompt.
var fieldQuestionTemplate = template.Must(template.New("field_question").Parse(fieldQuestionRaw))

// BuildPrompt renders the instruction preamble, at most limit characters of
// description and the field's question.
func BuildPrompt(description string, f model.FieldDescriptor, limit int) (string, error) {
	var buf bytes.Buffer
	if err := fieldQuestionTemplate.Execute(&buf, struct {
		Description string
		Question    string
	}{
		Description: truncateRunes(description, limit),
		Question:    f.Prompt,
	}); err != nil {
		return "", fmt.Errorf("render prompt for %s: %w", f.Name, err)
	}
	return buf.String(), nil
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
